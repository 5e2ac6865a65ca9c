package engine

import (
	"context"
	"testing"
	"time"

	"notifykit/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.KindFollow, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewFollowEvent("u1", "u2"))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.KindDirectMessage, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewDirectMessageEvent("u1", "u2", "hi"))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	got := map[core.Kind]int{}
	unsub := bus.SubscribeAll(func(ctx context.Context, e core.Event) { got[e.Kind]++ })

	bus.Publish(context.Background(), core.NewFollowEvent("u1", "u2"))
	bus.Publish(context.Background(), core.NewLikeEvent("u1", "u2", "p1"))
	if got[core.KindFollow] != 1 || got[core.KindLike] != 1 {
		t.Fatalf("unexpected counts: %v", got)
	}

	unsub()
	bus.Publish(context.Background(), core.NewFollowEvent("u1", "u2"))
	if got[core.KindFollow] != 1 {
		t.Fatal("unsubscribe should stop delivery")
	}
}
