package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifykit/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, cleanup
}

func TestStore_RecordAndListNewestFirst(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first, err := store.Record(ctx, core.Notification{
		From: "u1", To: "u2", Kind: core.KindFollow, CreatedAt: base,
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.Record(ctx, core.Notification{
		From: "u3", To: "u2", Kind: core.KindLike, PostRef: "p1", CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)

	list, err := store.ListFor(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.False(t, list[0].Read)
}

func TestStore_RecordAssignsIDAndTime(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	n, err := store.Record(context.Background(), core.Notification{
		From: "u1", To: "u2", Kind: core.KindDirectMessage, Message: "hi",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestStore_MarkAllReadIdempotent(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Record(ctx, core.Notification{From: "u1", To: "u2", Kind: core.KindFollow})
		require.NoError(t, err)
	}

	affected, err := store.MarkAllRead(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	affected, err = store.MarkAllRead(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	unread, err := store.CountUnread(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestStore_MarkChannelReadScoped(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	_, err := store.Record(ctx, core.Notification{
		From: "u1", To: "u2", Kind: core.KindCommunityMessage, ChannelRef: "community:a", Message: "m",
	})
	require.NoError(t, err)
	_, err = store.Record(ctx, core.Notification{
		From: "u1", To: "u2", Kind: core.KindCommunityMessage, ChannelRef: "community:b", Message: "m",
	})
	require.NoError(t, err)

	affected, err := store.MarkChannelRead(ctx, "u2", core.KindCommunityMessage, "community:a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	list, err := store.ListFor(ctx, "u2")
	require.NoError(t, err)
	for _, n := range list {
		assert.Equal(t, n.ChannelRef == "community:a", n.Read, "channel_ref %s", n.ChannelRef)
	}
}

func TestStore_DeleteFor(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Record(ctx, core.Notification{From: "u1", To: "u2", Kind: core.KindFollow})
		require.NoError(t, err)
	}

	deleted, err := store.DeleteFor(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	list, err := store.ListFor(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_EmptyInbox(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	list, err := store.ListFor(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)

	unread, err := store.CountUnread(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
}
