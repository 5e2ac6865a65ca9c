package memory

import (
	"context"
	"testing"
	"time"

	"notifykit/core"
)

func TestMemoryLedgerRecordAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.Record(ctx, core.Notification{From: "u1", To: "u2", Kind: core.KindFollow})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("expected assigned ID and CreatedAt: %+v", first)
	}

	second, err := s.Record(ctx, core.Notification{From: "u3", To: "u2", Kind: core.KindLike, PostRef: "p1"})
	if err != nil {
		t.Fatal(err)
	}

	list, err := s.ListFor(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[0].ID != second.ID {
		t.Fatalf("expected newest first, got %v", list)
	}
}

func TestMemoryLedgerNewestFirstWithExplicitTimes(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{base.Add(time.Minute), base, base.Add(2 * time.Minute)} {
		_, err := s.Record(ctx, core.Notification{
			From: "u1", To: "u2", Kind: core.KindFollow,
			Message:   string(rune('a' + i)),
			CreatedAt: at,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	list, _ := s.ListFor(ctx, "u2")
	if list[0].Message != "c" || list[1].Message != "a" || list[2].Message != "b" {
		t.Fatalf("expected descending created_at, got %v", list)
	}
}

func TestMemoryLedgerMarkAllReadIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.Record(ctx, core.Notification{From: "u1", To: "u2", Kind: core.KindFollow}); err != nil {
			t.Fatal(err)
		}
	}

	affected, err := s.MarkAllRead(ctx, "u2")
	if err != nil || affected != 3 {
		t.Fatalf("first call: affected=%d err=%v", affected, err)
	}
	affected, err = s.MarkAllRead(ctx, "u2")
	if err != nil || affected != 0 {
		t.Fatalf("second call should affect 0, got %d err=%v", affected, err)
	}

	list, _ := s.ListFor(ctx, "u2")
	for _, n := range list {
		if !n.Read {
			t.Fatalf("expected all read: %+v", n)
		}
	}
	unread, _ := s.CountUnread(ctx, "u2")
	if unread != 0 {
		t.Fatalf("expected 0 unread, got %d", unread)
	}
}

func TestMemoryLedgerMarkChannelReadScoped(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _ = s.Record(ctx, core.Notification{From: "u1", To: "u2", Kind: core.KindCommunityMessage, ChannelRef: "community:a", Message: "m"})
	_, _ = s.Record(ctx, core.Notification{From: "u1", To: "u2", Kind: core.KindCommunityMessage, ChannelRef: "community:b", Message: "m"})
	_, _ = s.Record(ctx, core.Notification{From: "u1", To: "u2", Kind: core.KindDirectMessage, ChannelRef: "dm:u1:u2", Message: "m"})

	affected, err := s.MarkChannelRead(ctx, "u2", core.KindCommunityMessage, "community:a")
	if err != nil || affected != 1 {
		t.Fatalf("affected=%d err=%v", affected, err)
	}

	list, _ := s.ListFor(ctx, "u2")
	for _, n := range list {
		read := n.ChannelRef == "community:a"
		if n.Read != read {
			t.Fatalf("entry %q read=%v, want %v", n.ChannelRef, n.Read, read)
		}
	}
}

func TestMemoryLedgerQueriesAllocateNothing(t *testing.T) {
	s := New()
	ctx := context.Background()

	if list, err := s.ListFor(ctx, "probe"); err != nil || len(list) != 0 {
		t.Fatalf("list: %v err=%v", list, err)
	}
	if unread, err := s.CountUnread(ctx, "probe"); err != nil || unread != 0 {
		t.Fatalf("unread=%d err=%v", unread, err)
	}
	if affected, err := s.MarkAllRead(ctx, "probe"); err != nil || affected != 0 {
		t.Fatalf("affected=%d err=%v", affected, err)
	}
	if affected, err := s.MarkChannelRead(ctx, "probe", core.KindFollow, "community:x"); err != nil || affected != 0 {
		t.Fatalf("affected=%d err=%v", affected, err)
	}
	if deleted, err := s.DeleteFor(ctx, "probe"); err != nil || deleted != 0 {
		t.Fatalf("deleted=%d err=%v", deleted, err)
	}

	// none of the above may leave an inbox record behind
	count := 0
	s.inboxes.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != 0 {
		t.Fatalf("queries for an unknown identity allocated %d inbox records", count)
	}
}

func TestMemoryLedgerDeleteFor(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Record(ctx, core.Notification{From: "u1", To: "u2", Kind: core.KindFollow})
	_, _ = s.Record(ctx, core.Notification{From: "u1", To: "u3", Kind: core.KindFollow})

	deleted, err := s.DeleteFor(ctx, "u2")
	if err != nil || deleted != 1 {
		t.Fatalf("deleted=%d err=%v", deleted, err)
	}
	if list, _ := s.ListFor(ctx, "u2"); len(list) != 0 {
		t.Fatalf("expected empty inbox, got %v", list)
	}
	if list, _ := s.ListFor(ctx, "u3"); len(list) != 1 {
		t.Fatalf("other inboxes untouched, got %v", list)
	}
}
