package realtime

import (
	"context"
	"errors"
	"testing"

	"notifykit/core"
)

type nopSink struct{}

func (nopSink) Push(context.Context, []byte) error { return nil }

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("U2", "s1", nopSink{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("u2", "s2", nopSink{}); err != nil {
		t.Fatalf("register second device: %v", err)
	}
	if got := len(r.SessionsFor("u2")); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}

	err := r.Register("u2", "s1", nopSink{})
	if !errors.Is(err, core.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	r.Unregister("s1")
	if got := len(r.SessionsFor("u2")); got != 1 {
		t.Fatalf("expected 1 session after unregister, got %d", got)
	}

	// late disconnect events are a no-op, not an error
	r.Unregister("s1")
	r.Unregister("never-existed")

	r.Unregister("s2")
	if got := r.SessionsFor("u2"); got != nil {
		t.Fatalf("expected no sessions, got %v", got)
	}
	conns, ids := r.Stats()
	if conns != 0 || ids != 0 {
		t.Fatalf("expected empty registry, got %d/%d", conns, ids)
	}
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("u1", "c1", nopSink{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	snap := r.SessionsFor("u1")
	r.Unregister("c1")
	// snapshot taken before unregister remains usable
	if len(snap) != 1 || snap[0].ConnID != "c1" {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
	if r.SessionsFor("u1") != nil {
		t.Fatal("fresh query should see the unregister")
	}
}
