package membership

import (
	"context"
	"errors"
	"sort"
	"testing"

	"notifykit/core"
)

func TestResolverDirectPair(t *testing.T) {
	r := NewResolver(nil)
	ch, err := core.DirectChannel("u1", "u2")
	if err != nil {
		t.Fatal(err)
	}
	members, err := r.MembersOf(context.Background(), ch)
	if err != nil {
		t.Fatalf("members of direct pair: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected exactly the two participants, got %v", members)
	}
}

func TestResolverCommunity(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.Create("c1", "u1", "u2")
	dir.Join("c1", "U3")
	dir.Leave("c1", "u2")

	r := NewResolver(dir)
	ch, err := core.CommunityChannel("c1")
	if err != nil {
		t.Fatal(err)
	}
	members, err := r.MembersOf(context.Background(), ch)
	if err != nil {
		t.Fatalf("members of community: %v", err)
	}
	got := make([]string, 0, len(members))
	for _, m := range members {
		got = append(got, string(m))
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "u1" || got[1] != "u3" {
		t.Fatalf("unexpected members: %v", got)
	}
}

func TestResolverUnknownCommunity(t *testing.T) {
	r := NewResolver(NewMemoryDirectory())
	ch, err := core.CommunityChannel("ghost")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.MembersOf(context.Background(), ch); !errors.Is(err, core.ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestResolverMembershipNotCached(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.Create("c1", "u1")
	r := NewResolver(dir)
	ch, _ := core.CommunityChannel("c1")

	if members, _ := r.MembersOf(context.Background(), ch); len(members) != 1 {
		t.Fatalf("expected 1 member, got %v", members)
	}
	dir.Join("c1", "u2")
	if members, _ := r.MembersOf(context.Background(), ch); len(members) != 2 {
		t.Fatalf("join should be visible on the next resolve, got %v", members)
	}

	dir.Remove("c1")
	if _, err := r.MembersOf(context.Background(), ch); !errors.Is(err, core.ErrUnknownChannel) {
		t.Fatalf("removed community should resolve as unknown, got %v", err)
	}
}
