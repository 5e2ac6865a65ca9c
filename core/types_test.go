package core

import (
	"errors"
	"testing"
)

func TestNormalizeIdentity(t *testing.T) {
	id, err := NormalizeIdentity(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeIdentity("   "); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestKindValidate(t *testing.T) {
	for _, k := range []Kind{KindFollow, KindLike, KindDirectMessage, KindCommunityMessage, KindComment, KindRepost} {
		if err := k.Validate(); err != nil {
			t.Fatalf("valid kind %q rejected: %v", k, err)
		}
	}
	err := Kind("poke").Validate()
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestNotificationValidate(t *testing.T) {
	n := Notification{From: "u1", To: "u2", Kind: KindFollow}
	if err := n.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := (Notification{From: "u1", Kind: KindFollow}).Validate(); err == nil {
		t.Fatal("expected error for empty to")
	}
	if err := (Notification{From: "u1", To: "u2", Kind: "nope"}).Validate(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDeliveryReportMerge(t *testing.T) {
	r := DeliveryReport{Attempted: 2, Delivered: 1}
	r.Merge(DeliveryReport{Attempted: 3, Delivered: 3})
	if r.Attempted != 5 || r.Delivered != 4 {
		t.Fatalf("unexpected report: %+v", r)
	}
}
