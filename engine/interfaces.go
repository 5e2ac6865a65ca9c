package engine

import (
	"context"

	"notifykit/core"
)

// Ledger abstracts the durable notification store. It is the system of
// record: Record failing must fail the producing action, while live delivery
// stays best-effort. Record is at-least-once; a retried producer call whose
// earlier success was not observed may create a duplicate entry.
type Ledger interface {
	// Record persists one entry, assigning ID and CreatedAt when unset.
	Record(ctx context.Context, n core.Notification) (core.Notification, error)
	// ListFor returns every entry addressed to the identity, newest first.
	ListFor(ctx context.Context, to core.Identity) ([]core.Notification, error)
	// CountUnread returns the number of unread entries for the identity.
	CountUnread(ctx context.Context, to core.Identity) (int64, error)
	// MarkAllRead flips every unread entry for the identity and reports how
	// many it flipped. Idempotent: a second call reports zero.
	MarkAllRead(ctx context.Context, to core.Identity) (int64, error)
	// MarkChannelRead is the scoped variant keyed on (kind, channelRef).
	MarkChannelRead(ctx context.Context, to core.Identity, kind core.Kind, channelRef string) (int64, error)
	// DeleteFor removes every entry for the identity and reports the count.
	DeleteFor(ctx context.Context, to core.Identity) (int64, error)
}

// Dispatcher performs best-effort live fan-out. Implementations must never
// block on one connection at the expense of another.
type Dispatcher interface {
	DispatchUser(ctx context.Context, to core.Identity, ev core.Event) core.DeliveryReport
	DispatchUsers(ctx context.Context, targets []core.Identity, ev core.Event) core.DeliveryReport
}

// MembershipResolver answers which identities a channel event reaches.
type MembershipResolver interface {
	MembersOf(ctx context.Context, ch core.Channel) ([]core.Identity, error)
}
