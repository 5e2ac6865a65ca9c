package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Identity uniquely identifies a user in the notification domain.
// It is opaque here; the account collaborator owns its meaning.
type Identity string

// ConnectionID identifies a single live connection. One identity may own
// several concurrent connections (multi-device).
type ConnectionID string

// Kind enumerates the closed set of notification kinds.
type Kind string

const (
	KindFollow           Kind = "follow"
	KindLike             Kind = "like"
	KindDirectMessage    Kind = "direct_message"
	KindCommunityMessage Kind = "community_message"
	KindComment          Kind = "comment"
	KindRepost           Kind = "repost"
)

// Sentinel errors for the service-wide taxonomy. Per-connection delivery
// timeouts are deliberately absent: they fold into DeliveryReport counts.
var (
	ErrAlreadyRegistered  = errors.New("session already registered")
	ErrStorageUnavailable = errors.New("notification storage unavailable")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrUnknownKind        = errors.New("unknown notification kind")
)

// Validate rejects kinds outside the closed enumeration.
func (k Kind) Validate() error {
	switch k {
	case KindFollow, KindLike, KindDirectMessage, KindCommunityMessage, KindComment, KindRepost:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
}

// Notification is a durable ledger entry. Read transitions false->true only;
// nothing in this service resets it.
type Notification struct {
	ID         string    `json:"id"`
	From       Identity  `json:"from"`
	To         Identity  `json:"to"`
	Kind       Kind      `json:"kind"`
	ChannelRef string    `json:"channel_ref,omitempty"`
	PostRef    string    `json:"post_ref,omitempty"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks the fields a producing caller must supply.
func (n Notification) Validate() error {
	if err := n.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(string(n.From)) == "" {
		return errors.New("empty from identity")
	}
	if strings.TrimSpace(string(n.To)) == "" {
		return errors.New("empty to identity")
	}
	return nil
}

// DeliveryReport summarizes a best-effort live fan-out. Delivered may be
// lower than Attempted when connections went stale or timed out mid-push.
type DeliveryReport struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
}

// Merge accumulates another report into this one.
func (r *DeliveryReport) Merge(other DeliveryReport) {
	r.Attempted += other.Attempted
	r.Delivered += other.Delivered
}

// NormalizeIdentity trims and lowercases identities so that map keys and
// stored rows agree regardless of caller casing.
func NormalizeIdentity(id Identity) (Identity, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty identity")
	}
	return Identity(strings.ToLower(s)), nil
}
