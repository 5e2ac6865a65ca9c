package core

import (
	"fmt"
	"strings"
)

// ChannelKind distinguishes the two delivery scopes.
type ChannelKind string

const (
	ChannelDirect    ChannelKind = "direct"
	ChannelCommunity ChannelKind = "community"
)

const (
	directRefPrefix    = "dm:"
	communityRefPrefix = "community:"
)

// Channel is a logical delivery scope: a direct pair (canonicalized by
// sorting the two identities) or a community. Membership of a community is
// owned by the community collaborator; the pair's membership is the pair.
type Channel struct {
	Kind ChannelKind
	// A and B are the canonical pair for direct channels, A <= B.
	A, B Identity
	// Community is the community ref for community channels.
	Community string
}

// DirectChannel builds the canonical direct channel for two identities.
func DirectChannel(a, b Identity) (Channel, error) {
	na, err := NormalizeIdentity(a)
	if err != nil {
		return Channel{}, fmt.Errorf("direct channel: %w", err)
	}
	nb, err := NormalizeIdentity(b)
	if err != nil {
		return Channel{}, fmt.Errorf("direct channel: %w", err)
	}
	if na == nb {
		return Channel{}, fmt.Errorf("direct channel requires two distinct identities, got %q twice", na)
	}
	if nb < na {
		na, nb = nb, na
	}
	return Channel{Kind: ChannelDirect, A: na, B: nb}, nil
}

// CommunityChannel builds a community channel from its ref.
func CommunityChannel(id string) (Channel, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Channel{}, fmt.Errorf("%w: empty community id", ErrUnknownChannel)
	}
	return Channel{Kind: ChannelCommunity, Community: id}, nil
}

// Ref yields the stable string stored as a notification's channel_ref.
func (c Channel) Ref() string {
	switch c.Kind {
	case ChannelDirect:
		return directRefPrefix + string(c.A) + ":" + string(c.B)
	case ChannelCommunity:
		return communityRefPrefix + c.Community
	}
	return ""
}

// MessageKind is the notification kind a message on this channel produces.
func (c Channel) MessageKind() Kind {
	if c.Kind == ChannelDirect {
		return KindDirectMessage
	}
	return KindCommunityMessage
}

// ParseChannelRef inverts Ref.
func ParseChannelRef(ref string) (Channel, error) {
	switch {
	case strings.HasPrefix(ref, directRefPrefix):
		rest := strings.TrimPrefix(ref, directRefPrefix)
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Channel{}, fmt.Errorf("%w: malformed direct ref %q", ErrUnknownChannel, ref)
		}
		return DirectChannel(Identity(parts[0]), Identity(parts[1]))
	case strings.HasPrefix(ref, communityRefPrefix):
		return CommunityChannel(strings.TrimPrefix(ref, communityRefPrefix))
	}
	return Channel{}, fmt.Errorf("%w: malformed ref %q", ErrUnknownChannel, ref)
}
