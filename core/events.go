package core

import (
	"encoding/json"
	"time"
)

// Event is the ephemeral payload pushed over live connections. It exists
// only for the duration of a dispatch; the Notification row is the durable
// record. Field names follow the wire contract shared with the browser
// client, hence camelCase.
type Event struct {
	Kind       Kind      `json:"kind"`
	From       Identity  `json:"from"`
	To         Identity  `json:"to"`
	ChannelRef string    `json:"channelRef,omitempty"`
	PostRef    string    `json:"postRef,omitempty"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewFollowEvent(from, to Identity) Event {
	return Event{Kind: KindFollow, From: from, To: to, CreatedAt: time.Now().UTC()}
}

func NewLikeEvent(from, to Identity, postRef string) Event {
	return Event{Kind: KindLike, From: from, To: to, PostRef: postRef, CreatedAt: time.Now().UTC()}
}

func NewDirectMessageEvent(from, to Identity, message string) Event {
	return Event{Kind: KindDirectMessage, From: from, To: to, Message: message, CreatedAt: time.Now().UTC()}
}

func NewCommunityMessageEvent(from, to Identity, channelRef, message string) Event {
	return Event{Kind: KindCommunityMessage, From: from, To: to, ChannelRef: channelRef, Message: message, CreatedAt: time.Now().UTC()}
}

// EventFromNotification derives the live payload from a recorded entry.
func EventFromNotification(n Notification) Event {
	return Event{
		Kind:       n.Kind,
		From:       n.From,
		To:         n.To,
		ChannelRef: n.ChannelRef,
		PostRef:    n.PostRef,
		Message:    n.Message,
		CreatedAt:  n.CreatedAt,
	}
}

// WithTarget returns a copy addressed to a single recipient, used when a
// channel event fans out to many identities.
func (e Event) WithTarget(to Identity) Event {
	e.To = to
	return e
}

// MarshalJSONBytes converts an event to JSON for WebSocket delivery.
func MarshalJSONBytes(e Event) []byte {
	b, _ := json.Marshal(e)
	return b
}
