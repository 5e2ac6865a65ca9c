package engine

import (
	"context"
	"fmt"
	"time"

	"notifykit/core"
)

// NotifyService wires the ledger, the live dispatcher, and channel
// membership into the notification fan-out API.
//
// The ledger write is the durability boundary: it completes before any live
// push is attempted, and its failure fails the producing action. The live
// push is an optimization layered on top; its failures only show up as a
// lower Delivered count, reconciled by the client's next ledger poll.
type NotifyService struct {
	ledger     Ledger
	dispatcher Dispatcher
	members    MembershipResolver
	bus        *EventBus
}

func NewNotifyService(ledger Ledger, dispatcher Dispatcher, members MembershipResolver, bus *EventBus) *NotifyService {
	if ledger == nil || dispatcher == nil || members == nil || bus == nil {
		panic("NewNotifyService requires non-nil ledger, dispatcher, members, and bus")
	}
	return &NotifyService{ledger: ledger, dispatcher: dispatcher, members: members, bus: bus}
}

// Subscribe convenience method for integrations.
func (s *NotifyService) Subscribe(kind core.Kind, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(kind, handler)
}

// SubscribeAll registers an integration handler for every kind.
func (s *NotifyService) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

// Notify records and delivers a direct-target notification (follow, like,
// direct message, comment, repost). Community messages go through
// NotifyChannel so membership is resolved and the sender excluded.
func (s *NotifyService) Notify(ctx context.Context, from, to core.Identity, kind core.Kind, message, postRef string) (core.Notification, core.DeliveryReport, error) {
	if kind == core.KindCommunityMessage {
		return core.Notification{}, core.DeliveryReport{}, fmt.Errorf("kind %q requires a channel, use NotifyChannel", kind)
	}
	nFrom, err := core.NormalizeIdentity(from)
	if err != nil {
		return core.Notification{}, core.DeliveryReport{}, err
	}
	nTo, err := core.NormalizeIdentity(to)
	if err != nil {
		return core.Notification{}, core.DeliveryReport{}, err
	}
	entry := core.Notification{
		From:      nFrom,
		To:        nTo,
		Kind:      kind,
		PostRef:   postRef,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if kind == core.KindDirectMessage {
		if ch, err := core.DirectChannel(nFrom, nTo); err == nil {
			entry.ChannelRef = ch.Ref()
		}
	}
	if err := entry.Validate(); err != nil {
		return core.Notification{}, core.DeliveryReport{}, err
	}

	stored, err := s.ledger.Record(ctx, entry)
	if err != nil {
		return core.Notification{}, core.DeliveryReport{}, fmt.Errorf("record notification: %w", err)
	}

	ev := core.EventFromNotification(stored)
	report := s.dispatcher.DispatchUser(ctx, stored.To, ev)
	s.bus.Publish(ctx, ev)
	return stored, report, nil
}

// NotifyChannel records one entry per channel member other than the sender,
// then delivers to each of them. Membership resolves before any write so an
// unknown channel fails hard with no partial fan-out.
func (s *NotifyService) NotifyChannel(ctx context.Context, from core.Identity, ch core.Channel, message string) ([]core.Notification, core.DeliveryReport, error) {
	nFrom, err := core.NormalizeIdentity(from)
	if err != nil {
		return nil, core.DeliveryReport{}, err
	}
	members, err := s.members.MembersOf(ctx, ch)
	if err != nil {
		return nil, core.DeliveryReport{}, err
	}

	targets := make([]core.Identity, 0, len(members))
	for _, m := range members {
		normalized, err := core.NormalizeIdentity(m)
		if err != nil || normalized == nFrom {
			continue
		}
		targets = append(targets, normalized)
	}

	kind := ch.MessageKind()
	now := time.Now().UTC()
	entries := make([]core.Notification, 0, len(targets))
	for _, target := range targets {
		entry := core.Notification{
			From:       nFrom,
			To:         target,
			Kind:       kind,
			ChannelRef: ch.Ref(),
			Message:    message,
			CreatedAt:  now,
		}
		stored, err := s.ledger.Record(ctx, entry)
		if err != nil {
			// entries already recorded stay; at-least-once, no rollback
			return entries, core.DeliveryReport{}, fmt.Errorf("record notification for %s: %w", target, err)
		}
		entries = append(entries, stored)
	}

	var report core.DeliveryReport
	for _, entry := range entries {
		ev := core.EventFromNotification(entry)
		report.Merge(s.dispatcher.DispatchUser(ctx, entry.To, ev))
		s.bus.Publish(ctx, ev)
	}
	return entries, report, nil
}

// Notifications is a pure read, newest first. Unlike the platform this was
// extracted from, fetching never flips unread state; that transition is
// explicit via MarkAllRead / MarkChannelRead.
func (s *NotifyService) Notifications(ctx context.Context, identity core.Identity) ([]core.Notification, error) {
	normalized, err := core.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	return s.ledger.ListFor(ctx, normalized)
}

// UnreadCount returns the badge count for an identity.
func (s *NotifyService) UnreadCount(ctx context.Context, identity core.Identity) (int64, error) {
	normalized, err := core.NormalizeIdentity(identity)
	if err != nil {
		return 0, err
	}
	return s.ledger.CountUnread(ctx, normalized)
}

// MarkAllRead flips every unread entry for the identity. Pure state
// transition: it never triggers a dispatch.
func (s *NotifyService) MarkAllRead(ctx context.Context, identity core.Identity) (int64, error) {
	normalized, err := core.NormalizeIdentity(identity)
	if err != nil {
		return 0, err
	}
	return s.ledger.MarkAllRead(ctx, normalized)
}

// MarkChannelRead flips unread entries matching (kind, channelRef) so that
// opening one community's chat leaves other badges alone.
func (s *NotifyService) MarkChannelRead(ctx context.Context, identity core.Identity, kind core.Kind, channelRef string) (int64, error) {
	normalized, err := core.NormalizeIdentity(identity)
	if err != nil {
		return 0, err
	}
	if err := kind.Validate(); err != nil {
		return 0, err
	}
	return s.ledger.MarkChannelRead(ctx, normalized, kind, channelRef)
}

// ClearAll deletes every entry for the identity.
func (s *NotifyService) ClearAll(ctx context.Context, identity core.Identity) (int64, error) {
	normalized, err := core.NormalizeIdentity(identity)
	if err != nil {
		return 0, err
	}
	return s.ledger.DeleteFor(ctx, normalized)
}

// Close stops the event bus workers.
func (s *NotifyService) Close() { s.bus.Close() }
