package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"notifykit/core"
)

// Store is a concurrent in-memory Ledger implementation.
type Store struct {
	inboxes sync.Map // map[core.Identity]*inboxRecord
	seq     int64
}

type inboxRecord struct {
	mu      sync.Mutex
	entries []core.Notification
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(to core.Identity) *inboxRecord {
	if v, ok := s.inboxes.Load(to); ok {
		return v.(*inboxRecord)
	}
	actual, _ := s.inboxes.LoadOrStore(to, &inboxRecord{})
	return actual.(*inboxRecord)
}

// get never allocates: queries for an identity that was never notified see
// an empty inbox without leaving a record behind.
func (s *Store) get(to core.Identity) *inboxRecord {
	if v, ok := s.inboxes.Load(to); ok {
		return v.(*inboxRecord)
	}
	return nil
}

func (s *Store) Record(_ context.Context, n core.Notification) (core.Notification, error) {
	if err := n.Validate(); err != nil {
		return core.Notification{}, err
	}
	if n.ID == "" {
		n.ID = strconv.FormatInt(atomic.AddInt64(&s.seq, 1), 10)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	rec := s.getOrCreate(n.To)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.entries = append(rec.entries, n)
	return n, nil
}

func (s *Store) ListFor(_ context.Context, to core.Identity) ([]core.Notification, error) {
	rec := s.get(to)
	if rec == nil {
		return nil, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.Notification, len(rec.entries))
	// reverse insertion order, then stable sort so equal timestamps keep
	// newest-inserted first
	for i, n := range rec.entries {
		out[len(rec.entries)-1-i] = n
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CountUnread(_ context.Context, to core.Identity) (int64, error) {
	rec := s.get(to)
	if rec == nil {
		return 0, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var count int64
	for _, n := range rec.entries {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkAllRead(_ context.Context, to core.Identity) (int64, error) {
	rec := s.get(to)
	if rec == nil {
		return 0, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var affected int64
	for i := range rec.entries {
		if !rec.entries[i].Read {
			rec.entries[i].Read = true
			affected++
		}
	}
	return affected, nil
}

func (s *Store) MarkChannelRead(_ context.Context, to core.Identity, kind core.Kind, channelRef string) (int64, error) {
	rec := s.get(to)
	if rec == nil {
		return 0, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var affected int64
	for i := range rec.entries {
		n := &rec.entries[i]
		if !n.Read && n.Kind == kind && n.ChannelRef == channelRef {
			n.Read = true
			affected++
		}
	}
	return affected, nil
}

func (s *Store) DeleteFor(_ context.Context, to core.Identity) (int64, error) {
	rec := s.get(to)
	if rec == nil {
		return 0, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	deleted := int64(len(rec.entries))
	rec.entries = nil
	return deleted, nil
}
