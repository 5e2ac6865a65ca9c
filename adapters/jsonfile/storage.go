package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"notifykit/core"
)

// Store persists the entire ledger to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	inboxes map[core.Identity][]core.Notification
	seq     int64
}

type fileState struct {
	Seq     int64                          `json:"seq"`
	Inboxes map[string][]core.Notification `json:"inboxes"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, inboxes: map[core.Identity][]core.Notification{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw fileState
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.seq = raw.Seq
	for k, v := range raw.Inboxes {
		s.inboxes[core.Identity(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := fileState{Seq: s.seq, Inboxes: make(map[string][]core.Notification, len(s.inboxes))}
	for k, v := range s.inboxes {
		raw.Inboxes[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Record(_ context.Context, n core.Notification) (core.Notification, error) {
	if err := n.Validate(); err != nil {
		return core.Notification{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		s.seq++
		n.ID = strconv.FormatInt(s.seq, 10)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.inboxes[n.To] = append(s.inboxes[n.To], n)
	if err := s.persist(); err != nil {
		return core.Notification{}, fmt.Errorf("%w: persist: %v", core.ErrStorageUnavailable, err)
	}
	return n, nil
}

func (s *Store) ListFor(_ context.Context, to core.Identity) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.inboxes[to]
	out := make([]core.Notification, len(entries))
	for i, n := range entries {
		out[len(entries)-1-i] = n
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CountUnread(_ context.Context, to core.Identity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.inboxes[to] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkAllRead(_ context.Context, to core.Identity) (int64, error) {
	return s.markRead(to, func(core.Notification) bool { return true })
}

func (s *Store) MarkChannelRead(_ context.Context, to core.Identity, kind core.Kind, channelRef string) (int64, error) {
	return s.markRead(to, func(n core.Notification) bool {
		return n.Kind == kind && n.ChannelRef == channelRef
	})
}

func (s *Store) markRead(to core.Identity, match func(core.Notification) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.inboxes[to]
	var affected int64
	for i := range entries {
		if !entries[i].Read && match(entries[i]) {
			entries[i].Read = true
			affected++
		}
	}
	if affected == 0 {
		return 0, nil
	}
	if err := s.persist(); err != nil {
		return affected, fmt.Errorf("%w: persist: %v", core.ErrStorageUnavailable, err)
	}
	return affected, nil
}

func (s *Store) DeleteFor(_ context.Context, to core.Identity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := int64(len(s.inboxes[to]))
	if deleted == 0 {
		return 0, nil
	}
	delete(s.inboxes, to)
	if err := s.persist(); err != nil {
		return deleted, fmt.Errorf("%w: persist: %v", core.ErrStorageUnavailable, err)
	}
	return deleted, nil
}
