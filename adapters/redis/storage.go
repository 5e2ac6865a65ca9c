package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notifykit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine.Ledger interface using Redis as the backend.
// Data structure per recipient:
// - inbox:{to}:seq     -> int64 counter for entry ids
// - inbox:{to}:entries -> hash of id -> JSON entry
// - inbox:{to}:index   -> sorted set of ids scored by created_at (unix nanos)
type Store struct {
	client *redis.Client
}

// New creates a Redis-backed ledger with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: connect: %v", core.ErrStorageUnavailable, err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func inboxSeqKey(to core.Identity) string     { return fmt.Sprintf("inbox:%s:seq", to) }
func inboxEntriesKey(to core.Identity) string { return fmt.Sprintf("inbox:%s:entries", to) }
func inboxIndexKey(to core.Identity) string   { return fmt.Sprintf("inbox:%s:index", to) }

// Record persists one entry. Ids are zero-padded so the index's lexical tie
// break on equal scores matches insertion order.
func (s *Store) Record(ctx context.Context, n core.Notification) (core.Notification, error) {
	if err := n.Validate(); err != nil {
		return core.Notification{}, err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.ID == "" {
		seq, err := s.client.Incr(ctx, inboxSeqKey(n.To)).Result()
		if err != nil {
			return core.Notification{}, fmt.Errorf("%w: next id: %v", core.ErrStorageUnavailable, err)
		}
		n.ID = fmt.Sprintf("%020d", seq)
	}

	data, err := json.Marshal(n)
	if err != nil {
		return core.Notification{}, err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, inboxEntriesKey(n.To), n.ID, data)
	pipe.ZAdd(ctx, inboxIndexKey(n.To), redis.Z{Score: float64(n.CreatedAt.UnixNano()), Member: n.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return core.Notification{}, fmt.Errorf("%w: record: %v", core.ErrStorageUnavailable, err)
	}
	return n, nil
}

// ListFor returns all entries for an identity, newest first.
func (s *Store) ListFor(ctx context.Context, to core.Identity) ([]core.Notification, error) {
	ids, err := s.client.ZRevRange(ctx, inboxIndexKey(to), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list index: %v", core.ErrStorageUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := s.client.HMGet(ctx, inboxEntriesKey(to), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", core.ErrStorageUnavailable, err)
	}
	out := make([]core.Notification, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue // index ahead of hash; skip the orphan
		}
		var n core.Notification
		if err := json.Unmarshal([]byte(str), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// CountUnread returns the unread badge count.
func (s *Store) CountUnread(ctx context.Context, to core.Identity) (int64, error) {
	list, err := s.ListFor(ctx, to)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkAllRead flips every unread entry and reports the count.
func (s *Store) MarkAllRead(ctx context.Context, to core.Identity) (int64, error) {
	return s.markRead(ctx, to, func(core.Notification) bool { return true })
}

// MarkChannelRead flips unread entries matching (kind, channelRef) only.
func (s *Store) MarkChannelRead(ctx context.Context, to core.Identity, kind core.Kind, channelRef string) (int64, error) {
	return s.markRead(ctx, to, func(n core.Notification) bool {
		return n.Kind == kind && n.ChannelRef == channelRef
	})
}

func (s *Store) markRead(ctx context.Context, to core.Identity, match func(core.Notification) bool) (int64, error) {
	raw, err := s.client.HGetAll(ctx, inboxEntriesKey(to)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: read entries: %v", core.ErrStorageUnavailable, err)
	}
	var affected int64
	for id, v := range raw {
		var n core.Notification
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			continue
		}
		if n.Read || !match(n) {
			continue
		}
		n.Read = true
		data, err := json.Marshal(n)
		if err != nil {
			continue
		}
		if err := s.client.HSet(ctx, inboxEntriesKey(to), id, data).Err(); err != nil {
			return affected, fmt.Errorf("%w: mark read: %v", core.ErrStorageUnavailable, err)
		}
		affected++
	}
	return affected, nil
}

// DeleteFor removes the whole inbox and reports how many entries it held.
func (s *Store) DeleteFor(ctx context.Context, to core.Identity) (int64, error) {
	count, err := s.client.ZCard(ctx, inboxIndexKey(to)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", core.ErrStorageUnavailable, err)
	}
	if err := s.client.Del(ctx, inboxEntriesKey(to), inboxIndexKey(to)).Err(); err != nil {
		return 0, fmt.Errorf("%w: delete: %v", core.ErrStorageUnavailable, err)
	}
	return count, nil
}
