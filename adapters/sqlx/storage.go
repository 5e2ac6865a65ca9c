package sqlx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	// database drivers selected via Config.Driver
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"notifykit/core"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver"`
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DefaultConfig returns sensible defaults for the given driver
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		DSN:             "",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements the engine.Ledger interface on a notifications table.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New connects using the configuration and verifies the connection.
func New(config Config) (*Store, error) {
	db, err := sqlx.Connect(string(config.Driver), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", core.ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	return &Store{db: db, driver: config.Driver}, nil
}

// NewWithDB creates a Store using an existing DB handle (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the notifications table when absent.
func (s *Store) Migrate(ctx context.Context) error {
	var schema string
	switch s.driver {
	case DriverMySQL:
		schema = `CREATE TABLE IF NOT EXISTS notifications (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			to_identity VARCHAR(255) NOT NULL,
			from_identity VARCHAR(255) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			channel_ref VARCHAR(512) NOT NULL DEFAULT '',
			post_ref VARCHAR(255) NOT NULL DEFAULT '',
			message TEXT,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_notifications_to (to_identity, is_read)
		)`
	default:
		schema = `CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			to_identity TEXT NOT NULL,
			from_identity TEXT NOT NULL,
			kind TEXT NOT NULL,
			channel_ref TEXT NOT NULL DEFAULT '',
			post_ref TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_to ON notifications (to_identity, is_read)`
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

type row struct {
	ID         int64     `db:"id"`
	From       string    `db:"from_identity"`
	To         string    `db:"to_identity"`
	Kind       string    `db:"kind"`
	ChannelRef string    `db:"channel_ref"`
	PostRef    string    `db:"post_ref"`
	Message    string    `db:"message"`
	Read       bool      `db:"is_read"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r row) notification() core.Notification {
	return core.Notification{
		ID:         strconv.FormatInt(r.ID, 10),
		From:       core.Identity(r.From),
		To:         core.Identity(r.To),
		Kind:       core.Kind(r.Kind),
		ChannelRef: r.ChannelRef,
		PostRef:    r.PostRef,
		Message:    r.Message,
		Read:       r.Read,
		CreatedAt:  r.CreatedAt,
	}
}

func (s *Store) Record(ctx context.Context, n core.Notification) (core.Notification, error) {
	if err := n.Validate(); err != nil {
		return core.Notification{}, err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	args := []any{string(n.To), string(n.From), string(n.Kind), n.ChannelRef, n.PostRef, n.Message, n.Read, n.CreatedAt}
	var id int64
	switch s.driver {
	case DriverPostgres:
		query := s.db.Rebind(`INSERT INTO notifications
			(to_identity, from_identity, kind, channel_ref, post_ref, message, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			return core.Notification{}, fmt.Errorf("%w: record: %v", core.ErrStorageUnavailable, err)
		}
	default:
		query := s.db.Rebind(`INSERT INTO notifications
			(to_identity, from_identity, kind, channel_ref, post_ref, message, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return core.Notification{}, fmt.Errorf("%w: record: %v", core.ErrStorageUnavailable, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return core.Notification{}, fmt.Errorf("%w: record id: %v", core.ErrStorageUnavailable, err)
		}
	}
	n.ID = strconv.FormatInt(id, 10)
	return n, nil
}

func (s *Store) ListFor(ctx context.Context, to core.Identity) ([]core.Notification, error) {
	query := s.db.Rebind(`SELECT id, to_identity, from_identity, kind, channel_ref, post_ref, message, is_read, created_at
		FROM notifications WHERE to_identity = ? ORDER BY created_at DESC, id DESC`)
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, string(to)); err != nil {
		return nil, fmt.Errorf("%w: list: %v", core.ErrStorageUnavailable, err)
	}
	out := make([]core.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.notification())
	}
	return out, nil
}

func (s *Store) CountUnread(ctx context.Context, to core.Identity) (int64, error) {
	query := s.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE to_identity = ? AND is_read = FALSE`)
	var count int64
	if err := s.db.GetContext(ctx, &count, query, string(to)); err != nil {
		return 0, fmt.Errorf("%w: count unread: %v", core.ErrStorageUnavailable, err)
	}
	return count, nil
}

func (s *Store) MarkAllRead(ctx context.Context, to core.Identity) (int64, error) {
	query := s.db.Rebind(`UPDATE notifications SET is_read = TRUE WHERE to_identity = ? AND is_read = FALSE`)
	res, err := s.db.ExecContext(ctx, query, string(to))
	if err != nil {
		return 0, fmt.Errorf("%w: mark all read: %v", core.ErrStorageUnavailable, err)
	}
	return rowsAffected(res)
}

func (s *Store) MarkChannelRead(ctx context.Context, to core.Identity, kind core.Kind, channelRef string) (int64, error) {
	query := s.db.Rebind(`UPDATE notifications SET is_read = TRUE
		WHERE to_identity = ? AND kind = ? AND channel_ref = ? AND is_read = FALSE`)
	res, err := s.db.ExecContext(ctx, query, string(to), string(kind), channelRef)
	if err != nil {
		return 0, fmt.Errorf("%w: mark channel read: %v", core.ErrStorageUnavailable, err)
	}
	return rowsAffected(res)
}

func (s *Store) DeleteFor(ctx context.Context, to core.Identity) (int64, error) {
	query := s.db.Rebind(`DELETE FROM notifications WHERE to_identity = ?`)
	res, err := s.db.ExecContext(ctx, query, string(to))
	if err != nil {
		return 0, fmt.Errorf("%w: delete: %v", core.ErrStorageUnavailable, err)
	}
	return rowsAffected(res)
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", core.ErrStorageUnavailable, err)
	}
	return n, nil
}
