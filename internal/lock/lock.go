package lock

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/mirajehossain/migratex/internal/checksum"
)

// MaxNameLen is the longest lock name MySQL 5.7+ accepts.
const MaxNameLen = 64

var (
	// ErrNotAcquired means GET_LOCK returned 0: another session holds the lock.
	ErrNotAcquired = errors.New("advisory lock held by another session")
	// ErrIndeterminate means GET_LOCK returned NULL, e.g. the thread was killed.
	ErrIndeterminate = errors.New("advisory lock request failed on server")
	// ErrNotOwned means RELEASE_LOCK returned 0: the lock belongs to another session.
	ErrNotOwned = errors.New("advisory lock not held by this session")
	// ErrNotFound means RELEASE_LOCK returned NULL: no such lock exists.
	ErrNotFound = errors.New("advisory lock does not exist")
)

// Querier is the session the lock lives on. MySQL named locks belong to the
// session that took them, so both calls must go through the same *sql.Conn.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQL advisory lock using GET_LOCK/RELEASE_LOCK.
type MySQL struct {
	key  string
	held bool
}

func NewMySQL(key string) *MySQL {
	return &MySQL{key: key}
}

// Acquire asks for the lock, waiting at most timeout. A zero timeout fails
// immediately when the lock is busy.
func (m *MySQL) Acquire(ctx context.Context, q Querier, timeout time.Duration) error {
	if m.held {
		return nil
	}
	var got sql.NullInt64
	row := q.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", m.key, timeoutSeconds(timeout))
	if err := row.Scan(&got); err != nil {
		return err
	}
	if !got.Valid {
		return ErrIndeterminate
	}
	if got.Int64 != 1 {
		return ErrNotAcquired
	}
	m.held = true
	return nil
}

// timeoutSeconds rounds up to whole seconds. MySQL waits forever on a
// negative GET_LOCK timeout, so negative durations become 0.
func timeoutSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func (m *MySQL) Release(ctx context.Context, q Querier) error {
	var rel sql.NullInt64
	row := q.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", m.key)
	if err := row.Scan(&rel); err != nil {
		return err
	}
	m.held = false
	if !rel.Valid {
		return ErrNotFound
	}
	if rel.Int64 != 1 {
		return ErrNotOwned
	}
	return nil
}

func (m *MySQL) Key() string { return m.key }

func (m *MySQL) Held() bool { return m.held }

// Forget clears the held state without talking to the server. Call it when
// the session the lock lived on is gone.
func (m *MySQL) Forget() { m.held = false }

// KeyFor joins key parts with ":". Names over MaxNameLen are replaced by
// their SHA-256 hex digest, which is exactly 64 characters.
func KeyFor(parts ...string) string {
	key := strings.Join(parts, ":")
	if len(key) > MaxNameLen {
		return checksum.SHA256([]byte(key))
	}
	return key
}
