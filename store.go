package migratex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/user"
	"strings"
	"time"

	"github.com/mirajehossain/migratex/internal/db"
	"github.com/mirajehossain/migratex/internal/lock"
)

// Config is supplied by the framework driving the store.
type Config struct {
	// BaseVersion marks the baseline: versions at or below it are considered
	// applied outside of the bookkeeping table.
	BaseVersion string
	// AdvisoryLockID returns the parts of the lock name for a database and
	// bookkeeping table. Defaults to DefaultAdvisoryLockID.
	AdvisoryLockID func(database, table string) []string
	// UserInfo identifies whoever runs the migrations. It is called once per
	// Open. Defaults to the current OS user.
	UserInfo func() string
	// LockTimeout is how long Lock waits for a busy lock. Zero fails at once.
	LockTimeout time.Duration
	// Logger receives debug and info events. Defaults to discarding them.
	Logger *slog.Logger
}

// DefaultAdvisoryLockID is used when Config.AdvisoryLockID is nil.
func DefaultAdvisoryLockID(database, table string) []string {
	return []string{"migratex", database, table}
}

// DefaultUserInfo is used when Config.UserInfo is nil.
func DefaultUserInfo() string {
	u, err := user.Current()
	if err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// Store records migration executions in one MySQL table.
type Store struct {
	target *db.Target
	conf   Config
	log    *slog.Logger
	lock   *lock.MySQL
	table  string

	openDB func(*db.Target) (*sql.DB, error)
	pool   *sql.DB
	conn   *sql.Conn

	appliedBy string
}

// New parses uri and prepares a Store. It does not connect; call Open.
func New(uri string, conf Config) (*Store, error) {
	target, err := db.ParseURI(uri)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Op: "parse uri", Err: err}
	}
	return newStore(target, conf), nil
}

func newStore(target *db.Target, conf Config) *Store {
	if conf.AdvisoryLockID == nil {
		conf.AdvisoryLockID = DefaultAdvisoryLockID
	}
	if conf.UserInfo == nil {
		conf.UserInfo = DefaultUserInfo
	}
	logger := conf.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	// ParseURI already validated the table name.
	quoted, _ := db.QuoteIdent(target.Table)

	return &Store{
		target: target,
		conf:   conf,
		log:    logger.With(slog.String("database", target.Database()), slog.String("table", target.Table)),
		lock:   lock.NewMySQL(lock.KeyFor(conf.AdvisoryLockID(target.Database(), target.Table)...)),
		table:  quoted,
		openDB: db.OpenMySQL,
	}
}

func (s *Store) Database() string    { return s.target.Database() }
func (s *Store) Table() string       { return s.target.Table }
func (s *Store) LockID() string      { return s.lock.Key() }
func (s *Store) BaseVersion() string { return s.conf.BaseVersion }

// AppliedBy is the identity captured by the last successful Open.
func (s *Store) AppliedBy() string { return s.appliedBy }

// Open connects, pins a single session and creates the bookkeeping table if
// it is missing. Calling Open on an open Store does nothing.
func (s *Store) Open(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	if s.pool == nil {
		pool, err := s.openDB(s.target)
		if err != nil {
			return &Error{Kind: KindConnection, Op: "open", Err: err}
		}
		s.pool = pool
	}
	conn, err := s.pool.Conn(ctx)
	if err != nil {
		return &Error{Kind: KindConnection, Op: "open", Err: err}
	}
	if err = conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return &Error{Kind: KindConnection, Op: "open", Err: err}
	}
	if err = db.EnsureTable(ctx, conn, s.target.Table); err != nil {
		_ = conn.Close()
		return &Error{Kind: KindSchema, Op: "create table", Err: err}
	}
	s.conn = conn
	s.lock.Forget()
	s.appliedBy = strings.TrimSpace(s.conf.UserInfo())
	if s.appliedBy == "" {
		s.appliedBy = "unknown"
	}
	s.log.Debug("store opened", slog.String("applied_by", s.appliedBy))
	return nil
}

// Close releases the session and the pool. It is safe after a failed Open
// and on an already closed Store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.conn != nil {
		if s.lock.Held() {
			if err := s.lock.Release(context.Background(), s.conn); err != nil {
				s.log.Warn("release on close failed", slog.String("lock_id", s.lock.Key()), slog.String("error", err.Error()))
			}
		}
		s.lock.Forget()
		errs = append(errs, s.conn.Close())
		s.conn = nil
	}
	if s.pool != nil {
		errs = append(errs, s.pool.Close())
		s.pool = nil
	}
	return errors.Join(errs...)
}

func (s *Store) session(op string) (*sql.Conn, error) {
	if s.conn == nil {
		return nil, &Error{Kind: KindConnection, Op: op, Err: ErrNotOpen}
	}
	return s.conn, nil
}

// Lock takes the advisory lock for this database and table. It fails with a
// KindLock error carrying the lock id when another session holds it.
func (s *Store) Lock(ctx context.Context) error {
	conn, err := s.session("lock")
	if err != nil {
		return err
	}
	if err = s.lock.Acquire(ctx, conn, s.conf.LockTimeout); err != nil {
		s.log.Warn("lock not acquired", slog.String("lock_id", s.lock.Key()), slog.String("error", err.Error()))
		return &Error{Kind: KindLock, Op: "lock", LockID: s.lock.Key(), Err: err}
	}
	s.log.Debug("lock acquired", slog.String("lock_id", s.lock.Key()))
	return nil
}

// Unlock releases the lock taken by Lock.
func (s *Store) Unlock(ctx context.Context) error {
	conn, err := s.session("unlock")
	if err != nil {
		return err
	}
	if err = s.lock.Release(ctx, conn); err != nil {
		return &Error{Kind: KindLock, Op: "unlock", LockID: s.lock.Key(), Err: err}
	}
	s.log.Debug("lock released", slog.String("lock_id", s.lock.Key()))
	return nil
}

// Drop removes every base table in the database, the bookkeeping table
// included. Foreign key checks are off while dropping and always restored.
func (s *Store) Drop(ctx context.Context) (err error) {
	conn, err := s.session("drop")
	if err != nil {
		return err
	}
	if err = db.SetForeignKeyChecks(ctx, conn, false); err != nil {
		return &Error{Kind: KindSchema, Op: "drop", Err: err}
	}
	defer func() {
		if rerr := db.SetForeignKeyChecks(context.WithoutCancel(ctx), conn, true); rerr != nil {
			err = errors.Join(err, &Error{Kind: KindSchema, Op: "restore foreign key checks", Err: rerr})
		}
	}()

	names, err := db.ListTables(ctx, conn)
	if err != nil {
		return &Error{Kind: KindSchema, Op: "list tables", Err: err}
	}
	if err = db.DropTables(ctx, conn, names); err != nil {
		return &Error{Kind: KindSchema, Op: "drop", Err: err}
	}
	s.log.Info("dropped tables", slog.Int("count", len(names)))
	return nil
}

// Run executes the migration script and then records the attempt. The record
// is written whether or not the script fails; a failure is recorded dirty and
// still returned as a KindExecution error.
func (s *Store) Run(ctx context.Context, m Migration) (err error) {
	conn, err := s.session("run")
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		rec := Record{
			Version:       m.Version,
			Type:          m.Type,
			Title:         m.Title,
			Hash:          m.Hash,
			AppliedAt:     start,
			AppliedBy:     s.appliedBy,
			ExecutionTime: time.Since(start).Milliseconds(),
			Dirty:         err != nil,
		}
		if ierr := s.insert(context.WithoutCancel(ctx), conn, rec); ierr != nil {
			err = errors.Join(err, &Error{Kind: KindSchema, Op: "record " + m.Version, Err: ierr})
		}
		s.log.Info("migration recorded",
			slog.String("version", rec.Version),
			slog.String("type", rec.Type),
			slog.Int64("execution_time_ms", rec.ExecutionTime),
			slog.Bool("dirty", rec.Dirty),
		)
	}()

	if _, xerr := conn.ExecContext(ctx, m.Script); xerr != nil {
		return &Error{Kind: KindExecution, Op: "run " + m.Version, Err: xerr}
	}
	return nil
}

func (s *Store) insert(ctx context.Context, conn db.Execer, r Record) error {
	_, err := conn.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (version, type, title, hash, applied_at, applied_by, execution_time, dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table),
		r.Version, r.Type, r.Title, r.Hash, r.AppliedAt, r.AppliedBy, r.ExecutionTime, r.Dirty,
	)
	return err
}

// Repair deletes every dirty record, then sets the hash of each listed
// record. Both steps run in one transaction.
func (s *Store) Repair(ctx context.Context, records []RepairRecord) (err error) {
	conn, err := s.session("repair")
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Kind: KindSchema, Op: "repair", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE dirty = 1`, s.table))
	if err != nil {
		return &Error{Kind: KindSchema, Op: "repair: purge dirty", Err: err}
	}
	purged, _ := res.RowsAffected()

	for _, r := range records {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET hash = ? WHERE id = ?`, s.table), r.Hash, r.ID); err != nil {
			return &Error{Kind: KindSchema, Op: fmt.Sprintf("repair: update hash of %d", r.ID), Err: err}
		}
	}
	if err = tx.Commit(); err != nil {
		return &Error{Kind: KindSchema, Op: "repair", Err: err}
	}
	s.log.Info("repaired", slog.Int64("purged", purged), slog.Int("rehashed", len(records)))
	return nil
}

// Records returns every record with an id of at least startID, by id ascending.
func (s *Store) Records(ctx context.Context, startID int64) ([]Record, error) {
	conn, err := s.session("records")
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`
SELECT id, version, type, title, hash, applied_at, applied_by, execution_time, dirty
FROM %s WHERE id >= ? ORDER BY id ASC`, s.table), startID)
	if err != nil {
		op := "records"
		if db.IsNoSuchTable(err) {
			op = "records: bookkeeping table " + s.target.Table + " is missing"
		}
		return nil, &Error{Kind: KindSchema, Op: op, Err: err}
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Version, &r.Type, &r.Title, &r.Hash, &r.AppliedAt, &r.AppliedBy, &r.ExecutionTime, &r.Dirty); err != nil {
			return nil, &Error{Kind: KindSchema, Op: "records", Err: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Kind: KindSchema, Op: "records", Err: err}
	}
	return out, nil
}
