package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers, see
// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errTableExists  = 1050
	errNoSuchTable  = 1146
	errUnknownTable = 1051
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenMySQL builds a pool for the target without dialing. Callers pin a single
// session from it, so the pool never grows beyond one connection.
func OpenMySQL(t *Target) (*sql.DB, error) {
	connector, err := mysql.NewConnector(t.Config)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// EnsureTable creates the bookkeeping table unless it already exists.
func EnsureTable(ctx context.Context, conn Execer, table string) error {
	quoted, err := QuoteIdent(table)
	if err != nil {
		return err
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
  version VARCHAR(255) NOT NULL,
  type VARCHAR(32) NOT NULL,
  title VARCHAR(255) NOT NULL,
  hash VARCHAR(255) NOT NULL,
  applied_at DATETIME(3) NOT NULL,
  applied_by VARCHAR(255) NOT NULL,
  execution_time BIGINT NOT NULL,
  dirty TINYINT(1) NOT NULL DEFAULT 0,
  KEY idx_version (version),
  KEY idx_dirty (dirty)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`, quoted)
	_, err = conn.ExecContext(ctx, ddl)
	if IsTableExists(err) {
		return nil
	}
	return err
}

// IsTableExists reports whether err is the server's "table already exists".
func IsTableExists(err error) bool { return hasNumber(err, errTableExists) }

// IsNoSuchTable reports whether err is the server's "table doesn't exist".
func IsNoSuchTable(err error) bool {
	return hasNumber(err, errNoSuchTable) || hasNumber(err, errUnknownTable)
}

func hasNumber(err error, number uint16) bool {
	var merr *mysql.MySQLError
	return errors.As(err, &merr) && merr.Number == number
}

// ListTables returns every base table in the session's current database.
func ListTables(ctx context.Context, conn Execer) ([]string, error) {
	rows, err := conn.QueryContext(ctx, `
SELECT table_name FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DropTables drops all named tables in one statement. Foreign key checks must
// already be off on conn when the tables reference each other.
func DropTables(ctx context.Context, conn Execer, names []string) error {
	if len(names) == 0 {
		return nil
	}
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteExisting(name)
	}
	_, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+strings.Join(quoted, ", "))
	return err
}

// SetForeignKeyChecks toggles referential integrity checks for the session.
func SetForeignKeyChecks(ctx context.Context, conn Execer, on bool) error {
	val := 0
	if on {
		val = 1
	}
	_, err := conn.ExecContext(ctx, fmt.Sprintf("SET FOREIGN_KEY_CHECKS = %d", val))
	return err
}
