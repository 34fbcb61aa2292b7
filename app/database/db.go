package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sqlitePragmas apply to every pooled connection. Times are written in the
// sortable "2006-01-02 15:04:05.999999999-07:00" layout.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

// DB wraps the connection pool with the placeholder style of its driver.
type DB struct {
	*sql.DB
	driver  string
	builder sq.StatementBuilderType
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the store. dsn is a file path for sqlite and a
// postgres:// URL for postgres.
func Open(driver, dsn string) (*DB, error) {
	var (
		sqlDB *sql.DB
		err   error
		ph    sq.PlaceholderFormat
	)

	switch driver {
	case DriverSQLite:
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		sqlDB, err = sql.Open("sqlite", dsn+sep+sqlitePragmas)
		ph = sq.Question
	case DriverPostgres:
		sqlDB, err = sql.Open("pgx", dsn)
		ph = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	return &DB{
		DB:      sqlDB,
		driver:  driver,
		builder: sq.StatementBuilder.PlaceholderFormat(ph),
	}, nil
}

func (db *DB) Driver() string {
	return db.driver
}

// dbTime is the stored form of every timestamp: UTC, microsecond precision.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
