package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectDuckDB   = "duckdb"
	DialectSQLite   = "sqlite"
)

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Dialect maps a configured driver name onto one of the supported dialects.
func Dialect(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "duckdb":
		return DialectDuckDB, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func sqlDriverName(dialect string) string {
	if dialect == DialectPostgres {
		return "pgx"
	}
	return dialect
}

// Open connects to the query database and verifies it answers a ping within five
// seconds. An empty DSN is only accepted for duckdb, where it means an in-memory
// database.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	dialect, err := Dialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" && dialect != DialectDuckDB {
		return nil, fmt.Errorf("database dsn is required for driver %q", dialect)
	}

	db, err := sql.Open(sqlDriverName(dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}

	return db, nil
}
