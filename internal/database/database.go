package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/MediSynth-io/authkit/internal/config"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DB is a migrated connection pool together with the dialect it speaks.
type DB struct {
	*sql.DB
	Dialect string
}

// Open connects to the database described by cfg, retrying the initial ping,
// and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.SugaredLogger) (*DB, error) {
	var (
		driver string
		dsn    string
	)

	switch cfg.Type {
	case DialectPostgres:
		driver, dsn = "postgres", cfg.DSN
	case DialectSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		driver = "sqlite3"
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedDatabase, cfg.Type)
	}

	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var (
		db      *sql.DB
		lastErr error
	)
	for i := 0; i < attempts; i++ {
		db, lastErr = connect(ctx, driver, dsn)
		if lastErr == nil {
			break
		}
		log.Warnw("database connection attempt failed", "attempt", i+1, "of", attempts, "error", lastErr)

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryDelay):
			}
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, lastErr)
	}

	if cfg.Type == DialectSQLite {
		// SQLite only supports one writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	db.SetConnMaxLifetime(time.Hour)

	out := &DB{DB: db, Dialect: cfg.Type}
	if err := RunMigrations(ctx, out, log); err != nil {
		db.Close()
		return nil, err
	}

	log.Infow("database initialized", "dialect", cfg.Type)
	return out, nil
}

func connect(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Rebind rewrites ? placeholders to the dialect's bind variable syntax.
func (db *DB) Rebind(query string) string {
	if db.Dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
