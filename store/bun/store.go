package bunstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/uptrace/bun"

	"github.com/xraph/warden/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ensure Store and tx implement the store interfaces at compile time.
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

// Store is a Bun ORM implementation of store.Store using PostgreSQL dialect.
// The caller owns the *bun.DB lifecycle; Store never closes it.
type Store struct {
	*db
	bdb    *bun.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the clock that stamps created_at and updated_at.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.db.clock = c
	}
}

// New creates a new Bun store. The caller owns the db lifecycle; the Store
// will not close it on Close().
func New(bdb *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     &db{idb: bdb, clock: clock.New()},
		bdb:    bdb,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB {
	return s.bdb
}

// InTx runs fn inside bun.DB.RunInTx, which rolls back on error or panic.
func (s *Store) InTx(ctx context.Context, fn store.TxFunc) error {
	return s.bdb.RunInTx(ctx, nil, func(ctx context.Context, btx bun.Tx) error {
		return fn(ctx, &tx{db: &db{idb: btx, clock: s.db.clock}})
	})
}

// Migrate runs all embedded SQL migration files in order.
func (s *Store) Migrate(ctx context.Context) error {
	// Create migrations tracking table.
	_, err := s.bdb.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS warden_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("warden/bun: create migrations table: %w", err)
	}

	// Read embedded migration files.
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("warden/bun: read migrations: %w", err)
	}

	// Sort by filename for deterministic order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// Check if already applied.
		var applied bool
		err = s.bdb.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM warden_migrations WHERE filename = ?)`,
			entry.Name(),
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("warden/bun: check migration %s: %w", entry.Name(), err)
		}
		if applied {
			continue
		}

		// Read and execute migration.
		data, readErr := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if readErr != nil {
			return fmt.Errorf("warden/bun: read migration %s: %w", entry.Name(), readErr)
		}

		execErr := s.bdb.RunInTx(ctx, nil, func(ctx context.Context, mtx bun.Tx) error {
			if _, err := mtx.ExecContext(ctx, string(data)); err != nil {
				return err
			}
			_, err := mtx.ExecContext(ctx,
				`INSERT INTO warden_migrations (filename) VALUES (?)`,
				entry.Name(),
			)
			return err
		})
		if execErr != nil {
			return fmt.Errorf("warden/bun: execute migration %s: %w", entry.Name(), execErr)
		}

		s.logger.Info("applied migration", "file", entry.Name())
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.bdb.PingContext(ctx)
}

// Close is a no-op because the caller owns the *bun.DB lifecycle.
func (s *Store) Close() error {
	return nil
}

// tx is the store.Tx handed to a TxFunc.
type tx struct {
	*db
}

// InTx runs fn in a savepoint of the enclosing transaction. An error from
// fn rolls back fn's writes and leaves the enclosing transaction usable.
func (t *tx) InTx(ctx context.Context, fn store.TxFunc) error {
	return t.atomic(ctx, func(d *db) error {
		return fn(ctx, &tx{db: d})
	})
}

// db runs entity queries on either the *bun.DB or a bun.Tx.
type db struct {
	idb   bun.IDB
	clock clock.Clock
}

func (d *db) now() time.Time { return d.clock.Now().UTC() }

// atomic runs fn in a transaction, or in a savepoint when d is already a
// bun.Tx.
func (d *db) atomic(ctx context.Context, fn func(d *db) error) error {
	return d.idb.RunInTx(ctx, nil, func(ctx context.Context, btx bun.Tx) error {
		return fn(&db{idb: btx, clock: d.clock})
	})
}
