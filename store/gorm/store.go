package gormstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xraph/warden/store"
)

// Ensure Store and tx implement the store interfaces at compile time.
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

// Store is a GORM implementation of store.Store.
type Store struct {
	*db
	gdb    *gorm.DB
	logger *slog.Logger
	owned  bool
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

// New wraps a caller-owned *gorm.DB. The Store will not close it.
func New(gdb *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:     &db{g: gdb, clock: clock.New()},
		gdb:    gdb,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSQLite opens a SQLite database file (":memory:" for a private
// in-memory database). The pool is capped at one connection because SQLite
// allows a single writer and an in-memory database lives on one connection.
func OpenSQLite(dsn string, opts ...Option) (*Store, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("warden/gorm: open sqlite: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("warden/gorm: open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := New(gdb, opts...)
	s.owned = true
	return s, nil
}

// OpenMySQL opens a MySQL database. parseTime is forced on so DATETIME
// columns scan into time.Time, and clientFoundRows so conditional updates
// report matched rather than changed rows.
func OpenMySQL(dsn string, opts ...Option) (*Store, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("warden/gorm: parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC

	gdb, err := gorm.Open(mysql.Open(cfg.FormatDSN()), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("warden/gorm: open mysql: %w", err)
	}

	s := New(gdb, opts...)
	s.owned = true
	return s, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

// DB returns the underlying *gorm.DB for advanced usage.
func (s *Store) DB() *gorm.DB {
	return s.gdb
}

// InTx runs fn in a GORM transaction. GORM rolls back when fn returns an
// error or panics.
func (s *Store) InTx(ctx context.Context, fn store.TxFunc) error {
	return s.gdb.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(ctx, &tx{db: &db{g: gtx, clock: s.db.clock}})
	})
}

// Migrate creates or alters the warden tables with AutoMigrate.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{&nodeModel{}, &nicModel{}, &conductorModel{}}
	if err := s.gdb.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("warden/gorm: migrate: %w", err)
	}
	s.logger.Info("migrated schema", "dialect", s.gdb.Dialector.Name(), "tables", len(models))
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return fmt.Errorf("warden/gorm: ping: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool when the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
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

// db runs entity queries on either the root *gorm.DB or a transaction.
type db struct {
	g     *gorm.DB
	clock clock.Clock
}

func (d *db) now() time.Time { return d.clock.Now().UTC() }

func (d *db) with(ctx context.Context) *gorm.DB { return d.g.WithContext(ctx) }

// atomic runs fn in a transaction. Inside an existing transaction GORM
// uses a savepoint.
func (d *db) atomic(ctx context.Context, fn func(d *db) error) error {
	return d.with(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&db{g: gtx, clock: d.clock})
	})
}
