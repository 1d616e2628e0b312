package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/warden"
	"github.com/xraph/warden/engine"
	"github.com/xraph/warden/store"
	bunstore "github.com/xraph/warden/store/bun"
	gormstore "github.com/xraph/warden/store/gorm"
	"github.com/xraph/warden/store/memory"
	mongostore "github.com/xraph/warden/store/mongo"
	"github.com/xraph/warden/store/postgres"
)

// Backend names accepted by --store.
const (
	storeMemory     = "memory"
	storePostgres   = "postgres"
	storeBun        = "bun"
	storeGormSQLite = "gorm-sqlite"
	storeGormMySQL  = "gorm-mysql"
	storeMongo      = "mongo"
)

var storeKinds = []string{storeMemory, storePostgres, storeBun, storeGormSQLite, storeGormMySQL, storeMongo}

// settings is the resolved CLI configuration.
type settings struct {
	Store    string
	DSN      string
	Database string

	LogLevel  string
	LogFormat string

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	AllowOverwrite    bool

	// logOut receives log output. Nil means stderr.
	logOut io.Writer
}

func defaultSettings() settings {
	c := warden.DefaultConfig()
	return settings{
		Store:             storeMemory,
		Database:          "warden",
		LogLevel:          "info",
		LogFormat:         "text",
		HeartbeatInterval: c.HeartbeatInterval,
		HeartbeatTimeout:  c.HeartbeatTimeout,
	}
}

func (s settings) validate() error {
	if !slices.Contains(storeKinds, s.Store) {
		return fmt.Errorf("invalid store %q (expected one of: %s)", s.Store, strings.Join(storeKinds, ", "))
	}
	if s.Store != storeMemory && s.DSN == "" {
		return fmt.Errorf("store %s requires --dsn", s.Store)
	}
	if _, err := parseLevel(s.LogLevel); err != nil {
		return err
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (expected text or json)", s.LogFormat)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", s)
	}
	return l, nil
}

// logger builds the slog logger described by s.
func (s settings) logger() *slog.Logger {
	w := s.logOut
	if w == nil {
		w = os.Stderr
	}
	level, _ := parseLevel(s.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore connects to the configured backend. The returned cleanup
// releases whatever the store does not own and must run after the store is
// closed.
func (s settings) openStore(ctx context.Context, logger *slog.Logger) (store.Store, func() error, error) {
	nop := func() error { return nil }

	switch s.Store {
	case storeMemory:
		return memory.New(), nop, nil

	case storePostgres:
		st, err := postgres.New(ctx, s.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return st, nop, nil

	case storeBun:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(s.DSN)))
		bdb := bun.NewDB(sqldb, pgdialect.New())
		return bunstore.New(bdb, bunstore.WithLogger(logger)), bdb.Close, nil

	case storeGormSQLite:
		st, err := gormstore.OpenSQLite(s.DSN, gormstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return st, nop, nil

	case storeGormMySQL:
		st, err := gormstore.OpenMySQL(s.DSN, gormstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return st, nop, nil

	case storeMongo:
		client, err := mongod.Connect(options.Client().ApplyURI(s.DSN))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		disconnect := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		}
		return mongostore.New(client, s.Database, mongostore.WithLogger(logger)), disconnect, nil
	}
	return nil, nil, fmt.Errorf("invalid store %q", s.Store)
}

// withEngine opens the store, builds an engine over it and runs fn. The
// engine is stopped and the store closed when fn returns.
func (s settings) withEngine(ctx context.Context, fn func(ctx context.Context, eng *engine.Engine) error, opts ...engine.Option) (err error) {
	logger := s.logger()

	st, cleanup, err := s.openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, cleanup())
	}()

	w, err := warden.New(
		warden.WithStore(st),
		warden.WithLogger(logger),
		warden.WithHeartbeatInterval(s.HeartbeatInterval),
		warden.WithHeartbeatTimeout(s.HeartbeatTimeout),
		warden.WithAllowOverwrite(s.AllowOverwrite),
	)
	if err != nil {
		return errors.Join(err, st.Close())
	}

	eng, err := engine.Build(w, opts...)
	if err != nil {
		return errors.Join(err, st.Close())
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		err = errors.Join(err, eng.Stop(stopCtx))
	}()

	return fn(ctx, eng)
}
