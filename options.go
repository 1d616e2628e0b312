package warden

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Option configures a Warden.
type Option func(*Warden) error

// Storer is the minimal store interface held by the Warden.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used by the engine layer, which sits above the
// subsystem packages and so avoids import cycles.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// heartbeatRunner is an internal interface for the conductor heartbeat loop.
type heartbeatRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Warden holds the configuration, logger, clock and store shared by the
// reservation manager and the liveness registry.
//
// Create one with New() and functional options, then hand it to
// engine.Build to get typed access to the subsystems.
type Warden struct {
	config     Config
	logger     *slog.Logger
	clock      clock.Clock
	store      Storer
	extensions extensionEmitter
	heartbeat  heartbeatRunner

	started bool
}

// New creates a new Warden with the given options.
func New(opts ...Option) (*Warden, error) {
	w := &Warden{
		config: DefaultConfig(),
		logger: slog.Default(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	if err := w.config.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Logger returns the warden's logger.
func (w *Warden) Logger() *slog.Logger { return w.logger }

// Store returns the warden's store.
func (w *Warden) Store() Storer { return w.store }

// Config returns a copy of the warden's configuration.
func (w *Warden) Config() Config { return w.config }

// Clock returns the clock used to stamp heartbeats.
func (w *Warden) Clock() clock.Clock { return w.clock }

// SetHeartbeat sets the heartbeat loop (called by the engine package).
func (w *Warden) SetHeartbeat(r heartbeatRunner) { w.heartbeat = r }

// SetExtensions sets the extension emitter (called by the engine package).
func (w *Warden) SetExtensions(e extensionEmitter) { w.extensions = e }

// Start registers this process as a conductor and begins heartbeating.
// It returns ErrNoStore if no heartbeat loop has been wired.
func (w *Warden) Start(ctx context.Context) error {
	if w.heartbeat == nil {
		return ErrNoStore
	}
	if err := w.heartbeat.Start(ctx); err != nil {
		return err
	}
	w.started = true
	return nil
}

// Stop halts heartbeating, unregisters the conductor and closes the store.
func (w *Warden) Stop(ctx context.Context) error {
	if w.heartbeat != nil && w.started {
		if err := w.heartbeat.Stop(ctx); err != nil {
			w.logger.Error("heartbeat stop error", "error", err)
		}
	}
	if w.extensions != nil {
		w.extensions.EmitShutdown(ctx)
	}
	if w.store != nil {
		return w.store.Close()
	}
	return nil
}

// WithStore sets the persistence backend. The store must implement Storer
// at minimum; typically it is a store.Store.
func WithStore(s Storer) Option {
	return func(w *Warden) error {
		w.store = s
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Warden) error {
		w.logger = l
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(c Config) Option {
	return func(w *Warden) error {
		w.config = c
		return nil
	}
}

// WithHeartbeatInterval sets how often the conductor heartbeats.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(w *Warden) error {
		w.config.HeartbeatInterval = d
		return nil
	}
}

// WithHeartbeatTimeout sets the freshness window used to decide liveness.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(w *Warden) error {
		w.config.HeartbeatTimeout = d
		return nil
	}
}

// WithAllowOverwrite lets registration replace an online record.
func WithAllowOverwrite(allow bool) Option {
	return func(w *Warden) error {
		w.config.AllowOverwrite = allow
		return nil
	}
}

// WithClock sets the clock used for heartbeat timestamps and freshness
// checks. Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(w *Warden) error {
		w.clock = c
		return nil
	}
}
