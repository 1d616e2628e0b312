package liveness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/ext"
	"github.com/xraph/warden/middleware"
	"github.com/xraph/warden/store"
)

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock that stamps heartbeats and anchors freshness
// checks.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithExtensions sets the registry notified of liveness events.
func WithExtensions(e *ext.Registry) Option {
	return func(r *Registry) { r.extensions = e }
}

// WithMiddleware replaces the default middleware (logging only) with mw.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(r *Registry) { r.mw = mw }
}

// Registry records conductor registrations and heartbeats.
type Registry struct {
	db         store.Tx
	clock      clock.Clock
	logger     *slog.Logger
	extensions *ext.Registry
	mw         middleware.Middleware
}

// NewRegistry returns a Registry over db.
func NewRegistry(db store.Tx, opts ...Option) *Registry {
	r := &Registry{db: db, clock: clock.New(), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.extensions == nil {
		r.extensions = ext.NewRegistry(r.logger)
	}
	if r.mw == nil {
		r.mw = middleware.Logging(r.logger)
	}
	return r
}

func (r *Registry) now() time.Time { return r.clock.Now().UTC() }

// Register brings c online with a fresh heartbeat. An existing offline
// record is revived with c's drivers and attributes. An existing online
// record fails with warden.ErrConductorAlreadyRegistered unless
// allowOverwrite is set.
func (r *Registry) Register(ctx context.Context, c *conductor.Conductor, allowOverwrite bool) (*conductor.Conductor, error) {
	if c.Hostname == "" {
		return nil, warden.InvalidParameter("conductor hostname must not be empty")
	}

	var registered *conductor.Conductor
	op := &middleware.Op{Name: "register", Actor: c.Hostname, Target: c.Hostname}
	err := r.mw(ctx, op, func(ctx context.Context) error {
		return r.db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			now := r.now()
			cur, err := tx.GetConductorForUpdate(ctx, c.Hostname)
			switch {
			case errors.Is(err, warden.ErrConductorNotFound):
				rec := c.Clone()
				rec.Online = true
				rec.LastHeartbeat = now
				if err := tx.CreateConductor(ctx, rec); err != nil {
					if errors.Is(err, warden.ErrDuplicateIdentity) {
						return fmt.Errorf("%w: %s", warden.ErrConductorAlreadyRegistered, c.Hostname)
					}
					return err
				}
				registered = rec
				return nil
			case err != nil:
				return err
			case cur.Online && !allowOverwrite:
				return fmt.Errorf("%w: %s", warden.ErrConductorAlreadyRegistered, c.Hostname)
			}

			cur.Drivers = c.Drivers
			cur.Attributes = c.Attributes
			cur.Online = true
			cur.LastHeartbeat = now
			if err := tx.UpdateConductor(ctx, cur); err != nil {
				return err
			}
			registered = cur
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	r.extensions.EmitConductorRegistered(ctx, registered)
	return registered.Clone(), nil
}

// Heartbeat refreshes the conductor's last heartbeat and marks it online.
// Repeated calls are harmless; each only moves the timestamp forward.
func (r *Registry) Heartbeat(ctx context.Context, hostname string) error {
	at := r.now()
	op := &middleware.Op{Name: "heartbeat", Actor: hostname, Target: hostname}
	err := r.mw(ctx, op, func(ctx context.Context) error {
		n, err := r.db.TouchConductor(ctx, hostname, at)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", warden.ErrConductorNotFound, hostname)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.extensions.EmitConductorHeartbeat(ctx, hostname, at)
	return nil
}

// Unregister marks an online conductor offline. The record is kept.
func (r *Registry) Unregister(ctx context.Context, hostname string) error {
	op := &middleware.Op{Name: "unregister", Actor: hostname, Target: hostname}
	err := r.mw(ctx, op, func(ctx context.Context) error {
		n, err := r.db.MarkConductorOffline(ctx, hostname, r.now())
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", warden.ErrConductorNotFound, hostname)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.extensions.EmitConductorUnregistered(ctx, hostname)
	return nil
}

// Get returns the online record for hostname without checking freshness.
func (r *Registry) Get(ctx context.Context, hostname string) (*conductor.Conductor, error) {
	var c *conductor.Conductor
	op := &middleware.Op{Name: "get", Target: hostname}
	err := r.mw(ctx, op, func(ctx context.Context) error {
		var err error
		c, err = r.db.GetOnlineConductor(ctx, hostname)
		return err
	})
	return c, err
}

// ListAlive returns the online conductors whose last heartbeat is within
// timeout of now, ordered by hostname.
func (r *Registry) ListAlive(ctx context.Context, timeout time.Duration) ([]*conductor.Conductor, error) {
	if timeout <= 0 {
		return nil, warden.InvalidParameter("heartbeat timeout must be positive, got %s", timeout)
	}
	var alive []*conductor.Conductor
	op := &middleware.Op{Name: "list_alive"}
	err := r.mw(ctx, op, func(ctx context.Context) error {
		var err error
		alive, err = r.db.ListConductorsSince(ctx, r.now().Add(-timeout))
		return err
	})
	return alive, err
}

// List returns every conductor record, online or not, ordered by hostname.
func (r *Registry) List(ctx context.Context) ([]*conductor.Conductor, error) {
	var all []*conductor.Conductor
	op := &middleware.Op{Name: "list"}
	err := r.mw(ctx, op, func(ctx context.Context) error {
		var err error
		all, err = r.db.ListConductors(ctx)
		return err
	})
	return all, err
}
