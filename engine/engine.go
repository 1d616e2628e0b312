package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/warden"
	"github.com/xraph/warden/backoff"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/ext"
	"github.com/xraph/warden/liveness"
	mw "github.com/xraph/warden/middleware"
	"github.com/xraph/warden/observability"
	"github.com/xraph/warden/reservation"
	"github.com/xraph/warden/store"
)

// Engine wraps a Warden with typed subsystem access.
// Use Build() to create one from a Warden.
type Engine struct {
	w            *warden.Warden
	store        store.Store
	extensions   *ext.Registry
	reservations *reservation.Manager
	registry     *liveness.Registry
	heartbeater  *liveness.Heartbeater
	mws          []mw.Middleware
	bo           backoff.Strategy
	logger       *slog.Logger

	// This conductor; heartbeating is enabled only when hostname is set.
	hostname   string
	drivers    []string
	attributes map[string]string

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain. It runs inside the
// default stack, closest to the operation.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry strategy for failed heartbeats.
// If not set, backoff.DefaultStrategy(HeartbeatInterval) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithHostname makes the engine run a heartbeat loop for this conductor.
// Start registers it; Stop unregisters it.
func WithHostname(hostname string) Option {
	return func(eng *Engine) {
		eng.hostname = hostname
	}
}

// WithDrivers sets the drivers advertised in this conductor's record.
func WithDrivers(drivers ...string) Option {
	return func(eng *Engine) {
		eng.drivers = append(eng.drivers, drivers...)
	}
}

// WithAttributes sets free-form attributes on this conductor's record.
func WithAttributes(attrs map[string]string) Option {
	return func(eng *Engine) {
		eng.attributes = attrs
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the global one.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Warden.
// The Warden's store must implement store.Store.
func Build(w *warden.Warden, opts ...Option) (*Engine, error) {
	logger := w.Logger()
	if w.Store() == nil {
		return nil, warden.ErrNoStore
	}

	s, ok := w.Store().(store.Store)
	if !ok {
		return nil, fmt.Errorf("warden: store %T does not implement store.Store", w.Store())
	}

	eng := &Engine{
		w:          w,
		store:      s,
		extensions: ext.NewRegistry(logger),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	config := w.Config()
	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy(config.HeartbeatInterval)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/warden"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/warden"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(
			eng.meterProvider.Meter("github.com/xraph/warden/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Default middleware stack: recover → tracing → metrics → logging.
	allMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
	}
	allMws = append(allMws, eng.mws...)
	chain := mw.Chain(allMws...)

	eng.reservations = reservation.NewManager(s,
		reservation.WithLogger(logger),
		reservation.WithExtensions(eng.extensions),
		reservation.WithMiddleware(chain),
	)
	eng.registry = liveness.NewRegistry(s,
		liveness.WithClock(w.Clock()),
		liveness.WithLogger(logger),
		liveness.WithExtensions(eng.extensions),
		liveness.WithMiddleware(chain),
	)

	if eng.hostname != "" {
		self := &conductor.Conductor{
			Hostname:   eng.hostname,
			Drivers:    eng.drivers,
			Attributes: eng.attributes,
		}
		eng.heartbeater = liveness.NewHeartbeater(eng.registry, self,
			liveness.WithInterval(config.HeartbeatInterval),
			liveness.WithUnregisterTimeout(config.UnregisterTimeout),
			liveness.WithAllowOverwrite(config.AllowOverwrite),
			liveness.WithBackoff(eng.bo),
		)
		w.SetHeartbeat(eng.heartbeater)
	}

	// Wire back into the Warden.
	w.SetExtensions(eng.extensions)

	return eng, nil
}

// Start registers this conductor and starts heartbeating. Without
// WithHostname there is nothing to run and Start returns nil.
func (eng *Engine) Start(ctx context.Context) error {
	if eng.heartbeater == nil {
		return nil
	}
	if err := eng.w.Start(ctx); err != nil {
		return fmt.Errorf("start heartbeat for %s: %w", eng.hostname, err)
	}
	eng.logger.Info("conductor started",
		slog.String("hostname", eng.hostname),
		slog.Duration("interval", eng.w.Config().HeartbeatInterval),
	)
	return nil
}

// Stop unregisters this conductor, notifies extensions and closes the store.
func (eng *Engine) Stop(ctx context.Context) error {
	return eng.w.Stop(ctx)
}

// Alive returns the conductors whose last heartbeat falls within the
// configured HeartbeatTimeout.
func (eng *Engine) Alive(ctx context.Context) ([]*conductor.Conductor, error) {
	return eng.registry.ListAlive(ctx, eng.w.Config().HeartbeatTimeout)
}

// Reservations returns the reservation manager.
func (eng *Engine) Reservations() *reservation.Manager { return eng.reservations }

// Registry returns the conductor liveness registry.
func (eng *Engine) Registry() *liveness.Registry { return eng.registry }

// Heartbeater returns this conductor's heartbeat loop, or nil if no
// hostname was configured.
func (eng *Engine) Heartbeater() *liveness.Heartbeater { return eng.heartbeater }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Store returns the entity store.
func (eng *Engine) Store() store.Store { return eng.store }

// Warden returns the underlying Warden.
func (eng *Engine) Warden() *warden.Warden { return eng.w }
