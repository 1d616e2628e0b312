package liveness

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xraph/warden"
	"github.com/xraph/warden/backoff"
	"github.com/xraph/warden/conductor"
)

// HeartbeaterOption configures a Heartbeater.
type HeartbeaterOption func(*Heartbeater)

// WithInterval sets the heartbeat cadence.
func WithInterval(d time.Duration) HeartbeaterOption {
	return func(h *Heartbeater) { h.interval = d }
}

// WithUnregisterTimeout bounds the unregister call made on Stop.
func WithUnregisterTimeout(d time.Duration) HeartbeaterOption {
	return func(h *Heartbeater) { h.unregisterTimeout = d }
}

// WithAllowOverwrite lets Start take over an online record with the same
// hostname, e.g. after a crash that left the record online.
func WithAllowOverwrite(allow bool) HeartbeaterOption {
	return func(h *Heartbeater) { h.allowOverwrite = allow }
}

// WithBackoff sets the retry schedule for failed heartbeats.
func WithBackoff(s backoff.Strategy) HeartbeaterOption {
	return func(h *Heartbeater) { h.strategy = s }
}

// Heartbeater keeps one conductor registered and fresh.
type Heartbeater struct {
	registry          *Registry
	self              *conductor.Conductor
	interval          time.Duration
	unregisterTimeout time.Duration
	allowOverwrite    bool
	strategy          backoff.Strategy

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHeartbeater returns a Heartbeater for self. Defaults follow
// warden.DefaultConfig.
func NewHeartbeater(r *Registry, self *conductor.Conductor, opts ...HeartbeaterOption) *Heartbeater {
	def := warden.DefaultConfig()
	h := &Heartbeater{
		registry:          r,
		self:              self.Clone(),
		interval:          def.HeartbeatInterval,
		unregisterTimeout: def.UnregisterTimeout,
		allowOverwrite:    def.AllowOverwrite,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.strategy == nil {
		h.strategy = backoff.DefaultStrategy(h.interval)
	}
	return h
}

// Hostname returns the hostname this heartbeater keeps alive.
func (h *Heartbeater) Hostname() string { return h.self.Hostname }

// Start registers the conductor and starts the heartbeat loop. The loop
// outlives ctx; it runs until Stop.
func (h *Heartbeater) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return nil
	}

	if _, err := h.registry.Register(ctx, h.self, h.allowOverwrite); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.loop(loopCtx, h.registry.clock.Ticker(h.interval), h.done)
	return nil
}

// Stop halts the loop and unregisters the conductor within the unregister
// timeout. Stopping a heartbeater that was never started is a no-op.
func (h *Heartbeater) Stop(ctx context.Context) error {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	uctx, ucancel := context.WithTimeout(context.WithoutCancel(ctx), h.unregisterTimeout)
	defer ucancel()
	return h.registry.Unregister(uctx, h.self.Hostname)
}

// Run starts the heartbeater, blocks until ctx is cancelled, then stops it.
func (h *Heartbeater) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return h.Stop(context.WithoutCancel(ctx))
}

func (h *Heartbeater) loop(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pulse(ctx)
		}
	}
}

// pulse records one heartbeat, retrying until the next tick is due.
func (h *Heartbeater) pulse(ctx context.Context) {
	logger := h.registry.logger.With(slog.String("hostname", h.self.Hostname))
	err := backoff.Retry(ctx, h.registry.clock, h.strategy, h.interval, func(ctx context.Context, attempt int) error {
		err := h.beat(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Warn("heartbeat failed", slog.Int("attempt", attempt), slog.String("error", err.Error()))
			h.registry.extensions.EmitHeartbeatFailed(ctx, h.self.Hostname, attempt, err)
		}
		return err
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("heartbeat retries exhausted", slog.String("error", err.Error()))
	}
}

func (h *Heartbeater) beat(ctx context.Context) error {
	err := h.registry.Heartbeat(ctx, h.self.Hostname)
	if !errors.Is(err, warden.ErrConductorNotFound) {
		return err
	}
	h.registry.logger.Warn("conductor record missing, registering again",
		slog.String("hostname", h.self.Hostname))
	_, err = h.registry.Register(ctx, h.self, true)
	return err
}
