package liveness_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xraph/warden"
	"github.com/xraph/warden/backoff"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/ext"
	"github.com/xraph/warden/liveness"
	"github.com/xraph/warden/store/memory"
)

// flakyStore fails or drops heartbeats on demand.
type flakyStore struct {
	*memory.Store
	failures atomic.Int32
	vanish   atomic.Bool
}

func (s *flakyStore) TouchConductor(ctx context.Context, hostname string, at time.Time) (int64, error) {
	if s.vanish.Swap(false) {
		return 0, nil
	}
	if s.failures.Load() > 0 {
		s.failures.Add(-1)
		return 0, errors.New("connection reset")
	}
	return s.Store.TouchConductor(ctx, hostname, at)
}

type recorder struct {
	registered   atomic.Int32
	heartbeats   atomic.Int32
	failed       atomic.Int32
	unregistered atomic.Int32
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnConductorRegistered(context.Context, *conductor.Conductor) error {
	r.registered.Add(1)
	return nil
}

func (r *recorder) OnConductorHeartbeat(context.Context, string, time.Time) error {
	r.heartbeats.Add(1)
	return nil
}

func (r *recorder) OnHeartbeatFailed(context.Context, string, int, error) error {
	r.failed.Add(1)
	return nil
}

func (r *recorder) OnConductorUnregistered(context.Context, string) error {
	r.unregistered.Add(1)
	return nil
}

type fixture struct {
	mock     *clock.Mock
	store    *flakyStore
	registry *liveness.Registry
	events   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(epoch)
	fs := &flakyStore{Store: memory.New(memory.WithClock(mock))}
	events := &recorder{}
	reg := ext.NewRegistry(nil)
	reg.Register(events)
	return &fixture{
		mock:     mock,
		store:    fs,
		registry: liveness.NewRegistry(fs, liveness.WithClock(mock), liveness.WithExtensions(reg)),
		events:   events,
	}
}

// eventually advances the mock clock by step until cond holds.
func (f *fixture) eventually(t *testing.T, step time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		f.mock.Add(step)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHeartbeaterStartStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	hb := liveness.NewHeartbeater(f.registry, &conductor.Conductor{Hostname: "A"},
		liveness.WithInterval(10*time.Second))
	if hb.Hostname() != "A" {
		t.Fatalf("Hostname() = %q", hb.Hostname())
	}
	if err := hb.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.registry.Get(ctx, "A"); err != nil {
		t.Fatalf("Start should register synchronously: %v", err)
	}

	f.eventually(t, 10*time.Second, func() bool { return f.events.heartbeats.Load() >= 2 })

	got, err := f.registry.Get(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastHeartbeat.After(epoch) {
		t.Errorf("LastHeartbeat = %v, want after %v", got.LastHeartbeat, epoch)
	}

	if err := hb.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.registry.Get(ctx, "A"); !errors.Is(err, warden.ErrConductorNotFound) {
		t.Fatalf("expected ErrConductorNotFound after Stop, got %v", err)
	}
	if err := hb.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestHeartbeaterStartConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.registry.Register(ctx, &conductor.Conductor{Hostname: "A"}, false); err != nil {
		t.Fatal(err)
	}

	hb := liveness.NewHeartbeater(f.registry, &conductor.Conductor{Hostname: "A"})
	if err := hb.Start(ctx); !errors.Is(err, warden.ErrConductorAlreadyRegistered) {
		t.Fatalf("expected ErrConductorAlreadyRegistered, got %v", err)
	}

	hb = liveness.NewHeartbeater(f.registry, &conductor.Conductor{Hostname: "A"},
		liveness.WithAllowOverwrite(true))
	if err := hb.Start(ctx); err != nil {
		t.Fatalf("overwrite start: %v", err)
	}
	if err := hb.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestHeartbeaterRetriesFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.store.failures.Store(2)

	hb := liveness.NewHeartbeater(f.registry, &conductor.Conductor{Hostname: "A"},
		liveness.WithInterval(10*time.Second),
		liveness.WithBackoff(backoff.NewConstant(time.Second)))
	if err := hb.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = hb.Stop(ctx) })

	f.eventually(t, time.Second, func() bool { return f.events.heartbeats.Load() >= 1 })

	if got := f.events.failed.Load(); got != 2 {
		t.Errorf("failed hooks = %d, want 2", got)
	}
}

func TestHeartbeaterRegistersAgain(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	hb := liveness.NewHeartbeater(f.registry, &conductor.Conductor{Hostname: "A"},
		liveness.WithInterval(10*time.Second))
	if err := hb.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = hb.Stop(ctx) })

	f.store.vanish.Store(true)
	f.eventually(t, 10*time.Second, func() bool { return f.events.registered.Load() >= 2 })

	if _, err := f.registry.Get(ctx, "A"); err != nil {
		t.Fatalf("conductor should be online again: %v", err)
	}
}

func TestHeartbeaterRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	hb := liveness.NewHeartbeater(f.registry, &conductor.Conductor{Hostname: "A"})
	errc := make(chan error, 1)
	go func() { errc <- hb.Run(ctx) }()

	f.eventually(t, time.Second, func() bool { return f.events.registered.Load() == 1 })
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := f.events.unregistered.Load(); got != 1 {
		t.Errorf("unregistered hooks = %d, want 1", got)
	}
}
