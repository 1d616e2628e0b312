package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/engine"
	mw "github.com/xraph/warden/middleware"
	"github.com/xraph/warden/node"
	"github.com/xraph/warden/store/memory"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	mock  *clock.Mock
	store *memory.Store
	w     *warden.Warden
}

func newHarness(t *testing.T, opts ...warden.Option) *harness {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(epoch)
	s := memory.New(memory.WithClock(mock))
	w, err := warden.New(append([]warden.Option{
		warden.WithStore(s),
		warden.WithClock(mock),
	}, opts...)...)
	if err != nil {
		t.Fatalf("warden.New: %v", err)
	}
	return &harness{mock: mock, store: s, w: w}
}

func (h *harness) seed(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := h.store.CreateNode(context.Background(), &node.Node{Name: name}); err != nil {
			t.Fatalf("CreateNode(%s): %v", name, err)
		}
	}
}

// events records every hook the engine emits.
type events struct {
	mu   sync.Mutex
	seen []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, s)
}

func (e *events) has(s string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, x := range e.seen {
		if x == s {
			return true
		}
	}
	return false
}

func (e *events) Name() string { return "test-events" }

func (e *events) OnNodesReserved(_ context.Context, tag string, _ []*node.Node) error {
	e.add("reserved:" + tag)
	return nil
}

func (e *events) OnNodesReleased(_ context.Context, tag string, _ node.Selector) error {
	e.add("released:" + tag)
	return nil
}

func (e *events) OnReservationConflict(_ context.Context, tag string, _ node.Selector, _ error) error {
	e.add("conflict:" + tag)
	return nil
}

func (e *events) OnConductorRegistered(_ context.Context, c *conductor.Conductor) error {
	e.add("registered:" + c.Hostname)
	return nil
}

func (e *events) OnConductorUnregistered(_ context.Context, hostname string) error {
	e.add("unregistered:" + hostname)
	return nil
}

func (e *events) OnShutdown(context.Context) error {
	e.add("shutdown")
	return nil
}

// ──────────────────────────────────────────────────
// Build
// ──────────────────────────────────────────────────

func TestBuild_NoStore(t *testing.T) {
	w, err := warden.New()
	if err != nil {
		t.Fatalf("warden.New: %v", err)
	}
	if _, err := engine.Build(w); !errors.Is(err, warden.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

type lifecycleOnly struct{}

func (lifecycleOnly) Migrate(context.Context) error { return nil }
func (lifecycleOnly) Ping(context.Context) error    { return nil }
func (lifecycleOnly) Close() error                  { return nil }

func TestBuild_StoreMustImplementEntities(t *testing.T) {
	w, err := warden.New(warden.WithStore(lifecycleOnly{}))
	if err != nil {
		t.Fatalf("warden.New: %v", err)
	}
	if _, err := engine.Build(w); err == nil {
		t.Fatal("expected error for a store without entity support")
	}
}

// ──────────────────────────────────────────────────
// Reservations
// ──────────────────────────────────────────────────

func TestEngine_AcquireRelease(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "n1", "n2")

	ev := &events{}
	eng, err := engine.Build(h.w, engine.WithExtension(ev))
	if err != nil {
		t.Fatalf("engine.Build: %v", err)
	}
	ctx := context.Background()
	sel := node.ByNames("n1", "n2")

	nodes, err := eng.Reservations().Acquire(ctx, "t1", sel)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	for _, n := range nodes {
		if n.Reservation != "t1" {
			t.Errorf("%s: Reservation = %q, want t1", n.Name, n.Reservation)
		}
	}

	_, err = eng.Reservations().Acquire(ctx, "t2", node.ByName("n1"))
	var locked *warden.LockedError
	if !errors.As(err, &locked) || locked.Holder != "t1" {
		t.Fatalf("expected LockedError held by t1, got %v", err)
	}

	if err := eng.Reservations().Release(ctx, "t1", sel); err != nil {
		t.Fatalf("Release: %v", err)
	}

	for _, want := range []string{"reserved:t1", "conflict:t2", "released:t1"} {
		if !ev.has(want) {
			t.Errorf("missing event %q", want)
		}
	}
}

func TestEngine_CustomMiddlewareRuns(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "n1")

	var ops []string
	var mu sync.Mutex
	record := func(ctx context.Context, op *mw.Op, next mw.Handler) error {
		mu.Lock()
		ops = append(ops, op.Name)
		mu.Unlock()
		return next(ctx)
	}

	eng, err := engine.Build(h.w, engine.WithMiddleware(record))
	if err != nil {
		t.Fatalf("engine.Build: %v", err)
	}
	ctx := context.Background()
	if _, err := eng.Reservations().AcquireOne(ctx, "t1", "n1"); err != nil {
		t.Fatal(err)
	}
	if err := eng.Reservations().ReleaseOne(ctx, "t1", "n1"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ops) != 2 || ops[0] != "acquire" || ops[1] != "release" {
		t.Errorf("ops = %v, want [acquire release]", ops)
	}
}

func TestEngine_MeterProvider(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "n1")

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	eng, err := engine.Build(h.w, engine.WithMeterProvider(mp))
	if err != nil {
		t.Fatalf("engine.Build: %v", err)
	}
	if _, err := eng.Reservations().Acquire(context.Background(), "t1", node.ByName("n1")); err != nil {
		t.Fatal(err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	for _, name := range []string{"warden.op.count", "warden.op.duration", "warden.nodes.reserved"} {
		if !found[name] {
			t.Errorf("metric %q not recorded", name)
		}
	}
}

func TestEngine_TracerProvider(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "n1")

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	eng, err := engine.Build(h.w, engine.WithTracerProvider(tp))
	if err != nil {
		t.Fatalf("engine.Build: %v", err)
	}
	if _, err := eng.Reservations().Acquire(context.Background(), "t1", node.ByName("n1")); err != nil {
		t.Fatal(err)
	}

	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != "warden.acquire" {
		names := make([]string, len(spans))
		for i, s := range spans {
			names[i] = s.Name()
		}
		t.Fatalf("spans = %v, want [warden.acquire]", names)
	}
}

// ──────────────────────────────────────────────────
// Conductor lifecycle
// ──────────────────────────────────────────────────

func TestEngine_StartStopConductor(t *testing.T) {
	h := newHarness(t, warden.WithHeartbeatInterval(10*time.Second))

	ev := &events{}
	eng, err := engine.Build(h.w,
		engine.WithHostname("conductor-1"),
		engine.WithDrivers("ipmi"),
		engine.WithExtension(ev),
	)
	if err != nil {
		t.Fatalf("engine.Build: %v", err)
	}
	if eng.Heartbeater() == nil || eng.Heartbeater().Hostname() != "conductor-1" {
		t.Fatal("expected a heartbeater for conductor-1")
	}

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	alive, err := eng.Alive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(alive) != 1 || alive[0].Hostname != "conductor-1" {
		t.Fatalf("alive = %v, want [conductor-1]", alive)
	}
	if len(alive[0].Drivers) != 1 || alive[0].Drivers[0] != "ipmi" {
		t.Errorf("drivers = %v, want [ipmi]", alive[0].Drivers)
	}

	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := eng.Registry().Get(ctx, "conductor-1"); !errors.Is(err, warden.ErrConductorNotFound) {
		t.Fatalf("expected conductor offline after Stop, got %v", err)
	}
	for _, want := range []string{"registered:conductor-1", "unregistered:conductor-1", "shutdown"} {
		if !ev.has(want) {
			t.Errorf("missing event %q", want)
		}
	}
}

func TestEngine_StartWithoutHostnameIsNoop(t *testing.T) {
	h := newHarness(t)
	eng, err := engine.Build(h.w)
	if err != nil {
		t.Fatalf("engine.Build: %v", err)
	}
	if eng.Heartbeater() != nil {
		t.Fatal("expected no heartbeater")
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	all, err := eng.Registry().List(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("expected no conductors, got %v, %v", all, err)
	}
}

func TestEngine_AliveHonoursTimeout(t *testing.T) {
	h := newHarness(t, warden.WithHeartbeatTimeout(30*time.Second))
	eng, err := engine.Build(h.w)
	if err != nil {
		t.Fatalf("engine.Build: %v", err)
	}
	ctx := context.Background()
	if _, err := eng.Registry().Register(ctx, &conductor.Conductor{Hostname: "c1"}, false); err != nil {
		t.Fatal(err)
	}

	h.mock.Add(31 * time.Second)
	alive, err := eng.Alive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(alive) != 0 {
		t.Fatalf("stale conductor reported alive: %v", alive)
	}
}

func TestEngine_StartConflictingHostname(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := engine.Build(h.w, engine.WithHostname("c1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = first.Heartbeater().Stop(ctx) })

	w2, err := warden.New(warden.WithStore(h.store), warden.WithClock(h.mock))
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.Build(w2, engine.WithHostname("c1"))
	if err != nil {
		t.Fatal(err)
	}

	if err := second.Start(ctx); !errors.Is(err, warden.ErrConductorAlreadyRegistered) {
		t.Fatalf("expected ErrConductorAlreadyRegistered, got %v", err)
	}
}
