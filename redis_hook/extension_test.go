package redishook_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/ext"
	"github.com/xraph/warden/node"
	rh "github.com/xraph/warden/redis_hook"
)

// ── Fake publisher ───────────────────────────────────

type message struct {
	channel string
	event   rh.Event
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, msg any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var evt rh.Event
	if err := json.Unmarshal(msg.([]byte), &evt); err != nil {
		return redis.NewIntResult(0, err)
	}
	f.messages = append(f.messages, message{channel: channel, event: evt})
	return redis.NewIntResult(1, nil)
}

func (f *fakePublisher) last(t *testing.T) message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("nothing published")
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExtension(opts ...rh.Option) (*rh.Extension, *fakePublisher) {
	mock := clock.NewMock()
	mock.Set(now)
	pub := &fakePublisher{}
	return rh.New(pub, append([]rh.Option{rh.WithClock(mock)}, opts...)...), pub
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return v
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "redis-hook" {
		t.Errorf("expected name %q, got %q", "redis-hook", e.Name())
	}
}

func TestExtension_NodesReserved(t *testing.T) {
	e, pub := newTestExtension()
	nodes := []*node.Node{{ID: 1, Name: "n1"}, {ID: 2, Name: "n2"}}

	if err := e.OnNodesReserved(context.Background(), "t1", nodes); err != nil {
		t.Fatalf("OnNodesReserved: %v", err)
	}

	msg := pub.last(t)
	if msg.channel != rh.DefaultChannel {
		t.Errorf("channel: want %q, got %q", rh.DefaultChannel, msg.channel)
	}
	if msg.event.Type != rh.EventNodesReserved {
		t.Errorf("Type: want %q, got %q", rh.EventNodesReserved, msg.event.Type)
	}
	if !msg.event.At.Equal(now) {
		t.Errorf("At: want %v, got %v", now, msg.event.At)
	}
	data := decode[rh.ReservationData](t, msg.event.Data)
	if data.Tag != "t1" || len(data.Nodes) != 2 || data.Nodes[0] != "n1" || data.Nodes[1] != "n2" {
		t.Errorf("payload = %+v", data)
	}
}

func TestExtension_ReservationConflictCarriesHolder(t *testing.T) {
	e, pub := newTestExtension()
	sel := node.ByName("n1")
	conflict := &warden.LockedError{Node: "n1", Holder: "t2"}

	if err := e.OnReservationConflict(context.Background(), "t1", sel, conflict); err != nil {
		t.Fatalf("OnReservationConflict: %v", err)
	}

	data := decode[rh.ReservationData](t, pub.last(t).event.Data)
	if data.Holder != "t2" {
		t.Errorf("Holder: want %q, got %q", "t2", data.Holder)
	}
	if data.Selector != sel.String() {
		t.Errorf("Selector: want %q, got %q", sel.String(), data.Selector)
	}
	if data.Error != conflict.Error() {
		t.Errorf("Error: want %q, got %q", conflict.Error(), data.Error)
	}
}

func TestExtension_ConductorHeartbeatUsesHeartbeatTime(t *testing.T) {
	e, pub := newTestExtension()
	at := now.Add(-time.Minute)

	if err := e.OnConductorHeartbeat(context.Background(), "c1", at); err != nil {
		t.Fatalf("OnConductorHeartbeat: %v", err)
	}

	msg := pub.last(t)
	if !msg.event.At.Equal(at) {
		t.Errorf("At: want %v, got %v", at, msg.event.At)
	}
	data := decode[rh.ConductorData](t, msg.event.Data)
	if data.Hostname != "c1" || data.LastHeartbeat == nil || !data.LastHeartbeat.Equal(at) {
		t.Errorf("payload = %+v", data)
	}
}

func TestExtension_WithChannelAndEvents(t *testing.T) {
	e, pub := newTestExtension(
		rh.WithChannel("dc1:warden"),
		rh.WithEvents(rh.EventHeartbeatFailed),
	)
	ctx := context.Background()

	if err := e.OnConductorUnregistered(ctx, "c1"); err != nil {
		t.Fatalf("OnConductorUnregistered: %v", err)
	}
	if pub.count() != 0 {
		t.Fatalf("expected disabled event to be skipped, got %d messages", pub.count())
	}

	if err := e.OnHeartbeatFailed(ctx, "c1", 2, errors.New("timeout")); err != nil {
		t.Fatalf("OnHeartbeatFailed: %v", err)
	}
	msg := pub.last(t)
	if msg.channel != "dc1:warden" {
		t.Errorf("channel: want %q, got %q", "dc1:warden", msg.channel)
	}
	data := decode[rh.ConductorData](t, msg.event.Data)
	if data.Attempt != 2 || data.Error != "timeout" {
		t.Errorf("payload = %+v", data)
	}
}

func TestExtension_PublishErrorIsReturned(t *testing.T) {
	e, pub := newTestExtension()
	pub.err = errors.New("connection refused")

	err := e.OnConductorUnregistered(context.Background(), "c1")
	if err == nil || !errors.Is(err, pub.err) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}

func TestExtension_ViaRegistry(t *testing.T) {
	e, pub := newTestExtension()

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	sel := node.ByNames("n1")
	reg.EmitNodesReserved(ctx, "t1", []*node.Node{{ID: 1, Name: "n1"}})
	reg.EmitNodesReleased(ctx, "t1", sel)
	reg.EmitReservationConflict(ctx, "t2", sel, &warden.NotLockedError{Node: "n1"})
	reg.EmitConductorRegistered(ctx, &conductor.Conductor{Hostname: "c1", LastHeartbeat: now})
	reg.EmitConductorHeartbeat(ctx, "c1", now)
	reg.EmitConductorUnregistered(ctx, "c1")
	reg.EmitHeartbeatFailed(ctx, "c1", 1, errors.New("fail"))

	all := rh.AllEvents()
	if pub.count() != len(all) {
		t.Fatalf("expected %d messages, got %d", len(all), pub.count())
	}
	for i, want := range all {
		if got := pub.messages[i].event.Type; got != want {
			t.Errorf("message %d: want %q, got %q", i, want, got)
		}
	}
}
