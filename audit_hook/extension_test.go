package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/warden"
	ah "github.com/xraph/warden/audit_hook"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/ext"
	"github.com/xraph/warden/node"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Test helpers ─────────────────────────────────────

func testNodes() []*node.Node {
	return []*node.Node{
		{ID: 1, Name: "n1", Reservation: "t1"},
		{ID: 2, Name: "n2", Reservation: "t1"},
	}
}

type eventCheck struct {
	action, resource, category, resourceID, severity, outcome string
}

func assertEvent(t *testing.T, evt *ah.AuditEvent, want eventCheck) {
	t.Helper()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	got := eventCheck{evt.Action, evt.Resource, evt.Category, evt.ResourceID, evt.Severity, evt.Outcome}
	if got != want {
		t.Errorf("event = %+v, want %+v", got, want)
	}
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

// ── Reservation tests ────────────────────────────────

func TestExtension_NodesReserved(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnNodesReserved(context.Background(), "t1", testNodes()); err != nil {
		t.Fatalf("OnNodesReserved: %v", err)
	}

	evt := rec.last()
	assertEvent(t, evt, eventCheck{
		ah.ActionNodesReserved, ah.ResourceNode, ah.CategoryReservation,
		"n1,n2", ah.SeverityInfo, ah.OutcomeSuccess,
	})
	if evt.Metadata["tag"] != "t1" {
		t.Errorf("Metadata[tag]: want %q, got %v", "t1", evt.Metadata["tag"])
	}
	if evt.Metadata["count"] != 2 {
		t.Errorf("Metadata[count]: want 2, got %v", evt.Metadata["count"])
	}
}

func TestExtension_NodesReleased(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	sel := node.ByIDs(1, 2, 3)

	if err := e.OnNodesReleased(context.Background(), "t1", sel); err != nil {
		t.Fatalf("OnNodesReleased: %v", err)
	}

	evt := rec.last()
	assertEvent(t, evt, eventCheck{
		ah.ActionNodesReleased, ah.ResourceNode, ah.CategoryReservation,
		sel.String(), ah.SeverityInfo, ah.OutcomeSuccess,
	})
	if evt.Metadata["count"] != 3 {
		t.Errorf("Metadata[count]: want 3, got %v", evt.Metadata["count"])
	}
}

func TestExtension_ReservationConflict(t *testing.T) {
	tests := []struct {
		name       string
		conflict   error
		wantHolder any
	}{
		{"locked by other", &warden.LockedError{Node: "n1", Holder: "t2"}, "t2"},
		{"not locked", &warden.NotLockedError{Node: "n1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			e := ah.New(rec)
			sel := node.ByName("n1")

			if err := e.OnReservationConflict(context.Background(), "t1", sel, tt.conflict); err != nil {
				t.Fatalf("OnReservationConflict: %v", err)
			}

			evt := rec.last()
			assertEvent(t, evt, eventCheck{
				ah.ActionReservationConflict, ah.ResourceNode, ah.CategoryReservation,
				sel.String(), ah.SeverityWarning, ah.OutcomeFailure,
			})
			if evt.Reason != tt.conflict.Error() {
				t.Errorf("Reason: want %q, got %q", tt.conflict.Error(), evt.Reason)
			}
			if evt.Metadata["holder"] != tt.wantHolder {
				t.Errorf("Metadata[holder]: want %v, got %v", tt.wantHolder, evt.Metadata["holder"])
			}
		})
	}
}

// ── Liveness tests ───────────────────────────────────

func TestExtension_ConductorRegistered(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	c := &conductor.Conductor{
		Hostname:      "conductor-1",
		Online:        true,
		LastHeartbeat: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Drivers:       []string{"ipmi", "redfish"},
	}

	if err := e.OnConductorRegistered(context.Background(), c); err != nil {
		t.Fatalf("OnConductorRegistered: %v", err)
	}

	evt := rec.last()
	assertEvent(t, evt, eventCheck{
		ah.ActionConductorRegistered, ah.ResourceConductor, ah.CategoryLiveness,
		"conductor-1", ah.SeverityInfo, ah.OutcomeSuccess,
	})
	if evt.Metadata["drivers"] != "ipmi,redfish" {
		t.Errorf("Metadata[drivers]: want %q, got %v", "ipmi,redfish", evt.Metadata["drivers"])
	}
	if evt.Metadata["last_heartbeat"] != "2026-03-01T12:00:00Z" {
		t.Errorf("Metadata[last_heartbeat]: got %v", evt.Metadata["last_heartbeat"])
	}
}

func TestExtension_ConductorUnregistered(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnConductorUnregistered(context.Background(), "conductor-1"); err != nil {
		t.Fatalf("OnConductorUnregistered: %v", err)
	}
	assertEvent(t, rec.last(), eventCheck{
		ah.ActionConductorUnregistered, ah.ResourceConductor, ah.CategoryLiveness,
		"conductor-1", ah.SeverityInfo, ah.OutcomeSuccess,
	})
}

func TestExtension_HeartbeatFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnHeartbeatFailed(context.Background(), "conductor-1", 3, errors.New("connection reset")); err != nil {
		t.Fatalf("OnHeartbeatFailed: %v", err)
	}

	evt := rec.last()
	assertEvent(t, evt, eventCheck{
		ah.ActionHeartbeatFailed, ah.ResourceConductor, ah.CategoryLiveness,
		"conductor-1", ah.SeverityCritical, ah.OutcomeFailure,
	})
	if evt.Metadata["attempt"] != 3 {
		t.Errorf("Metadata[attempt]: want 3, got %v", evt.Metadata["attempt"])
	}
	if evt.Metadata["error"] != "connection reset" {
		t.Errorf("Metadata[error]: want %q, got %v", "connection reset", evt.Metadata["error"])
	}
}

// ── WithActions filter tests ─────────────────────────

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionReservationConflict, ah.ActionHeartbeatFailed))
	ctx := context.Background()

	// Reserved is not enabled and is skipped.
	if err := e.OnNodesReserved(ctx, "t1", testNodes()); err != nil {
		t.Fatalf("OnNodesReserved: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events (reserved disabled), got %d", rec.count())
	}

	if err := e.OnReservationConflict(ctx, "t1", node.ByName("n1"), &warden.LockedError{Node: "n1"}); err != nil {
		t.Fatalf("OnReservationConflict: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 event (conflict enabled), got %d", rec.count())
	}

	if err := e.OnHeartbeatFailed(ctx, "c1", 1, errors.New("boom")); err != nil {
		t.Fatalf("OnHeartbeatFailed: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

// ── RecorderFunc adapter test ────────────────────────

func TestRecorderFunc(t *testing.T) {
	var captured *ah.AuditEvent
	fn := ah.RecorderFunc(func(_ context.Context, evt *ah.AuditEvent) error {
		captured = evt
		return nil
	})

	e := ah.New(fn)
	if err := e.OnConductorUnregistered(context.Background(), "c1"); err != nil {
		t.Fatalf("OnConductorUnregistered: %v", err)
	}
	if captured == nil {
		t.Fatal("RecorderFunc was not called")
	}
	if captured.Action != ah.ActionConductorUnregistered {
		t.Errorf("Action: want %q, got %q", ah.ActionConductorUnregistered, captured.Action)
	}
}

// ── Recorder error handling test ─────────────────────

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failingRecorder := ah.RecorderFunc(func(_ context.Context, _ *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failingRecorder)

	// Audit failures never fail the reservation.
	if err := e.OnNodesReserved(context.Background(), "t1", testNodes()); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	sel := node.ByNames("n1", "n2")

	reg.EmitNodesReserved(ctx, "t1", testNodes())
	reg.EmitNodesReleased(ctx, "t1", sel)
	reg.EmitReservationConflict(ctx, "t2", sel, &warden.LockedError{Node: "n1", Holder: "t1"})
	reg.EmitConductorRegistered(ctx, &conductor.Conductor{Hostname: "c1"})
	reg.EmitConductorHeartbeat(ctx, "c1", time.Now())
	reg.EmitConductorUnregistered(ctx, "c1")
	reg.EmitHeartbeatFailed(ctx, "c1", 1, errors.New("fail"))

	// Heartbeats are not audited.
	allActions := ah.AllActions()
	if rec.count() != len(allActions) {
		t.Fatalf("expected %d events, got %d", len(allActions), rec.count())
	}

	for _, action := range allActions {
		if rec.findByAction(action) == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}

// ── AllActions test ──────────────────────────────────

func TestAllActions(t *testing.T) {
	actions := ah.AllActions()
	if len(actions) != 6 {
		t.Errorf("expected 6 actions, got %d", len(actions))
	}
}
