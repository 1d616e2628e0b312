package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/ext"
	"github.com/xraph/warden/node"
)

// Compile-time interface checks.
var (
	_ ext.Extension             = (*Extension)(nil)
	_ ext.NodesReserved         = (*Extension)(nil)
	_ ext.NodesReleased         = (*Extension)(nil)
	_ ext.ReservationConflict   = (*Extension)(nil)
	_ ext.ConductorRegistered   = (*Extension)(nil)
	_ ext.ConductorUnregistered = (*Extension)(nil)
	_ ext.HeartbeatFailed       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges Warden lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Reservation hooks ───────────────────────────────

// OnNodesReserved implements ext.NodesReserved.
func (e *Extension) OnNodesReserved(ctx context.Context, tag string, nodes []*node.Node) error {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return e.record(ctx, ActionNodesReserved, SeverityInfo, OutcomeSuccess,
		ResourceNode, strings.Join(names, ","), CategoryReservation, nil,
		"tag", tag,
		"count", len(nodes),
	)
}

// OnNodesReleased implements ext.NodesReleased.
func (e *Extension) OnNodesReleased(ctx context.Context, tag string, sel node.Selector) error {
	return e.record(ctx, ActionNodesReleased, SeverityInfo, OutcomeSuccess,
		ResourceNode, sel.String(), CategoryReservation, nil,
		"tag", tag,
		"count", sel.Len(),
	)
}

// OnReservationConflict implements ext.ReservationConflict.
func (e *Extension) OnReservationConflict(ctx context.Context, tag string, sel node.Selector, conflict error) error {
	kv := []any{"tag", tag, "count", sel.Len()}
	var locked *warden.LockedError
	if errors.As(conflict, &locked) && locked.Holder != "" {
		kv = append(kv, "holder", locked.Holder)
	}
	return e.record(ctx, ActionReservationConflict, SeverityWarning, OutcomeFailure,
		ResourceNode, sel.String(), CategoryReservation, conflict, kv...)
}

// ── Liveness hooks ──────────────────────────────────

// OnConductorRegistered implements ext.ConductorRegistered.
func (e *Extension) OnConductorRegistered(ctx context.Context, c *conductor.Conductor) error {
	return e.record(ctx, ActionConductorRegistered, SeverityInfo, OutcomeSuccess,
		ResourceConductor, c.Hostname, CategoryLiveness, nil,
		"drivers", strings.Join(c.Drivers, ","),
		"last_heartbeat", c.LastHeartbeat.Format(time.RFC3339),
	)
}

// OnConductorUnregistered implements ext.ConductorUnregistered.
func (e *Extension) OnConductorUnregistered(ctx context.Context, hostname string) error {
	return e.record(ctx, ActionConductorUnregistered, SeverityInfo, OutcomeSuccess,
		ResourceConductor, hostname, CategoryLiveness, nil)
}

// OnHeartbeatFailed implements ext.HeartbeatFailed.
func (e *Extension) OnHeartbeatFailed(ctx context.Context, hostname string, attempt int, hbErr error) error {
	return e.record(ctx, ActionHeartbeatFailed, SeverityCritical, OutcomeFailure,
		ResourceConductor, hostname, CategoryLiveness, hbErr,
		"attempt", attempt,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
