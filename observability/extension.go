package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/ext"
	"github.com/xraph/warden/node"
)

// Compile-time interface checks.
var (
	_ ext.Extension             = (*MetricsExtension)(nil)
	_ ext.NodesReserved         = (*MetricsExtension)(nil)
	_ ext.NodesReleased         = (*MetricsExtension)(nil)
	_ ext.ReservationConflict   = (*MetricsExtension)(nil)
	_ ext.ConductorRegistered   = (*MetricsExtension)(nil)
	_ ext.ConductorHeartbeat    = (*MetricsExtension)(nil)
	_ ext.ConductorUnregistered = (*MetricsExtension)(nil)
	_ ext.HeartbeatFailed       = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/warden/observability"

// MetricsExtension records system-wide lifecycle metrics as OTel counters.
// Register it as a Warden extension to track how many nodes are claimed
// and freed, how often claims are refused, and how healthy the conductor
// heartbeats are.
type MetricsExtension struct {
	NodesReserved          metric.Int64Counter
	NodesReleased          metric.Int64Counter
	ReservationConflicts   metric.Int64Counter
	ConductorsRegistered   metric.Int64Counter
	ConductorHeartbeats    metric.Int64Counter
	ConductorsUnregistered metric.Int64Counter
	HeartbeatFailures      metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Tests pass a meter backed by an sdk/metric ManualReader.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc, unit string) metric.Int64Counter {
		// On error the OTel API returns a noop instrument.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		return c
	}
	return &MetricsExtension{
		NodesReserved:          counter("warden.nodes.reserved", "Nodes acquired by a reservation", "{node}"),
		NodesReleased:          counter("warden.nodes.released", "Nodes released by their holder", "{node}"),
		ReservationConflicts:   counter("warden.reservation.conflicts", "Refused acquire or release calls", "{call}"),
		ConductorsRegistered:   counter("warden.conductor.registered", "Conductor registrations", "{conductor}"),
		ConductorHeartbeats:    counter("warden.conductor.heartbeats", "Recorded conductor heartbeats", "{heartbeat}"),
		ConductorsUnregistered: counter("warden.conductor.unregistered", "Conductors marked offline", "{conductor}"),
		HeartbeatFailures:      counter("warden.heartbeat.failures", "Failed heartbeat attempts", "{attempt}"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Reservation hooks ───────────────────────────────

// OnNodesReserved implements ext.NodesReserved.
func (m *MetricsExtension) OnNodesReserved(ctx context.Context, _ string, nodes []*node.Node) error {
	m.NodesReserved.Add(ctx, int64(len(nodes)))
	return nil
}

// OnNodesReleased implements ext.NodesReleased.
func (m *MetricsExtension) OnNodesReleased(ctx context.Context, _ string, sel node.Selector) error {
	m.NodesReleased.Add(ctx, int64(sel.Len()))
	return nil
}

// OnReservationConflict implements ext.ReservationConflict. The reason
// attribute is "locked" or "not_locked".
func (m *MetricsExtension) OnReservationConflict(ctx context.Context, _ string, _ node.Selector, err error) error {
	reason := "locked"
	if errors.Is(err, warden.ErrNodeNotLocked) {
		reason = "not_locked"
	}
	m.ReservationConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	return nil
}

// ── Liveness hooks ──────────────────────────────────

// OnConductorRegistered implements ext.ConductorRegistered.
func (m *MetricsExtension) OnConductorRegistered(ctx context.Context, _ *conductor.Conductor) error {
	m.ConductorsRegistered.Add(ctx, 1)
	return nil
}

// OnConductorHeartbeat implements ext.ConductorHeartbeat.
func (m *MetricsExtension) OnConductorHeartbeat(ctx context.Context, _ string, _ time.Time) error {
	m.ConductorHeartbeats.Add(ctx, 1)
	return nil
}

// OnConductorUnregistered implements ext.ConductorUnregistered.
func (m *MetricsExtension) OnConductorUnregistered(ctx context.Context, _ string) error {
	m.ConductorsUnregistered.Add(ctx, 1)
	return nil
}

// OnHeartbeatFailed implements ext.HeartbeatFailed.
func (m *MetricsExtension) OnHeartbeatFailed(ctx context.Context, _ string, _ int, _ error) error {
	m.HeartbeatFailures.Add(ctx, 1)
	return nil
}
