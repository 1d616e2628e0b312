// Package ext defines the extension system for Warden.
// Extensions are notified of reservation and liveness events and can react
// to them: metrics, audit trails, pub/sub fan-out.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/node"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Reservation hooks
// ──────────────────────────────────────────────────

// NodesReserved is called after a batch of nodes was acquired and committed.
type NodesReserved interface {
	OnNodesReserved(ctx context.Context, tag string, nodes []*node.Node) error
}

// NodesReleased is called after a batch of nodes was released and committed.
type NodesReleased interface {
	OnNodesReleased(ctx context.Context, tag string, sel node.Selector) error
}

// ReservationConflict is called when an acquire or release was refused
// because a node was held by someone else, or not held at all.
type ReservationConflict interface {
	OnReservationConflict(ctx context.Context, tag string, sel node.Selector, err error) error
}

// ──────────────────────────────────────────────────
// Liveness hooks
// ──────────────────────────────────────────────────

// ConductorRegistered is called after a conductor registered or re-registered.
type ConductorRegistered interface {
	OnConductorRegistered(ctx context.Context, c *conductor.Conductor) error
}

// ConductorHeartbeat is called after a heartbeat was recorded.
type ConductorHeartbeat interface {
	OnConductorHeartbeat(ctx context.Context, hostname string, at time.Time) error
}

// ConductorUnregistered is called after a conductor went offline.
type ConductorUnregistered interface {
	OnConductorUnregistered(ctx context.Context, hostname string) error
}

// HeartbeatFailed is called each time the heartbeat loop fails to record
// a heartbeat. attempt counts consecutive failures, starting at 1.
type HeartbeatFailed interface {
	OnHeartbeatFailed(ctx context.Context, hostname string, attempt int, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
