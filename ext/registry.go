package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/node"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type nodesReservedEntry struct {
	name string
	hook NodesReserved
}

type nodesReleasedEntry struct {
	name string
	hook NodesReleased
}

type reservationConflictEntry struct {
	name string
	hook ReservationConflict
}

type conductorRegisteredEntry struct {
	name string
	hook ConductorRegistered
}

type conductorHeartbeatEntry struct {
	name string
	hook ConductorHeartbeat
}

type conductorUnregisteredEntry struct {
	name string
	hook ConductorUnregistered
}

type heartbeatFailedEntry struct {
	name string
	hook HeartbeatFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register is not safe to call concurrently with the Emit methods; register
// everything before the registry is handed to the subsystems.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	nodesReserved         []nodesReservedEntry
	nodesReleased         []nodesReleasedEntry
	reservationConflict   []reservationConflictEntry
	conductorRegistered   []conductorRegisteredEntry
	conductorHeartbeat    []conductorHeartbeatEntry
	conductorUnregistered []conductorUnregisteredEntry
	heartbeatFailed       []heartbeatFailedEntry
	shutdown              []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(NodesReserved); ok {
		r.nodesReserved = append(r.nodesReserved, nodesReservedEntry{name, h})
	}
	if h, ok := e.(NodesReleased); ok {
		r.nodesReleased = append(r.nodesReleased, nodesReleasedEntry{name, h})
	}
	if h, ok := e.(ReservationConflict); ok {
		r.reservationConflict = append(r.reservationConflict, reservationConflictEntry{name, h})
	}
	if h, ok := e.(ConductorRegistered); ok {
		r.conductorRegistered = append(r.conductorRegistered, conductorRegisteredEntry{name, h})
	}
	if h, ok := e.(ConductorHeartbeat); ok {
		r.conductorHeartbeat = append(r.conductorHeartbeat, conductorHeartbeatEntry{name, h})
	}
	if h, ok := e.(ConductorUnregistered); ok {
		r.conductorUnregistered = append(r.conductorUnregistered, conductorUnregisteredEntry{name, h})
	}
	if h, ok := e.(HeartbeatFailed); ok {
		r.heartbeatFailed = append(r.heartbeatFailed, heartbeatFailedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Reservation event emitters
// ──────────────────────────────────────────────────

// EmitNodesReserved notifies all extensions that implement NodesReserved.
func (r *Registry) EmitNodesReserved(ctx context.Context, tag string, nodes []*node.Node) {
	for _, e := range r.nodesReserved {
		if err := e.hook.OnNodesReserved(ctx, tag, nodes); err != nil {
			r.logHookError("OnNodesReserved", e.name, err)
		}
	}
}

// EmitNodesReleased notifies all extensions that implement NodesReleased.
func (r *Registry) EmitNodesReleased(ctx context.Context, tag string, sel node.Selector) {
	for _, e := range r.nodesReleased {
		if err := e.hook.OnNodesReleased(ctx, tag, sel); err != nil {
			r.logHookError("OnNodesReleased", e.name, err)
		}
	}
}

// EmitReservationConflict notifies all extensions that implement ReservationConflict.
func (r *Registry) EmitReservationConflict(ctx context.Context, tag string, sel node.Selector, conflict error) {
	for _, e := range r.reservationConflict {
		if err := e.hook.OnReservationConflict(ctx, tag, sel, conflict); err != nil {
			r.logHookError("OnReservationConflict", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Liveness event emitters
// ──────────────────────────────────────────────────

// EmitConductorRegistered notifies all extensions that implement ConductorRegistered.
func (r *Registry) EmitConductorRegistered(ctx context.Context, c *conductor.Conductor) {
	for _, e := range r.conductorRegistered {
		if err := e.hook.OnConductorRegistered(ctx, c); err != nil {
			r.logHookError("OnConductorRegistered", e.name, err)
		}
	}
}

// EmitConductorHeartbeat notifies all extensions that implement ConductorHeartbeat.
func (r *Registry) EmitConductorHeartbeat(ctx context.Context, hostname string, at time.Time) {
	for _, e := range r.conductorHeartbeat {
		if err := e.hook.OnConductorHeartbeat(ctx, hostname, at); err != nil {
			r.logHookError("OnConductorHeartbeat", e.name, err)
		}
	}
}

// EmitConductorUnregistered notifies all extensions that implement ConductorUnregistered.
func (r *Registry) EmitConductorUnregistered(ctx context.Context, hostname string) {
	for _, e := range r.conductorUnregistered {
		if err := e.hook.OnConductorUnregistered(ctx, hostname); err != nil {
			r.logHookError("OnConductorUnregistered", e.name, err)
		}
	}
}

// EmitHeartbeatFailed notifies all extensions that implement HeartbeatFailed.
func (r *Registry) EmitHeartbeatFailed(ctx context.Context, hostname string, attempt int, hbErr error) {
	for _, e := range r.heartbeatFailed {
		if err := e.hook.OnHeartbeatFailed(ctx, hostname, attempt, hbErr); err != nil {
			r.logHookError("OnHeartbeatFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
