package redishook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"

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
	_ ext.ConductorHeartbeat    = (*Extension)(nil)
	_ ext.ConductorUnregistered = (*Extension)(nil)
	_ ext.HeartbeatFailed       = (*Extension)(nil)

	_ Publisher = (*redis.Client)(nil)
)

// Publisher is the subset of redis.UniversalClient the extension needs.
// *redis.Client, *redis.ClusterClient and *redis.Ring all satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Extension publishes Warden lifecycle events to Redis pub/sub.
type Extension struct {
	pub     Publisher
	channel string
	enabled map[string]bool // nil = all enabled
	clock   clock.Clock
}

// New creates an Extension publishing through pub.
func New(pub Publisher, opts ...Option) *Extension {
	h := &Extension{pub: pub, channel: DefaultChannel, clock: clock.New()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "redis-hook" }

// ── Reservation hooks ───────────────────────────────

// OnNodesReserved implements ext.NodesReserved.
func (h *Extension) OnNodesReserved(ctx context.Context, tag string, nodes []*node.Node) error {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return h.publish(ctx, EventNodesReserved, h.clock.Now(), &ReservationData{Tag: tag, Nodes: names})
}

// OnNodesReleased implements ext.NodesReleased.
func (h *Extension) OnNodesReleased(ctx context.Context, tag string, sel node.Selector) error {
	return h.publish(ctx, EventNodesReleased, h.clock.Now(), &ReservationData{Tag: tag, Selector: sel.String()})
}

// OnReservationConflict implements ext.ReservationConflict.
func (h *Extension) OnReservationConflict(ctx context.Context, tag string, sel node.Selector, conflict error) error {
	data := &ReservationData{Tag: tag, Selector: sel.String(), Error: conflict.Error()}
	var locked *warden.LockedError
	if errors.As(conflict, &locked) {
		data.Holder = locked.Holder
	}
	return h.publish(ctx, EventReservationConflict, h.clock.Now(), data)
}

// ── Liveness hooks ──────────────────────────────────

// OnConductorRegistered implements ext.ConductorRegistered.
func (h *Extension) OnConductorRegistered(ctx context.Context, c *conductor.Conductor) error {
	at := c.LastHeartbeat
	return h.publish(ctx, EventConductorRegistered, at, &ConductorData{
		Hostname:      c.Hostname,
		Drivers:       c.Drivers,
		LastHeartbeat: &at,
	})
}

// OnConductorHeartbeat implements ext.ConductorHeartbeat.
func (h *Extension) OnConductorHeartbeat(ctx context.Context, hostname string, at time.Time) error {
	return h.publish(ctx, EventConductorHeartbeat, at, &ConductorData{Hostname: hostname, LastHeartbeat: &at})
}

// OnConductorUnregistered implements ext.ConductorUnregistered.
func (h *Extension) OnConductorUnregistered(ctx context.Context, hostname string) error {
	return h.publish(ctx, EventConductorUnregistered, h.clock.Now(), &ConductorData{Hostname: hostname})
}

// OnHeartbeatFailed implements ext.HeartbeatFailed.
func (h *Extension) OnHeartbeatFailed(ctx context.Context, hostname string, attempt int, hbErr error) error {
	return h.publish(ctx, EventHeartbeatFailed, h.clock.Now(), &ConductorData{
		Hostname: hostname,
		Attempt:  attempt,
		Error:    hbErr.Error(),
	})
}

// ── Internal helpers ────────────────────────────────

// publish marshals data into an envelope and publishes it if the event
// type is enabled.
func (h *Extension) publish(ctx context.Context, eventType string, at time.Time, data any) error {
	if h.enabled != nil && !h.enabled[eventType] {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("redis_hook: marshal %s: %w", eventType, err)
	}
	msg, err := json.Marshal(&Event{Type: eventType, At: at.UTC(), Data: raw})
	if err != nil {
		return fmt.Errorf("redis_hook: marshal %s: %w", eventType, err)
	}

	if err := h.pub.Publish(ctx, h.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis_hook: publish %s: %w", eventType, err)
	}
	return nil
}
