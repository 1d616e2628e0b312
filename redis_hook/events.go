package redishook

import (
	"encoding/json"
	"time"
)

// Event types. Each constant maps to one ext lifecycle hook and becomes
// the Type field of the published envelope.
const (
	EventNodesReserved         = "warden.nodes.reserved"
	EventNodesReleased         = "warden.nodes.released"
	EventReservationConflict   = "warden.reservation.conflict"
	EventConductorRegistered   = "warden.conductor.registered"
	EventConductorHeartbeat    = "warden.conductor.heartbeat"
	EventConductorUnregistered = "warden.conductor.unregistered"
	EventHeartbeatFailed       = "warden.conductor.heartbeat_failed"
)

// AllEvents returns every event type this extension can publish.
func AllEvents() []string {
	return []string{
		EventNodesReserved,
		EventNodesReleased,
		EventReservationConflict,
		EventConductorRegistered,
		EventConductorHeartbeat,
		EventConductorUnregistered,
		EventHeartbeatFailed,
	}
}

// Event is the envelope published for every lifecycle event.
type Event struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// ReservationData is the payload of node reservation events. Nodes lists
// node names for EventNodesReserved; Selector is the requested identity
// set for release and conflict events.
type ReservationData struct {
	Tag      string   `json:"tag"`
	Nodes    []string `json:"nodes,omitempty"`
	Selector string   `json:"selector,omitempty"`
	Holder   string   `json:"holder,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// ConductorData is the payload of conductor liveness events.
type ConductorData struct {
	Hostname      string     `json:"hostname"`
	Drivers       []string   `json:"drivers,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	Attempt       int        `json:"attempt,omitempty"`
	Error         string     `json:"error,omitempty"`
}
