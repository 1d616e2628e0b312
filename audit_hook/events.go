package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionNodesReserved         = "nodes.reserved"
	ActionNodesReleased         = "nodes.released"
	ActionReservationConflict   = "reservation.conflict"
	ActionConductorRegistered   = "conductor.registered"
	ActionConductorUnregistered = "conductor.unregistered"
	ActionHeartbeatFailed       = "conductor.heartbeat_failed"
)

// Audit event categories group related actions.
const (
	CategoryReservation = "warden.reservation"
	CategoryLiveness    = "warden.liveness"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceNode      = "node"
	ResourceConductor = "conductor"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionNodesReserved,
		ActionNodesReleased,
		ActionReservationConflict,
		ActionConductorRegistered,
		ActionConductorUnregistered,
		ActionHeartbeatFailed,
	}
}
