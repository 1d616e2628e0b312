// Package ext defines the extension system for Warden.
//
// Extensions are notified of lifecycle events and can react to them:
// recording metrics, publishing to Redis, writing audit logs.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnNodesReserved(ctx context.Context, tag string, nodes []*node.Node) error {
//	    log.Printf("%s reserved %d nodes", tag, len(nodes))
//	    return nil
//	}
//
// # Reservation Hooks
//
//   - [NodesReserved]: a batch acquire committed
//   - [NodesReleased]: a batch release committed
//   - [ReservationConflict]: an acquire or release was refused
//
// # Liveness Hooks
//
//   - [ConductorRegistered]: a conductor came online
//   - [ConductorHeartbeat]: a heartbeat was recorded
//   - [ConductorUnregistered]: a conductor went offline
//   - [HeartbeatFailed]: the heartbeat loop could not reach the store
//
// # Other Hooks
//
//   - [Shutdown]: the warden is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never change the outcome of the operation that emitted them.
package ext
