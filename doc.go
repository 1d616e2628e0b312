// Package warden coordinates exclusive access to managed nodes across
// independent conductor processes and tracks which conductors are alive,
// using nothing but atomic conditional writes and transactions against a
// shared store.
//
// There is no lock service and no leader election. A conductor claims nodes
// by writing its tag into each node's reservation column with a
// compare-and-swap UPDATE inside one transaction; a batch either lands on
// every node or on none. Liveness is a heartbeat timestamp: a conductor is
// alive while its record is online and its last heartbeat falls inside the
// freshness window.
//
// # Quick Start
//
//	w, err := warden.New(
//	    warden.WithStore(pgStore),
//	    warden.WithHeartbeatTimeout(time.Minute),
//	)
//
//	eng, err := engine.Build(w, engine.WithHostname("conductor-1"))
//
//	nodes, err := eng.Reservations().Acquire(ctx, "conductor-1",
//	    node.ByNames("n1", "n2"))
//
// # Architecture
//
// Each entity (node, nic, conductor) defines its own store interface. A
// backend implements all of them plus store.Transactor, which scopes a
// unit of work to an explicit store.Tx value. The reservation and liveness
// packages build their protocols on that surface; the engine package wires
// them together with extensions and the heartbeat loop.
//
// Errors are sentinels declared in this package. Structured variants
// ([LockedError], [NotLockedError], [DuplicateError]) carry detail and
// match their sentinel through errors.Is.
package warden
