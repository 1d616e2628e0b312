// Package reservation implements exclusive node ownership on top of the
// store's compare-and-swap primitive.
//
// Acquire sets a tag on every selected node whose reservation is empty;
// Release clears it on every selected node holding that tag. Each call is
// one store transaction: if any selected node cannot be claimed (or
// released) the whole batch rolls back and the caller gets a structured
// error naming the first offending node.
//
//	m := reservation.NewManager(st, reservation.WithLogger(logger))
//
//	nodes, err := m.Acquire(ctx, "conductor-1", node.ByNames("n1", "n2"))
//	var locked *warden.LockedError
//	if errors.As(err, &locked) {
//	    log.Printf("%s is held by %s", locked.Node, locked.Holder)
//	}
//
// The manager never retries and holds no in-process locks. Contention
// surfaces to the caller as warden.ErrNodeLocked.
//
// Because the manager only needs a store.Tx, it can be built over the Tx
// of an enclosing transaction; its calls then join that transaction.
package reservation
