// Package liveness tracks which conductors are alive.
//
// A conductor registers once, then heartbeats on a fixed cadence. The
// [Registry] stamps every heartbeat with its clock; a conductor is alive
// while its record is online and its last heartbeat is younger than the
// freshness window passed to [Registry.ListAlive]. Nothing ever marks a
// silent conductor dead: staleness is computed at read time, so a crashed
// conductor simply ages out of ListAlive while [Registry.Get] still
// returns its online record.
//
// [Heartbeater] drives the protocol for the running process: it registers
// on Start, heartbeats on every tick (retrying failures with backoff and
// re-registering if the record vanished), and unregisters on Stop.
//
//	hb := liveness.NewHeartbeater(reg, &conductor.Conductor{Hostname: "c1"},
//	    liveness.WithInterval(10*time.Second))
//	if err := hb.Start(ctx); err != nil {
//	    return err
//	}
//	defer hb.Stop(ctx)
package liveness
