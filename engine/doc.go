// Package engine wires the Warden subsystems together and provides the
// application-level API for reserving nodes and tracking conductors.
//
// The engine package exists to break an import cycle: the root warden
// package defines Entity, Config and the error sentinels (imported by node,
// conductor, reservation, liveness, etc.) and therefore cannot import those
// packages back. Engine sits above all subsystem packages and below the
// application layer.
//
// # Building an Engine
//
//	w, err := warden.New(
//	    warden.WithStore(pgStore),
//	    warden.WithHeartbeatInterval(5*time.Second),
//	)
//
//	eng, err := engine.Build(w,
//	    engine.WithHostname("conductor-1"),
//	    engine.WithDrivers("ipmi", "redfish"),
//	    engine.WithExtension(audithook.New(recorder)),
//	)
//
// # Reserving Nodes
//
//	nodes, err := eng.Reservations().Acquire(ctx, "conductor-1", node.ByNames("n1", "n2"))
//	defer eng.Reservations().Release(ctx, "conductor-1", node.ByNames("n1", "n2"))
//
// # Conductor Liveness
//
//	if err := eng.Start(ctx); err != nil { ... } // register + heartbeat loop
//	defer eng.Stop(ctx)                          // unregister + close store
//
//	alive, err := eng.Alive(ctx) // conductors fresh within HeartbeatTimeout
//
// # Options
//
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the operation chain
//   - [WithBackoff]: set the heartbeat retry strategy
//   - [WithHostname], [WithDrivers], [WithAttributes]: describe this conductor
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
