// Package audithook is a Warden extension that bridges reservation and
// liveness events to an immutable audit trail backend.
//
// Every reservation and conductor lifecycle hook emits a structured audit
// event through the [Recorder] interface. Successful claims and releases are
// info events, refused ones are warnings, and heartbeat failures are
// critical. Routine heartbeats are not audited.
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return auditLog.Write(ctx, evt.Action, evt.Resource, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionReservationConflict,
//	        audithook.ActionHeartbeatFailed,
//	    ),
//	)
package audithook
