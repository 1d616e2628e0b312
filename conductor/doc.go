// Package conductor defines the conductor record used for liveness
// tracking.
//
// A conductor is a worker process identified by hostname. Its record is
// created on first registration and never hard-deleted: unregistering only
// clears the Online flag. Whether a conductor is alive is derived at read
// time from Online and the age of LastHeartbeat; staleness is never stored.
package conductor
