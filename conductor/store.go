package conductor

import (
	"context"
	"time"
)

// Store defines the persistence contract for conductor records.
type Store interface {
	// CreateConductor inserts c. A hostname that already exists fails
	// with warden.ErrDuplicateIdentity.
	CreateConductor(ctx context.Context, c *Conductor) error

	// GetConductorForUpdate reads the record regardless of Online and
	// locks it for the rest of the transaction.
	GetConductorForUpdate(ctx context.Context, hostname string) (*Conductor, error)

	// UpdateConductor overwrites the mutable fields of the record.
	UpdateConductor(ctx context.Context, c *Conductor) error

	// GetOnlineConductor returns the record if it is online, with no
	// freshness check.
	GetOnlineConductor(ctx context.Context, hostname string) (*Conductor, error)

	// TouchConductor sets Online and LastHeartbeat to at and returns how
	// many records changed.
	TouchConductor(ctx context.Context, hostname string, at time.Time) (int64, error)

	// MarkConductorOffline clears Online on an online record and returns
	// how many records changed.
	MarkConductorOffline(ctx context.Context, hostname string, at time.Time) (int64, error)

	// ListConductorsSince returns online conductors whose last heartbeat
	// is strictly after cutoff, ordered by hostname.
	ListConductorsSince(ctx context.Context, cutoff time.Time) ([]*Conductor, error)

	// ListConductors returns every record, ordered by hostname.
	ListConductors(ctx context.Context) ([]*Conductor, error)
}
