package postgres

import (
	"context"
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/store"
)

// CreateConductor inserts a conductor record.
func (d *db) CreateConductor(ctx context.Context, c *conductor.Conductor) error {
	now := d.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := d.q.Exec(ctx, `
		INSERT INTO warden_conductors (
			hostname, online, last_heartbeat, drivers, attributes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.Hostname, c.Online, c.LastHeartbeat.UTC(), c.Drivers, c.Attributes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.TranslateConductorConflict(duplicateKey(err, tableConductors, "hostname"), c.Hostname)
		}
		return wrap("create conductor", err)
	}
	return nil
}

// GetConductorForUpdate reads the record with a row lock held until the
// enclosing transaction ends.
func (d *db) GetConductorForUpdate(ctx context.Context, hostname string) (*conductor.Conductor, error) {
	return d.getConductor(ctx, `WHERE hostname = $1 FOR UPDATE`, hostname)
}

// UpdateConductor overwrites the mutable fields of the record.
func (d *db) UpdateConductor(ctx context.Context, c *conductor.Conductor) error {
	now := d.now()
	err := d.q.QueryRow(ctx, `
		UPDATE warden_conductors SET
			online = $2, last_heartbeat = $3, drivers = $4, attributes = $5, updated_at = $6
		WHERE hostname = $1
		RETURNING created_at`,
		c.Hostname, c.Online, c.LastHeartbeat.UTC(), c.Drivers, c.Attributes, now,
	).Scan(&c.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return warden.ErrConductorNotFound
		}
		return wrap("update conductor", err)
	}
	c.CreatedAt, c.UpdatedAt = utc(c.CreatedAt), now
	return nil
}

// GetOnlineConductor returns the record only while it is online.
func (d *db) GetOnlineConductor(ctx context.Context, hostname string) (*conductor.Conductor, error) {
	return d.getConductor(ctx, `WHERE hostname = $1 AND online`, hostname)
}

// TouchConductor records a heartbeat at the given time.
func (d *db) TouchConductor(ctx context.Context, hostname string, at time.Time) (int64, error) {
	tag, err := d.q.Exec(ctx, `
		UPDATE warden_conductors SET online = TRUE, last_heartbeat = $2, updated_at = $2
		WHERE hostname = $1`,
		hostname, at.UTC(),
	)
	if err != nil {
		return 0, wrap("touch conductor", err)
	}
	return tag.RowsAffected(), nil
}

// MarkConductorOffline clears the online flag of an online record.
func (d *db) MarkConductorOffline(ctx context.Context, hostname string, at time.Time) (int64, error) {
	tag, err := d.q.Exec(ctx, `
		UPDATE warden_conductors SET online = FALSE, updated_at = $2
		WHERE hostname = $1 AND online`,
		hostname, at.UTC(),
	)
	if err != nil {
		return 0, wrap("mark conductor offline", err)
	}
	return tag.RowsAffected(), nil
}

// ListConductorsSince returns online conductors that heartbeated after cutoff.
func (d *db) ListConductorsSince(ctx context.Context, cutoff time.Time) ([]*conductor.Conductor, error) {
	return d.listConductors(ctx, `WHERE online AND last_heartbeat > $1`, cutoff.UTC())
}

// ListConductors returns every record.
func (d *db) ListConductors(ctx context.Context) ([]*conductor.Conductor, error) {
	return d.listConductors(ctx, ``)
}

func (d *db) getConductor(ctx context.Context, clause string, args ...any) (*conductor.Conductor, error) {
	c, err := scanConductor(d.q.QueryRow(ctx,
		`SELECT `+conductorColumns+` FROM warden_conductors `+clause, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, warden.ErrConductorNotFound
		}
		return nil, wrap("get conductor", err)
	}
	return c, nil
}

// listConductors orders by hostname in byte order so every backend agrees.
func (d *db) listConductors(ctx context.Context, clause string, args ...any) ([]*conductor.Conductor, error) {
	rows, err := d.q.Query(ctx,
		`SELECT `+conductorColumns+` FROM warden_conductors `+clause+` ORDER BY hostname COLLATE "C"`, args...)
	if err != nil {
		return nil, wrap("list conductors", err)
	}
	out, err := collectConductors(rows)
	if err != nil {
		return nil, wrap("list conductors", err)
	}
	return out, nil
}
