package bunstore

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
	if _, err := d.idb.NewInsert().Model(toConductorModel(c)).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return store.TranslateConductorConflict(duplicateKey(err, tableConductors, "hostname"), c.Hostname)
		}
		return wrap("create conductor", err)
	}
	return nil
}

// GetConductorForUpdate reads the record with a row lock held until the
// enclosing transaction ends.
func (d *db) GetConductorForUpdate(ctx context.Context, hostname string) (*conductor.Conductor, error) {
	m := new(conductorModel)
	err := d.idb.NewSelect().Model(m).
		Where("d.hostname = ?", hostname).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, warden.ErrConductorNotFound
		}
		return nil, wrap("get conductor", err)
	}
	return fromConductorModel(m), nil
}

// UpdateConductor overwrites the mutable fields of the record.
func (d *db) UpdateConductor(ctx context.Context, c *conductor.Conductor) error {
	now := d.now()
	m := toConductorModel(c)
	m.UpdatedAt = now
	var createdAt time.Time
	err := d.idb.NewUpdate().Model(m).
		Column("online", "last_heartbeat", "drivers", "attributes", "updated_at").
		WherePK().
		Returning("created_at").
		Scan(ctx, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return warden.ErrConductorNotFound
		}
		return wrap("update conductor", err)
	}
	c.CreatedAt, c.UpdatedAt = createdAt.UTC(), now
	return nil
}

// GetOnlineConductor returns the record only while it is online.
func (d *db) GetOnlineConductor(ctx context.Context, hostname string) (*conductor.Conductor, error) {
	m := new(conductorModel)
	err := d.idb.NewSelect().Model(m).
		Where("d.hostname = ?", hostname).
		Where("d.online").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, warden.ErrConductorNotFound
		}
		return nil, wrap("get conductor", err)
	}
	return fromConductorModel(m), nil
}

// TouchConductor records a heartbeat at the given time.
func (d *db) TouchConductor(ctx context.Context, hostname string, at time.Time) (int64, error) {
	at = at.UTC()
	res, err := d.idb.NewUpdate().Model((*conductorModel)(nil)).
		Set("online = TRUE").
		Set("last_heartbeat = ?", at).
		Set("updated_at = ?", at).
		Where("hostname = ?", hostname).
		Exec(ctx)
	if err != nil {
		return 0, wrap("touch conductor", err)
	}
	return rowsAffected(res), nil
}

// MarkConductorOffline clears the online flag of an online record.
func (d *db) MarkConductorOffline(ctx context.Context, hostname string, at time.Time) (int64, error) {
	res, err := d.idb.NewUpdate().Model((*conductorModel)(nil)).
		Set("online = FALSE").
		Set("updated_at = ?", at.UTC()).
		Where("hostname = ?", hostname).
		Where("online").
		Exec(ctx)
	if err != nil {
		return 0, wrap("mark conductor offline", err)
	}
	return rowsAffected(res), nil
}

// ListConductorsSince returns online conductors that heartbeated after cutoff.
func (d *db) ListConductorsSince(ctx context.Context, cutoff time.Time) ([]*conductor.Conductor, error) {
	var models []conductorModel
	err := d.idb.NewSelect().Model(&models).
		Where("d.online").
		Where("d.last_heartbeat > ?", cutoff.UTC()).
		OrderExpr(`d.hostname COLLATE "C" ASC`).
		Scan(ctx)
	if err != nil {
		return nil, wrap("list conductors", err)
	}
	return fromConductorModels(models), nil
}

// ListConductors returns every record.
func (d *db) ListConductors(ctx context.Context) ([]*conductor.Conductor, error) {
	var models []conductorModel
	err := d.idb.NewSelect().Model(&models).
		OrderExpr(`d.hostname COLLATE "C" ASC`).
		Scan(ctx)
	if err != nil {
		return nil, wrap("list conductors", err)
	}
	return fromConductorModels(models), nil
}

func fromConductorModels(models []conductorModel) []*conductor.Conductor {
	out := make([]*conductor.Conductor, 0, len(models))
	for i := range models {
		out = append(out, fromConductorModel(&models[i]))
	}
	return out
}
