package gormstore

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
	if err := d.with(ctx).Create(toConductorModel(c)).Error; err != nil {
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
	return d.getConductor(ctx, true, "hostname = ?", hostname)
}

// UpdateConductor overwrites the mutable fields of the record.
func (d *db) UpdateConductor(ctx context.Context, c *conductor.Conductor) error {
	return d.atomic(ctx, func(d *db) error {
		cur, err := d.getConductor(ctx, true, "hostname = ?", c.Hostname)
		if err != nil {
			return err
		}
		now := d.now()
		m := toConductorModel(c)
		m.UpdatedAt = now
		err = d.with(ctx).Model(&conductorModel{}).Where("hostname = ?", c.Hostname).
			Select("online", "last_heartbeat", "drivers", "attributes", "updated_at").
			Updates(m).Error
		if err != nil {
			return wrap("update conductor", err)
		}
		c.CreatedAt, c.UpdatedAt = cur.CreatedAt, now
		return nil
	})
}

// GetOnlineConductor returns the record only while it is online.
func (d *db) GetOnlineConductor(ctx context.Context, hostname string) (*conductor.Conductor, error) {
	return d.getConductor(ctx, false, "hostname = ? AND online = ?", hostname, true)
}

// TouchConductor records a heartbeat at the given time.
func (d *db) TouchConductor(ctx context.Context, hostname string, at time.Time) (int64, error) {
	at = at.UTC()
	res := d.with(ctx).Model(&conductorModel{}).Where("hostname = ?", hostname).
		Updates(map[string]any{"online": true, "last_heartbeat": at, "updated_at": at})
	if res.Error != nil {
		return 0, wrap("touch conductor", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkConductorOffline clears the online flag of an online record.
func (d *db) MarkConductorOffline(ctx context.Context, hostname string, at time.Time) (int64, error) {
	res := d.with(ctx).Model(&conductorModel{}).Where("hostname = ? AND online = ?", hostname, true).
		Updates(map[string]any{"online": false, "updated_at": at.UTC()})
	if res.Error != nil {
		return 0, wrap("mark conductor offline", res.Error)
	}
	return res.RowsAffected, nil
}

// ListConductorsSince returns online conductors that heartbeated after cutoff.
func (d *db) ListConductorsSince(ctx context.Context, cutoff time.Time) ([]*conductor.Conductor, error) {
	var models []conductorModel
	err := d.with(ctx).
		Where("online = ? AND last_heartbeat > ?", true, cutoff.UTC()).
		Order("hostname").
		Find(&models).Error
	if err != nil {
		return nil, wrap("list conductors", err)
	}
	return fromConductorModels(models), nil
}

// ListConductors returns every record.
func (d *db) ListConductors(ctx context.Context) ([]*conductor.Conductor, error) {
	var models []conductorModel
	if err := d.with(ctx).Order("hostname").Find(&models).Error; err != nil {
		return nil, wrap("list conductors", err)
	}
	return fromConductorModels(models), nil
}

func (d *db) getConductor(ctx context.Context, lock bool, where string, args ...any) (*conductor.Conductor, error) {
	q := d.with(ctx)
	if lock {
		q = forUpdate(q)
	}
	var m conductorModel
	if err := q.Where(where, args...).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, warden.ErrConductorNotFound
		}
		return nil, wrap("get conductor", err)
	}
	return fromConductorModel(&m), nil
}
