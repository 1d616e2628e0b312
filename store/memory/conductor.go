package memory

import (
	"context"
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/store"
)

// ──────────────────────────────────────────────────
// Conductor Store (transaction)
// ──────────────────────────────────────────────────

func (t *tx) CreateConductor(_ context.Context, c *conductor.Conductor) error {
	existing, err := t.conductorBy(c.Hostname)
	if err != nil {
		return wrap("create conductor", err)
	}
	if existing != nil {
		dup := &store.DuplicateKeyError{Table: tableConductors, Columns: []string{"hostname"}}
		return store.TranslateConductorConflict(dup, c.Hostname)
	}
	now := t.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if err := t.txn.Insert(tableConductors, c.Clone()); err != nil {
		return wrap("create conductor", err)
	}
	return nil
}

func (t *tx) GetConductorForUpdate(_ context.Context, hostname string) (*conductor.Conductor, error) {
	c, err := t.conductorBy(hostname)
	if err != nil || c == nil {
		return nil, orNotFound(err, warden.ErrConductorNotFound)
	}
	return c.Clone(), nil
}

func (t *tx) UpdateConductor(_ context.Context, c *conductor.Conductor) error {
	cur, err := t.conductorBy(c.Hostname)
	if err != nil || cur == nil {
		return orNotFound(err, warden.ErrConductorNotFound)
	}
	cp := c.Clone()
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = t.now()
	if err := t.txn.Insert(tableConductors, cp); err != nil {
		return wrap("update conductor", err)
	}
	c.CreatedAt, c.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (t *tx) GetOnlineConductor(_ context.Context, hostname string) (*conductor.Conductor, error) {
	c, err := t.conductorBy(hostname)
	if err != nil || c == nil || !c.Online {
		return nil, orNotFound(err, warden.ErrConductorNotFound)
	}
	return c.Clone(), nil
}

func (t *tx) TouchConductor(_ context.Context, hostname string, at time.Time) (int64, error) {
	c, err := t.conductorBy(hostname)
	if err != nil {
		return 0, wrap("touch conductor", err)
	}
	if c == nil {
		return 0, nil
	}
	cp := c.Clone()
	cp.Online = true
	cp.LastHeartbeat = at.UTC()
	cp.UpdatedAt = at.UTC()
	if err := t.txn.Insert(tableConductors, cp); err != nil {
		return 0, wrap("touch conductor", err)
	}
	return 1, nil
}

func (t *tx) MarkConductorOffline(_ context.Context, hostname string, at time.Time) (int64, error) {
	c, err := t.conductorBy(hostname)
	if err != nil {
		return 0, wrap("mark conductor offline", err)
	}
	if c == nil || !c.Online {
		return 0, nil
	}
	cp := c.Clone()
	cp.Online = false
	cp.UpdatedAt = at.UTC()
	if err := t.txn.Insert(tableConductors, cp); err != nil {
		return 0, wrap("mark conductor offline", err)
	}
	return 1, nil
}

func (t *tx) ListConductorsSince(_ context.Context, cutoff time.Time) ([]*conductor.Conductor, error) {
	return t.listConductors(func(c *conductor.Conductor) bool {
		return c.Online && c.LastHeartbeat.After(cutoff)
	})
}

func (t *tx) ListConductors(_ context.Context) ([]*conductor.Conductor, error) {
	return t.listConductors(func(*conductor.Conductor) bool { return true })
}

// listConductors relies on the hostname index iterating in byte order.
func (t *tx) listConductors(keep func(*conductor.Conductor) bool) ([]*conductor.Conductor, error) {
	it, err := t.txn.Get(tableConductors, indexHostname)
	if err != nil {
		return nil, wrap("list conductors", err)
	}
	var out []*conductor.Conductor
	for raw := it.Next(); raw != nil; raw = it.Next() {
		c := raw.(*conductor.Conductor)
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (t *tx) conductorBy(hostname string) (*conductor.Conductor, error) {
	raw, err := t.txn.First(tableConductors, indexHostname, hostname)
	if err != nil || raw == nil {
		return nil, err
	}
	return raw.(*conductor.Conductor), nil
}

// ──────────────────────────────────────────────────
// Conductor Store (auto-commit)
// ──────────────────────────────────────────────────

// CreateConductor persists a new conductor record.
func (s *Store) CreateConductor(ctx context.Context, c *conductor.Conductor) error {
	return s.update(ctx, func(t *tx) error { return t.CreateConductor(ctx, c) })
}

// GetConductorForUpdate returns a conductor record regardless of Online.
func (s *Store) GetConductorForUpdate(ctx context.Context, hostname string) (c *conductor.Conductor, err error) {
	err = s.update(ctx, func(t *tx) error {
		c, err = t.GetConductorForUpdate(ctx, hostname)
		return err
	})
	return c, err
}

// UpdateConductor overwrites a conductor record.
func (s *Store) UpdateConductor(ctx context.Context, c *conductor.Conductor) error {
	return s.update(ctx, func(t *tx) error { return t.UpdateConductor(ctx, c) })
}

// GetOnlineConductor returns an online conductor record.
func (s *Store) GetOnlineConductor(ctx context.Context, hostname string) (c *conductor.Conductor, err error) {
	err = s.view(ctx, func(t *tx) error {
		c, err = t.GetOnlineConductor(ctx, hostname)
		return err
	})
	return c, err
}

// TouchConductor records a heartbeat.
func (s *Store) TouchConductor(ctx context.Context, hostname string, at time.Time) (n int64, err error) {
	err = s.update(ctx, func(t *tx) error {
		n, err = t.TouchConductor(ctx, hostname, at)
		return err
	})
	return n, err
}

// MarkConductorOffline clears the online flag.
func (s *Store) MarkConductorOffline(ctx context.Context, hostname string, at time.Time) (n int64, err error) {
	err = s.update(ctx, func(t *tx) error {
		n, err = t.MarkConductorOffline(ctx, hostname, at)
		return err
	})
	return n, err
}

// ListConductorsSince returns online conductors heartbeating after cutoff.
func (s *Store) ListConductorsSince(ctx context.Context, cutoff time.Time) (out []*conductor.Conductor, err error) {
	err = s.view(ctx, func(t *tx) error {
		out, err = t.ListConductorsSince(ctx, cutoff)
		return err
	})
	return out, err
}

// ListConductors returns every conductor record.
func (s *Store) ListConductors(ctx context.Context) (out []*conductor.Conductor, err error) {
	err = s.view(ctx, func(t *tx) error {
		out, err = t.ListConductors(ctx)
		return err
	})
	return out, err
}
