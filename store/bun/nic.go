package bunstore

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/xraph/warden"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/store"
)

// CreateNIC inserts a NIC owned by an existing node.
func (d *db) CreateNIC(ctx context.Context, n *nic.NIC) error {
	if err := n.Prepare(); err != nil {
		return err
	}
	now := d.now()
	m := toNICModel(n)
	m.ID = 0
	m.CreatedAt, m.UpdatedAt = now, now
	if _, err := d.idb.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		switch {
		case isForeignKeyViolation(err):
			return warden.ErrNodeNotFound
		case isDuplicateKey(err):
			return store.TranslateNICConflict(duplicateKey(err, tableNICs, "address", "uuid"), n.Address, n.UUID)
		}
		return wrap("create nic", err)
	}
	n.ID = m.ID
	n.CreatedAt, n.UpdatedAt = now, now
	return nil
}

func (d *db) GetNICByID(ctx context.Context, id int64) (*nic.NIC, error) {
	return d.getNIC(ctx, d.idb.NewSelect().Where("c.id = ?", id))
}

func (d *db) GetNICByUUID(ctx context.Context, uuid string) (*nic.NIC, error) {
	return d.getNIC(ctx, d.idb.NewSelect().Where("c.uuid = ?", uuid))
}

func (d *db) GetNICByAddress(ctx context.Context, address string) (*nic.NIC, error) {
	addr, err := nic.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return d.getNIC(ctx, d.idb.NewSelect().Where("c.address = ?", addr))
}

func (d *db) getNIC(ctx context.Context, q *bun.SelectQuery) (*nic.NIC, error) {
	m := new(nicModel)
	if err := q.Model(m).Limit(1).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, warden.ErrNICNotFound
		}
		return nil, wrap("get nic", err)
	}
	return fromNICModel(m), nil
}

// ListNICs returns a page of NICs across all nodes.
func (d *db) ListNICs(ctx context.Context, opts nic.ListOpts) ([]*nic.NIC, error) {
	return d.listNICs(ctx, opts, d.idb.NewSelect())
}

// ListNICsByNode returns a page of the NICs owned by nodeID.
func (d *db) ListNICsByNode(ctx context.Context, nodeID int64, opts nic.ListOpts) ([]*nic.NIC, error) {
	return d.listNICs(ctx, opts, d.idb.NewSelect().Where("c.node_id = ?", nodeID))
}

func (d *db) listNICs(ctx context.Context, opts nic.ListOpts, q *bun.SelectQuery) ([]*nic.NIC, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	var models []nicModel
	q = q.Model(&models)
	if opts.Marker > 0 {
		q = q.Where("c.id > ?", opts.Marker)
	}
	if err := orderBy(q, opts.Page).Scan(ctx); err != nil {
		return nil, wrap("list nics", err)
	}
	out := make([]*nic.NIC, 0, len(models))
	for i := range models {
		out = append(out, fromNICModel(&models[i]))
	}
	return out, nil
}

// UpdateNIC locks the NIC row and applies u. The UUID is immutable.
func (d *db) UpdateNIC(ctx context.Context, ident nic.Ident, u nic.Update) (*nic.NIC, error) {
	var updated *nic.NIC
	err := d.atomic(ctx, func(d *db) error {
		cur, err := d.getNIC(ctx, whereIdent(d.idb.NewSelect(), ident).For("UPDATE"))
		if err != nil {
			return err
		}
		if u, err = u.Normalize(cur); err != nil {
			return err
		}
		u.Apply(cur)
		cur.UpdatedAt = d.now()
		_, err = d.idb.NewUpdate().Model(toNICModel(cur)).
			Column("address", "attributes", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			if isDuplicateKey(err) {
				return store.TranslateNICConflict(duplicateKey(err, tableNICs, "address", "uuid"), cur.Address, cur.UUID)
			}
			return wrap("update nic", err)
		}
		updated = cur
		return nil
	})
	return updated, err
}

// DestroyNIC deletes one NIC.
func (d *db) DestroyNIC(ctx context.Context, ident nic.Ident) error {
	q := d.idb.NewDelete().Model((*nicModel)(nil))
	if ident.Address != "" {
		q = q.Where("address = ?", ident.Address)
	} else {
		q = q.Where("id = ?", ident.ID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return wrap("destroy nic", err)
	}
	if rowsAffected(res) == 0 {
		return warden.ErrNICNotFound
	}
	return nil
}

func whereIdent(q *bun.SelectQuery, ident nic.Ident) *bun.SelectQuery {
	if ident.Address != "" {
		return q.Where("c.address = ?", ident.Address)
	}
	return q.Where("c.id = ?", ident.ID)
}

