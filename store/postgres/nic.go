package postgres

import (
	"context"

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
	err := d.q.QueryRow(ctx, `
		INSERT INTO warden_nics (uuid, address, node_id, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id`,
		n.UUID, n.Address, n.NodeID, n.Attributes, now,
	).Scan(&n.ID)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return warden.ErrNodeNotFound
		case isUniqueViolation(err):
			return store.TranslateNICConflict(duplicateKey(err, tableNICs, "address", "uuid"), n.Address, n.UUID)
		}
		return wrap("create nic", err)
	}
	n.CreatedAt, n.UpdatedAt = now, now
	return nil
}

func (d *db) GetNICByID(ctx context.Context, id int64) (*nic.NIC, error) {
	return d.getNIC(ctx, "id", id, "")
}

func (d *db) GetNICByUUID(ctx context.Context, uuid string) (*nic.NIC, error) {
	return d.getNIC(ctx, "uuid", uuid, "")
}

func (d *db) GetNICByAddress(ctx context.Context, address string) (*nic.NIC, error) {
	addr, err := nic.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return d.getNIC(ctx, "address", addr, "")
}

func (d *db) getNIC(ctx context.Context, column string, v any, suffix string) (*nic.NIC, error) {
	n, err := scanNIC(d.q.QueryRow(ctx,
		`SELECT `+nicColumns+` FROM warden_nics WHERE `+column+` = $1`+suffix, v))
	if err != nil {
		if isNoRows(err) {
			return nil, warden.ErrNICNotFound
		}
		return nil, wrap("get nic", err)
	}
	return n, nil
}

// ListNICs returns a page of NICs across all nodes.
func (d *db) ListNICs(ctx context.Context, opts nic.ListOpts) ([]*nic.NIC, error) {
	return d.listNICs(ctx, opts, &where{})
}

// ListNICsByNode returns a page of the NICs owned by nodeID.
func (d *db) ListNICsByNode(ctx context.Context, nodeID int64, opts nic.ListOpts) ([]*nic.NIC, error) {
	w := &where{}
	w.and("node_id = " + w.arg(nodeID))
	return d.listNICs(ctx, opts, w)
}

func (d *db) listNICs(ctx context.Context, opts nic.ListOpts, w *where) ([]*nic.NIC, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	if opts.Marker > 0 {
		w.and("id > " + w.arg(opts.Marker))
	}
	tail := w.orderBy(opts.Page)
	rows, err := d.q.Query(ctx, `SELECT `+nicColumns+` FROM warden_nics`+w.String()+tail, w.args...)
	if err != nil {
		return nil, wrap("list nics", err)
	}
	nics, err := collectNICs(rows)
	if err != nil {
		return nil, wrap("list nics", err)
	}
	return nics, nil
}

// UpdateNIC locks the NIC row and applies u. The UUID is immutable.
func (d *db) UpdateNIC(ctx context.Context, ident nic.Ident, u nic.Update) (*nic.NIC, error) {
	var updated *nic.NIC
	err := d.atomic(ctx, func(d *db) error {
		cur, err := d.nicForUpdate(ctx, ident)
		if err != nil {
			return err
		}
		if u, err = u.Normalize(cur); err != nil {
			return err
		}
		u.Apply(cur)
		cur.UpdatedAt = d.now()
		_, err = d.q.Exec(ctx, `
			UPDATE warden_nics SET address = $2, attributes = $3, updated_at = $4
			WHERE id = $1`,
			cur.ID, cur.Address, cur.Attributes, cur.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
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
	column, v := identColumn(ident)
	tag, err := d.q.Exec(ctx, `DELETE FROM warden_nics WHERE `+column+` = $1`, v)
	if err != nil {
		return wrap("destroy nic", err)
	}
	if tag.RowsAffected() == 0 {
		return warden.ErrNICNotFound
	}
	return nil
}

func (d *db) nicForUpdate(ctx context.Context, ident nic.Ident) (*nic.NIC, error) {
	column, v := identColumn(ident)
	return d.getNIC(ctx, column, v, " FOR UPDATE")
}

func identColumn(ident nic.Ident) (string, any) {
	if ident.Address != "" {
		return "address", ident.Address
	}
	return "id", ident.ID
}
