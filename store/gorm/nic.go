package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/xraph/warden"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/store"
)

// CreateNIC inserts a NIC owned by an existing node.
func (d *db) CreateNIC(ctx context.Context, n *nic.NIC) error {
	if err := n.Prepare(); err != nil {
		return err
	}
	return d.atomic(ctx, func(d *db) error {
		var owners int64
		if err := d.with(ctx).Model(&nodeModel{}).Where("id = ?", n.NodeID).Count(&owners).Error; err != nil {
			return wrap("create nic", err)
		}
		if owners == 0 {
			return warden.ErrNodeNotFound
		}
		now := d.now()
		m := toNICModel(n)
		m.ID = 0
		m.CreatedAt, m.UpdatedAt = now, now
		if err := d.with(ctx).Create(m).Error; err != nil {
			if isDuplicateKey(err) {
				return store.TranslateNICConflict(duplicateKey(err, tableNICs, "address", "uuid"), n.Address, n.UUID)
			}
			return wrap("create nic", err)
		}
		n.ID = m.ID
		n.CreatedAt, n.UpdatedAt = now, now
		return nil
	})
}

func (d *db) GetNICByID(ctx context.Context, id int64) (*nic.NIC, error) {
	return d.getNIC(d.with(ctx).Where("id = ?", id))
}

func (d *db) GetNICByUUID(ctx context.Context, uuid string) (*nic.NIC, error) {
	return d.getNIC(d.with(ctx).Where("uuid = ?", uuid))
}

func (d *db) GetNICByAddress(ctx context.Context, address string) (*nic.NIC, error) {
	addr, err := nic.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return d.getNIC(d.with(ctx).Where("address = ?", addr))
}

func (d *db) getNIC(q *gorm.DB) (*nic.NIC, error) {
	var m nicModel
	if err := q.First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, warden.ErrNICNotFound
		}
		return nil, wrap("get nic", err)
	}
	return fromNICModel(&m), nil
}

// ListNICs returns a page of NICs across all nodes.
func (d *db) ListNICs(ctx context.Context, opts nic.ListOpts) ([]*nic.NIC, error) {
	return d.listNICs(d.with(ctx), opts)
}

// ListNICsByNode returns a page of the NICs owned by nodeID.
func (d *db) ListNICsByNode(ctx context.Context, nodeID int64, opts nic.ListOpts) ([]*nic.NIC, error) {
	return d.listNICs(d.with(ctx).Where("node_id = ?", nodeID), opts)
}

func (d *db) listNICs(q *gorm.DB, opts nic.ListOpts) ([]*nic.NIC, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	if opts.Marker > 0 {
		q = q.Where("id > ?", opts.Marker)
	}
	var models []nicModel
	if err := page(q, opts.Page).Find(&models).Error; err != nil {
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
		cur, err := d.getNIC(whereIdent(forUpdate(d.with(ctx)), ident))
		if err != nil {
			return err
		}
		if u, err = u.Normalize(cur); err != nil {
			return err
		}
		u.Apply(cur)
		cur.UpdatedAt = d.now()
		err = d.with(ctx).Model(&nicModel{}).Where("id = ?", cur.ID).
			Select("address", "attributes", "updated_at").
			Updates(toNICModel(cur)).Error
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
	res := whereIdent(d.with(ctx), ident).Delete(&nicModel{})
	if res.Error != nil {
		return wrap("destroy nic", res.Error)
	}
	if res.RowsAffected == 0 {
		return warden.ErrNICNotFound
	}
	return nil
}

func whereIdent(q *gorm.DB, ident nic.Ident) *gorm.DB {
	if ident.Address != "" {
		return q.Where("address = ?", ident.Address)
	}
	return q.Where("id = ?", ident.ID)
}
