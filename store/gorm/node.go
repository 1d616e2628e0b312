package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/xraph/warden"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
	"github.com/xraph/warden/store"
)

// CreateNode inserts a node and its NICs atomically.
func (d *db) CreateNode(ctx context.Context, n *node.Node, nics ...*nic.NIC) error {
	if n.Name == "" {
		return warden.InvalidParameter("node name must not be empty")
	}
	var id int64
	now := d.now()
	err := d.atomic(ctx, func(d *db) error {
		m := toNodeModel(n)
		m.ID, m.Reservation = 0, nil
		m.CreatedAt, m.UpdatedAt = now, now
		if err := d.with(ctx).Create(m).Error; err != nil {
			if isDuplicateKey(err) {
				return store.TranslateNodeConflict(duplicateKey(err, tableNodes, "name"), n.Name)
			}
			return wrap("create node", err)
		}
		id = m.ID

		for _, c := range nics {
			c.NodeID = id
			if err := d.CreateNIC(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	n.ID, n.Reservation = id, ""
	n.CreatedAt, n.UpdatedAt = now, now
	return nil
}

// GetNodeByID returns the node with the given id.
func (d *db) GetNodeByID(ctx context.Context, id int64) (*node.Node, error) {
	return d.getNode(d.with(ctx).Where("id = ?", id))
}

// GetNodeByName returns the node with the given name.
func (d *db) GetNodeByName(ctx context.Context, name string) (*node.Node, error) {
	return d.getNode(d.with(ctx).Where("name = ?", name))
}

func (d *db) getNode(q *gorm.DB) (*node.Node, error) {
	var m nodeModel
	if err := q.First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, warden.ErrNodeNotFound
		}
		return nil, wrap("get node", err)
	}
	return fromNodeModel(&m), nil
}

// GetNodesIn returns the named nodes matching every filter, ordered by id.
func (d *db) GetNodesIn(ctx context.Context, names []string, filters ...node.Filter) ([]*node.Node, error) {
	if len(names) == 0 {
		return nil, nil
	}
	q := d.nodeFilters(d.with(ctx).Where("name IN ?", names), filters)
	return d.findNodes(q.Order("id"), "get nodes")
}

// ListNodes returns a filtered, sorted page of nodes.
func (d *db) ListNodes(ctx context.Context, opts node.ListOpts) ([]*node.Node, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	q := d.nodeFilters(d.with(ctx), opts.Filters)
	if opts.Marker > 0 {
		q = q.Where("id > ?", opts.Marker)
	}
	return d.findNodes(page(q, opts.Page), "list nodes")
}

// FindNodes returns the selected nodes that exist, ordered by id.
func (d *db) FindNodes(ctx context.Context, sel node.Selector) ([]*node.Node, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	return d.findNodes(selectNodes(d.with(ctx), sel).Order("id"), "find nodes")
}

// SwapReservation moves the selected nodes held by from to to in one
// conditional UPDATE.
func (d *db) SwapReservation(ctx context.Context, sel node.Selector, from, to string) (int64, error) {
	if err := sel.Validate(); err != nil {
		return 0, err
	}
	q := selectNodes(d.with(ctx).Model(&nodeModel{}), sel)
	if from == "" {
		q = q.Where("reservation IS NULL")
	} else {
		q = q.Where("reservation = ?", from)
	}
	var value any = gorm.Expr("NULL")
	if to != "" {
		value = to
	}
	res := q.Updates(map[string]any{"reservation": value, "updated_at": d.now()})
	if res.Error != nil {
		return 0, wrap("swap reservation", res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateNode locks the node row and applies u.
func (d *db) UpdateNode(ctx context.Context, id int64, u node.Update) (*node.Node, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	var updated *node.Node
	err := d.atomic(ctx, func(d *db) error {
		cur, err := d.getNode(forUpdate(d.with(ctx)).Where("id = ?", id))
		if err != nil {
			return err
		}
		u.Apply(cur)
		cur.UpdatedAt = d.now()
		m := toNodeModel(cur)
		err = d.with(ctx).Model(&nodeModel{}).Where("id = ?", id).
			Select("name", "provision_state", "provision_updated_at", "attributes", "updated_at").
			Updates(m).Error
		if err != nil {
			if isDuplicateKey(err) {
				return store.TranslateNodeConflict(duplicateKey(err, tableNodes, "name"), cur.Name)
			}
			return wrap("update node", err)
		}
		updated = cur
		return nil
	})
	return updated, err
}

// DestroyNode deletes the named node and its NICs.
func (d *db) DestroyNode(ctx context.Context, name string) error {
	return d.atomic(ctx, func(d *db) error {
		cur, err := d.getNode(d.with(ctx).Where("name = ?", name))
		if err != nil {
			return err
		}
		return d.deleteNodes(ctx, []int64{cur.ID})
	})
}

// DestroyNodes deletes the nodes with the given ids and their NICs.
func (d *db) DestroyNodes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return d.atomic(ctx, func(d *db) error {
		return d.deleteNodes(ctx, ids)
	})
}

func (d *db) deleteNodes(ctx context.Context, ids []int64) error {
	if err := d.with(ctx).Where("node_id IN ?", ids).Delete(&nicModel{}).Error; err != nil {
		return wrap("destroy nics", err)
	}
	res := d.with(ctx).Where("id IN ?", ids).Delete(&nodeModel{})
	if res.Error != nil {
		return wrap("destroy nodes", res.Error)
	}
	if res.RowsAffected == 0 {
		return warden.ErrNodeNotFound
	}
	return nil
}

func (d *db) findNodes(q *gorm.DB, op string) ([]*node.Node, error) {
	var models []nodeModel
	if err := q.Find(&models).Error; err != nil {
		return nil, wrap(op, err)
	}
	return fromNodeModels(models), nil
}

func selectNodes(q *gorm.DB, sel node.Selector) *gorm.DB {
	if sel.ByID() {
		return q.Where("id IN ?", sel.IDs())
	}
	return q.Where("name IN ?", sel.Names())
}

// nodeFilters pushes every filter down into SQL.
func (d *db) nodeFilters(q *gorm.DB, filters []node.Filter) *gorm.DB {
	for _, f := range filters {
		switch f := f.(type) {
		case node.ReservedFilter:
			if f.Reserved {
				q = q.Where("reservation IS NOT NULL")
			} else {
				q = q.Where("reservation IS NULL")
			}
		case node.ReservedByAnyOfFilter:
			if len(f.Tags) == 0 {
				q = q.Where("1 = 0")
			} else {
				q = q.Where("reservation IN ?", f.Tags)
			}
		case node.ProvisionStateFilter:
			q = q.Where("provision_state = ?", f.State)
		case node.ProvisionedBeforeFilter:
			q = q.Where("provision_updated_at < ?", d.now().Add(-f.Age))
		case node.AssociatedFilter:
			exists := "EXISTS (SELECT 1 FROM warden_nics WHERE warden_nics.node_id = warden_nodes.id)"
			if !f.Associated {
				exists = "NOT " + exists
			}
			q = q.Where(exists)
		}
	}
	return q
}
