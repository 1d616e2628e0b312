package bunstore

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

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
		if _, err := d.idb.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
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
	return d.getNode(ctx, d.idb.NewSelect().Where("n.id = ?", id))
}

// GetNodeByName returns the node with the given name.
func (d *db) GetNodeByName(ctx context.Context, name string) (*node.Node, error) {
	return d.getNode(ctx, d.idb.NewSelect().Where("n.name = ?", name))
}

func (d *db) getNode(ctx context.Context, q *bun.SelectQuery) (*node.Node, error) {
	m := new(nodeModel)
	if err := q.Model(m).Limit(1).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, warden.ErrNodeNotFound
		}
		return nil, wrap("get node", err)
	}
	return fromNodeModel(m), nil
}

// GetNodesIn returns the named nodes matching every filter, ordered by id.
func (d *db) GetNodesIn(ctx context.Context, names []string, filters ...node.Filter) ([]*node.Node, error) {
	var models []nodeModel
	q := d.idb.NewSelect().Model(&models).
		Where("n.name = ANY(?)", pgdialect.Array(names)).
		OrderExpr("n.id ASC")
	if err := d.nodeFilters(q, filters).Scan(ctx); err != nil {
		return nil, wrap("get nodes", err)
	}
	return fromNodeModels(models), nil
}

// ListNodes returns a filtered, sorted page of nodes.
func (d *db) ListNodes(ctx context.Context, opts node.ListOpts) ([]*node.Node, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	var models []nodeModel
	q := d.nodeFilters(d.idb.NewSelect().Model(&models), opts.Filters)
	if opts.Marker > 0 {
		q = q.Where("n.id > ?", opts.Marker)
	}
	if err := orderBy(q, opts.Page).Scan(ctx); err != nil {
		return nil, wrap("list nodes", err)
	}
	return fromNodeModels(models), nil
}

// FindNodes returns the selected nodes that exist, ordered by id.
func (d *db) FindNodes(ctx context.Context, sel node.Selector) ([]*node.Node, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	var models []nodeModel
	q := d.idb.NewSelect().Model(&models).OrderExpr("n.id ASC")
	selectNodes(q.QueryBuilder(), sel)
	if err := q.Scan(ctx); err != nil {
		return nil, wrap("find nodes", err)
	}
	return fromNodeModels(models), nil
}

// SwapReservation moves the selected nodes held by from to to in one
// conditional UPDATE.
func (d *db) SwapReservation(ctx context.Context, sel node.Selector, from, to string) (int64, error) {
	if err := sel.Validate(); err != nil {
		return 0, err
	}
	q := d.idb.NewUpdate().Model((*nodeModel)(nil)).
		Set("reservation = ?", nullable(to)).
		Set("updated_at = ?", d.now()).
		Where("n.reservation IS NOT DISTINCT FROM ?::text", nullable(from))
	selectNodes(q.QueryBuilder(), sel)
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, wrap("swap reservation", err)
	}
	return rowsAffected(res), nil
}

// UpdateNode locks the node row and applies u.
func (d *db) UpdateNode(ctx context.Context, id int64, u node.Update) (*node.Node, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	var updated *node.Node
	err := d.atomic(ctx, func(d *db) error {
		cur, err := d.getNode(ctx, d.idb.NewSelect().Where("n.id = ?", id).For("UPDATE"))
		if err != nil {
			return err
		}
		u.Apply(cur)
		cur.UpdatedAt = d.now()
		_, err = d.idb.NewUpdate().Model(toNodeModel(cur)).
			Column("name", "provision_state", "provision_updated_at", "attributes", "updated_at").
			WherePK().
			Exec(ctx)
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

// DestroyNode deletes the named node; the foreign key cascades to its NICs.
func (d *db) DestroyNode(ctx context.Context, name string) error {
	res, err := d.idb.NewDelete().Model((*nodeModel)(nil)).Where("name = ?", name).Exec(ctx)
	if err != nil {
		return wrap("destroy node", err)
	}
	if rowsAffected(res) == 0 {
		return warden.ErrNodeNotFound
	}
	return nil
}

// DestroyNodes deletes the nodes with the given ids.
func (d *db) DestroyNodes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := d.idb.NewDelete().Model((*nodeModel)(nil)).
		Where("id = ANY(?)", pgdialect.Array(ids)).
		Exec(ctx)
	if err != nil {
		return wrap("destroy nodes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("destroy nodes", err)
	}
	if n == 0 {
		return warden.ErrNodeNotFound
	}
	return nil
}

func selectNodes(qb bun.QueryBuilder, sel node.Selector) {
	if sel.ByID() {
		qb.Where("n.id = ANY(?)", pgdialect.Array(sel.IDs()))
		return
	}
	qb.Where("n.name = ANY(?)", pgdialect.Array(sel.Names()))
}

// nodeFilters pushes every filter down into SQL.
func (d *db) nodeFilters(q *bun.SelectQuery, filters []node.Filter) *bun.SelectQuery {
	for _, f := range filters {
		switch f := f.(type) {
		case node.ReservedFilter:
			if f.Reserved {
				q = q.Where("n.reservation IS NOT NULL")
			} else {
				q = q.Where("n.reservation IS NULL")
			}
		case node.ReservedByAnyOfFilter:
			q = q.Where("n.reservation = ANY(?::text[])", pgdialect.Array(f.Tags))
		case node.ProvisionStateFilter:
			q = q.Where("n.provision_state = ?", f.State)
		case node.ProvisionedBeforeFilter:
			q = q.Where("n.provision_updated_at < ?", d.now().Add(-f.Age))
		case node.AssociatedFilter:
			exists := "EXISTS (SELECT 1 FROM warden_nics AS c WHERE c.node_id = n.id)"
			if !f.Associated {
				exists = "NOT " + exists
			}
			q = q.Where(exists)
		}
	}
	return q
}
