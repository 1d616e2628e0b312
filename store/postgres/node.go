package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/warden"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
	"github.com/xraph/warden/store"
)

// CreateNode inserts a node and its NICs in one transaction (a savepoint
// when already inside one).
func (d *db) CreateNode(ctx context.Context, n *node.Node, nics ...*nic.NIC) error {
	if n.Name == "" {
		return warden.InvalidParameter("node name must not be empty")
	}
	var id int64
	now := d.now()
	err := d.atomic(ctx, func(d *db) error {
		err := d.q.QueryRow(ctx, `
			INSERT INTO warden_nodes (
				name, provision_state, provision_updated_at, attributes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING id`,
			n.Name, n.ProvisionState, n.ProvisionUpdatedAt, n.Attributes, now,
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err) {
				return store.TranslateNodeConflict(duplicateKey(err, tableNodes, "name"), n.Name)
			}
			return wrap("create node", err)
		}
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
	return d.getNode(ctx, "id", id)
}

// GetNodeByName returns the node with the given name.
func (d *db) GetNodeByName(ctx context.Context, name string) (*node.Node, error) {
	return d.getNode(ctx, "name", name)
}

func (d *db) getNode(ctx context.Context, column string, v any) (*node.Node, error) {
	n, err := scanNode(d.q.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM warden_nodes WHERE `+column+` = $1`, v))
	if err != nil {
		if isNoRows(err) {
			return nil, warden.ErrNodeNotFound
		}
		return nil, wrap("get node", err)
	}
	return n, nil
}

// GetNodesIn returns the named nodes matching every filter, ordered by id.
func (d *db) GetNodesIn(ctx context.Context, names []string, filters ...node.Filter) ([]*node.Node, error) {
	w := &where{}
	w.and("name = ANY(" + w.arg(names) + ")")
	d.nodeFilters(w, filters)
	return d.queryNodes(ctx, "get nodes", w, " ORDER BY id")
}

// ListNodes returns a filtered, sorted page of nodes.
func (d *db) ListNodes(ctx context.Context, opts node.ListOpts) ([]*node.Node, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	w := &where{}
	d.nodeFilters(w, opts.Filters)
	if opts.Marker > 0 {
		w.and("id > " + w.arg(opts.Marker))
	}
	return d.queryNodes(ctx, "list nodes", w, w.orderBy(opts.Page))
}

// FindNodes returns the selected nodes that exist, ordered by id.
func (d *db) FindNodes(ctx context.Context, sel node.Selector) ([]*node.Node, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	w := &where{}
	selectNodes(w, sel)
	return d.queryNodes(ctx, "find nodes", w, " ORDER BY id")
}

// SwapReservation moves the selected nodes held by from to to in one
// conditional UPDATE.
func (d *db) SwapReservation(ctx context.Context, sel node.Selector, from, to string) (int64, error) {
	if err := sel.Validate(); err != nil {
		return 0, err
	}
	w := &where{}
	set := fmt.Sprintf("reservation = %s, updated_at = %s", w.arg(nullable(to)), w.arg(d.now()))
	selectNodes(w, sel)
	w.and("reservation IS NOT DISTINCT FROM " + w.arg(nullable(from)) + "::text")

	tag, err := d.q.Exec(ctx, `UPDATE warden_nodes SET `+set+w.String(), w.args...)
	if err != nil {
		return 0, wrap("swap reservation", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateNode locks the node row and applies u.
func (d *db) UpdateNode(ctx context.Context, id int64, u node.Update) (*node.Node, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	var updated *node.Node
	err := d.atomic(ctx, func(d *db) error {
		cur, err := scanNode(d.q.QueryRow(ctx,
			`SELECT `+nodeColumns+` FROM warden_nodes WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if isNoRows(err) {
				return warden.ErrNodeNotFound
			}
			return wrap("update node", err)
		}
		u.Apply(cur)
		cur.UpdatedAt = d.now()
		_, err = d.q.Exec(ctx, `
			UPDATE warden_nodes SET
				name = $2, provision_state = $3, provision_updated_at = $4,
				attributes = $5, updated_at = $6
			WHERE id = $1`,
			cur.ID, cur.Name, cur.ProvisionState, cur.ProvisionUpdatedAt,
			cur.Attributes, cur.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return store.TranslateNodeConflict(duplicateKey(err, tableNodes, "name"), cur.Name)
			}
			return wrap("update node", err)
		}
		updated = cur
		return nil
	})
	return updated, err
}

// DestroyNode deletes the named node; its NICs go with it through the
// ON DELETE CASCADE foreign key.
func (d *db) DestroyNode(ctx context.Context, name string) error {
	tag, err := d.q.Exec(ctx, `DELETE FROM warden_nodes WHERE name = $1`, name)
	if err != nil {
		return wrap("destroy node", err)
	}
	if tag.RowsAffected() == 0 {
		return warden.ErrNodeNotFound
	}
	return nil
}

// DestroyNodes deletes the nodes with the given ids.
func (d *db) DestroyNodes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tag, err := d.q.Exec(ctx, `DELETE FROM warden_nodes WHERE id = ANY($1)`, ids)
	if err != nil {
		return wrap("destroy nodes", err)
	}
	if tag.RowsAffected() == 0 {
		return warden.ErrNodeNotFound
	}
	return nil
}

func (d *db) queryNodes(ctx context.Context, op string, w *where, tail string) ([]*node.Node, error) {
	rows, err := d.q.Query(ctx, `SELECT `+nodeColumns+` FROM warden_nodes`+w.String()+tail, w.args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	nodes, err := collectNodes(rows)
	if err != nil {
		return nil, wrap(op, err)
	}
	return nodes, nil
}

// selectNodes restricts w to the nodes named by sel.
func selectNodes(w *where, sel node.Selector) {
	if sel.ByID() {
		w.and("id = ANY(" + w.arg(sel.IDs()) + ")")
		return
	}
	w.and("name = ANY(" + w.arg(sel.Names()) + ")")
}

// nodeFilters pushes every filter down into SQL.
func (d *db) nodeFilters(w *where, filters []node.Filter) {
	for _, f := range filters {
		switch f := f.(type) {
		case node.ReservedFilter:
			if f.Reserved {
				w.and("reservation IS NOT NULL")
			} else {
				w.and("reservation IS NULL")
			}
		case node.ReservedByAnyOfFilter:
			w.and("reservation = ANY(" + w.arg(f.Tags) + "::text[])")
		case node.ProvisionStateFilter:
			w.and("provision_state = " + w.arg(f.State))
		case node.ProvisionedBeforeFilter:
			w.and("provision_updated_at < " + w.arg(d.now().Add(-f.Age)))
		case node.AssociatedFilter:
			exists := "EXISTS (SELECT 1 FROM warden_nics c WHERE c.node_id = warden_nodes.id)"
			if !f.Associated {
				exists = "NOT " + exists
			}
			w.and(exists)
		}
	}
}
