package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
	"github.com/xraph/warden/store"
)

// ──────────────────────────────────────────────────
// Node Store (transaction)
// ──────────────────────────────────────────────────

func (t *tx) CreateNode(ctx context.Context, n *node.Node, nics ...*nic.NIC) error {
	if n.Name == "" {
		return warden.InvalidParameter("node name must not be empty")
	}
	existing, err := t.txn.First(tableNodes, indexName, n.Name)
	if err != nil {
		return wrap("create node", err)
	}
	if existing != nil {
		dup := &store.DuplicateKeyError{Table: tableNodes, Columns: []string{"name"}}
		return store.TranslateNodeConflict(dup, n.Name)
	}

	id, err := t.nextID(tableNodes)
	if err != nil {
		return wrap("create node", err)
	}
	now := t.now()
	stored := n.Clone()
	stored.ID = id
	stored.Reservation = ""
	stored.CreatedAt, stored.UpdatedAt = now, now
	if err := t.txn.Insert(tableNodes, stored); err != nil {
		return wrap("create node", err)
	}

	for _, c := range nics {
		c.NodeID = id
		if err := t.CreateNIC(ctx, c); err != nil {
			// The node row is already written and memdb cannot undo it alone.
			t.abort(err)
			return err
		}
	}

	n.ID = id
	n.Reservation = ""
	n.Entity = stored.Entity
	return nil
}

func (t *tx) GetNodeByID(_ context.Context, id int64) (*node.Node, error) {
	n, err := t.nodeBy(indexID, id)
	if err != nil || n == nil {
		return nil, orNotFound(err, warden.ErrNodeNotFound)
	}
	return n.Clone(), nil
}

func (t *tx) GetNodeByName(_ context.Context, name string) (*node.Node, error) {
	n, err := t.nodeBy(indexName, name)
	if err != nil || n == nil {
		return nil, orNotFound(err, warden.ErrNodeNotFound)
	}
	return n.Clone(), nil
}

func (t *tx) GetNodesIn(_ context.Context, names []string, filters ...node.Filter) ([]*node.Node, error) {
	now := t.now()
	var out []*node.Node
	for _, name := range names {
		n, err := t.nodeBy(indexName, name)
		if err != nil {
			return nil, wrap("get nodes", err)
		}
		if n == nil || slices.ContainsFunc(out, func(o *node.Node) bool { return o.ID == n.ID }) {
			continue
		}
		ok, err := t.matchNode(n, now, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *node.Node) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) ListNodes(_ context.Context, opts node.ListOpts) ([]*node.Node, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	it, err := t.txn.Get(tableNodes, indexID)
	if err != nil {
		return nil, wrap("list nodes", err)
	}
	now := t.now()
	var out []*node.Node
	for raw := it.Next(); raw != nil; raw = it.Next() {
		n := raw.(*node.Node)
		if opts.Marker > 0 && n.ID <= opts.Marker {
			continue
		}
		ok, err := t.matchNode(n, now, opts.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n.Clone())
		}
	}
	sortNodes(out, opts.SortKey, opts.Descending())
	return limit(out, opts.Limit), nil
}

func (t *tx) FindNodes(_ context.Context, sel node.Selector) ([]*node.Node, error) {
	found, err := t.selected(sel)
	if err != nil {
		return nil, err
	}
	out := make([]*node.Node, len(found))
	for i, n := range found {
		out[i] = n.Clone()
	}
	return out, nil
}

func (t *tx) SwapReservation(_ context.Context, sel node.Selector, from, to string) (int64, error) {
	found, err := t.selected(sel)
	if err != nil {
		return 0, err
	}
	now := t.now()
	var count int64
	for _, n := range found {
		if n.Reservation != from {
			continue
		}
		cp := n.Clone()
		cp.Reservation = to
		cp.UpdatedAt = now
		if err := t.txn.Insert(tableNodes, cp); err != nil {
			return 0, wrap("swap reservation", err)
		}
		count++
	}
	return count, nil
}

func (t *tx) UpdateNode(_ context.Context, id int64, u node.Update) (*node.Node, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	cur, err := t.nodeBy(indexID, id)
	if err != nil || cur == nil {
		return nil, orNotFound(err, warden.ErrNodeNotFound)
	}
	if u.Name != nil && *u.Name != cur.Name {
		other, err := t.nodeBy(indexName, *u.Name)
		if err != nil {
			return nil, wrap("update node", err)
		}
		if other != nil {
			dup := &store.DuplicateKeyError{Table: tableNodes, Columns: []string{"name"}}
			return nil, store.TranslateNodeConflict(dup, *u.Name)
		}
	}
	cp := cur.Clone()
	u.Apply(cp)
	cp.UpdatedAt = t.now()
	if err := t.txn.Insert(tableNodes, cp); err != nil {
		return nil, wrap("update node", err)
	}
	return cp.Clone(), nil
}

func (t *tx) DestroyNode(_ context.Context, name string) error {
	n, err := t.nodeBy(indexName, name)
	if err != nil || n == nil {
		return orNotFound(err, warden.ErrNodeNotFound)
	}
	return t.deleteNode(n)
}

func (t *tx) DestroyNodes(_ context.Context, ids []int64) error {
	deleted := 0
	for _, id := range ids {
		n, err := t.nodeBy(indexID, id)
		if err != nil {
			return wrap("destroy nodes", err)
		}
		if n == nil {
			continue
		}
		if err := t.deleteNode(n); err != nil {
			return err
		}
		deleted++
	}
	if len(ids) > 0 && deleted == 0 {
		return warden.ErrNodeNotFound
	}
	return nil
}

func (t *tx) deleteNode(n *node.Node) error {
	if _, err := t.txn.DeleteAll(tableNICs, indexNodeID, n.ID); err != nil {
		return wrap("destroy node", err)
	}
	if err := t.txn.Delete(tableNodes, n); err != nil {
		return wrap("destroy node", err)
	}
	return nil
}

// nodeBy returns the stored node, or nil. The result must not be mutated.
func (t *tx) nodeBy(index string, v any) (*node.Node, error) {
	raw, err := t.txn.First(tableNodes, index, v)
	if err != nil || raw == nil {
		return nil, err
	}
	return raw.(*node.Node), nil
}

// selected returns the stored nodes matching sel, ordered by id.
func (t *tx) selected(sel node.Selector) ([]*node.Node, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	var out []*node.Node
	add := func(n *node.Node, err error) error {
		if err != nil {
			return wrap("find nodes", err)
		}
		if n != nil {
			out = append(out, n)
		}
		return nil
	}
	if sel.ByID() {
		for _, id := range sel.IDs() {
			if err := add(t.nodeBy(indexID, id)); err != nil {
				return nil, err
			}
		}
	} else {
		for _, name := range sel.Names() {
			if err := add(t.nodeBy(indexName, name)); err != nil {
				return nil, err
			}
		}
	}
	slices.SortFunc(out, func(a, b *node.Node) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) matchNode(n *node.Node, now time.Time, filters []node.Filter) (bool, error) {
	var hasNICs bool
	if node.NeedsNICs(filters) {
		raw, err := t.txn.First(tableNICs, indexNodeID, n.ID)
		if err != nil {
			return false, wrap("match node", err)
		}
		hasNICs = raw != nil
	}
	return node.Match(n, hasNICs, now, filters...), nil
}

// ──────────────────────────────────────────────────
// Node Store (auto-commit)
// ──────────────────────────────────────────────────

// CreateNode persists a new node and its NICs atomically.
func (s *Store) CreateNode(ctx context.Context, n *node.Node, nics ...*nic.NIC) error {
	return s.update(ctx, func(t *tx) error { return t.CreateNode(ctx, n, nics...) })
}

// GetNodeByID returns a node by id.
func (s *Store) GetNodeByID(ctx context.Context, id int64) (n *node.Node, err error) {
	err = s.view(ctx, func(t *tx) error {
		n, err = t.GetNodeByID(ctx, id)
		return err
	})
	return n, err
}

// GetNodeByName returns a node by name.
func (s *Store) GetNodeByName(ctx context.Context, name string) (n *node.Node, err error) {
	err = s.view(ctx, func(t *tx) error {
		n, err = t.GetNodeByName(ctx, name)
		return err
	})
	return n, err
}

// GetNodesIn returns the named nodes matching filters.
func (s *Store) GetNodesIn(ctx context.Context, names []string, filters ...node.Filter) (out []*node.Node, err error) {
	err = s.view(ctx, func(t *tx) error {
		out, err = t.GetNodesIn(ctx, names, filters...)
		return err
	})
	return out, err
}

// ListNodes returns a page of nodes.
func (s *Store) ListNodes(ctx context.Context, opts node.ListOpts) (out []*node.Node, err error) {
	err = s.view(ctx, func(t *tx) error {
		out, err = t.ListNodes(ctx, opts)
		return err
	})
	return out, err
}

// FindNodes returns the selected nodes that exist.
func (s *Store) FindNodes(ctx context.Context, sel node.Selector) (out []*node.Node, err error) {
	err = s.view(ctx, func(t *tx) error {
		out, err = t.FindNodes(ctx, sel)
		return err
	})
	return out, err
}

// SwapReservation compares and swaps the reservation of selected nodes.
func (s *Store) SwapReservation(ctx context.Context, sel node.Selector, from, to string) (n int64, err error) {
	err = s.update(ctx, func(t *tx) error {
		n, err = t.SwapReservation(ctx, sel, from, to)
		return err
	})
	return n, err
}

// UpdateNode applies a partial update.
func (s *Store) UpdateNode(ctx context.Context, id int64, u node.Update) (n *node.Node, err error) {
	err = s.update(ctx, func(t *tx) error {
		n, err = t.UpdateNode(ctx, id, u)
		return err
	})
	return n, err
}

// DestroyNode deletes a node and its NICs.
func (s *Store) DestroyNode(ctx context.Context, name string) error {
	return s.update(ctx, func(t *tx) error { return t.DestroyNode(ctx, name) })
}

// DestroyNodes deletes nodes and their NICs.
func (s *Store) DestroyNodes(ctx context.Context, ids []int64) error {
	return s.update(ctx, func(t *tx) error { return t.DestroyNodes(ctx, ids) })
}
