package memory

import (
	"context"

	"github.com/xraph/warden"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/store"
)

// ──────────────────────────────────────────────────
// NIC Store (transaction)
// ──────────────────────────────────────────────────

func (t *tx) CreateNIC(_ context.Context, n *nic.NIC) error {
	if err := n.Prepare(); err != nil {
		return err
	}
	owner, err := t.nodeBy(indexID, n.NodeID)
	if err != nil {
		return wrap("create nic", err)
	}
	if owner == nil {
		return warden.ErrNodeNotFound
	}
	for _, idx := range []struct{ index, value string }{
		{indexAddress, n.Address},
		{indexUUID, n.UUID},
	} {
		existing, err := t.txn.First(tableNICs, idx.index, idx.value)
		if err != nil {
			return wrap("create nic", err)
		}
		if existing != nil {
			dup := &store.DuplicateKeyError{Table: tableNICs, Columns: []string{idx.index}}
			return store.TranslateNICConflict(dup, n.Address, n.UUID)
		}
	}

	id, err := t.nextID(tableNICs)
	if err != nil {
		return wrap("create nic", err)
	}
	now := t.now()
	n.ID = id
	n.CreatedAt, n.UpdatedAt = now, now
	if err := t.txn.Insert(tableNICs, n.Clone()); err != nil {
		return wrap("create nic", err)
	}
	return nil
}

func (t *tx) GetNICByID(_ context.Context, id int64) (*nic.NIC, error) {
	return t.nicClone(indexID, id)
}

func (t *tx) GetNICByUUID(_ context.Context, uuid string) (*nic.NIC, error) {
	return t.nicClone(indexUUID, uuid)
}

func (t *tx) GetNICByAddress(_ context.Context, address string) (*nic.NIC, error) {
	addr, err := nic.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return t.nicClone(indexAddress, addr)
}

func (t *tx) ListNICs(_ context.Context, opts nic.ListOpts) ([]*nic.NIC, error) {
	return t.listNICs(opts, indexID)
}

func (t *tx) ListNICsByNode(_ context.Context, nodeID int64, opts nic.ListOpts) ([]*nic.NIC, error) {
	return t.listNICs(opts, indexNodeID, nodeID)
}

func (t *tx) listNICs(opts nic.ListOpts, index string, args ...any) ([]*nic.NIC, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	it, err := t.txn.Get(tableNICs, index, args...)
	if err != nil {
		return nil, wrap("list nics", err)
	}
	var out []*nic.NIC
	for raw := it.Next(); raw != nil; raw = it.Next() {
		n := raw.(*nic.NIC)
		if opts.Marker > 0 && n.ID <= opts.Marker {
			continue
		}
		out = append(out, n.Clone())
	}
	sortNICs(out, opts.SortKey, opts.Descending())
	return limit(out, opts.Limit), nil
}

func (t *tx) UpdateNIC(_ context.Context, ident nic.Ident, u nic.Update) (*nic.NIC, error) {
	cur, err := t.nicByIdent(ident)
	if err != nil {
		return nil, err
	}
	u, err = u.Normalize(cur)
	if err != nil {
		return nil, err
	}
	if u.Address != nil && *u.Address != cur.Address {
		other, err := t.nicBy(indexAddress, *u.Address)
		if err != nil {
			return nil, wrap("update nic", err)
		}
		if other != nil {
			dup := &store.DuplicateKeyError{Table: tableNICs, Columns: []string{"address"}}
			return nil, store.TranslateNICConflict(dup, *u.Address, cur.UUID)
		}
	}
	cp := cur.Clone()
	u.Apply(cp)
	cp.UpdatedAt = t.now()
	if err := t.txn.Insert(tableNICs, cp); err != nil {
		return nil, wrap("update nic", err)
	}
	return cp.Clone(), nil
}

func (t *tx) DestroyNIC(_ context.Context, ident nic.Ident) error {
	cur, err := t.nicByIdent(ident)
	if err != nil {
		return err
	}
	if err := t.txn.Delete(tableNICs, cur); err != nil {
		return wrap("destroy nic", err)
	}
	return nil
}

func (t *tx) nicBy(index string, v any) (*nic.NIC, error) {
	raw, err := t.txn.First(tableNICs, index, v)
	if err != nil || raw == nil {
		return nil, err
	}
	return raw.(*nic.NIC), nil
}

func (t *tx) nicClone(index string, v any) (*nic.NIC, error) {
	n, err := t.nicBy(index, v)
	if err != nil || n == nil {
		return nil, orNotFound(err, warden.ErrNICNotFound)
	}
	return n.Clone(), nil
}

func (t *tx) nicByIdent(ident nic.Ident) (*nic.NIC, error) {
	var (
		n   *nic.NIC
		err error
	)
	if ident.Address != "" {
		n, err = t.nicBy(indexAddress, ident.Address)
	} else {
		n, err = t.nicBy(indexID, ident.ID)
	}
	if err != nil || n == nil {
		return nil, orNotFound(err, warden.ErrNICNotFound)
	}
	return n, nil
}

// orNotFound wraps a memdb failure, or returns notFound when err is nil.
func orNotFound(err, notFound error) error {
	if err != nil {
		return wrap("lookup", err)
	}
	return notFound
}

// ──────────────────────────────────────────────────
// NIC Store (auto-commit)
// ──────────────────────────────────────────────────

// CreateNIC persists a new NIC.
func (s *Store) CreateNIC(ctx context.Context, n *nic.NIC) error {
	return s.update(ctx, func(t *tx) error { return t.CreateNIC(ctx, n) })
}

// GetNICByID returns a NIC by id.
func (s *Store) GetNICByID(ctx context.Context, id int64) (n *nic.NIC, err error) {
	err = s.view(ctx, func(t *tx) error {
		n, err = t.GetNICByID(ctx, id)
		return err
	})
	return n, err
}

// GetNICByUUID returns a NIC by UUID.
func (s *Store) GetNICByUUID(ctx context.Context, uuid string) (n *nic.NIC, err error) {
	err = s.view(ctx, func(t *tx) error {
		n, err = t.GetNICByUUID(ctx, uuid)
		return err
	})
	return n, err
}

// GetNICByAddress returns a NIC by MAC address.
func (s *Store) GetNICByAddress(ctx context.Context, address string) (n *nic.NIC, err error) {
	err = s.view(ctx, func(t *tx) error {
		n, err = t.GetNICByAddress(ctx, address)
		return err
	})
	return n, err
}

// ListNICs returns a page of NICs.
func (s *Store) ListNICs(ctx context.Context, opts nic.ListOpts) (out []*nic.NIC, err error) {
	err = s.view(ctx, func(t *tx) error {
		out, err = t.ListNICs(ctx, opts)
		return err
	})
	return out, err
}

// ListNICsByNode returns a page of the NICs owned by a node.
func (s *Store) ListNICsByNode(ctx context.Context, nodeID int64, opts nic.ListOpts) (out []*nic.NIC, err error) {
	err = s.view(ctx, func(t *tx) error {
		out, err = t.ListNICsByNode(ctx, nodeID, opts)
		return err
	})
	return out, err
}

// UpdateNIC applies a partial update.
func (s *Store) UpdateNIC(ctx context.Context, ident nic.Ident, u nic.Update) (n *nic.NIC, err error) {
	err = s.update(ctx, func(t *tx) error {
		n, err = t.UpdateNIC(ctx, ident, u)
		return err
	})
	return n, err
}

// DestroyNIC deletes a NIC.
func (s *Store) DestroyNIC(ctx context.Context, ident nic.Ident) error {
	return s.update(ctx, func(t *tx) error { return t.DestroyNIC(ctx, ident) })
}
