package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/warden"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/store"
)

// CreateNIC inserts a NIC owned by an existing node.
func (d *db) CreateNIC(ctx context.Context, n *nic.NIC) error {
	if err := n.Prepare(); err != nil {
		return err
	}
	return d.atomic(ctx, func(ctx context.Context, d *db) error {
		owners, err := d.col(colNodes).CountDocuments(ctx, bson.M{"_id": n.NodeID})
		if err != nil {
			return wrap("create nic", err)
		}
		if owners == 0 {
			return warden.ErrNodeNotFound
		}
		id, err := d.nextID(ctx, colNICs)
		if err != nil {
			return err
		}
		now := d.now()
		m := toNICModel(n)
		m.ID = id
		m.CreatedAt, m.UpdatedAt = now, now
		if _, err := d.col(colNICs).InsertOne(ctx, m); err != nil {
			if isDuplicateKey(err) {
				return store.TranslateNICConflict(duplicateKey(err, colNICs, "address", "uuid"), n.Address, n.UUID)
			}
			return wrap("create nic", err)
		}
		n.ID = id
		n.CreatedAt, n.UpdatedAt = now, now
		return nil
	})
}

func (d *db) GetNICByID(ctx context.Context, id int64) (*nic.NIC, error) {
	return d.getNIC(ctx, bson.M{"_id": id})
}

func (d *db) GetNICByUUID(ctx context.Context, uuid string) (*nic.NIC, error) {
	return d.getNIC(ctx, bson.M{"uuid": uuid})
}

func (d *db) GetNICByAddress(ctx context.Context, address string) (*nic.NIC, error) {
	addr, err := nic.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return d.getNIC(ctx, bson.M{"address": addr})
}

func (d *db) getNIC(ctx context.Context, filter bson.M) (*nic.NIC, error) {
	var m nicModel
	if err := d.col(colNICs).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, warden.ErrNICNotFound
		}
		return nil, wrap("get nic", err)
	}
	return fromNICModel(&m), nil
}

// ListNICs returns a page of NICs across all nodes.
func (d *db) ListNICs(ctx context.Context, opts nic.ListOpts) ([]*nic.NIC, error) {
	return d.listNICs(ctx, opts, bson.M{})
}

// ListNICsByNode returns a page of the NICs owned by nodeID.
func (d *db) ListNICsByNode(ctx context.Context, nodeID int64, opts nic.ListOpts) ([]*nic.NIC, error) {
	return d.listNICs(ctx, opts, bson.M{"node_id": nodeID})
}

func (d *db) listNICs(ctx context.Context, opts nic.ListOpts, filter bson.M) ([]*nic.NIC, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	if opts.Marker > 0 {
		filter["_id"] = bson.M{"$gt": opts.Marker}
	}
	cursor, err := d.col(colNICs).Find(ctx, filter, findPage(opts.Page))
	if err != nil {
		return nil, wrap("list nics", err)
	}
	defer cursor.Close(ctx)

	var models []nicModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrap("list nics decode", err)
	}
	out := make([]*nic.NIC, 0, len(models))
	for i := range models {
		out = append(out, fromNICModel(&models[i]))
	}
	return out, nil
}

// UpdateNIC applies u inside a transaction. The UUID is immutable.
func (d *db) UpdateNIC(ctx context.Context, ident nic.Ident, u nic.Update) (*nic.NIC, error) {
	var updated *nic.NIC
	err := d.atomic(ctx, func(ctx context.Context, d *db) error {
		cur, err := d.getNIC(ctx, identFilter(ident))
		if err != nil {
			return err
		}
		if u, err = u.Normalize(cur); err != nil {
			return err
		}
		u.Apply(cur)
		cur.UpdatedAt = d.now()
		_, err = d.col(colNICs).UpdateOne(ctx, bson.M{"_id": cur.ID}, bson.M{"$set": bson.M{
			"address":    cur.Address,
			"attributes": cur.Attributes,
			"updated_at": cur.UpdatedAt,
		}})
		if err != nil {
			if isDuplicateKey(err) {
				return store.TranslateNICConflict(duplicateKey(err, colNICs, "address", "uuid"), cur.Address, cur.UUID)
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
	res, err := d.col(colNICs).DeleteOne(ctx, identFilter(ident))
	if err != nil {
		return wrap("destroy nic", err)
	}
	if res.DeletedCount == 0 {
		return warden.ErrNICNotFound
	}
	return nil
}

func identFilter(ident nic.Ident) bson.M {
	if ident.Address != "" {
		return bson.M{"address": ident.Address}
	}
	return bson.M{"_id": ident.ID}
}

