package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/warden"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
	"github.com/xraph/warden/query"
	"github.com/xraph/warden/store"
)

// CreateNode inserts a node and its NICs in one transaction.
func (d *db) CreateNode(ctx context.Context, n *node.Node, nics ...*nic.NIC) error {
	if n.Name == "" {
		return warden.InvalidParameter("node name must not be empty")
	}
	var id int64
	now := d.now()
	err := d.atomic(ctx, func(ctx context.Context, d *db) error {
		var err error
		if id, err = d.nextID(ctx, colNodes); err != nil {
			return err
		}
		m := toNodeModel(n)
		m.ID, m.Reservation = id, nil
		m.CreatedAt, m.UpdatedAt = now, now
		if _, err := d.col(colNodes).InsertOne(ctx, m); err != nil {
			if isDuplicateKey(err) {
				return store.TranslateNodeConflict(duplicateKey(err, colNodes, "name"), n.Name)
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
	return d.getNode(ctx, bson.M{"_id": id})
}

// GetNodeByName returns the node with the given name.
func (d *db) GetNodeByName(ctx context.Context, name string) (*node.Node, error) {
	return d.getNode(ctx, bson.M{"name": name})
}

func (d *db) getNode(ctx context.Context, filter bson.M) (*node.Node, error) {
	var m nodeModel
	if err := d.col(colNodes).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
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
	filter, err := d.nodeFilter(ctx, filters)
	if err != nil {
		return nil, err
	}
	filter["name"] = bson.M{"$in": names}
	return d.findNodes(ctx, "get nodes", filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// ListNodes returns a filtered, sorted page of nodes.
func (d *db) ListNodes(ctx context.Context, opts node.ListOpts) ([]*node.Node, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	filter, err := d.nodeFilter(ctx, opts.Filters)
	if err != nil {
		return nil, err
	}
	if opts.Marker > 0 {
		filter = bson.M{"$and": bson.A{filter, bson.M{"_id": bson.M{"$gt": opts.Marker}}}}
	}
	return d.findNodes(ctx, "list nodes", filter, findPage(opts.Page))
}

// FindNodes returns the selected nodes that exist, ordered by id.
func (d *db) FindNodes(ctx context.Context, sel node.Selector) ([]*node.Node, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	return d.findNodes(ctx, "find nodes", selectNodes(sel),
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// SwapReservation moves the selected nodes held by from to to with one
// conditional UpdateMany.
func (d *db) SwapReservation(ctx context.Context, sel node.Selector, from, to string) (int64, error) {
	if err := sel.Validate(); err != nil {
		return 0, err
	}
	filter := selectNodes(sel)
	filter["reservation"] = reservationValue(from)
	res, err := d.col(colNodes).UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"reservation": reservationValue(to),
		"updated_at":  d.now(),
	}})
	if err != nil {
		return 0, wrap("swap reservation", err)
	}
	return res.MatchedCount, nil
}

// UpdateNode reads the node and applies u inside a transaction.
func (d *db) UpdateNode(ctx context.Context, id int64, u node.Update) (*node.Node, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	var updated *node.Node
	err := d.atomic(ctx, func(ctx context.Context, d *db) error {
		cur, err := d.getNode(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		u.Apply(cur)
		cur.UpdatedAt = d.now()
		m := toNodeModel(cur)
		_, err = d.col(colNodes).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
			"name":                 m.Name,
			"provision_state":      m.ProvisionState,
			"provision_updated_at": m.ProvisionUpdatedAt,
			"attributes":           m.Attributes,
			"updated_at":           m.UpdatedAt,
		}})
		if err != nil {
			if isDuplicateKey(err) {
				return store.TranslateNodeConflict(duplicateKey(err, colNodes, "name"), cur.Name)
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
	return d.atomic(ctx, func(ctx context.Context, d *db) error {
		n, err := d.getNode(ctx, bson.M{"name": name})
		if err != nil {
			return err
		}
		return d.deleteNodes(ctx, []int64{n.ID})
	})
}

// DestroyNodes deletes the nodes with the given ids and their NICs.
func (d *db) DestroyNodes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return d.atomic(ctx, func(ctx context.Context, d *db) error {
		return d.deleteNodes(ctx, ids)
	})
}

func (d *db) deleteNodes(ctx context.Context, ids []int64) error {
	if _, err := d.col(colNICs).DeleteMany(ctx, bson.M{"node_id": bson.M{"$in": ids}}); err != nil {
		return wrap("destroy nics", err)
	}
	res, err := d.col(colNodes).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return wrap("destroy nodes", err)
	}
	if res.DeletedCount == 0 {
		return warden.ErrNodeNotFound
	}
	return nil
}

func (d *db) findNodes(ctx context.Context, op string, filter bson.M, opts *options.FindOptionsBuilder) ([]*node.Node, error) {
	cursor, err := d.col(colNodes).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer cursor.Close(ctx)

	var models []nodeModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrap(op+" decode", err)
	}
	out := make([]*node.Node, 0, len(models))
	for i := range models {
		out = append(out, fromNodeModel(&models[i]))
	}
	return out, nil
}

// nodeFilter translates filters into a query document. Association is
// resolved against the NIC collection first.
func (d *db) nodeFilter(ctx context.Context, filters []node.Filter) (bson.M, error) {
	var and bson.A
	for _, f := range filters {
		switch f := f.(type) {
		case node.ReservedFilter:
			if f.Reserved {
				and = append(and, bson.M{"reservation": bson.M{"$ne": nil}})
			} else {
				and = append(and, bson.M{"reservation": nil})
			}
		case node.ReservedByAnyOfFilter:
			and = append(and, bson.M{"reservation": bson.M{"$in": f.Tags}})
		case node.ProvisionStateFilter:
			and = append(and, bson.M{"provision_state": f.State})
		case node.ProvisionedBeforeFilter:
			and = append(and, bson.M{"provision_updated_at": bson.M{"$lt": d.now().Add(-f.Age)}})
		case node.AssociatedFilter:
			owners, err := d.nicOwners(ctx)
			if err != nil {
				return nil, err
			}
			op := "$in"
			if !f.Associated {
				op = "$nin"
			}
			and = append(and, bson.M{"_id": bson.M{op: owners}})
		}
	}
	if len(and) == 0 {
		return bson.M{}, nil
	}
	return bson.M{"$and": and}, nil
}

// nicOwners returns the ids of nodes that own at least one NIC.
func (d *db) nicOwners(ctx context.Context) ([]int64, error) {
	cursor, err := d.col(colNICs).Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"node_id": 1}))
	if err != nil {
		return nil, wrap("nic owners", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		NodeID int64 `bson:"node_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, wrap("nic owners decode", err)
	}
	owners := make([]int64, 0, len(rows))
	for _, r := range rows {
		owners = append(owners, r.NodeID)
	}
	return owners, nil
}

func selectNodes(sel node.Selector) bson.M {
	if sel.ByID() {
		return bson.M{"_id": bson.M{"$in": sel.IDs()}}
	}
	return bson.M{"name": bson.M{"$in": sel.Names()}}
}

// reservationValue maps the empty tag to null.
func reservationValue(tag string) any {
	if tag == "" {
		return nil
	}
	return tag
}

// findPage builds sort and limit options. Nulls sort first ascending in
// MongoDB, matching the SQL backends.
func findPage(p query.Page) *options.FindOptionsBuilder {
	dir := 1
	if p.Descending() {
		dir = -1
	}
	sort := bson.D{}
	if p.SortKey != query.DefaultSortKey {
		sort = append(sort, bson.E{Key: p.SortKey, Value: dir})
	}
	sort = append(sort, bson.E{Key: "_id", Value: dir})
	opts := options.Find().SetSort(sort)
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit))
	}
	return opts
}
