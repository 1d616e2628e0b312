package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/store"
)

// CreateConductor inserts a conductor record keyed by hostname.
func (d *db) CreateConductor(ctx context.Context, c *conductor.Conductor) error {
	now := d.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if _, err := d.col(colConductors).InsertOne(ctx, toConductorModel(c)); err != nil {
		if isDuplicateKey(err) {
			return store.TranslateConductorConflict(duplicateKey(err, colConductors, "hostname"), c.Hostname)
		}
		return wrap("create conductor", err)
	}
	return nil
}

// GetConductorForUpdate reads the record and bumps a lock counter on it,
// which makes a concurrent transaction touching the same record conflict.
func (d *db) GetConductorForUpdate(ctx context.Context, hostname string) (*conductor.Conductor, error) {
	var m conductorModel
	err := d.col(colConductors).FindOneAndUpdate(ctx,
		bson.M{"_id": hostname},
		bson.M{"$inc": bson.M{"lock_seq": int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, warden.ErrConductorNotFound
		}
		return nil, wrap("get conductor", err)
	}
	return fromConductorModel(&m), nil
}

// UpdateConductor overwrites the mutable fields of the record.
func (d *db) UpdateConductor(ctx context.Context, c *conductor.Conductor) error {
	now := d.now()
	var m conductorModel
	err := d.col(colConductors).FindOneAndUpdate(ctx,
		bson.M{"_id": c.Hostname},
		bson.M{"$set": bson.M{
			"online":         c.Online,
			"last_heartbeat": c.LastHeartbeat.UTC(),
			"drivers":        c.Drivers,
			"attributes":     c.Attributes,
			"updated_at":     now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return warden.ErrConductorNotFound
		}
		return wrap("update conductor", err)
	}
	c.CreatedAt, c.UpdatedAt = m.CreatedAt.UTC(), now
	return nil
}

// GetOnlineConductor returns the record only while it is online.
func (d *db) GetOnlineConductor(ctx context.Context, hostname string) (*conductor.Conductor, error) {
	var m conductorModel
	err := d.col(colConductors).FindOne(ctx, bson.M{"_id": hostname, "online": true}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, warden.ErrConductorNotFound
		}
		return nil, wrap("get conductor", err)
	}
	return fromConductorModel(&m), nil
}

// TouchConductor records a heartbeat at the given time.
func (d *db) TouchConductor(ctx context.Context, hostname string, at time.Time) (int64, error) {
	at = at.UTC()
	res, err := d.col(colConductors).UpdateOne(ctx,
		bson.M{"_id": hostname},
		bson.M{"$set": bson.M{"online": true, "last_heartbeat": at, "updated_at": at}},
	)
	if err != nil {
		return 0, wrap("touch conductor", err)
	}
	return res.MatchedCount, nil
}

// MarkConductorOffline clears the online flag of an online record.
func (d *db) MarkConductorOffline(ctx context.Context, hostname string, at time.Time) (int64, error) {
	res, err := d.col(colConductors).UpdateOne(ctx,
		bson.M{"_id": hostname, "online": true},
		bson.M{"$set": bson.M{"online": false, "updated_at": at.UTC()}},
	)
	if err != nil {
		return 0, wrap("mark conductor offline", err)
	}
	return res.MatchedCount, nil
}

// ListConductorsSince returns online conductors that heartbeated after cutoff.
func (d *db) ListConductorsSince(ctx context.Context, cutoff time.Time) ([]*conductor.Conductor, error) {
	return d.listConductors(ctx, bson.M{
		"online":         true,
		"last_heartbeat": bson.M{"$gt": cutoff.UTC()},
	})
}

// ListConductors returns every record.
func (d *db) ListConductors(ctx context.Context) ([]*conductor.Conductor, error) {
	return d.listConductors(ctx, bson.M{})
}

func (d *db) listConductors(ctx context.Context, filter bson.M) ([]*conductor.Conductor, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := d.col(colConductors).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, wrap("list conductors", err)
	}
	defer cursor.Close(ctx)

	var models []conductorModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, wrap("list conductors decode", err)
	}

	out := make([]*conductor.Conductor, 0, len(models))
	for i := range models {
		out = append(out, fromConductorModel(&models[i]))
	}
	return out, nil
}
