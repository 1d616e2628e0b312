package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/warden"
	"github.com/xraph/warden/store"
)

// Collection name constants.
const (
	colNodes      = "warden_nodes"
	colNICs       = "warden_nics"
	colConductors = "warden_conductors"
	colCounters   = "warden_counters"
)

// errNamespaceExists is the server code for creating an existing collection.
const errNamespaceExists = 48

// Ensure Store and tx implement the store interfaces at compile time.
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

// Store is a MongoDB implementation of store.Store.
// The caller owns the *mongo.Client lifecycle; Store never disconnects it.
type Store struct {
	*db
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the clock that stamps created_at and updated_at.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.db.clock = c
	}
}

// New creates a new MongoDB store on the named database. The caller owns
// the client lifecycle; the Store will not disconnect it on Close().
func New(client *mongod.Client, database string, opts ...Option) *Store {
	s := &Store{
		db: &db{
			client: client,
			mdb:    client.Database(database),
			clock:  clock.New(),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying *mongo.Database for advanced usage.
func (s *Store) Database() *mongod.Database {
	return s.mdb
}

// InTx runs fn in a multi-document transaction. The driver retries fn on
// transient transaction errors, so fn must be safe to run more than once.
func (s *Store) InTx(ctx context.Context, fn store.TxFunc) error {
	return s.transaction(ctx, func(ctx context.Context, d *db) error {
		t := &tx{db: d}
		if err := fn(ctx, t); err != nil {
			return err
		}
		return t.aborted
	})
}

// Migrate creates the warden collections and their indexes. Collections
// are created up front because they cannot be created implicitly inside
// every server version's transactions.
func (s *Store) Migrate(ctx context.Context) error {
	for _, col := range []string{colNodes, colNICs, colConductors, colCounters} {
		if err := s.mdb.CreateCollection(ctx, col); err != nil && !isNamespaceExists(err) {
			return fmt.Errorf("warden/mongo: create collection %s: %w", col, err)
		}
	}

	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}

		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("warden/mongo: migrate %s indexes: %w", col, err)
		}
		s.logger.Info("ensured indexes", "collection", col, "count", len(models))
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close is a no-op because the caller owns the *mongo.Client lifecycle.
func (s *Store) Close() error {
	return nil
}

// tx is the store.Tx handed to a TxFunc.
type tx struct {
	*db

	// aborted is set once a nested unit of work fails; the session
	// transaction is then aborted instead of committed.
	aborted error
}

// InTx joins the enclosing session transaction. MongoDB has no savepoints,
// so a failing fn aborts the enclosing transaction.
func (t *tx) InTx(ctx context.Context, fn store.TxFunc) error {
	if t.aborted != nil {
		return t.aborted
	}
	if err := fn(ctx, t); err != nil {
		t.aborted = fmt.Errorf("%w: %w", warden.ErrTxAborted, err)
		return err
	}
	return nil
}

// db runs entity operations, inside a session transaction when inTx is set.
type db struct {
	client *mongod.Client
	mdb    *mongod.Database
	clock  clock.Clock
	inTx   bool
}

func (d *db) now() time.Time { return d.clock.Now().UTC() }

func (d *db) col(name string) *mongod.Collection { return d.mdb.Collection(name) }

// transaction runs fn inside a new session transaction. Ending the session
// aborts a transaction left open by a panic in fn.
func (d *db) transaction(ctx context.Context, fn func(ctx context.Context, d *db) error) error {
	sess, err := d.client.StartSession()
	if err != nil {
		return fmt.Errorf("warden/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	inner := &db{client: d.client, mdb: d.mdb, clock: d.clock, inTx: true}
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, inner)
	})
	return err
}

// atomic runs fn in a transaction unless d is already inside one.
func (d *db) atomic(ctx context.Context, fn func(ctx context.Context, d *db) error) error {
	if d.inTx {
		return fn(ctx, d)
	}
	return d.transaction(ctx, fn)
}

// nextID allocates the next integer id for a collection.
func (d *db) nextID(ctx context.Context, collection string) (int64, error) {
	var c counterModel
	err := d.col(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": collection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("warden/mongo: next id %s: %w", collection, err)
	}
	return c.Seq, nil
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "E11000")
}

// duplicateKey names the offending columns from the index mentioned in the
// server's E11000 message.
func duplicateKey(err error, collection string, columns ...string) error {
	return &store.DuplicateKeyError{
		Table:   collection,
		Columns: store.MatchColumns(err.Error(), columns...),
		Err:     err,
	}
}

func isNamespaceExists(err error) bool {
	var cmdErr mongod.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == errNamespaceExists
}

func wrap(op string, err error) error {
	return fmt.Errorf("warden/mongo: %s: %w", op, err)
}

// migrationIndexes returns the index definitions for all warden collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colNodes: {
			// Unique name index.
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "reservation", Value: 1}}},
			{Keys: bson.D{{Key: "provision_state", Value: 1}}},
		},
		colNICs: {
			{
				Keys:    bson.D{{Key: "uuid", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "address", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "node_id", Value: 1}}},
		},
		colConductors: {
			// Freshness scans for list_alive.
			{Keys: bson.D{
				{Key: "online", Value: 1},
				{Key: "last_heartbeat", Value: 1},
			}},
		},
	}
}
