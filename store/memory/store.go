// Package memory provides an in-memory store.Store built on
// hashicorp/go-memdb. Write transactions are serialized by memdb, which makes
// every read inside them a read-for-update. Intended for unit testing and
// development.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-memdb"

	"github.com/xraph/warden"
	"github.com/xraph/warden/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created/updated timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access.
type Store struct {
	db    *memdb.MemDB
	clock clock.Clock
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		// The schema is static; failing here is a programming error.
		panic(fmt.Sprintf("warden/memory: invalid schema: %v", err))
	}
	s := &Store{db: db, clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate, Ping, Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

// InTx runs fn in a memdb write transaction. Only one write transaction
// runs at a time.
func (s *Store) InTx(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.begin(true)
	defer t.txn.Abort() // no-op once committed

	if err := fn(ctx, t); err != nil {
		return err
	}
	if t.aborted != nil {
		return t.aborted
	}
	t.txn.Commit()
	return nil
}

func (s *Store) begin(write bool) *tx {
	return &tx{txn: s.db.Txn(write), now: s.now}
}

func (s *Store) now() time.Time { return s.clock.Now().UTC() }

// view runs fn in a read-only snapshot.
func (s *Store) view(ctx context.Context, fn func(t *tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.begin(false)
	defer t.txn.Abort()
	return fn(t)
}

// update runs fn in its own write transaction.
func (s *Store) update(ctx context.Context, fn func(t *tx) error) error {
	return s.InTx(ctx, func(_ context.Context, t store.Tx) error {
		return fn(t.(*tx))
	})
}

// tx is the store.Tx handed to InTx callbacks. It is also used, read-only,
// for snapshot reads made directly on the Store.
type tx struct {
	txn *memdb.Txn
	now func() time.Time

	// aborted is set once a nested unit of work fails; the transaction
	// then refuses to commit.
	aborted error
}

var _ store.Tx = (*tx)(nil)

// InTx joins the enclosing transaction. memdb has no savepoints, so a
// failing fn aborts the enclosing transaction.
func (t *tx) InTx(ctx context.Context, fn store.TxFunc) error {
	if t.aborted != nil {
		return t.aborted
	}
	if err := fn(ctx, t); err != nil {
		t.abort(err)
		return err
	}
	return nil
}

// abort marks the transaction as unable to commit because of err.
func (t *tx) abort(err error) {
	if t.aborted == nil {
		t.aborted = fmt.Errorf("%w: %w", warden.ErrTxAborted, err)
	}
}

func (t *tx) nextID(table string) (int64, error) {
	raw, err := t.txn.First(tableSequences, indexID, table)
	if err != nil {
		return 0, err
	}
	seq := &sequence{Name: table}
	if raw != nil {
		seq.Value = raw.(*sequence).Value
	}
	seq.Value++
	if err := t.txn.Insert(tableSequences, seq); err != nil {
		return 0, err
	}
	return seq.Value, nil
}

func wrap(op string, err error) error {
	return fmt.Errorf("warden/memory: %s: %w", op, err)
}
