// Package store defines the aggregate persistence interface and the
// transaction surface shared by every backend.
package store

import (
	"context"

	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
)

// Entities composes the per-entity store contracts. A single backend
// implements all of them.
type Entities interface {
	node.Store
	nic.Store
	conductor.Store
}

// TxFunc is a unit of work run inside a transaction.
type TxFunc func(ctx context.Context, tx Tx) error

// Transactor runs units of work atomically.
type Transactor interface {
	// InTx runs fn in a transaction. The transaction commits if fn returns
	// nil and rolls back if fn returns an error or panics.
	//
	// Calling InTx on a Tx joins the enclosing transaction. A failing fn
	// never leaves partial writes behind: SQL backends run it in a
	// savepoint that is rolled back, while backends without savepoints
	// mark the enclosing transaction aborted so that its commit fails with
	// warden.ErrTxAborted and everything rolls back.
	InTx(ctx context.Context, fn TxFunc) error
}

// Tx is the transaction scope handed to a TxFunc. Every entity call made
// through it belongs to the same transaction.
type Tx interface {
	Entities
	Transactor
}

// Store is the aggregate persistence interface. Entity calls made directly
// on a Store run in their own implicit transaction.
type Store interface {
	Tx

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
