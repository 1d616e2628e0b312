// Package mongo implements store.Store on the official MongoDB Go driver.
// Suitable for deployments that already run a MongoDB replica set.
//
// The caller owns the *mongo.Client lifecycle; this package never
// disconnects it. Pass the client and database name through the
// constructor:
//
//	import (
//	    mongod "go.mongodb.org/mongo-driver/v2/mongo"
//	    "go.mongodb.org/mongo-driver/v2/mongo/options"
//	    "github.com/xraph/warden/store/mongo"
//	)
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	store := mongo.New(client, "warden")
//	store.Migrate(ctx)
//
// Transactions require a replica set or sharded cluster. Integer ids are
// allocated from a counters collection inside the caller's transaction, so
// an aborted insert does not burn an id.
//
// MongoDB has no savepoints. A nested InTx that fails marks the enclosing
// transaction aborted: its commit returns warden.ErrTxAborted and nothing
// is written. A failed write inside a transaction is also aborted by the
// server, so a multi-document write such as CreateNode never half-applies.
package mongo
