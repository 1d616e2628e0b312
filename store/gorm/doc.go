// Package gormstore implements store.Store on GORM, with SQLite and MySQL
// dialects.
//
// SQLite suits single-host deployments and tests; MySQL suits teams that
// already run it. Either way the schema comes from AutoMigrate:
//
//	s, err := gormstore.OpenSQLite("warden.db")
//	// or: gormstore.OpenMySQL("user:pass@tcp(host:3306)/warden")
//	err = s.Migrate(ctx)
//
// A Store built with New wraps a caller-owned *gorm.DB and never closes it.
// Stores returned by OpenSQLite and OpenMySQL own their connection pool.
//
// Foreign keys are enforced in code rather than by the database: CreateNIC
// checks that the owning node exists and the node destroy operations delete
// NICs first, all inside one transaction.
package gormstore
