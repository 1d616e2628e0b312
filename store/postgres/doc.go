// Package postgres implements the store using pgx/v5 with raw SQL.
// Reservations are compare-and-swap UPDATEs whose WHERE clause names the
// expected holder; row locks taken by concurrent UPDATEs serialize
// competing swaps. Units of work run in pgx transactions, nested units
// join the enclosing one, and schema changes ship as embedded SQL
// migrations.
package postgres
