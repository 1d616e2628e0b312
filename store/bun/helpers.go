package bunstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/xraph/warden/query"
	"github.com/xraph/warden/store"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}

// isForeignKeyViolation checks for a foreign_key_violation (23503).
func isForeignKeyViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23503"
	}
	return false
}

// duplicateKey builds a store.DuplicateKeyError from the constraint name
// of a unique_violation.
func duplicateKey(err error, table string, columns ...string) error {
	var constraint string
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		constraint = pgErr.Field('n')
	}
	return &store.DuplicateKeyError{
		Table:   table,
		Columns: store.MatchColumns(constraint, columns...),
		Err:     err,
	}
}

func wrap(op string, err error) error {
	return fmt.Errorf("warden/bun: %s: %w", op, err)
}

// rowsAffected reads the affected row count of an UPDATE or DELETE.
func rowsAffected(res sql.Result) int64 {
	n, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return n
}

// orderBy applies the sort and limit of a normalized page. The sort key has
// been validated against the entity's SortKeys.
func orderBy(q *bun.SelectQuery, p query.Page) *bun.SelectQuery {
	dir, nulls := "ASC", "NULLS FIRST"
	if p.Descending() {
		dir, nulls = "DESC", "NULLS LAST"
	}
	if p.SortKey == query.DefaultSortKey {
		q = q.OrderExpr("? "+dir, bun.Ident("id"))
	} else {
		q = q.OrderExpr("? "+dir+" "+nulls+", ? "+dir, bun.Ident(p.SortKey), bun.Ident("id"))
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	return q
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
