package gormstore

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xraph/warden/query"
	"github.com/xraph/warden/store"
)

// isNotFound returns true when err indicates no record was found.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicateKey recognizes unique violations from SQLite and MySQL.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") // mysql 1062
}

// duplicateKey names the offending columns from the driver message:
// "UNIQUE constraint failed: warden_nics.address" on SQLite, the
// uq_<table>_<column> index name on MySQL.
func duplicateKey(err error, table string, columns ...string) error {
	return &store.DuplicateKeyError{
		Table:   table,
		Columns: store.MatchColumns(err.Error(), columns...),
		Err:     err,
	}
}

func wrap(op string, err error) error {
	return fmt.Errorf("warden/gorm: %s: %w", op, err)
}

// page applies the sort and limit of a normalized page. SQLite and MySQL
// both sort NULLs first ascending and last descending.
func page(q *gorm.DB, p query.Page) *gorm.DB {
	desc := p.Descending()
	if p.SortKey != query.DefaultSortKey {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: p.SortKey}, Desc: desc})
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	return q
}

// forUpdate locks the selected rows on MySQL; the SQLite dialect drops the
// clause, and its database-level write lock gives the same exclusion.
func forUpdate(q *gorm.DB) *gorm.DB {
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
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
