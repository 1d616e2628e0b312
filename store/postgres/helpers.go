package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/warden/query"
	"github.com/xraph/warden/store"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isForeignKeyViolation checks for a PostgreSQL foreign_key_violation (23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// isUniqueViolation checks for a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// duplicateKey converts a PostgreSQL unique_violation (23505) into a
// store.DuplicateKeyError whose columns come from the constraint name.
// Other errors are returned unchanged.
func duplicateKey(err error, table string, columns ...string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	return &store.DuplicateKeyError{
		Table:   table,
		Columns: store.MatchColumns(pgErr.ConstraintName, columns...),
		Err:     err,
	}
}

func wrap(op string, err error) error {
	return fmt.Errorf("warden/postgres: %s: %w", op, err)
}

// where accumulates AND-ed predicates and their positional arguments.
type where struct {
	clauses []string
	args    []any
}

// arg appends v and returns its placeholder.
func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) and(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// orderBy renders the ORDER BY and LIMIT of a normalized page. The sort
// key has been validated against the entity's SortKeys, so it is safe to
// interpolate. NULLs sort first in ascending order.
func (w *where) orderBy(p query.Page) string {
	dir, nulls := "ASC", "NULLS FIRST"
	if p.Descending() {
		dir, nulls = "DESC", "NULLS LAST"
	}
	var b strings.Builder
	if p.SortKey == query.DefaultSortKey {
		fmt.Fprintf(&b, " ORDER BY id %s", dir)
	} else {
		fmt.Fprintf(&b, " ORDER BY %s %s %s, id %s", p.SortKey, dir, nulls, dir)
	}
	if p.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s", w.arg(p.Limit))
	}
	return b.String()
}

func utc(t time.Time) time.Time { return t.UTC() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
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
