// Package query holds the pagination and sort options shared by every
// entity list operation. Backends interpret the options; this package only
// validates them so an unknown sort key fails loudly instead of being
// ignored.
package query

import (
	"slices"

	"github.com/xraph/warden"
)

// SortDir is a sort direction.
type SortDir string

const (
	// Asc sorts ascending. It is the default.
	Asc SortDir = "asc"
	// Desc sorts descending.
	Desc SortDir = "desc"
)

// DefaultSortKey is always applied, as the only key or as the tie-breaker.
const DefaultSortKey = "id"

// Page limits and orders a list result.
type Page struct {
	// Limit caps the number of results. Zero means no limit.
	Limit int

	// Marker is the id of the last item of the previous page. Results
	// resume after it. Only valid with the default sort key ascending.
	Marker int64

	// SortKey is the attribute to order by. Empty means DefaultSortKey.
	SortKey string

	// SortDir is the direction. Empty means Asc.
	SortDir SortDir
}

// Normalize fills in defaults and validates the page against the entity's
// sortable attributes.
func (p Page) Normalize(sortable []string) (Page, error) {
	if p.Limit < 0 {
		return p, warden.InvalidParameter("limit must not be negative, got %d", p.Limit)
	}
	if p.SortKey == "" {
		p.SortKey = DefaultSortKey
	}
	if !slices.Contains(sortable, p.SortKey) {
		return p, warden.InvalidParameter("the sort_key value %q is an invalid field for sorting", p.SortKey)
	}
	switch p.SortDir {
	case "":
		p.SortDir = Asc
	case Asc, Desc:
	default:
		return p, warden.InvalidParameter("invalid sort direction %q: must be 'asc' or 'desc'", p.SortDir)
	}
	if p.Marker < 0 {
		return p, warden.InvalidParameter("marker must not be negative, got %d", p.Marker)
	}
	if p.Marker > 0 && (p.SortKey != DefaultSortKey || p.SortDir != Asc) {
		return p, warden.InvalidParameter("marker requires sorting by %q ascending", DefaultSortKey)
	}
	return p, nil
}

// Descending reports whether the page sorts in descending order.
func (p Page) Descending() bool { return p.SortDir == Desc }
