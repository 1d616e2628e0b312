package node

import (
	"github.com/xraph/warden/query"
)

// SortKeys are the attributes a node listing may be ordered by.
var SortKeys = []string{
	"id", "name", "reservation", "provision_state",
	"provision_updated_at", "created_at", "updated_at",
}

// ListOpts controls ListNodes.
type ListOpts struct {
	Filters []Filter
	query.Page
}

// Normalize validates the options and fills in sort defaults.
func (o ListOpts) Normalize() (ListOpts, error) {
	p, err := o.Page.Normalize(SortKeys)
	if err != nil {
		return o, err
	}
	o.Page = p
	return o, nil
}
