package node

import (
	"slices"
	"time"
)

// Filter narrows a node listing. The set of variants is closed; backends
// translate each with a type switch.
type Filter interface {
	isFilter()
}

// ReservedFilter keeps nodes that are (or are not) reserved by any tag.
type ReservedFilter struct{ Reserved bool }

// ReservedByAnyOfFilter keeps nodes reserved by one of Tags.
type ReservedByAnyOfFilter struct{ Tags []string }

// ProvisionStateFilter keeps nodes in the given provision state.
type ProvisionStateFilter struct{ State string }

// ProvisionedBeforeFilter keeps nodes whose provision state last changed
// more than Age ago.
type ProvisionedBeforeFilter struct{ Age time.Duration }

// AssociatedFilter keeps nodes that own (or do not own) at least one NIC.
type AssociatedFilter struct{ Associated bool }

func (ReservedFilter) isFilter()          {}
func (ReservedByAnyOfFilter) isFilter()   {}
func (ProvisionStateFilter) isFilter()    {}
func (ProvisionedBeforeFilter) isFilter() {}
func (AssociatedFilter) isFilter()        {}

// Reserved filters on whether a node has a holder.
func Reserved(reserved bool) Filter { return ReservedFilter{Reserved: reserved} }

// ReservedByAnyOf filters on the holder tag.
func ReservedByAnyOf(tags ...string) Filter {
	return ReservedByAnyOfFilter{Tags: slices.Clone(tags)}
}

// ProvisionState filters on the provision state.
func ProvisionState(state string) Filter { return ProvisionStateFilter{State: state} }

// ProvisionedBefore filters on the age of the provision state.
func ProvisionedBefore(age time.Duration) Filter { return ProvisionedBeforeFilter{Age: age} }

// Associated filters on NIC ownership.
func Associated(associated bool) Filter { return AssociatedFilter{Associated: associated} }

// Match evaluates filters against n in process. hasNICs reports whether n
// owns any NIC; now anchors ProvisionedBefore. Backends that cannot push a
// filter down to the database use it.
func Match(n *Node, hasNICs bool, now time.Time, filters ...Filter) bool {
	for _, f := range filters {
		switch f := f.(type) {
		case ReservedFilter:
			if n.Reserved() != f.Reserved {
				return false
			}
		case ReservedByAnyOfFilter:
			if n.Reservation == "" || !slices.Contains(f.Tags, n.Reservation) {
				return false
			}
		case ProvisionStateFilter:
			if n.ProvisionState != f.State {
				return false
			}
		case ProvisionedBeforeFilter:
			if n.ProvisionUpdatedAt == nil || !n.ProvisionUpdatedAt.Before(now.Add(-f.Age)) {
				return false
			}
		case AssociatedFilter:
			if hasNICs != f.Associated {
				return false
			}
		}
	}
	return true
}

// NeedsNICs reports whether any filter depends on NIC ownership.
func NeedsNICs(filters []Filter) bool {
	return slices.ContainsFunc(filters, func(f Filter) bool {
		_, ok := f.(AssociatedFilter)
		return ok
	})
}
