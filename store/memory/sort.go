package memory

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
)

// memdb's integer indexes are varint-encoded, so iteration order is not
// numeric. Listings are sorted here instead.

var nodeOrder = map[string]func(a, b *node.Node) int{
	"id":              func(a, b *node.Node) int { return cmp.Compare(a.ID, b.ID) },
	"name":            func(a, b *node.Node) int { return strings.Compare(a.Name, b.Name) },
	"reservation":     func(a, b *node.Node) int { return strings.Compare(a.Reservation, b.Reservation) },
	"provision_state": func(a, b *node.Node) int { return strings.Compare(a.ProvisionState, b.ProvisionState) },
	"provision_updated_at": func(a, b *node.Node) int {
		return compareTimePtr(a.ProvisionUpdatedAt, b.ProvisionUpdatedAt)
	},
	"created_at": func(a, b *node.Node) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b *node.Node) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

var nicOrder = map[string]func(a, b *nic.NIC) int{
	"id":         func(a, b *nic.NIC) int { return cmp.Compare(a.ID, b.ID) },
	"uuid":       func(a, b *nic.NIC) int { return strings.Compare(a.UUID, b.UUID) },
	"address":    func(a, b *nic.NIC) int { return strings.Compare(a.Address, b.Address) },
	"node_id":    func(a, b *nic.NIC) int { return cmp.Compare(a.NodeID, b.NodeID) },
	"created_at": func(a, b *nic.NIC) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b *nic.NIC) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

// sortNodes orders by key then id, both in the requested direction.
func sortNodes(nodes []*node.Node, key string, desc bool) {
	byKey := nodeOrder[key]
	slices.SortFunc(nodes, func(a, b *node.Node) int {
		c := byKey(a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}

func sortNICs(nics []*nic.NIC, key string, desc bool) {
	byKey := nicOrder[key]
	slices.SortFunc(nics, func(a, b *nic.NIC) int {
		c := byKey(a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}

// Nil sorts first.
func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
