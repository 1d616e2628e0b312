package node

import (
	"maps"
	"time"

	"github.com/xraph/warden"
)

// Node is a managed physical resource.
type Node struct {
	warden.Entity

	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Reservation is the tag of the current holder. Empty means unowned.
	Reservation string `json:"reservation,omitempty"`

	ProvisionState     string            `json:"provision_state,omitempty"`
	ProvisionUpdatedAt *time.Time        `json:"provision_updated_at,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
}

// Reserved reports whether some tag holds the node.
func (n *Node) Reserved() bool { return n.Reservation != "" }

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	cp := *n
	if n.ProvisionUpdatedAt != nil {
		t := *n.ProvisionUpdatedAt
		cp.ProvisionUpdatedAt = &t
	}
	cp.Attributes = maps.Clone(n.Attributes)
	return &cp
}

// Update is a partial node update. Nil fields are left unchanged.
// Reservation is deliberately absent; use the reservation package.
type Update struct {
	Name               *string
	ProvisionState     *string
	ProvisionUpdatedAt *time.Time

	// Attributes, when non-nil, replaces the whole attribute map.
	Attributes map[string]string
}

// Validate rejects updates that would break node invariants.
func (u Update) Validate() error {
	if u.Name != nil && *u.Name == "" {
		return warden.InvalidParameter("node name must not be empty")
	}
	return nil
}

// Apply writes the non-nil fields of u onto n.
func (u Update) Apply(n *Node) {
	if u.Name != nil {
		n.Name = *u.Name
	}
	if u.ProvisionState != nil {
		n.ProvisionState = *u.ProvisionState
	}
	if u.ProvisionUpdatedAt != nil {
		t := u.ProvisionUpdatedAt.UTC()
		n.ProvisionUpdatedAt = &t
	}
	if u.Attributes != nil {
		n.Attributes = maps.Clone(u.Attributes)
	}
}
