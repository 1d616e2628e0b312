package node

import (
	"context"

	"github.com/xraph/warden/nic"
)

// Store defines the persistence contract for nodes.
type Store interface {
	// CreateNode inserts n, assigning its id, and inserts nics as owned by
	// it in the same unit of work. A duplicate name fails with
	// warden.ErrDuplicateName; a duplicate NIC address with
	// warden.ErrDuplicateAddress. Nothing is written on failure.
	CreateNode(ctx context.Context, n *Node, nics ...*nic.NIC) error

	// GetNodeByID returns the node with the given id.
	GetNodeByID(ctx context.Context, id int64) (*Node, error)

	// GetNodeByName returns the node with the given name.
	GetNodeByName(ctx context.Context, name string) (*Node, error)

	// GetNodesIn returns the nodes whose name is in names and that match
	// every filter, ordered by id.
	GetNodesIn(ctx context.Context, names []string, filters ...Filter) ([]*Node, error)

	// ListNodes returns a page of nodes.
	ListNodes(ctx context.Context, opts ListOpts) ([]*Node, error)

	// FindNodes returns the selected nodes that exist, ordered by id.
	FindNodes(ctx context.Context, sel Selector) ([]*Node, error)

	// SwapReservation sets the reservation of every selected node whose
	// current reservation equals from to to, and returns how many nodes
	// changed. The empty string stands for no reservation.
	SwapReservation(ctx context.Context, sel Selector, from, to string) (int64, error)

	// UpdateNode reads the node for update and applies u.
	UpdateNode(ctx context.Context, id int64, u Update) (*Node, error)

	// DestroyNode deletes the named node and the NICs it owns.
	DestroyNode(ctx context.Context, name string) error

	// DestroyNodes deletes the nodes with the given ids and the NICs they
	// own. Unknown ids are skipped, but if none of the ids exist it returns
	// warden.ErrNodeNotFound.
	DestroyNodes(ctx context.Context, ids []int64) error
}
