package nic

import "context"

// Store defines the persistence contract for NICs.
type Store interface {
	// CreateNIC inserts n. The owning node must exist. A duplicate address
	// fails with warden.ErrDuplicateAddress; any other uniqueness
	// violation with warden.ErrDuplicateIdentity.
	CreateNIC(ctx context.Context, n *NIC) error

	GetNICByID(ctx context.Context, id int64) (*NIC, error)
	GetNICByUUID(ctx context.Context, uuid string) (*NIC, error)
	GetNICByAddress(ctx context.Context, address string) (*NIC, error)

	// ListNICs returns a page of NICs across all nodes.
	ListNICs(ctx context.Context, opts ListOpts) ([]*NIC, error)

	// ListNICsByNode returns a page of the NICs owned by a node.
	ListNICsByNode(ctx context.Context, nodeID int64, opts ListOpts) ([]*NIC, error)

	// UpdateNIC reads the NIC for update and applies u. Changing the UUID
	// fails with warden.ErrInvalidParameter.
	UpdateNIC(ctx context.Context, ident Ident, u Update) (*NIC, error)

	// DestroyNIC deletes one NIC.
	DestroyNIC(ctx context.Context, ident Ident) error
}
