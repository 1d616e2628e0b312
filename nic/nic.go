// Package nic defines the network interface entity owned by a node.
//
// A NIC's MAC address is globally unique. Addresses are normalized to the
// lower-case colon-separated form on the way in, so "AA-BB-CC-DD-EE-FF" and
// "aa:bb:cc:dd:ee:ff" collide.
package nic

import (
	"maps"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/xraph/warden"
	"github.com/xraph/warden/query"
)

// NIC is a network interface belonging to a node.
type NIC struct {
	warden.Entity

	ID         int64             `json:"id"`
	UUID       string            `json:"uuid"`
	Address    string            `json:"address"`
	NodeID     int64             `json:"node_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Clone returns a deep copy of n.
func (n *NIC) Clone() *NIC {
	cp := *n
	cp.Attributes = maps.Clone(n.Attributes)
	return &cp
}

// Prepare validates n before insertion: it assigns a random UUID when none
// is set and normalizes the address.
func (n *NIC) Prepare() error {
	if n.UUID == "" {
		n.UUID = uuid.NewString()
	} else if _, err := uuid.Parse(n.UUID); err != nil {
		return warden.InvalidParameter("invalid nic uuid %q", n.UUID)
	}
	addr, err := NormalizeAddress(n.Address)
	if err != nil {
		return err
	}
	n.Address = addr
	return nil
}

// NormalizeAddress parses a MAC address and returns it in lower-case colon
// form.
func NormalizeAddress(s string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return "", warden.InvalidParameter("invalid mac address %q", s)
	}
	return hw.String(), nil
}

// Ident addresses a single NIC by id or by MAC address.
type Ident struct {
	ID      int64
	Address string
}

// ParseIdent interprets s as an integer id or, failing that, a MAC address.
func ParseIdent(s string) (Ident, error) {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id <= 0 {
			return Ident{}, warden.InvalidParameter("invalid nic id %d", id)
		}
		return Ident{ID: id}, nil
	}
	addr, err := NormalizeAddress(s)
	if err != nil {
		return Ident{}, err
	}
	return Ident{Address: addr}, nil
}

func (i Ident) String() string {
	if i.Address != "" {
		return i.Address
	}
	return strconv.FormatInt(i.ID, 10)
}

// Update is a partial NIC update. Nil fields are left unchanged.
type Update struct {
	// UUID is accepted only so a change can be refused explicitly; the
	// UUID of a NIC is immutable.
	UUID       *string
	Address    *string
	Attributes map[string]string
}

// Normalize validates u and normalizes its address.
func (u Update) Normalize(current *NIC) (Update, error) {
	if u.UUID != nil && *u.UUID != current.UUID {
		return u, warden.InvalidParameter("cannot overwrite uuid for an existing nic")
	}
	if u.Address != nil {
		addr, err := NormalizeAddress(*u.Address)
		if err != nil {
			return u, err
		}
		u.Address = &addr
	}
	return u, nil
}

// Apply writes the non-nil fields of u onto n.
func (u Update) Apply(n *NIC) {
	if u.Address != nil {
		n.Address = *u.Address
	}
	if u.Attributes != nil {
		n.Attributes = maps.Clone(u.Attributes)
	}
}

// SortKeys are the attributes a NIC listing may be ordered by.
var SortKeys = []string{"id", "uuid", "address", "node_id", "created_at", "updated_at"}

// ListOpts controls NIC listings.
type ListOpts struct {
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
