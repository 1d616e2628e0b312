package mongo

import (
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
)

// ── Counter model ─────────────────────────────────────────────────

type counterModel struct {
	Collection string `bson:"_id"`
	Seq        int64  `bson:"seq"`
}

// ── Node model ────────────────────────────────────────────────────

// Reservation is always written, as null when unowned, so an equality
// filter on null matches unreserved nodes.
type nodeModel struct {
	ID                 int64             `bson:"_id"`
	Name               string            `bson:"name"`
	Reservation        *string           `bson:"reservation"`
	ProvisionState     string            `bson:"provision_state"`
	ProvisionUpdatedAt *time.Time        `bson:"provision_updated_at"`
	Attributes         map[string]string `bson:"attributes,omitempty"`
	CreatedAt          time.Time         `bson:"created_at"`
	UpdatedAt          time.Time         `bson:"updated_at"`
}

func toNodeModel(n *node.Node) *nodeModel {
	m := &nodeModel{
		ID:                 n.ID,
		Name:               n.Name,
		ProvisionState:     n.ProvisionState,
		ProvisionUpdatedAt: n.ProvisionUpdatedAt,
		Attributes:         n.Attributes,
		CreatedAt:          n.CreatedAt,
		UpdatedAt:          n.UpdatedAt,
	}
	if n.Reservation != "" {
		r := n.Reservation
		m.Reservation = &r
	}
	return m
}

func fromNodeModel(m *nodeModel) *node.Node {
	n := &node.Node{
		Entity: warden.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:             m.ID,
		Name:           m.Name,
		ProvisionState: m.ProvisionState,
		Attributes:     m.Attributes,
	}
	if m.Reservation != nil {
		n.Reservation = *m.Reservation
	}
	if m.ProvisionUpdatedAt != nil {
		t := m.ProvisionUpdatedAt.UTC()
		n.ProvisionUpdatedAt = &t
	}
	return n
}

// ── NIC model ─────────────────────────────────────────────────────

type nicModel struct {
	ID         int64             `bson:"_id"`
	UUID       string            `bson:"uuid"`
	Address    string            `bson:"address"`
	NodeID     int64             `bson:"node_id"`
	Attributes map[string]string `bson:"attributes,omitempty"`
	CreatedAt  time.Time         `bson:"created_at"`
	UpdatedAt  time.Time         `bson:"updated_at"`
}

func toNICModel(n *nic.NIC) *nicModel {
	return &nicModel{
		ID:         n.ID,
		UUID:       n.UUID,
		Address:    n.Address,
		NodeID:     n.NodeID,
		Attributes: n.Attributes,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func fromNICModel(m *nicModel) *nic.NIC {
	return &nic.NIC{
		Entity: warden.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:         m.ID,
		UUID:       m.UUID,
		Address:    m.Address,
		NodeID:     m.NodeID,
		Attributes: m.Attributes,
	}
}

// ── Conductor model ───────────────────────────────────────────────

type conductorModel struct {
	Hostname      string            `bson:"_id"`
	Online        bool              `bson:"online"`
	LastHeartbeat time.Time         `bson:"last_heartbeat"`
	Drivers       []string          `bson:"drivers,omitempty"`
	Attributes    map[string]string `bson:"attributes,omitempty"`
	CreatedAt     time.Time         `bson:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at"`
}

func toConductorModel(c *conductor.Conductor) *conductorModel {
	return &conductorModel{
		Hostname:      c.Hostname,
		Online:        c.Online,
		LastHeartbeat: c.LastHeartbeat.UTC(),
		Drivers:       c.Drivers,
		Attributes:    c.Attributes,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func fromConductorModel(m *conductorModel) *conductor.Conductor {
	return &conductor.Conductor{
		Entity: warden.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		Hostname:      m.Hostname,
		Online:        m.Online,
		LastHeartbeat: m.LastHeartbeat.UTC(),
		Drivers:       m.Drivers,
		Attributes:    m.Attributes,
	}
}
