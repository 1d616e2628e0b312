package bunstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
)

const (
	tableNodes      = "warden_nodes"
	tableNICs       = "warden_nics"
	tableConductors = "warden_conductors"
)

// ── Node model ───────────────────────────────────────────────────

type nodeModel struct {
	bun.BaseModel `bun:"table:warden_nodes,alias:n"`

	ID                 int64             `bun:"id,pk,autoincrement"`
	Name               string            `bun:"name,notnull"`
	Reservation        *string           `bun:"reservation"`
	ProvisionState     string            `bun:"provision_state,notnull"`
	ProvisionUpdatedAt *time.Time        `bun:"provision_updated_at"`
	Attributes         map[string]string `bun:"attributes,type:jsonb,nullzero"`
	CreatedAt          time.Time         `bun:"created_at,notnull"`
	UpdatedAt          time.Time         `bun:"updated_at,notnull"`
}

func toNodeModel(n *node.Node) *nodeModel {
	return &nodeModel{
		ID:                 n.ID,
		Name:               n.Name,
		Reservation:        nullable(n.Reservation),
		ProvisionState:     n.ProvisionState,
		ProvisionUpdatedAt: n.ProvisionUpdatedAt,
		Attributes:         n.Attributes,
		CreatedAt:          n.CreatedAt,
		UpdatedAt:          n.UpdatedAt,
	}
}

func fromNodeModel(m *nodeModel) *node.Node {
	n := &node.Node{
		Entity: warden.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:             m.ID,
		Name:           m.Name,
		Reservation:    deref(m.Reservation),
		ProvisionState: m.ProvisionState,
		Attributes:     m.Attributes,
	}
	if m.ProvisionUpdatedAt != nil {
		t := m.ProvisionUpdatedAt.UTC()
		n.ProvisionUpdatedAt = &t
	}
	return n
}

func fromNodeModels(models []nodeModel) []*node.Node {
	out := make([]*node.Node, 0, len(models))
	for i := range models {
		out = append(out, fromNodeModel(&models[i]))
	}
	return out
}

// ── NIC model ────────────────────────────────────────────────────

type nicModel struct {
	bun.BaseModel `bun:"table:warden_nics,alias:c"`

	ID         int64             `bun:"id,pk,autoincrement"`
	UUID       string            `bun:"uuid,notnull"`
	Address    string            `bun:"address,notnull"`
	NodeID     int64             `bun:"node_id,notnull"`
	Attributes map[string]string `bun:"attributes,type:jsonb,nullzero"`
	CreatedAt  time.Time         `bun:"created_at,notnull"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull"`
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

// ── Conductor model ──────────────────────────────────────────────

type conductorModel struct {
	bun.BaseModel `bun:"table:warden_conductors,alias:d"`

	Hostname      string            `bun:"hostname,pk"`
	Online        bool              `bun:"online,notnull"`
	LastHeartbeat time.Time         `bun:"last_heartbeat,notnull"`
	Drivers       []string          `bun:"drivers,array"`
	Attributes    map[string]string `bun:"attributes,type:jsonb,nullzero"`
	CreatedAt     time.Time         `bun:"created_at,notnull"`
	UpdatedAt     time.Time         `bun:"updated_at,notnull"`
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
