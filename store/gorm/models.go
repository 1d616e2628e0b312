package gormstore

import (
	"time"

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

// ── Node model ────────────────────────────────────────────────────

type nodeModel struct {
	ID                 int64             `gorm:"primaryKey;autoIncrement"`
	Name               string            `gorm:"size:255;not null;uniqueIndex:uq_nodes_name"`
	Reservation        *string           `gorm:"size:255;index:idx_nodes_reservation"`
	ProvisionState     string            `gorm:"size:64;not null;default:'';index:idx_nodes_provision_state"`
	ProvisionUpdatedAt *time.Time
	Attributes         map[string]string `gorm:"serializer:json"`
	CreatedAt          time.Time         `gorm:"not null;autoCreateTime:false"`
	UpdatedAt          time.Time         `gorm:"not null;autoUpdateTime:false"`
}

func (nodeModel) TableName() string { return tableNodes }

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

// ── NIC model ─────────────────────────────────────────────────────

type nicModel struct {
	ID         int64             `gorm:"primaryKey;autoIncrement"`
	UUID       string            `gorm:"column:uuid;size:36;not null;uniqueIndex:uq_nics_uuid"`
	Address    string            `gorm:"size:64;not null;uniqueIndex:uq_nics_address"`
	NodeID     int64             `gorm:"not null;index:idx_nics_node_id"`
	Attributes map[string]string `gorm:"serializer:json"`
	CreatedAt  time.Time         `gorm:"not null;autoCreateTime:false"`
	UpdatedAt  time.Time         `gorm:"not null;autoUpdateTime:false"`
}

func (nicModel) TableName() string { return tableNICs }

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
	Hostname      string            `gorm:"primaryKey;size:255"`
	Online        bool              `gorm:"not null;index:idx_conductors_alive,priority:1"`
	LastHeartbeat time.Time         `gorm:"not null;index:idx_conductors_alive,priority:2"`
	Drivers       []string          `gorm:"serializer:json"`
	Attributes    map[string]string `gorm:"serializer:json"`
	CreatedAt     time.Time         `gorm:"not null;autoCreateTime:false"`
	UpdatedAt     time.Time         `gorm:"not null;autoUpdateTime:false"`
}

func (conductorModel) TableName() string { return tableConductors }

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

func fromConductorModels(models []conductorModel) []*conductor.Conductor {
	out := make([]*conductor.Conductor, 0, len(models))
	for i := range models {
		out = append(out, fromConductorModel(&models[i]))
	}
	return out
}
