package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
)

const (
	tableNodes      = "warden_nodes"
	tableNICs       = "warden_nics"
	tableConductors = "warden_conductors"
)

// Column lists shared by every SELECT so scan helpers stay in step.
const (
	nodeColumns = `id, name, reservation, provision_state, provision_updated_at,
		attributes, created_at, updated_at`
	nicColumns       = `id, uuid, address, node_id, attributes, created_at, updated_at`
	conductorColumns = `hostname, online, last_heartbeat, drivers, attributes, created_at, updated_at`
)

// ── Node ─────────────────────────────────────────────────────────

func scanNode(row pgx.Row) (*node.Node, error) {
	var (
		n           node.Node
		reservation *string
		provisioned *time.Time
	)
	err := row.Scan(
		&n.ID, &n.Name, &reservation, &n.ProvisionState, &provisioned,
		&n.Attributes, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Reservation = deref(reservation)
	n.ProvisionUpdatedAt = utcPtr(provisioned)
	n.CreatedAt, n.UpdatedAt = utc(n.CreatedAt), utc(n.UpdatedAt)
	return &n, nil
}

func collectNodes(rows pgx.Rows) ([]*node.Node, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*node.Node, error) {
		return scanNode(row)
	})
}

// ── NIC ──────────────────────────────────────────────────────────

func scanNIC(row pgx.Row) (*nic.NIC, error) {
	var n nic.NIC
	err := row.Scan(&n.ID, &n.UUID, &n.Address, &n.NodeID, &n.Attributes, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.CreatedAt, n.UpdatedAt = utc(n.CreatedAt), utc(n.UpdatedAt)
	return &n, nil
}

func collectNICs(rows pgx.Rows) ([]*nic.NIC, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*nic.NIC, error) {
		return scanNIC(row)
	})
}

// ── Conductor ────────────────────────────────────────────────────

func scanConductor(row pgx.Row) (*conductor.Conductor, error) {
	var c conductor.Conductor
	err := row.Scan(&c.Hostname, &c.Online, &c.LastHeartbeat, &c.Drivers, &c.Attributes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.LastHeartbeat = utc(c.LastHeartbeat)
	c.CreatedAt, c.UpdatedAt = utc(c.CreatedAt), utc(c.UpdatedAt)
	return &c, nil
}

func collectConductors(rows pgx.Rows) ([]*conductor.Conductor, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*conductor.Conductor, error) {
		return scanConductor(row)
	})
}
