package conductor

import (
	"maps"
	"slices"
	"time"

	"github.com/xraph/warden"
)

// Conductor is a registered worker process.
type Conductor struct {
	warden.Entity

	Hostname      string            `json:"hostname"`
	Online        bool              `json:"online"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
	Drivers       []string          `json:"drivers,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Alive reports whether c is online and heartbeated within timeout of now.
func (c *Conductor) Alive(now time.Time, timeout time.Duration) bool {
	return c.Online && c.LastHeartbeat.After(now.Add(-timeout))
}

// Clone returns a deep copy of c.
func (c *Conductor) Clone() *Conductor {
	cp := *c
	cp.Drivers = slices.Clone(c.Drivers)
	cp.Attributes = maps.Clone(c.Attributes)
	return &cp
}
