package conductor_test

import (
	"testing"
	"time"

	"github.com/xraph/warden/conductor"
)

func TestAlive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeout := time.Minute

	tests := []struct {
		name string
		c    conductor.Conductor
		want bool
	}{
		{"fresh", conductor.Conductor{Online: true, LastHeartbeat: now.Add(-10 * time.Second)}, true},
		{"stale", conductor.Conductor{Online: true, LastHeartbeat: now.Add(-2 * time.Minute)}, false},
		{"exactly at cutoff", conductor.Conductor{Online: true, LastHeartbeat: now.Add(-timeout)}, false},
		{"offline", conductor.Conductor{Online: false, LastHeartbeat: now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Alive(now, timeout); got != tt.want {
				t.Errorf("Alive = %v, want %v", got, tt.want)
			}
		})
	}
}
