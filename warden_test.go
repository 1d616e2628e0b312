package warden_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xraph/warden"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*warden.Config)
		wantErr bool
	}{
		{"defaults", func(*warden.Config) {}, false},
		{"zero interval", func(c *warden.Config) { c.HeartbeatInterval = 0 }, true},
		{"timeout equals interval", func(c *warden.Config) { c.HeartbeatTimeout = c.HeartbeatInterval }, true},
		{"timeout below interval", func(c *warden.Config) { c.HeartbeatTimeout = time.Second }, true},
		{"zero unregister timeout", func(c *warden.Config) { c.UnregisterTimeout = 0 }, true},
		{"overwrite allowed", func(c *warden.Config) { c.AllowOverwrite = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := warden.DefaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				if !errors.Is(err, warden.ErrInvalidParameter) {
					t.Fatalf("expected ErrInvalidParameter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewAppliesOptions(t *testing.T) {
	mock := clock.NewMock()
	w, err := warden.New(
		warden.WithHeartbeatInterval(5*time.Second),
		warden.WithHeartbeatTimeout(20*time.Second),
		warden.WithAllowOverwrite(true),
		warden.WithClock(mock),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c := w.Config()
	if c.HeartbeatInterval != 5*time.Second || c.HeartbeatTimeout != 20*time.Second || !c.AllowOverwrite {
		t.Errorf("config = %+v", c)
	}
	if c.UnregisterTimeout != warden.DefaultConfig().UnregisterTimeout {
		t.Errorf("UnregisterTimeout = %s, want default", c.UnregisterTimeout)
	}
	if w.Clock() != mock {
		t.Error("clock option not applied")
	}
	if w.Logger() == nil {
		t.Error("expected default logger")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := warden.New(warden.WithHeartbeatTimeout(time.Second))
	if !errors.Is(err, warden.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestStartWithoutHeartbeat(t *testing.T) {
	w, err := warden.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); !errors.Is(err, warden.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on an unstarted warden: %v", err)
	}
}

type closer struct{ closed bool }

func (c *closer) Migrate(context.Context) error { return nil }
func (c *closer) Ping(context.Context) error    { return nil }
func (c *closer) Close() error                  { c.closed = true; return nil }

func TestStopClosesStore(t *testing.T) {
	s := &closer{}
	w, err := warden.New(warden.WithStore(s))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !s.closed {
		t.Error("store was not closed")
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"locked", &warden.LockedError{Node: "n1", Holder: "t2"}, warden.ErrNodeLocked},
		{"not locked", &warden.NotLockedError{Node: "n1"}, warden.ErrNodeNotLocked},
		{"duplicate name", &warden.DuplicateError{Kind: warden.ErrDuplicateName, Field: "name", Value: "n1"}, warden.ErrDuplicateName},
		{"invalid", warden.InvalidParameter("limit %d", -1), warden.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.want)
			}
		})
	}

	if got := (&warden.LockedError{Node: "n1", Holder: "t2"}).Error(); got != `warden: node "n1" is locked by "t2"` {
		t.Errorf("LockedError message = %q", got)
	}
}
