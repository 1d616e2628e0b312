package gormstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/xraph/warden/node"
	"github.com/xraph/warden/store"
	gormstore "github.com/xraph/warden/store/gorm"
	"github.com/xraph/warden/store/storetest"
)

func openSQLite(t *testing.T, opts ...gormstore.Option) *gormstore.Store {
	t.Helper()
	s, err := gormstore.OpenSQLite(":memory:", opts...)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openSQLite(t)
	})
}

func TestLifecycle(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"MigrateAgain", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

func TestClockStampsRecords(t *testing.T) {
	mock := clock.NewMock()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.Set(at)
	s := openSQLite(t, gormstore.WithClock(mock))
	ctx := context.Background()

	n := &node.Node{Name: "n1"}
	if err := s.CreateNode(ctx, n); err != nil {
		t.Fatal(err)
	}
	mock.Add(time.Minute)
	if _, err := s.SwapReservation(ctx, node.ByName("n1"), "", "c1"); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetNodeByName(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
	}
	if want := at.Add(time.Minute); !got.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want)
	}
}

func TestFileDatabaseSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.db")
	ctx := context.Background()

	s, err := gormstore.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateNode(ctx, &node.Node{Name: "n1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := gormstore.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	if _, err := reopened.GetNodeByName(ctx, "n1"); err != nil {
		t.Fatalf("node lost across reopen: %v", err)
	}
}
