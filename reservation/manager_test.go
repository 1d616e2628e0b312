package reservation_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/warden"
	"github.com/xraph/warden/ext"
	"github.com/xraph/warden/node"
	"github.com/xraph/warden/reservation"
	"github.com/xraph/warden/store"
	"github.com/xraph/warden/store/memory"
)

func setup(t *testing.T, names ...string) (*memory.Store, *reservation.Manager) {
	t.Helper()
	s := memory.New()
	for _, name := range names {
		if err := s.CreateNode(context.Background(), &node.Node{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	return s, reservation.NewManager(s)
}

func reservationOf(t *testing.T, s *memory.Store, name string) string {
	t.Helper()
	n, err := s.GetNodeByName(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	return n.Reservation
}

func TestAcquireAndRelease(t *testing.T) {
	t.Parallel()
	s, m := setup(t, "n1", "n2")
	ctx := context.Background()

	nodes, err := m.Acquire(ctx, "c1", node.ByNames("n1", "n2"))
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	for _, n := range nodes {
		if n.Reservation != "c1" {
			t.Errorf("node %s reservation = %q", n.Name, n.Reservation)
		}
	}

	held, err := m.Holding(ctx, "c1")
	if err != nil || len(held) != 2 {
		t.Fatalf("Holding = %d nodes, %v", len(held), err)
	}

	if err := m.Release(ctx, "c1", node.ByNames("n1", "n2")); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"n1", "n2"} {
		if r := reservationOf(t, s, name); r != "" {
			t.Errorf("node %s still reserved by %q", name, r)
		}
	}
}

func TestAcquireBatchIsAtomic(t *testing.T) {
	t.Parallel()
	s, m := setup(t, "r1", "r2")
	ctx := context.Background()

	if _, err := m.Acquire(ctx, "t2", node.ByName("r2")); err != nil {
		t.Fatal(err)
	}

	_, err := m.Acquire(ctx, "t1", node.ByNames("r1", "r2"))
	var locked *warden.LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if !errors.Is(err, warden.ErrNodeLocked) {
		t.Error("LockedError should match ErrNodeLocked")
	}
	if locked.Node != "r2" || locked.Holder != "t2" {
		t.Errorf("unexpected conflict detail %+v", locked)
	}

	if r := reservationOf(t, s, "r1"); r != "" {
		t.Errorf("r1 should have been rolled back, reserved by %q", r)
	}
	if r := reservationOf(t, s, "r2"); r != "t2" {
		t.Errorf("r2 reservation = %q, want t2", r)
	}
}

func TestAcquireBySameTagIsLocked(t *testing.T) {
	t.Parallel()
	_, m := setup(t, "n1", "n2")
	ctx := context.Background()

	if _, err := m.Acquire(ctx, "c1", node.ByName("n2")); err != nil {
		t.Fatal(err)
	}
	_, err := m.Acquire(ctx, "c1", node.ByNames("n1", "n2"))
	var locked *warden.LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if locked.Node != "n2" || locked.Holder != "c1" {
		t.Errorf("unexpected conflict detail %+v", locked)
	}
}

func TestAcquireMissingNode(t *testing.T) {
	t.Parallel()
	s, m := setup(t, "n1")

	_, err := m.Acquire(context.Background(), "c1", node.ByNames("n1", "ghost"))
	if !errors.Is(err, warden.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if r := reservationOf(t, s, "n1"); r != "" {
		t.Errorf("n1 should have been rolled back, reserved by %q", r)
	}
}

func TestAcquireInvalidInput(t *testing.T) {
	t.Parallel()
	_, m := setup(t, "n1")
	ctx := context.Background()

	tests := []struct {
		name string
		tag  string
		sel  node.Selector
	}{
		{"empty tag", "", node.ByName("n1")},
		{"empty selector", "c1", node.Selector{}},
		{"bad id", "c1", node.ByID(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Acquire(ctx, tt.tag, tt.sel); !errors.Is(err, warden.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestAcquireOneByIDOrName(t *testing.T) {
	t.Parallel()
	s, m := setup(t, "n1", "n2")
	ctx := context.Background()

	n2, err := s.GetNodeByName(ctx, "n2")
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.AcquireOne(ctx, "c1", fmt.Sprint(n2.ID))
	if err != nil || got.Name != "n2" {
		t.Fatalf("AcquireOne(id) = %v, %v", got, err)
	}
	got, err = m.AcquireOne(ctx, "c1", "n1")
	if err != nil || got.Name != "n1" {
		t.Fatalf("AcquireOne(name) = %v, %v", got, err)
	}

	_, err = m.AcquireOne(ctx, "c2", "n1")
	var locked *warden.LockedError
	if !errors.As(err, &locked) || locked.Holder != "c1" {
		t.Fatalf("expected LockedError held by c1, got %v", err)
	}

	if err := m.ReleaseOne(ctx, "c1", fmt.Sprint(n2.ID)); err != nil {
		t.Fatal(err)
	}
	_, err = m.AcquireOne(ctx, "c1", "999")
	if !errors.Is(err, warden.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestReleaseAuthorization(t *testing.T) {
	t.Parallel()
	s, m := setup(t, "n1", "n2")
	ctx := context.Background()

	if _, err := m.Acquire(ctx, "c1", node.ByName("n1")); err != nil {
		t.Fatal(err)
	}

	t.Run("not locked", func(t *testing.T) {
		err := m.Release(ctx, "c1", node.ByName("n2"))
		var notLocked *warden.NotLockedError
		if !errors.As(err, &notLocked) || notLocked.Node != "n2" {
			t.Fatalf("expected NotLockedError for n2, got %v", err)
		}
		if !errors.Is(err, warden.ErrNodeNotLocked) {
			t.Error("NotLockedError should match ErrNodeNotLocked")
		}
	})

	t.Run("held by other", func(t *testing.T) {
		err := m.Release(ctx, "c2", node.ByName("n1"))
		var locked *warden.LockedError
		if !errors.As(err, &locked) || locked.Holder != "c1" {
			t.Fatalf("expected LockedError held by c1, got %v", err)
		}
	})

	t.Run("batch rolls back", func(t *testing.T) {
		err := m.Release(ctx, "c1", node.ByNames("n1", "n2"))
		if !errors.Is(err, warden.ErrNodeNotLocked) {
			t.Fatalf("expected ErrNodeNotLocked, got %v", err)
		}
		if r := reservationOf(t, s, "n1"); r != "c1" {
			t.Errorf("n1 release should have rolled back, reservation %q", r)
		}
	})

	t.Run("missing", func(t *testing.T) {
		err := m.Release(ctx, "c1", node.ByNames("n1", "ghost"))
		if !errors.Is(err, warden.ErrNodeNotFound) {
			t.Fatalf("expected ErrNodeNotFound, got %v", err)
		}
	})
}

func TestConcurrentAcquireExactlyOneWins(t *testing.T) {
	t.Parallel()
	_, m := setup(t, "n1", "n2", "n3")
	ctx := context.Background()

	const contenders = 10
	var wins, locks atomic.Int32
	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		i := i
		g.Go(func() error {
			_, err := m.Acquire(ctx, fmt.Sprintf("c%d", i), node.ByNames("n1", "n2", "n3"))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, warden.ErrNodeLocked):
				locks.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if wins.Load() != 1 || locks.Load() != contenders-1 {
		t.Fatalf("wins=%d locks=%d", wins.Load(), locks.Load())
	}
}

func TestManagerJoinsEnclosingTransaction(t *testing.T) {
	t.Parallel()
	s, _ := setup(t, "n1")
	ctx := context.Background()
	errStop := errors.New("stop")

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		m := reservation.NewManager(tx)
		if _, err := m.Acquire(ctx, "c1", node.ByName("n1")); err != nil {
			return err
		}
		return errStop
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("expected errStop, got %v", err)
	}
	if r := reservationOf(t, s, "n1"); r != "" {
		t.Errorf("reservation survived the enclosing rollback: %q", r)
	}
}

type recordingExt struct {
	reserved, released, conflicts int
}

func (e *recordingExt) Name() string { return "recording" }

func (e *recordingExt) OnNodesReserved(context.Context, string, []*node.Node) error {
	e.reserved++
	return nil
}

func (e *recordingExt) OnNodesReleased(context.Context, string, node.Selector) error {
	e.released++
	return nil
}

func (e *recordingExt) OnReservationConflict(context.Context, string, node.Selector, error) error {
	e.conflicts++
	return nil
}

func TestManagerEmitsHooks(t *testing.T) {
	t.Parallel()
	s, _ := setup(t, "n1")
	ctx := context.Background()

	rec := &recordingExt{}
	reg := ext.NewRegistry(slog.Default())
	reg.Register(rec)
	m := reservation.NewManager(s, reservation.WithExtensions(reg))

	if _, err := m.Acquire(ctx, "c1", node.ByName("n1")); err != nil {
		t.Fatal(err)
	}
	_, _ = m.Acquire(ctx, "c2", node.ByName("n1"))
	_, _ = m.Acquire(ctx, "c2", node.ByName("ghost"))
	if err := m.Release(ctx, "c1", node.ByName("n1")); err != nil {
		t.Fatal(err)
	}

	if rec.reserved != 1 || rec.released != 1 || rec.conflicts != 1 {
		t.Errorf("reserved=%d released=%d conflicts=%d", rec.reserved, rec.released, rec.conflicts)
	}
}

func TestFailedAcquireInsideTransactionLeavesNoReservation(t *testing.T) {
	t.Parallel()
	s, _ := setup(t, "r1", "r2")
	ctx := context.Background()
	if _, err := reservation.NewManager(s).Acquire(ctx, "other", node.ByName("r2")); err != nil {
		t.Fatal(err)
	}

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := reservation.NewManager(tx).Acquire(ctx, "t1", node.ByNames("r1", "r2"))
		if !errors.Is(err, warden.ErrNodeLocked) {
			t.Errorf("Acquire = %v, want ErrNodeLocked", err)
		}
		return nil
	})
	if !errors.Is(err, warden.ErrTxAborted) {
		t.Fatalf("commit = %v, want ErrTxAborted", err)
	}
	if r := reservationOf(t, s, "r1"); r != "" {
		t.Errorf("r1 reservation = %q after the failed batch", r)
	}
	if r := reservationOf(t, s, "r2"); r != "other" {
		t.Errorf("r2 reservation = %q, want other", r)
	}
}
