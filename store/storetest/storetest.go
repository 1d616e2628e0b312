// Package storetest is a conformance suite for store.Store backends.
//
//	func TestConformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) store.Store {
//	        return memory.New()
//	    })
//	}
//
// Every case gets a fresh store from the factory.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/warden"
	"github.com/xraph/warden/conductor"
	"github.com/xraph/warden/nic"
	"github.com/xraph/warden/node"
	"github.com/xraph/warden/query"
	"github.com/xraph/warden/store"
)

// Factory returns an empty, migrated store. It should register cleanup on t.
type Factory func(t *testing.T) store.Store

// Run runs the whole suite.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGetNode", testCreateAndGetNode},
		{"DuplicateNodeName", testDuplicateNodeName},
		{"CreateNodeWithNICs", testCreateNodeWithNICs},
		{"CreateNodeRollsBackOnNICConflict", testCreateNodeRollback},
		{"DuplicateNICAddress", testDuplicateNICAddress},
		{"NICRequiresNode", testNICRequiresNode},
		{"UpdateNIC", testUpdateNIC},
		{"DestroyNIC", testDestroyNIC},
		{"SwapReservation", testSwapReservation},
		{"SwapReservationIgnoresMissing", testSwapReservationMissing},
		{"ConcurrentSwap", testConcurrentSwap},
		{"UpdateNode", testUpdateNode},
		{"DestroyNodeCascades", testDestroyNodeCascades},
		{"DestroyNodes", testDestroyNodes},
		{"GetNodesIn", testGetNodesIn},
		{"ListNodes", testListNodes},
		{"ListNodesInvalidSort", testListNodesInvalidSort},
		{"TxRollback", testTxRollback},
		{"TxNestedJoins", testTxNestedJoins},
		{"TxNestedFailureLeavesNoWrites", testTxNestedFailure},
		{"TxPanicRollsBack", testTxPanicRollsBack},
		{"ConductorLifecycle", testConductorLifecycle},
		{"DuplicateConductor", testDuplicateConductor},
		{"ListConductorsSince", testListConductorsSince},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func mustCreateNode(t *testing.T, s store.Store, name string, nics ...*nic.NIC) *node.Node {
	t.Helper()
	n := &node.Node{Name: name, Attributes: map[string]string{"rack": "r1"}}
	if err := s.CreateNode(context.Background(), n, nics...); err != nil {
		t.Fatalf("CreateNode(%s): %v", name, err)
	}
	if n.ID == 0 {
		t.Fatalf("CreateNode(%s) did not assign an id", name)
	}
	return n
}

func mac(i int) string { return fmt.Sprintf("52:54:00:00:00:%02x", i) }

func names(nodes []*node.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

// ──────────────────────────────────────────────────
// Nodes and NICs
// ──────────────────────────────────────────────────

func testCreateAndGetNode(t *testing.T, s store.Store) {
	ctx := context.Background()
	n := mustCreateNode(t, s, "n1")

	got, err := s.GetNodeByID(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "n1" || got.Reserved() || got.Attributes["rack"] != "r1" {
		t.Errorf("unexpected node %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got, err = s.GetNodeByName(ctx, "n1")
	if err != nil || got.ID != n.ID {
		t.Fatalf("GetNodeByName = %v, %v", got, err)
	}

	_, err = s.GetNodeByName(ctx, "missing")
	wantErr(t, err, warden.ErrNodeNotFound)
	_, err = s.GetNodeByID(ctx, n.ID+1000)
	wantErr(t, err, warden.ErrNodeNotFound)
}

func testDuplicateNodeName(t *testing.T, s store.Store) {
	mustCreateNode(t, s, "n1")
	err := s.CreateNode(context.Background(), &node.Node{Name: "n1"})
	wantErr(t, err, warden.ErrDuplicateName)
}

func testCreateNodeWithNICs(t *testing.T, s store.Store) {
	ctx := context.Background()
	n := mustCreateNode(t, s, "n1", &nic.NIC{Address: "52:54:00:00:00:01"}, &nic.NIC{Address: "52-54-00-00-00-02"})

	nics, err := s.ListNICsByNode(ctx, n.ID, nic.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(nics) != 2 {
		t.Fatalf("expected 2 nics, got %d", len(nics))
	}
	for _, c := range nics {
		if c.UUID == "" || c.NodeID != n.ID {
			t.Errorf("unexpected nic %+v", c)
		}
	}

	got, err := s.GetNICByAddress(ctx, "52:54:00:00:00:02")
	if err != nil {
		t.Fatal(err)
	}
	byUUID, err := s.GetNICByUUID(ctx, got.UUID)
	if err != nil || byUUID.ID != got.ID {
		t.Fatalf("GetNICByUUID = %v, %v", byUUID, err)
	}
	byID, err := s.GetNICByID(ctx, got.ID)
	if err != nil || byID.Address != got.Address {
		t.Fatalf("GetNICByID = %v, %v", byID, err)
	}
}

func testCreateNodeRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "n1", &nic.NIC{Address: mac(1)})

	n2 := &node.Node{Name: "n2"}
	err := s.CreateNode(ctx, n2, &nic.NIC{Address: mac(2)}, &nic.NIC{Address: mac(1)})
	wantErr(t, err, warden.ErrDuplicateAddress)
	if n2.ID != 0 || !n2.CreatedAt.IsZero() || !n2.UpdatedAt.IsZero() {
		t.Errorf("failed CreateNode modified the caller's node: id=%d created=%v updated=%v",
			n2.ID, n2.CreatedAt, n2.UpdatedAt)
	}

	_, err = s.GetNodeByName(ctx, "n2")
	wantErr(t, err, warden.ErrNodeNotFound)
	_, err = s.GetNICByAddress(ctx, mac(2))
	wantErr(t, err, warden.ErrNICNotFound)
}

func testDuplicateNICAddress(t *testing.T, s store.Store) {
	ctx := context.Background()
	n := mustCreateNode(t, s, "n1")
	first := &nic.NIC{NodeID: n.ID, Address: mac(1)}
	if err := s.CreateNIC(ctx, first); err != nil {
		t.Fatal(err)
	}

	err := s.CreateNIC(ctx, &nic.NIC{NodeID: n.ID, Address: mac(1)})
	wantErr(t, err, warden.ErrDuplicateAddress)
	var dup *warden.DuplicateError
	if !errors.As(err, &dup) || dup.Value != mac(1) {
		t.Errorf("expected DuplicateError carrying the address, got %v", err)
	}

	got, err := s.GetNICByAddress(ctx, mac(1))
	if err != nil || got.UUID != first.UUID {
		t.Fatalf("first nic disturbed: %v, %v", got, err)
	}

	err = s.CreateNIC(ctx, &nic.NIC{NodeID: n.ID, UUID: first.UUID, Address: mac(2)})
	wantErr(t, err, warden.ErrDuplicateIdentity)
}

func testNICRequiresNode(t *testing.T, s store.Store) {
	err := s.CreateNIC(context.Background(), &nic.NIC{NodeID: 4242, Address: mac(9)})
	wantErr(t, err, warden.ErrNodeNotFound)
}

func testUpdateNIC(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "n1", &nic.NIC{Address: mac(1)}, &nic.NIC{Address: mac(2)})

	newAddr := mac(3)
	got, err := s.UpdateNIC(ctx, nic.Ident{Address: mac(1)}, nic.Update{
		Address:    &newAddr,
		Attributes: map[string]string{"pxe": "true"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Address != mac(3) || got.Attributes["pxe"] != "true" {
		t.Errorf("unexpected nic after update %+v", got)
	}

	taken := mac(2)
	_, err = s.UpdateNIC(ctx, nic.Ident{ID: got.ID}, nic.Update{Address: &taken})
	wantErr(t, err, warden.ErrDuplicateAddress)

	otherUUID := "3f1c1b3e-6a53-4a5f-9f0d-6d1f7a6d9b20"
	_, err = s.UpdateNIC(ctx, nic.Ident{ID: got.ID}, nic.Update{UUID: &otherUUID})
	wantErr(t, err, warden.ErrInvalidParameter)

	_, err = s.UpdateNIC(ctx, nic.Ident{Address: mac(7)}, nic.Update{})
	wantErr(t, err, warden.ErrNICNotFound)
}

func testDestroyNIC(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "n1", &nic.NIC{Address: mac(1)})

	if err := s.DestroyNIC(ctx, nic.Ident{Address: mac(1)}); err != nil {
		t.Fatal(err)
	}
	_, err := s.GetNICByAddress(ctx, mac(1))
	wantErr(t, err, warden.ErrNICNotFound)
	wantErr(t, s.DestroyNIC(ctx, nic.Ident{Address: mac(1)}), warden.ErrNICNotFound)
}

// ──────────────────────────────────────────────────
// Reservation primitive
// ──────────────────────────────────────────────────

func testSwapReservation(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "n1")
	mustCreateNode(t, s, "n2")
	sel := node.ByNames("n1", "n2")

	n, err := s.SwapReservation(ctx, sel, "", "c1")
	if err != nil || n != 2 {
		t.Fatalf("acquire swap = %d, %v", n, err)
	}

	n, err = s.SwapReservation(ctx, sel, "", "c2")
	if err != nil || n != 0 {
		t.Fatalf("second acquire swap = %d, %v; want 0 rows", n, err)
	}

	found, err := s.FindNodes(ctx, sel)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range found {
		if f.Reservation != "c1" {
			t.Errorf("node %s reservation = %q, want c1", f.Name, f.Reservation)
		}
	}

	n, err = s.SwapReservation(ctx, node.ByName("n1"), "c2", "")
	if err != nil || n != 0 {
		t.Fatalf("foreign release swap = %d, %v; want 0 rows", n, err)
	}
	n, err = s.SwapReservation(ctx, node.ByName("n1"), "c1", "")
	if err != nil || n != 1 {
		t.Fatalf("release swap = %d, %v", n, err)
	}
}

func testSwapReservationMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	n1 := mustCreateNode(t, s, "n1")

	n, err := s.SwapReservation(ctx, node.ByIDs(n1.ID, n1.ID+500), "", "c1")
	if err != nil || n != 1 {
		t.Fatalf("swap = %d, %v; want 1 row", n, err)
	}
	found, err := s.FindNodes(ctx, node.ByIDs(n1.ID, n1.ID+500))
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].ID != n1.ID {
		t.Errorf("FindNodes = %v", names(found))
	}
}

func testConcurrentSwap(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "n1")

	const contenders = 8
	counts := make([]int64, contenders)
	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		i := i
		g.Go(func() error {
			return s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
				n, err := tx.SwapReservation(ctx, node.ByName("n1"), "", fmt.Sprintf("c%d", i))
				counts[i] = n
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	var winners int64
	for _, c := range counts {
		winners += c
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

// ──────────────────────────────────────────────────
// Node update / destroy / listing
// ──────────────────────────────────────────────────

func testUpdateNode(t *testing.T, s store.Store) {
	ctx := context.Background()
	n1 := mustCreateNode(t, s, "n1")
	mustCreateNode(t, s, "n2")

	state := "active"
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := s.UpdateNode(ctx, n1.ID, node.Update{ProvisionState: &state, ProvisionUpdatedAt: &at})
	if err != nil {
		t.Fatal(err)
	}
	if got.ProvisionState != "active" || got.ProvisionUpdatedAt == nil || !got.ProvisionUpdatedAt.Equal(at) {
		t.Errorf("unexpected node after update %+v", got)
	}

	dup := "n2"
	_, err = s.UpdateNode(ctx, n1.ID, node.Update{Name: &dup})
	wantErr(t, err, warden.ErrDuplicateName)

	_, err = s.UpdateNode(ctx, n1.ID+1000, node.Update{ProvisionState: &state})
	wantErr(t, err, warden.ErrNodeNotFound)
}

func testDestroyNodeCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	n := mustCreateNode(t, s, "n1", &nic.NIC{Address: mac(1)}, &nic.NIC{Address: mac(2)})

	if err := s.DestroyNode(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	_, err := s.GetNodeByName(ctx, "n1")
	wantErr(t, err, warden.ErrNodeNotFound)
	nics, err := s.ListNICsByNode(ctx, n.ID, nic.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(nics) != 0 {
		t.Errorf("expected nics to be deleted, got %d", len(nics))
	}
	_, err = s.GetNICByAddress(ctx, mac(1))
	wantErr(t, err, warden.ErrNICNotFound)

	wantErr(t, s.DestroyNode(ctx, "n1"), warden.ErrNodeNotFound)
}

func testDestroyNodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	n1 := mustCreateNode(t, s, "n1", &nic.NIC{Address: mac(1)})
	n2 := mustCreateNode(t, s, "n2")
	mustCreateNode(t, s, "n3")

	if err := s.DestroyNodes(ctx, []int64{n1.ID, n2.ID, n2.ID + 1000}); err != nil {
		t.Fatal(err)
	}
	all, err := s.ListNodes(ctx, node.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if got := names(all); !slices.Equal(got, []string{"n3"}) {
		t.Errorf("remaining nodes = %v", got)
	}
	_, err = s.GetNICByAddress(ctx, mac(1))
	wantErr(t, err, warden.ErrNICNotFound)

	err = s.DestroyNodes(ctx, []int64{n1.ID, n2.ID + 1000})
	wantErr(t, err, warden.ErrNodeNotFound)
	if err := s.DestroyNodes(ctx, nil); err != nil {
		t.Errorf("DestroyNodes(nil) = %v", err)
	}
	all, err = s.ListNodes(ctx, node.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if got := names(all); !slices.Equal(got, []string{"n3"}) {
		t.Errorf("remaining nodes after a missing batch = %v", got)
	}
}

func testGetNodesIn(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "n1", &nic.NIC{Address: mac(1)})
	mustCreateNode(t, s, "n2")
	mustCreateNode(t, s, "n3")
	if _, err := s.SwapReservation(ctx, node.ByName("n2"), "", "c1"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		in      []string
		filters []node.Filter
		want    []string
	}{
		{"all named", []string{"n3", "n1", "missing"}, nil, []string{"n1", "n3"}},
		{"reserved", []string{"n1", "n2", "n3"}, []node.Filter{node.Reserved(true)}, []string{"n2"}},
		{"unreserved", []string{"n1", "n2", "n3"}, []node.Filter{node.Reserved(false)}, []string{"n1", "n3"}},
		{"held by c1", []string{"n1", "n2"}, []node.Filter{node.ReservedByAnyOf("c1", "c9")}, []string{"n2"}},
		{"associated", []string{"n1", "n2", "n3"}, []node.Filter{node.Associated(true)}, []string{"n1"}},
		{"not associated", []string{"n1", "n2", "n3"}, []node.Filter{node.Associated(false)}, []string{"n2", "n3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetNodesIn(ctx, tt.in, tt.filters...)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(names(got), tt.want) {
				t.Errorf("got %v, want %v", names(got), tt.want)
			}
		})
	}
}

func testListNodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, name := range []string{"b", "a", "d", "c"} {
		mustCreateNode(t, s, name)
	}
	state := "active"
	old := time.Now().UTC().Add(-48 * time.Hour)
	a, err := s.GetNodeByName(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateNode(ctx, a.ID, node.Update{ProvisionState: &state, ProvisionUpdatedAt: &old}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts node.ListOpts
		want []string
	}{
		{"by id", node.ListOpts{}, []string{"b", "a", "d", "c"}},
		{"by name", node.ListOpts{Page: query.Page{SortKey: "name"}}, []string{"a", "b", "c", "d"}},
		{"by name desc", node.ListOpts{Page: query.Page{SortKey: "name", SortDir: query.Desc}}, []string{"d", "c", "b", "a"}},
		{"limit", node.ListOpts{Page: query.Page{Limit: 2}}, []string{"b", "a"}},
		{"state filter", node.ListOpts{Filters: []node.Filter{node.ProvisionState("active")}}, []string{"a"}},
		{"provisioned before", node.ListOpts{Filters: []node.Filter{node.ProvisionedBefore(24 * time.Hour)}}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListNodes(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(names(got), tt.want) {
				t.Errorf("got %v, want %v", names(got), tt.want)
			}
		})
	}

	t.Run("marker", func(t *testing.T) {
		first, err := s.ListNodes(ctx, node.ListOpts{Page: query.Page{Limit: 2}})
		if err != nil {
			t.Fatal(err)
		}
		next, err := s.ListNodes(ctx, node.ListOpts{Page: query.Page{Limit: 2, Marker: first[1].ID}})
		if err != nil {
			t.Fatal(err)
		}
		if got := names(next); !slices.Equal(got, []string{"d", "c"}) {
			t.Errorf("second page = %v", got)
		}
	})
}

func testListNodesInvalidSort(t *testing.T, s store.Store) {
	_, err := s.ListNodes(context.Background(), node.ListOpts{Page: query.Page{SortKey: "power_state"}})
	wantErr(t, err, warden.ErrInvalidParameter)
	_, err = s.ListNICs(context.Background(), nic.ListOpts{Page: query.Page{SortKey: "name"}})
	wantErr(t, err, warden.ErrInvalidParameter)
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

var errAbort = errors.New("abort")

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "n1")

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.SwapReservation(ctx, node.ByName("n1"), "", "c1"); err != nil {
			return err
		}
		if err := tx.CreateNode(ctx, &node.Node{Name: "n2"}); err != nil {
			return err
		}
		return errAbort
	})
	wantErr(t, err, errAbort)

	n1, err := s.GetNodeByName(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if n1.Reserved() {
		t.Error("reservation survived rollback")
	}
	_, err = s.GetNodeByName(ctx, "n2")
	wantErr(t, err, warden.ErrNodeNotFound)
}

func testTxNestedJoins(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "n1")

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		err := tx.InTx(ctx, func(ctx context.Context, inner store.Tx) error {
			_, err := inner.SwapReservation(ctx, node.ByName("n1"), "", "c1")
			return err
		})
		if err != nil {
			return err
		}
		n, err := tx.GetNodeByName(ctx, "n1")
		if err != nil {
			return err
		}
		if n.Reservation != "c1" {
			return fmt.Errorf("nested write not visible in outer transaction: %q", n.Reservation)
		}
		return errAbort
	})
	wantErr(t, err, errAbort)

	n1, err := s.GetNodeByName(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if n1.Reserved() {
		t.Error("nested write survived outer rollback")
	}
}

// A nested unit of work that fails after a partial write must not leak that
// write into the enclosing commit. Backends with savepoints commit the outer
// transaction; the others refuse the commit with warden.ErrTxAborted.
func testTxNestedFailure(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "r1")
	mustCreateNode(t, s, "r2")
	if _, err := s.SwapReservation(ctx, node.ByName("r2"), "", "other"); err != nil {
		t.Fatal(err)
	}

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		err := tx.InTx(ctx, func(ctx context.Context, inner store.Tx) error {
			count, err := inner.SwapReservation(ctx, node.ByNames("r1", "r2"), "", "t1")
			if err != nil {
				return err
			}
			if count != 1 {
				return fmt.Errorf("swapped %d nodes, want 1", count)
			}
			return warden.ErrNodeLocked
		})
		if !errors.Is(err, warden.ErrNodeLocked) {
			t.Errorf("nested InTx = %v, want ErrNodeLocked", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, warden.ErrTxAborted) {
		t.Fatalf("outer commit: %v", err)
	}

	for name, want := range map[string]string{"r1": "", "r2": "other"} {
		n, err := s.GetNodeByName(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if n.Reservation != want {
			t.Errorf("%s reservation = %q, want %q", name, n.Reservation, want)
		}
	}
}

func testTxPanicRollsBack(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateNode(t, s, "n1")

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.SwapReservation(ctx, node.ByName("n1"), "", "c1"); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	n1, err := s.GetNodeByName(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if n1.Reserved() {
		t.Error("reservation survived panic")
	}
}

// ──────────────────────────────────────────────────
// Conductors
// ──────────────────────────────────────────────────

func testConductorLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	n, err := s.TouchConductor(ctx, "c1", at)
	if err != nil || n != 0 {
		t.Fatalf("touch of unknown conductor = %d, %v", n, err)
	}

	c := &conductor.Conductor{Hostname: "c1", Online: true, LastHeartbeat: at, Drivers: []string{"ipmi"}}
	if err := s.CreateConductor(ctx, c); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOnlineConductor(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastHeartbeat.Equal(at) || !slices.Equal(got.Drivers, []string{"ipmi"}) {
		t.Errorf("unexpected conductor %+v", got)
	}

	later := at.Add(30 * time.Second)
	if n, err := s.TouchConductor(ctx, "c1", later); err != nil || n != 1 {
		t.Fatalf("touch = %d, %v", n, err)
	}
	got, err = s.GetOnlineConductor(ctx, "c1")
	if err != nil || !got.LastHeartbeat.Equal(later) {
		t.Fatalf("heartbeat not recorded: %+v, %v", got, err)
	}

	if n, err := s.MarkConductorOffline(ctx, "c1", later); err != nil || n != 1 {
		t.Fatalf("mark offline = %d, %v", n, err)
	}
	if n, err := s.MarkConductorOffline(ctx, "c1", later); err != nil || n != 0 {
		t.Fatalf("second mark offline = %d, %v; want 0 rows", n, err)
	}
	_, err = s.GetOnlineConductor(ctx, "c1")
	wantErr(t, err, warden.ErrConductorNotFound)

	err = s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetConductorForUpdate(ctx, "c1")
		if err != nil {
			return err
		}
		if cur.Online {
			return errors.New("expected offline record")
		}
		cur.Online = true
		cur.Drivers = []string{"redfish"}
		return tx.UpdateConductor(ctx, cur)
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err = s.GetOnlineConductor(ctx, "c1")
	if err != nil || !slices.Equal(got.Drivers, []string{"redfish"}) {
		t.Fatalf("update not applied: %+v, %v", got, err)
	}

	_, err = s.GetConductorForUpdate(ctx, "c9")
	wantErr(t, err, warden.ErrConductorNotFound)
}

func testDuplicateConductor(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.CreateConductor(ctx, &conductor.Conductor{Hostname: "c1", Online: true, LastHeartbeat: at}); err != nil {
		t.Fatal(err)
	}
	err := s.CreateConductor(ctx, &conductor.Conductor{Hostname: "c1", Online: true, LastHeartbeat: at})
	wantErr(t, err, warden.ErrDuplicateIdentity)
}

func testListConductorsSince(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*conductor.Conductor{
		{Hostname: "c3", Online: true, LastHeartbeat: now.Add(-10 * time.Second)},
		{Hostname: "c1", Online: true, LastHeartbeat: now.Add(-5 * time.Second)},
		{Hostname: "c2", Online: true, LastHeartbeat: now.Add(-5 * time.Minute)},
		{Hostname: "c4", Online: false, LastHeartbeat: now},
	}
	for _, c := range records {
		if err := s.CreateConductor(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	alive, err := s.ListConductorsSince(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, c := range alive {
		got = append(got, c.Hostname)
	}
	if !slices.Equal(got, []string{"c1", "c3"}) {
		t.Errorf("alive = %v, want [c1 c3]", got)
	}

	all, err := s.ListConductors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].Hostname != "c1" {
		t.Errorf("ListConductors returned %d records, first %q", len(all), all[0].Hostname)
	}
}
