package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xraph/warden"
	"github.com/xraph/warden/ext"
	"github.com/xraph/warden/middleware"
	"github.com/xraph/warden/node"
	"github.com/xraph/warden/store"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the default middleware.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithExtensions sets the registry notified of reservation events.
func WithExtensions(r *ext.Registry) Option {
	return func(m *Manager) { m.extensions = r }
}

// WithMiddleware replaces the default middleware (logging only) with mw.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(m *Manager) { m.mw = mw }
}

// Manager acquires and releases node reservations.
type Manager struct {
	db         store.Tx
	logger     *slog.Logger
	extensions *ext.Registry
	mw         middleware.Middleware
}

// NewManager returns a Manager over db. db is usually a store.Store; a
// store.Tx makes every call join that transaction.
func NewManager(db store.Tx, opts ...Option) *Manager {
	m := &Manager{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	if m.extensions == nil {
		m.extensions = ext.NewRegistry(m.logger)
	}
	if m.mw == nil {
		m.mw = middleware.Logging(m.logger)
	}
	return m
}

// Acquire reserves every selected node for tag, or none of them.
//
// It fails with warden.ErrNodeNotFound if a selected node does not exist and
// with a *warden.LockedError if any selected node is already reserved,
// including by tag itself.
func (m *Manager) Acquire(ctx context.Context, tag string, sel node.Selector) ([]*node.Node, error) {
	if err := validate(tag, sel); err != nil {
		return nil, err
	}

	var reserved []*node.Node
	op := &middleware.Op{Name: "acquire", Actor: tag, Target: sel.String(), Size: sel.Len()}
	err := m.mw(ctx, op, func(ctx context.Context) error {
		return m.db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			before, err := tx.FindNodes(ctx, sel)
			if err != nil {
				return err
			}
			count, err := tx.SwapReservation(ctx, sel, "", tag)
			if err != nil {
				return err
			}
			after, err := tx.FindNodes(ctx, sel)
			if err != nil {
				return err
			}
			if len(after) < sel.Len() {
				return notFound(sel, after)
			}
			if int(count) < sel.Len() {
				return acquireConflict(sel, tag, before, after)
			}
			reserved = after
			return nil
		})
	})
	if err != nil {
		m.conflict(ctx, tag, sel, err)
		return nil, err
	}

	m.extensions.EmitNodesReserved(ctx, tag, reserved)
	return reserved, nil
}

// AcquireOne reserves a single node addressed by id or name.
func (m *Manager) AcquireOne(ctx context.Context, tag, ident string) (*node.Node, error) {
	sel, err := node.ParseIdentity(ident)
	if err != nil {
		return nil, err
	}
	nodes, err := m.Acquire(ctx, tag, sel)
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

// Release clears tag from every selected node, or from none of them.
//
// It fails with warden.ErrNodeNotFound if a selected node does not exist,
// with a *warden.LockedError if a node is held by another tag, and with a
// *warden.NotLockedError if a node is not reserved at all.
func (m *Manager) Release(ctx context.Context, tag string, sel node.Selector) error {
	if err := validate(tag, sel); err != nil {
		return err
	}

	op := &middleware.Op{Name: "release", Actor: tag, Target: sel.String(), Size: sel.Len()}
	err := m.mw(ctx, op, func(ctx context.Context) error {
		return m.db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			before, err := tx.FindNodes(ctx, sel)
			if err != nil {
				return err
			}
			count, err := tx.SwapReservation(ctx, sel, tag, "")
			if err != nil {
				return err
			}
			if int(count) == sel.Len() {
				return nil
			}
			// The re-read must stay inside this transaction.
			after, err := tx.FindNodes(ctx, sel)
			if err != nil {
				return err
			}
			if len(after) < sel.Len() {
				return notFound(sel, after)
			}
			return releaseConflict(sel, tag, before, after)
		})
	})
	if err != nil {
		m.conflict(ctx, tag, sel, err)
		return err
	}

	m.extensions.EmitNodesReleased(ctx, tag, sel)
	return nil
}

// ReleaseOne releases a single node addressed by id or name.
func (m *Manager) ReleaseOne(ctx context.Context, tag, ident string) error {
	sel, err := node.ParseIdentity(ident)
	if err != nil {
		return err
	}
	return m.Release(ctx, tag, sel)
}

// Holding returns the nodes currently reserved by tag, ordered by id.
func (m *Manager) Holding(ctx context.Context, tag string) ([]*node.Node, error) {
	if tag == "" {
		return nil, warden.InvalidParameter("reservation tag must not be empty")
	}
	var nodes []*node.Node
	op := &middleware.Op{Name: "holding", Actor: tag}
	err := m.mw(ctx, op, func(ctx context.Context) error {
		var err error
		nodes, err = m.db.ListNodes(ctx, node.ListOpts{Filters: []node.Filter{node.ReservedByAnyOf(tag)}})
		return err
	})
	return nodes, err
}

func (m *Manager) conflict(ctx context.Context, tag string, sel node.Selector, err error) {
	if middleware.Outcome(err) == "conflict" {
		m.extensions.EmitReservationConflict(ctx, tag, sel, err)
	}
}

func validate(tag string, sel node.Selector) error {
	if tag == "" {
		return warden.InvalidParameter("reservation tag must not be empty")
	}
	return sel.Validate()
}

func notFound(sel node.Selector, found []*node.Node) error {
	return fmt.Errorf("%w: %s", warden.ErrNodeNotFound, strings.Join(sel.Missing(found), ", "))
}

// acquireConflict names the first node the swap did not claim. A node whose
// reservation differs from tag after the swap is held by someone else; if
// there is none, tag itself already held one of the nodes beforehand.
func acquireConflict(sel node.Selector, tag string, before, after []*node.Node) error {
	for _, n := range after {
		if n.Reservation != tag {
			return &warden.LockedError{Node: sel.Key(n), Holder: n.Reservation}
		}
	}
	for _, n := range before {
		if n.Reservation == tag {
			return &warden.LockedError{Node: sel.Key(n), Holder: tag}
		}
	}
	return &warden.LockedError{Node: sel.String()}
}

// releaseConflict names the first node the swap did not release: one held
// by another tag wins over one that was not reserved at all.
func releaseConflict(sel node.Selector, tag string, before, after []*node.Node) error {
	for _, n := range after {
		if n.Reservation != "" && n.Reservation != tag {
			return &warden.LockedError{Node: sel.Key(n), Holder: n.Reservation}
		}
	}
	for _, n := range before {
		if n.Reservation == "" {
			return &warden.NotLockedError{Node: sel.Key(n)}
		}
	}
	return &warden.NotLockedError{Node: sel.String()}
}
