package warden

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore         = errors.New("warden: no store configured")
	ErrStoreClosed     = errors.New("warden: store closed")
	ErrMigrationFailed = errors.New("warden: migration failed")

	// ErrTxAborted is returned by a commit refused because a nested unit of
	// work failed on a backend without savepoints.
	ErrTxAborted = errors.New("warden: transaction aborted by a failed nested unit of work")

	// Not found errors.
	ErrNodeNotFound      = errors.New("warden: node not found")
	ErrNICNotFound       = errors.New("warden: nic not found")
	ErrConductorNotFound = errors.New("warden: conductor not found")

	// Reservation errors.
	ErrNodeLocked    = errors.New("warden: node locked")
	ErrNodeNotLocked = errors.New("warden: node not locked")

	// Conflict errors.
	ErrConductorAlreadyRegistered = errors.New("warden: conductor already registered")
	ErrDuplicateName              = errors.New("warden: duplicate name")
	ErrDuplicateAddress           = errors.New("warden: duplicate address")
	ErrDuplicateIdentity          = errors.New("warden: duplicate identity")

	// Parameter errors.
	ErrInvalidParameter = errors.New("warden: invalid parameter")
)

// LockedError reports a reservation conflict. Node identifies the first
// conflicting node; Holder is the tag currently holding it, if known.
type LockedError struct {
	Node   string
	Holder string
}

func (e *LockedError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("warden: node %q is locked", e.Node)
	}
	return fmt.Sprintf("warden: node %q is locked by %q", e.Node, e.Holder)
}

// Is reports whether target is ErrNodeLocked.
func (e *LockedError) Is(target error) bool { return target == ErrNodeLocked }

// NotLockedError reports a release attempted on a node without a reservation.
type NotLockedError struct {
	Node string
}

func (e *NotLockedError) Error() string {
	return fmt.Sprintf("warden: node %q is not locked", e.Node)
}

// Is reports whether target is ErrNodeNotLocked.
func (e *NotLockedError) Is(target error) bool { return target == ErrNodeNotLocked }

// DuplicateError reports a uniqueness violation. Kind is one of
// ErrDuplicateName, ErrDuplicateAddress or ErrDuplicateIdentity.
type DuplicateError struct {
	Kind  error
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%v: %s %q already exists", e.Kind, e.Field, e.Value)
}

// Unwrap returns the sentinel kind so errors.Is matches it.
func (e *DuplicateError) Unwrap() error { return e.Kind }

// InvalidParameter returns an error wrapping ErrInvalidParameter.
func InvalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
