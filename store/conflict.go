package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/xraph/warden"
)

// DuplicateKeyError is the backend-neutral form of a uniqueness violation.
// Columns lists the offending columns when the backend can tell; it may be
// empty.
type DuplicateKeyError struct {
	Table   string
	Columns []string
	Err     error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key on %s(%s): %v", e.Table, strings.Join(e.Columns, ","), e.Err)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// Has reports whether col is among the offending columns.
func (e *DuplicateKeyError) Has(col string) bool { return slices.Contains(e.Columns, col) }

// MatchColumns returns the candidate columns mentioned in a driver's error
// text or constraint name, in candidate order.
func MatchColumns(text string, candidates ...string) []string {
	var out []string
	for _, c := range candidates {
		if strings.Contains(text, c) {
			out = append(out, c)
		}
	}
	return out
}

// TranslateNodeConflict maps a duplicate key on the nodes table. Other
// errors are returned unchanged.
func TranslateNodeConflict(err error, name string) error {
	var dk *DuplicateKeyError
	if !errors.As(err, &dk) {
		return err
	}
	if dk.Has("name") {
		return &warden.DuplicateError{Kind: warden.ErrDuplicateName, Field: "name", Value: name}
	}
	return &warden.DuplicateError{Kind: warden.ErrDuplicateIdentity, Field: "id", Value: name}
}

// TranslateNICConflict maps a duplicate key on the nics table.
func TranslateNICConflict(err error, address, uuid string) error {
	var dk *DuplicateKeyError
	if !errors.As(err, &dk) {
		return err
	}
	switch {
	case dk.Has("address"):
		return &warden.DuplicateError{Kind: warden.ErrDuplicateAddress, Field: "address", Value: address}
	case dk.Has("uuid"):
		return &warden.DuplicateError{Kind: warden.ErrDuplicateIdentity, Field: "uuid", Value: uuid}
	default:
		return &warden.DuplicateError{Kind: warden.ErrDuplicateIdentity, Field: "nic", Value: address}
	}
}

// TranslateConductorConflict maps a duplicate key on the conductors table.
func TranslateConductorConflict(err error, hostname string) error {
	var dk *DuplicateKeyError
	if !errors.As(err, &dk) {
		return err
	}
	return &warden.DuplicateError{Kind: warden.ErrDuplicateIdentity, Field: "hostname", Value: hostname}
}
