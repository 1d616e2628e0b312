// Package middleware provides composable middleware for reservation and
// liveness operations. Middleware wraps each operation synchronously and
// can observe or modify it (recover from panics, log, trace, measure).
package middleware

import (
	"context"
	"errors"

	"github.com/xraph/warden"
)

// Op describes the operation being executed.
type Op struct {
	// Name is the operation: "acquire", "release", "register", ...
	Name string

	// Actor is the reservation tag or the conductor hostname.
	Actor string

	// Target names what the operation touches, e.g. a node selector.
	Target string

	// Size is the number of nodes the operation selects, or zero.
	Size int
}

// Handler is the terminal function that executes the operation.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the operation being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, op *Op, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(recover, tracing, logging) executes as:
//
//	recover → tracing → logging → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, op *Op, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, op, prev)
			}
		}
		return h(ctx)
	}
}

// Outcome classifies an operation result for logs and metrics:
// "ok", "conflict", "not_found", "invalid" or "error".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, warden.ErrNodeLocked),
		errors.Is(err, warden.ErrNodeNotLocked),
		errors.Is(err, warden.ErrConductorAlreadyRegistered):
		return "conflict"
	case errors.Is(err, warden.ErrNodeNotFound),
		errors.Is(err, warden.ErrConductorNotFound):
		return "not_found"
	case errors.Is(err, warden.ErrInvalidParameter):
		return "invalid"
	default:
		return "error"
	}
}
