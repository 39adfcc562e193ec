// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	caller := requestcontext.Principal(ctx)
//	funds := requestcontext.AttachedFunds(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithPrincipal(ctx, principal)
//	ctx = requestcontext.WithAttachedFunds(ctx, funds)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "covera/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	principalKey     struct{}
	attachedFundsKey struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyPrincipal     = principalKey{}
	ContextKeyAttachedFunds = attachedFundsKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// Principal retrieves the authenticated caller from the context.
// Returns the zero value if not set.
func Principal(ctx context.Context) id.PrincipalID {
	if p, ok := ctx.Value(ContextKeyPrincipal).(id.PrincipalID); ok {
		return p
	}
	return ""
}

// WithPrincipal injects a caller principal into the context.
func WithPrincipal(ctx context.Context, principal id.PrincipalID) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, principal)
}

// AttachedFunds retrieves the funds attached to the current operation.
// Returns zero when the call carries no payment.
func AttachedFunds(ctx context.Context) id.Units {
	if funds, ok := ctx.Value(ContextKeyAttachedFunds).(id.Units); ok {
		return funds
	}
	return 0
}

// WithAttachedFunds injects an attached payment amount into the context.
func WithAttachedFunds(ctx context.Context, funds id.Units) context.Context {
	return context.WithValue(ctx, ContextKeyAttachedFunds, funds)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
