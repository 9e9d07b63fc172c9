// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them; keeping the
// package free of net/http lets services avoid transport imports.
//
// The injectable clock (Now/WithTime) exists so service tests can pin time
// without monkey-patching.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey struct{}
	actorIDKey   struct{}
	timeKey      struct{}
)

// RequestID retrieves the correlation id set by the RequestID middleware.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// ActorID retrieves the authenticated actor (token subject) used for
// CreatedBy/UpdatedBy attribution. Empty when the request was anonymous.
func ActorID(ctx context.Context) string {
	if v, ok := ctx.Value(actorIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActorID injects an actor id into the context.
func WithActorID(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actor)
}

// Now returns the request time when one was injected, falling back to the
// wall clock. Services use this instead of time.Now so tests are deterministic.
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(timeKey{}).(time.Time); ok {
		return v
	}
	return time.Now().UTC()
}

// WithTime pins the request time on the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey{}, t)
}
