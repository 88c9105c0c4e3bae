package tenant

import "context"

// ctxKey is the context key for the active tenant id.
type ctxKey struct{}

// WithTenant returns a context carrying the given tenant id. Every unit of
// work (request, job) gets its own context, so the tenant value cannot leak
// into another unit of work: it is gone when the context is.
func WithTenant(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// WithoutTenant returns a context with any tenant association removed.
// Downstream components treat the absence of a tenant as administrative mode
// (provisioning, migration, cross-tenant operations).
func WithoutTenant(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ID(""))
}

// FromContext returns the active tenant id, if one is set.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(ctxKey{}).(ID)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
