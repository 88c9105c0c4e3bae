package tenant

import "context"

// Registry resolves a tenant id into connection metadata. The concrete
// implementation fetches from the remote platform registry; decorators add
// caching, and tests substitute doubles.
type Registry interface {
	Fetch(ctx context.Context, id ID) (*ConnectionInfo, error)
}

// RegistryFunc adapts a function to the Registry interface.
type RegistryFunc func(ctx context.Context, id ID) (*ConnectionInfo, error)

func (f RegistryFunc) Fetch(ctx context.Context, id ID) (*ConnectionInfo, error) {
	return f(ctx, id)
}
