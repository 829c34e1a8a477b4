package fetch

import (
	"context"

	"github.com/roach88/tablekit/internal/row"
)

// Source provides the full dataset. It is called on cache misses only.
type Source interface {
	Load(ctx context.Context) ([]row.Row, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]row.Row, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) ([]row.Row, error) {
	return f(ctx)
}

// StaticSource serves a fixed in-memory dataset.
type StaticSource []row.Row

// Load returns a deep copy so cache mutations never reach the original.
func (s StaticSource) Load(context.Context) ([]row.Row, error) {
	out := make([]row.Row, len(s))
	for i, r := range s {
		out[i] = r.Clone()
	}
	return out, nil
}

// Persister receives each mutation before it is committed to the cache.
// A Persister error fails the mutation with NETWORK_ERROR and leaves the
// cache unchanged.
type Persister interface {
	SaveRow(ctx context.Context, r row.Row) error
	DeleteRow(ctx context.Context, id string) error
}
