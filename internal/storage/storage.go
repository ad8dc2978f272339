// Package storage defines the database sink for the final well table and the
// factory that selects a backend by kind.
package storage

import (
	"context"
	"fmt"

	"wellnorm/internal/table"
)

// Config holds sink configuration shared across backends.
type Config struct {
	DSN             string
	Table           string
	AutoCreateTable bool
}

// Sink persists the final table. Store replaces the destination's contents
// atomically per run; the table is a full snapshot, not a delta.
type Sink interface {
	Store(ctx context.Context, t *table.Table) (int64, error)
	Close()
}

// factories maps a storage kind to its constructor. Backends register
// themselves in their package init via Register.
var factories = map[string]func(ctx context.Context, cfg Config) (Sink, error){}

// Register installs a backend constructor under kind. Later registrations
// overwrite earlier ones, which tests use to install fakes.
func Register(kind string, fn func(ctx context.Context, cfg Config) (Sink, error)) {
	factories[kind] = fn
}

// New constructs the sink for kind.
func New(ctx context.Context, kind string, cfg Config) (Sink, error) {
	fn, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q", kind)
	}
	return fn(ctx, cfg)
}
