package ports

import (
	"context"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/value"
)

// StateFormat is the persistence format every store serializes to.
const StateFormat = "yaml"

// StateStore holds key/value state partitioned by scope.
type StateStore interface {
	// Format names the serialization used by Load and Save.
	Format() string

	// Load replaces the contents of scope with a serialized document.
	Load(ctx context.Context, scope entities.StateScope, data []byte) error

	// Save serializes the contents of scope.
	Save(ctx context.Context, scope entities.StateScope) ([]byte, error)

	// Get returns a caller-owned copy of the value under key.
	Get(ctx context.Context, scope entities.StateScope, key string) (value.Value, bool, error)

	// Set stores a copy of v under key.
	Set(ctx context.Context, scope entities.StateScope, key string, v value.Value) error

	// List returns the keys of scope, sorted.
	List(ctx context.Context, scope entities.StateScope) ([]string, error)

	// Clear removes every key of scope.
	Clear(ctx context.Context, scope entities.StateScope) error
}
