package statestore

import (
	"context"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
)

// Open builds the backend selected by cfg. An empty backend name selects
// memory.
func Open(ctx context.Context, cfg entities.StateConfig) (Backend, error) {
	switch cfg.Backend {
	case "", entities.StateBackendMemory:
		return NewMemoryBackend(), nil
	case entities.StateBackendFile:
		b, err := NewFileBackend(WithPath(cfg.Path))
		if err != nil {
			return nil, errors.Wrap(errors.CodeIO, "failed to open state file", err)
		}
		return b, nil
	case entities.StateBackendRedis:
		b, err := NewRedisBackend(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, errors.Wrap(errors.CodeIO, "failed to open redis state", err)
		}
		return b, nil
	default:
		return nil, &errors.ConfigError{
			Field: "HostConfig.State.Backend",
			Err:   errors.Newf(errors.CodeNotSupported, "unknown state backend %q", cfg.Backend),
		}
	}
}
