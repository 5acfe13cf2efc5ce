package log

import (
	"log/slog"

	"github.com/reglet-dev/plughost/domain/entities"
)

// LevelTrace is the slog level plugin trace messages map to.
const LevelTrace = slog.LevelDebug - 4

// SlogLevel maps a plugin log level onto slog.
func SlogLevel(level entities.LogLevel) slog.Level {
	switch level {
	case entities.LogTrace:
		return LevelTrace
	case entities.LogDebug:
		return slog.LevelDebug
	case entities.LogWarn:
		return slog.LevelWarn
	case entities.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromSlog maps an slog level to the nearest plugin log level.
func LevelFromSlog(level slog.Level) entities.LogLevel {
	switch {
	case level < slog.LevelDebug:
		return entities.LogTrace
	case level < slog.LevelInfo:
		return entities.LogDebug
	case level < slog.LevelWarn:
		return entities.LogInfo
	case level < slog.LevelError:
		return entities.LogWarn
	default:
		return entities.LogError
	}
}
