// Package log routes plugin log output into the host's structured logger
// and gives plugin code an slog handler backed by the host log service.
package log

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/plughost/domain/entities"
)

// PluginSink writes plugin-originated log messages to an slog logger.
type PluginSink struct {
	logger *slog.Logger
}

// NewPluginSink creates a sink. A nil logger selects slog.Default.
func NewPluginSink(logger *slog.Logger) *PluginSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginSink{logger: logger}
}

// Logger returns the underlying logger.
func (s *PluginSink) Logger() *slog.Logger {
	return s.logger
}

// Log records one message from plugin.
func (s *PluginSink) Log(ctx context.Context, plugin string, level entities.LogLevel, source, message string, attrs ...slog.Attr) {
	lvl := SlogLevel(level)
	if !s.logger.Enabled(ctx, lvl) {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, slog.String("plugin", plugin), slog.String("source", source))
	all = append(all, attrs...)
	s.logger.LogAttrs(ctx, lvl, message, all...)
}

// LogWire records a message received from a wasm guest.
func (s *PluginSink) LogWire(ctx context.Context, plugin string, msg LogMessageWire) {
	attrs := make([]slog.Attr, 0, len(msg.Attrs))
	for _, a := range msg.Attrs {
		attrs = append(attrs, a.Attr())
	}
	s.Log(ctx, plugin, entities.ParseLogLevel(msg.Level), msg.Source, msg.Message, attrs...)
}
