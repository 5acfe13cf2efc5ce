package log

import (
	"context"
	"log/slog"
	"strings"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/ports"
)

// Handler implements slog.Handler for plugin code: records are rendered and
// forwarded to the host log service the plugin received at initialize.
type Handler struct {
	host   ports.HostServices
	attrs  []slog.Attr
	group  string
	config handlerConfig
}

// HandlerOption configures the Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	source string
	level  slog.Level
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
// Records below this level are dropped on the plugin side.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource sets the source component reported with every record.
func WithSource(source string) HandlerOption {
	return func(c *handlerConfig) {
		c.source = source
	}
}

// NewHandler creates a Handler forwarding to host.
func NewHandler(host ports.HostServices, opts ...HandlerOption) *Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Handler{host: host, config: cfg}
}

// NewLogger returns an slog.Logger backed by host.
func NewLogger(host ports.HostServices, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(host, opts...))
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.host != nil && level >= h.config.level
}

// Handle renders the record as "message key=value ..." and forwards it.
func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	if h.host == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString(record.Message)
	write := func(attr slog.Attr) {
		w := toLogAttrWire(attr)
		b.WriteByte(' ')
		b.WriteString(w.Key)
		b.WriteByte('=')
		b.WriteString(w.Value)
	}
	for _, a := range h.attrs {
		write(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		write(h.qualify(a))
		return true
	})

	h.host.Log(LevelFromSlog(record.Level), h.config.source, b.String())
	return nil
}

func (h *Handler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}

// WithAttrs returns a handler that adds attrs to every record. Keys are
// qualified by the groups opened so far.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.qualify(a))
	}
	return &clone
}

// WithGroup returns a handler that qualifies later keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

var _ slog.Handler = (*Handler)(nil)

// Level reports the plugin log level h forwards at minimum.
func (h *Handler) Level() entities.LogLevel {
	return LevelFromSlog(h.config.level)
}
