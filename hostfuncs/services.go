package hostfuncs

import (
	"context"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/log"
	"github.com/reglet-dev/plughost/wireformat"
)

// Host service function names.
const (
	FuncLogMessage     = "log_message"
	FuncSystemLanguage = "system_language"
)

// WireLogger is implemented by host services that keep the structured
// attributes of a guest log record instead of flattening them.
type WireLogger interface {
	LogWire(ctx context.Context, msg log.LogMessageWire)
}

// LogAck acknowledges a log_message call.
type LogAck struct {
	Accepted bool `json:"accepted"`
}

// Services returns the host service functions every guest may call.
func Services() Bundle {
	return Bundle{
		FuncLogMessage:     Typed(LogMessage),
		FuncSystemLanguage: Typed(SystemLanguage),
	}
}

// LogMessage forwards a guest log record to the calling instance's host
// services. Without services in ctx the record is dropped. A record
// without a source is attributed to the caller.
func LogMessage(ctx context.Context, msg log.LogMessageWire) (LogAck, error) {
	svc, ok := ServicesFrom(ctx)
	if !ok {
		return LogAck{}, nil
	}
	if msg.Source == "" {
		msg.Source = Caller(ctx)
	}
	if wl, ok := svc.(WireLogger); ok {
		wl.LogWire(ctx, msg)
	} else {
		svc.Log(entities.ParseLogLevel(msg.Level), msg.Source, msg.Message)
	}
	return LogAck{Accepted: true}, nil
}

// SystemLanguage reports the host language to a guest.
func SystemLanguage(ctx context.Context, _ struct{}) (wireformat.SystemLanguageWire, error) {
	lang := entities.DefaultLanguage
	if svc, ok := ServicesFrom(ctx); ok {
		lang = svc.SystemLanguage()
	}
	return wireformat.SystemLanguageWire{Language: string(lang)}, nil
}
