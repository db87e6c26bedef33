package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// MessageType records the message type name under the key "message_type".
func MessageType(name string) slog.Attr {
	return slog.String("message_type", name)
}

// MessageID records a message identifier under the key "message_id".
func MessageID(id uint64) slog.Attr {
	return slog.Uint64("message_id", id)
}

// Missed records how many messages a reader lost under the key "missed".
func Missed(n uint64) slog.Attr {
	return slog.Uint64("missed", n)
}

// System records a system name under the key "system".
func System(name string) slog.Attr {
	return slog.String("system", name)
}

// SystemID records a system identifier under the key "system_id".
// If id is nil, it returns an empty Attr.
func SystemID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("system_id", id)
}

// Tick records the scheduling cycle number under the key "tick".
func Tick(n uint64) slog.Attr {
	return slog.Uint64("tick", n)
}

// Reason records why something was skipped under the key "reason".
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RequestID records an HTTP request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}
