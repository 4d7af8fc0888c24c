package astilibav

import (
	"regexp"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astimux"
)

type EventLog struct {
	Format string
	Level  astiav.LogLevel
	Msg    string
	Parent string
}

// LoggerEventHandlerAdapterOptions represents logger event handler adapter
// options
type LoggerEventHandlerAdapterOptions struct {
	IgnoredLogMessages []*regexp.Regexp
	LogLevel           astiav.LogLevel
}

// WithLog returns an adapter routing libav's internal logs through the event
// logger
func WithLog(o LoggerEventHandlerAdapterOptions) astimux.EventHandlerLogAdapter {
	return func(h *astimux.EventHandler, l *astimux.EventLogger) {
		// Set log level
		astiav.SetLogLevel(o.LogLevel)

		// Set log callback
		astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, fmt, msg string) {
			// Get parent
			var parent string
			if c != nil {
				if cl := c.Class(); cl != nil {
					parent = cl.String()
				}
			}

			// Emit event
			h.Emit(astimux.Event{
				Name: EventNameLog,
				Payload: EventLog{
					Format: fmt,
					Level:  level,
					Msg:    msg,
					Parent: parent,
				},
			})
		})

		// Handle log
		h.AddForEventName(EventNameLog, loggerEventHandlerCallback(o, l))
	}
}

func loggerEventHandlerCallback(o LoggerEventHandlerAdapterOptions, l *astimux.EventLogger) astimux.EventCallback {
	return func(e astimux.Event) bool {
		if v, ok := e.Payload.(EventLog); ok {
			// Sanitize
			format := strings.TrimSpace(v.Format)
			msg := strings.TrimSpace(v.Msg)
			if msg == "" {
				return false
			}

			// Check ignored messages
			for _, r := range o.IgnoredLogMessages {
				if r.MatchString(msg) {
					return false
				}
			}

			// Add prefix
			format = "astilibav: " + format
			msg = "astilibav: " + msg

			// Add parent
			if v.Parent != "" {
				msg += " (" + v.Parent + ")"
			}

			// Add level
			switch v.Level {
			case astiav.LogLevelDebug, astiav.LogLevelVerbose:
				l.Writek(astikit.LoggerLevelDebug, format, msg)
			case astiav.LogLevelInfo:
				l.Writek(astikit.LoggerLevelInfo, format, msg)
			case astiav.LogLevelError, astiav.LogLevelFatal, astiav.LogLevelPanic:
				if v.Level == astiav.LogLevelFatal {
					msg = "FATAL! " + msg
				} else if v.Level == astiav.LogLevelPanic {
					msg = "PANIC! " + msg
				}
				l.Writek(astikit.LoggerLevelError, format, msg)
			case astiav.LogLevelWarning:
				l.Writek(astikit.LoggerLevelWarn, format, msg)
			}
		}
		return false
	}
}
