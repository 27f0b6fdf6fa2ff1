package logger

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger. Output is console-formatted when
// stderr is a terminal-ish context (COURTSIDE_LOG_FORMAT=console), JSON
// otherwise so scheduler logs stay machine-readable.
func Init() {
	once.Do(func() {
		level := zerolog.InfoLevel
		if parsed, err := zerolog.ParseLevel(os.Getenv("COURTSIDE_LOG_LEVEL")); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}

		var out zerolog.Logger
		if os.Getenv("COURTSIDE_LOG_FORMAT") == "console" {
			out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		} else {
			out = zerolog.New(os.Stderr)
		}
		defaultLogger = out.Level(level).With().Timestamp().Logger()
	})
}

// Get returns the initialized default logger.
func Get() zerolog.Logger {
	Init()
	return defaultLogger
}

// Info logs an informational message with alternating key/value args.
func Info(msg string, args ...any) {
	l := Get()
	l.Info().Fields(fields(args)).Msg(msg)
}

// Warn logs a warning message with alternating key/value args.
func Warn(msg string, args ...any) {
	l := Get()
	l.Warn().Fields(fields(args)).Msg(msg)
}

// Error logs an error message. err may be nil.
func Error(msg string, err error, args ...any) {
	l := Get()
	l.Error().Err(err).Fields(fields(args)).Msg(msg)
}

// Debug logs a debug message with alternating key/value args.
func Debug(msg string, args ...any) {
	l := Get()
	l.Debug().Fields(fields(args)).Msg(msg)
}

func fields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		m[key] = args[i+1]
	}
	return m
}
