// Package rlog is the package-global, level-gated logger shared by
// every refheap subsystem, backed by zerolog.
package rlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// SetLevel adjusts the package-global log level.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(level)
}

// SetOutput redirects log output, for example to route logs to a file
// or to /dev/null in quiet mode.
func SetOutput(w zerolog.ConsoleWriter) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Output(w)
}

func logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// Debug logs a debug-level message about internal bookkeeping (chunk
// splits, bin membership, compaction phases).
func Debug(component, msg string, fields map[string]any) {
	emit(logger().Debug(), component, msg, fields)
}

// Info logs a routine, user-visible event (server started, compaction
// finished).
func Info(component, msg string, fields map[string]any) {
	emit(logger().Info(), component, msg, fields)
}

// Warn logs a recoverable anomaly (allocation retry after compaction,
// pool nearing capacity).
func Warn(component, msg string, fields map[string]any) {
	emit(logger().Warn(), component, msg, fields)
}

// Error logs a failed operation that the caller will observe as a
// returned error.
func Error(component, msg string, fields map[string]any) {
	emit(logger().Error(), component, msg, fields)
}

func emit(ev *zerolog.Event, component, msg string, fields map[string]any) {
	ev = ev.Str("component", component)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
