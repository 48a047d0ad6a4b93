// Package logger provides structured logging for searchmeta
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with searchmeta component loggers
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // console output for development
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a level name to a zerolog level, defaulting to info
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(name) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "searchmeta").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying zerolog logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// Component returns a zerolog logger tagged with a component name, for
// packages that take a plain zerolog.Logger
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// ProviderLogger returns the logger of the metadata provider
func (l *Logger) ProviderLogger() zerolog.Logger {
	return l.Component("provider")
}

// CatalogLogger returns the logger of the snapshot catalog
func (l *Logger) CatalogLogger(driver string) zerolog.Logger {
	return l.zlog.With().
		Str("component", "catalog").
		Str("driver", driver).
		Logger()
}

// GrpcLogger returns a logger for gRPC operations
func (l *Logger) GrpcLogger(method string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "grpc").
			Str("method", method).
			Logger(),
	}
}

// LogGrpcRequest logs a completed gRPC request
func (l *Logger) LogGrpcRequest(method string, duration time.Duration, err error) {
	event := l.zlog.Info()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}

	event.
		Str("component", "grpc").
		Str("method", method).
		Dur("duration_ms", duration).
		Msg("gRPC request completed")
}

// LogPublish logs the outcome of publishing one descriptor
func (l *Logger) LogPublish(entity, indexManager string, seq int64, changed bool, err error) {
	if err != nil {
		l.zlog.Error().
			Str("component", "catalog").
			Str("entity", entity).
			Str("index_manager", indexManager).
			Err(err).
			Msg("Metadata publish failed")
		return
	}

	l.zlog.Info().
		Str("component", "catalog").
		Str("entity", entity).
		Str("index_manager", indexManager).
		Int64("seq", seq).
		Bool("changed", changed).
		Msg("Metadata published")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(addr, catalogDriver string, entities int) {
	l.zlog.Info().
		Str("event", "server_start").
		Str("addr", addr).
		Str("catalog", catalogDriver).
		Int("entities", entities).
		Msg("searchmeta server starting")
}

// LogServerReady logs when the server accepts connections
func (l *Logger) LogServerReady(addr string) {
	l.zlog.Info().
		Str("event", "server_ready").
		Str("addr", addr).
		Msg("searchmeta server ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("searchmeta server shutting down")
}

var globalLogger *Logger

// InitGlobalLogger initializes the global logger and zerolog's default
func InitGlobalLogger(cfg Config) *Logger {
	globalLogger = NewLogger(cfg)
	log.Logger = globalLogger.zlog
	return globalLogger
}

// GetGlobalLogger returns the global logger, creating a default one if needed
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
