package logging

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration
type Config struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// Logger wraps zerolog.Logger for easier use
type Logger = zerolog.Logger

// shortCallerMarshalFunc formats caller to show only filename and line number
func shortCallerMarshalFunc(pc uintptr, file string, line int) string {
	// Extract just the filename from the full path
	filename := filepath.Base(file)

	// Keep the package directory so chain/client.go and spin/client.go differ.
	if dir := filepath.Base(filepath.Dir(file)); dir != "." && dir != string(filepath.Separator) {
		filename = dir + "/" + filename
	}

	return filename + ":" + strconv.Itoa(line)
}

// New creates a new logger with the given configuration
func New(config Config) zerolog.Logger {
	level := parseLogLevel(config.Level)
	zerolog.SetGlobalLevel(level)

	// Set custom caller marshal function to shorten paths
	zerolog.CallerMarshalFunc = shortCallerMarshalFunc

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}
	return build(config, output)
}

// NewWithWriter creates a logger writing to w, used by the CLI and tests.
func NewWithWriter(config Config, w io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLogLevel(config.Level))
	zerolog.CallerMarshalFunc = shortCallerMarshalFunc
	return build(config, w)
}

func build(config Config, output io.Writer) zerolog.Logger {
	if config.Format == "pretty" || config.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()

	log.Logger = logger

	return logger
}

// NewDefault creates a logger with default settings
func NewDefault() zerolog.Logger {
	return New(Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})
}

// parseLogLevel converts string log level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithTraceID adds trace_id to logger context
func WithTraceID(logger zerolog.Logger, traceID string) zerolog.Logger {
	return logger.With().Str("trace_id", traceID).Logger()
}

// WithPlayer adds the player address to logger context
func WithPlayer(logger zerolog.Logger, player string) zerolog.Logger {
	return logger.With().Str("player", player).Logger()
}

// WithTxHash adds tx_hash to logger context
func WithTxHash(logger zerolog.Logger, txHash string) zerolog.Logger {
	return logger.With().Str("tx_hash", txHash).Logger()
}

// WithNetwork adds network and chain_id to logger context
func WithNetwork(logger zerolog.Logger, network string, chainID int64) zerolog.Logger {
	return logger.With().Str("network", network).Int64("chain_id", chainID).Logger()
}

// WithComponent adds component name to logger context
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// WithFields adds multiple fields to logger context
func WithFields(logger zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	ctx := logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}


