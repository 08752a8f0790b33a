package tlog

import (
	"testing"

	"github.com/ridge/must/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// New creates a top-level logger writing to stderr. Panics on an invalid
// configuration; flag parsing is expected to have called Validate.
func New(config Config) *zap.Logger {
	must.OK(config.Validate())

	ec := encoderConfig()
	encoding := "json"
	if config.Format == FormatText {
		encoding = "console"
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		if config.Color == ColorYes || config.Color == ColorAuto && term.IsTerminal(unix.Stderr) {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	level := zapcore.InfoLevel
	if config.Verbose {
		level = zapcore.DebugLevel
	}

	logger := must.OK1(zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       config.Format == FormatText,
		DisableStacktrace: config.Format == FormatJSON,
		Encoding:          encoding,
		EncoderConfig:     ec,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}.Build())
	if config.Name != "" {
		logger = logger.Named(config.Name)
	}
	return logger
}

// NewForTesting creates a logger writing to the test log, shown for failed
// tests or with -v
func NewForTesting(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zapcore.DebugLevel)).Named(t.Name())
}
