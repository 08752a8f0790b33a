package tlog

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format is a log output format
type Format string

// Formats
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Color tells whether text output is colored
type Color string

// Colors; ColorAuto colors output going to a terminal
const (
	ColorAuto Color = ""
	ColorYes  Color = "yes"
	ColorNo   Color = "no"
)

// Config describes a top-level logger
type Config struct {
	Name    string
	Format  Format
	Color   Color
	Verbose bool // log at Debug level
}

// Validate checks the format and color settings
func (c Config) Validate() error {
	switch c.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	switch c.Color {
	case ColorAuto, ColorYes, ColorNo:
	default:
		return fmt.Errorf("unknown log color setting %q", c.Color)
	}
	return nil
}

func encodeTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("2006-01-02T15:04:05.000000Z07:00"))
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = encodeTime
	ec.EncodeDuration = zapcore.StringDurationEncoder
	return ec
}
