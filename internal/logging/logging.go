// Package logging builds the zap loggers used across pack.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr. Development loggers use a
// console encoder, colored when the terminal allows it; production loggers
// write JSON.
func New(level string, development bool) (*zap.Logger, error) {
	return NewWithWriter(os.Stderr, level, development)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string, development bool) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	var enc zapcore.Encoder
	if development {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeCaller = nil
		if color.NoColor {
			ec.EncodeLevel = zapcore.CapitalLevelEncoder
		} else {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
			ec.TimeKey = zapcore.OmitKey
		}
		enc = zapcore.NewConsoleEncoder(ec)
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), lvl)
	return zap.New(core).Named("pack"), nil
}
