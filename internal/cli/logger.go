package cli

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger writes diagnostics to stderr so stdout stays a clean NDJSON
// stream. ndjson output gets JSON logs, text output gets console logs.
func newLogger(g *Globals) *zap.Logger {
	level := zapcore.InfoLevel
	if g.LogLevel != "" {
		if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
			level = zapcore.InfoLevel
		}
	}
	if g.Verbose {
		level = zapcore.DebugLevel
	}
	if g.Quiet && level < zapcore.ErrorLevel {
		level = zapcore.ErrorLevel
	}

	var enc zapcore.Encoder
	if g.Format == "text" {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(g.Stderr), level)
	return zap.New(core)
}
