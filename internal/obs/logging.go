// Package obs contains observability utilities such as logging, metrics and
// tracing.
package obs

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global structured logger used by the service.
//
// It starts as a no-op logger so packages can log before InitLogger runs
// (tests mostly).
var Logger = zap.NewNop().Sugar()

// InitLogger initializes the global Logger with a JSON encoder at info level.
func InitLogger() {
	InitLoggerLevel("info")
}

// InitLoggerLevel initializes the global Logger at the given level. Unknown
// levels fall back to info.
func InitLoggerLevel(level string) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		lvl,
	)
	Logger = zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", ServiceName)).
		Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger.Sync()
}
