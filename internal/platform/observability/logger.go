package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/upfront-market/api/internal/platform/requestctx"
)

const defaultLogLevel = "info"

// NewLogger builds the JSON logger. LOG_LEVEL selects the level.
func NewLogger() (*zap.Logger, error) {
	return newLogger(os.Getenv("LOG_LEVEL"), []string{"stdout"})
}

func newLogger(levelName string, outputs []string) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(levelName)))); err != nil || strings.TrimSpace(levelName) == "" {
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}

	encoderCfg := zapcore.EncoderConfig{
		MessageKey:    "message",
		TimeKey:       "timestamp",
		LevelKey:      "severity",
		NameKey:       "logger",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	cfg := zap.Config{
		Level:             level,
		Encoding:          "json",
		EncoderConfig:     encoderCfg,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// FromContext returns the request logger, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// EventLogger adapts zap to the func(ctx, event, fields) hook accepted by services. The request
// logger in ctx is preferred so request ids are attached; fallback is used outside requests.
func EventLogger(fallback *zap.Logger) func(context.Context, string, map[string]any) {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		level := zapcore.InfoLevel
		for k, v := range fields {
			if err, ok := v.(error); ok {
				zFields = append(zFields, zap.NamedError(k, err))
				level = zapcore.WarnLevel
				continue
			}
			zFields = append(zFields, zap.Any(k, v))
		}
		if ce := logger.Check(level, event); ce != nil {
			ce.Write(zFields...)
		}
	}
}

// PrintfAdapter adapts zap to printf-style logging interfaces such as gorm's logger writer.
type PrintfAdapter struct {
	logger *zap.SugaredLogger
}

// NewPrintfAdapter creates a PrintfAdapter backed by logger.
func NewPrintfAdapter(logger *zap.Logger) PrintfAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return PrintfAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Printf implements the Printf-style logging contract.
func (a PrintfAdapter) Printf(format string, args ...any) {
	a.logger.Infof(format, args...)
}
