package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a production-ready structured logger configured for JSON output.
func New() (*zap.Logger, error) {
	cfg := productionConfig()

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// NewRedacting builds the same JSON logger as New, writing to out through a
// Redactor so none of the given secret values reach the sink.
func NewRedacting(out io.Writer, secrets []string) *zap.Logger {
	if out == nil {
		out = os.Stderr
	}
	cfg := productionConfig()
	encoder := zapcore.NewJSONEncoder(cfg.EncoderConfig)
	sink := zapcore.Lock(zapcore.AddSync(NewRedactor(out, secrets)))
	core := zapcore.NewCore(encoder, sink, cfg.Level)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(NewRedactor(os.Stderr, secrets)))),
	)
}

func productionConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.DisableStacktrace = false
	return cfg
}
