// Package logging builds the service logger: human readable lines on stderr and
// JSON lines in a daily rotated file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/high-horse/fingerprint/config"
)

const fileName = "fingerprint"

// New returns the logger and the file writer, which the caller closes after
// the final Sync.
func New(cfg config.LogConfig) (*zap.Logger, io.Closer, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	opts := []rotatelogs.Option{
		rotatelogs.WithLinkName(filepath.Join(cfg.Dir, fileName+".log")),
	}
	if cfg.MaxAge > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(cfg.MaxAge))
	}
	if cfg.RotationTime > 0 {
		opts = append(opts, rotatelogs.WithRotationTime(cfg.RotationTime))
	}
	writer, err := rotatelogs.New(filepath.Join(cfg.Dir, fileName+".%Y%m%d.log"), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	console := zap.NewDevelopmentEncoderConfig()
	console.EncodeLevel = zapcore.CapitalColorLevelEncoder
	file := zap.NewProductionEncoderConfig()
	file.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(file), zapcore.AddSync(writer), level),
	)
	return zap.New(core, zap.AddCaller()), writer, nil
}
