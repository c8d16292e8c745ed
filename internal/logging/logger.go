package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OSchengdu/swissK-agent/internal/config"
)

// Off disables logging entirely when used as the level.
const Off = "off"

// New builds a zap logger from cfg. When file is non-empty, output goes
// there instead of stderr and its directory is created if missing; the chat
// frontend owns the terminal.
func New(cfg config.LoggingConfig, file string) (*zap.Logger, error) {
	level := strings.ToLower(strings.TrimSpace(cfg.Level))
	if level == Off {
		return zap.NewNop(), nil
	}
	var zapLevel zapcore.Level
	if err := zapLevel.Set(level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	switch format := strings.ToLower(cfg.Format); format {
	case "json":
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "time"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console", "":
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Encoding = "console"
		zcfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)

	if file != "" {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		zcfg.OutputPaths = []string{file}
		zcfg.ErrorOutputPaths = []string{file}
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.Int("pid", os.Getpid())), nil
}
