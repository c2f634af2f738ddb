package bootstrap

import (
	"fmt"
	"io"
	"os"
	"strings"

	"argus/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a configuration level name to a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// InitLogger initializes the zap logger with colored console output on stderr,
// leaving stdout to command output.
func InitLogger(level string) (*zap.Logger, *zap.SugaredLogger, error) {
	return NewLogger(level, os.Stderr)
}

// NewLogger builds the console logger writing to w
func NewLogger(level string, w io.Writer) (*zap.Logger, *zap.SugaredLogger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		lvl,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the application configuration
func InitConfig(configFile string, sugar *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		sugar.Debug("No config file found, using defaults and env vars")
	}

	sugar.Debugw("Config loaded",
		"config_file", viper.ConfigFileUsed(),
		"data_dir", cfg.Source.DataDir,
		"mapping_file", cfg.Fields.MappingFile,
		"correlation_timeout", cfg.Correlation.Timeout,
		"batch_workers", cfg.Batch.Workers)
	return cfg, nil
}
