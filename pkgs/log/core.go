package mlog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CoreConfig describes one log output.
// OutputType is "console" or "file"; EncodeType is "console" or "json".
type CoreConfig struct {
	OutputType  string
	OutputPath  string
	Level       string
	EncodeType  string
	EncodeColor bool
}

var (
	mu          sync.RWMutex
	coreConfigs []CoreConfig
)

func SetOutputTypes(configs ...CoreConfig) {
	mu.Lock()
	defer mu.Unlock()
	coreConfigs = append(coreConfigs[:0], configs...)
}

func NewCore() zapcore.Core {
	mu.RLock()
	configs := append([]CoreConfig(nil), coreConfigs...)
	mu.RUnlock()

	cores := make([]zapcore.Core, 0, len(configs))
	for _, cfg := range configs {
		var core zapcore.Core
		switch cfg.OutputType {
		case "file":
			core = FileCore(cfg)
		case "console":
			core = ConsoleCore(cfg)
		}

		if core != nil {
			cores = append(cores, core)
		}
	}

	if len(cores) == 0 {
		cores = append(cores, ConsoleCore(CoreConfig{EncodeColor: true}))
	}
	return zapcore.NewTee(cores...)
}

func ConsoleCore(cfg CoreConfig) zapcore.Core {
	out := "stdout"
	if strings.ToLower(cfg.OutputPath) == "stderr" {
		out = "stderr"
	}
	writer, _, err := zap.Open(out)
	if err != nil {
		return nil
	}
	return zapcore.NewCore(newEncoder(cfg, true), writer, parseLevel(cfg.Level))
}

func FileCore(cfg CoreConfig) zapcore.Core {
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return nil
	}
	writer, _, err := zap.Open(cfg.OutputPath)
	if err != nil {
		return nil
	}
	return zapcore.NewCore(newEncoder(cfg, false), writer, parseLevel(cfg.Level))
}

func newEncoder(cfg CoreConfig, caller bool) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		// Keys can be anything except the empty string.
		TimeKey:          "T",
		LevelKey:         "L",
		NameKey:          "N",
		FunctionKey:      zapcore.OmitKey,
		MessageKey:       "M",
		StacktraceKey:    "S",
		EncodeTime:       zapcore.RFC3339TimeEncoder,
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: "\t",
	}
	if caller {
		encoderConfig.CallerKey = "C"
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}
	if cfg.EncodeColor {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg.EncodeType == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func parseLevel(level string) zap.AtomicLevel {
	l, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return l
}
