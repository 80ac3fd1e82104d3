package mlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.SugaredLogger
}

// New builds a named logger on the cores set by SetOutputTypes.
func New(name string) *Logger {
	return NewWithCore(name, NewCore())
}

// NewWithCore builds a named logger writing to core.
func NewWithCore(name string, core zapcore.Core) *Logger {
	logger := zap.New(core, zap.AddCaller())
	return &Logger{logger.Sugar().Named(name)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}
