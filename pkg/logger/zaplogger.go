package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip hides the package helper and the method frame, so entries
// point at the code that logged.
const callerSkip = 2

// ZapLogger adapts a sugared zap logger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

var zapLogger *ZapLogger

func NewLogger(config zap.Config) (*ZapLogger, error) {
	base, err := config.Build(zap.AddCallerSkip(callerSkip))
	if err != nil {
		return nil, err
	}
	zapLogger = &ZapLogger{sugar: base.Sugar(), level: config.Level}
	return zapLogger, nil
}

func GetLogger() *ZapLogger {
	if zapLogger == nil {
		panic("logger not initialized")
	}
	return zapLogger
}

// Enabled reports whether entries at lvl are written.
func (z *ZapLogger) Enabled(lvl zapcore.Level) bool {
	return z.level.Enabled(lvl)
}

func (z *ZapLogger) Sync() error {
	return z.sugar.Sync()
}

func (z *ZapLogger) Debug(msg string, kv ...any) { z.sugar.Debugw(msg, kv...) }
func (z *ZapLogger) Info(msg string, kv ...any)  { z.sugar.Infow(msg, kv...) }
func (z *ZapLogger) Warn(msg string, kv ...any)  { z.sugar.Warnw(msg, kv...) }
func (z *ZapLogger) Error(msg string, kv ...any) { z.sugar.Errorw(msg, kv...) }
func (z *ZapLogger) Panic(msg string, kv ...any) { z.sugar.Panicw(msg, kv...) }

func (z *ZapLogger) Fatal(err error, kv ...any) {
	z.sugar.Fatalw(err.Error(), kv...)
}

// Printf lets the logger back fasthttp's server and client logging.
func (z *ZapLogger) Printf(format string, args ...any) {
	z.sugar.Infof(format, args...)
}
