// Package logging supplies two implementations of the luxfi/log.Logger
// interface: a zap-backed console logger whose level is set by a
// RUST_LOG-style verbosity string, and a no-op variant for tests.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/luxfi/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NoLog discards everything. Used in tests and wherever a Logger is
// required but output would just be noise.
type NoLog struct{}

var _ log.Logger = NoLog{}

func (n NoLog) With(ctx ...interface{}) log.Logger { return n }
func (n NoLog) New(ctx ...interface{}) log.Logger  { return n }

func (NoLog) Log(level slog.Level, msg string, ctx ...interface{})   {}
func (NoLog) Trace(msg string, ctx ...interface{})                  {}
func (NoLog) Debug(msg string, ctx ...interface{})                  {}
func (NoLog) Info(msg string, ctx ...interface{})                   {}
func (NoLog) Warn(msg string, ctx ...interface{})                   {}
func (NoLog) Error(msg string, ctx ...interface{})                  {}
func (NoLog) Crit(msg string, ctx ...interface{})                   {}
func (NoLog) WriteLog(level slog.Level, msg string, attrs ...any)   {}
func (NoLog) Enabled(ctx context.Context, level slog.Level) bool    { return false }
func (NoLog) Handler() slog.Handler                                 { return nil }
func (NoLog) Fatal(msg string, fields ...zap.Field)                 {}
func (NoLog) Verbo(msg string, fields ...zap.Field)                  {}
func (n NoLog) WithFields(fields ...zap.Field) log.Logger           { return n }
func (n NoLog) WithOptions(opts ...zap.Option) log.Logger           { return n }
func (NoLog) SetLevel(level slog.Level)                             {}
func (NoLog) GetLevel() slog.Level                                   { return slog.Level(0) }
func (NoLog) EnabledLevel(lvl slog.Level) bool                       { return false }
func (NoLog) StopOnPanic()                                           {}
func (NoLog) RecoverAndPanic(f func())                                { f() }
func (NoLog) RecoverAndExit(f, exit func())                           { f() }
func (NoLog) Stop()                                                   {}
func (NoLog) Write(p []byte) (int, error)                             { return len(p), nil }

// zapLogger adapts a *zap.SugaredLogger to luxfi/log's geth-style Logger
// interface, the way a real deployment would back luxfi/log.Logger with
// an actual sink instead of discarding output.
type zapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

var _ log.Logger = (*zapLogger)(nil)

// New builds a console logger at the given level. verbosity follows the
// RUST_LOG-equivalent convention: "trace", "debug", "info", "warn", "error".
func New(verbosity string) log.Logger {
	level := parseLevel(verbosity)
	atomic := zap.NewAtomicLevelAt(level)

	cfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stdout), atomic)
	logger := zap.New(core)

	return &zapLogger{sugar: logger.Sugar(), level: atomic}
}

func parseLevel(verbosity string) zapcore.Level {
	switch verbosity {
	case "trace", "verbo":
		return zapcore.DebugLevel - 1
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (z *zapLogger) With(ctx ...interface{}) log.Logger {
	return &zapLogger{sugar: z.sugar.With(ctx...), level: z.level}
}

func (z *zapLogger) New(ctx ...interface{}) log.Logger { return z.With(ctx...) }

func (z *zapLogger) Log(level slog.Level, msg string, ctx ...interface{}) {
	switch {
	case level >= slog.LevelError:
		z.sugar.Errorw(msg, ctx...)
	case level >= slog.LevelWarn:
		z.sugar.Warnw(msg, ctx...)
	case level >= slog.LevelInfo:
		z.sugar.Infow(msg, ctx...)
	default:
		z.sugar.Debugw(msg, ctx...)
	}
}

func (z *zapLogger) Trace(msg string, ctx ...interface{}) { z.sugar.Debugw(msg, ctx...) }
func (z *zapLogger) Debug(msg string, ctx ...interface{}) { z.sugar.Debugw(msg, ctx...) }
func (z *zapLogger) Info(msg string, ctx ...interface{})  { z.sugar.Infow(msg, ctx...) }
func (z *zapLogger) Warn(msg string, ctx ...interface{})  { z.sugar.Warnw(msg, ctx...) }
func (z *zapLogger) Error(msg string, ctx ...interface{}) { z.sugar.Errorw(msg, ctx...) }
func (z *zapLogger) Crit(msg string, ctx ...interface{})  { z.sugar.Fatalw(msg, ctx...) }

func (z *zapLogger) WriteLog(level slog.Level, msg string, attrs ...any) {
	z.Log(level, msg, attrs...)
}

func (z *zapLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return z.level.Enabled(zapcore.Level(level / 4))
}

func (z *zapLogger) Handler() slog.Handler { return nil }

func (z *zapLogger) Fatal(msg string, fields ...zap.Field) { z.sugar.Desugar().Fatal(msg, fields...) }
func (z *zapLogger) Verbo(msg string, fields ...zap.Field) { z.sugar.Desugar().Debug(msg, fields...) }

func (z *zapLogger) WithFields(fields ...zap.Field) log.Logger {
	return &zapLogger{sugar: z.sugar.Desugar().With(fields...).Sugar(), level: z.level}
}

func (z *zapLogger) WithOptions(opts ...zap.Option) log.Logger {
	return &zapLogger{sugar: z.sugar.Desugar().WithOptions(opts...).Sugar(), level: z.level}
}

func (z *zapLogger) SetLevel(level slog.Level)    { z.level.SetLevel(zapcore.Level(level / 4)) }
func (z *zapLogger) GetLevel() slog.Level         { return slog.Level(z.level.Level()) * 4 }
func (z *zapLogger) EnabledLevel(lvl slog.Level) bool { return z.level.Enabled(zapcore.Level(lvl / 4)) }

func (z *zapLogger) StopOnPanic() {}
func (z *zapLogger) RecoverAndPanic(f func()) { f() }
func (z *zapLogger) RecoverAndExit(f, exit func()) {
	defer func() {
		if r := recover(); r != nil {
			exit()
		}
	}()
	f()
}
func (z *zapLogger) Stop() { _ = z.sugar.Sync() }

func (z *zapLogger) Write(p []byte) (int, error) {
	z.sugar.Debug(string(p))
	return len(p), nil
}
