//go:build !tinygo

package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console zap logger at the given level ("debug","info",...).
func New(level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return FromZap(z.Sugar()), nil
}

// FromZap adapts an existing sugared logger.
func FromZap(s *zap.SugaredLogger) Logger { return zapLogger{s} }

type zapLogger struct{ s *zap.SugaredLogger }

func (z zapLogger) Debugw(msg string, kv ...any) { z.s.Debugw(msg, kv...) }
func (z zapLogger) Infow(msg string, kv ...any)  { z.s.Infow(msg, kv...) }
func (z zapLogger) Warnw(msg string, kv ...any)  { z.s.Warnw(msg, kv...) }
func (z zapLogger) Errorw(msg string, kv ...any) { z.s.Errorw(msg, kv...) }
func (z zapLogger) Named(module string) Logger   { return zapLogger{z.s.Named(module)} }

func defaultLogger() Logger {
	l, err := New("info")
	if err != nil {
		return Nop()
	}
	SetDefault(l)
	return l
}
