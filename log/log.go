// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log is a thin facade over the go-ethereum structured logger.
// Package level loggers are declared with WithContext and resolve the root
// logger on every call, so they pick up the handler installed at startup.
package log

import (
	"context"
	"log/slog"

	gethlog "github.com/ethereum/go-ethereum/log"
)

const (
	LevelTrace = gethlog.LevelTrace
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelCrit  = gethlog.LevelCrit
)

// Legacy verbosity levels, as accepted by the --verbosity flag.
const (
	LegacyLevelCrit = iota
	LegacyLevelError
	LegacyLevelWarn
	LegacyLevelInfo
	LegacyLevelDebug
	LegacyLevelTrace
)

// FromLegacyLevel maps a legacy verbosity to a slog level.
// Values above trace are clamped to trace.
func FromLegacyLevel(lvl int) slog.Level {
	switch lvl {
	case LegacyLevelCrit:
		return LevelCrit
	case LegacyLevelError:
		return LevelError
	case LegacyLevelWarn:
		return LevelWarn
	case LegacyLevelInfo:
		return LevelInfo
	case LegacyLevelDebug:
		return LevelDebug
	}
	if lvl < 0 {
		return LevelCrit
	}
	return LevelTrace
}

// Logger writes key/value records at the usual levels.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any)
	New(ctx ...any) Logger
	Enabled(ctx context.Context, level slog.Level) bool
}

type lazyLogger struct {
	ctx []any
}

// WithContext returns a logger which prepends ctx to every record.
func WithContext(ctx ...any) Logger {
	return &lazyLogger{ctx: ctx}
}

// Root returns a logger without any attached context.
func Root() Logger {
	return &lazyLogger{}
}

func (l *lazyLogger) with(ctx []any) []any {
	if len(l.ctx) == 0 {
		return ctx
	}
	return append(append(make([]any, 0, len(l.ctx)+len(ctx)), l.ctx...), ctx...)
}

func (l *lazyLogger) Trace(msg string, ctx ...any) { gethlog.Root().Trace(msg, l.with(ctx)...) }
func (l *lazyLogger) Debug(msg string, ctx ...any) { gethlog.Root().Debug(msg, l.with(ctx)...) }
func (l *lazyLogger) Info(msg string, ctx ...any)  { gethlog.Root().Info(msg, l.with(ctx)...) }
func (l *lazyLogger) Warn(msg string, ctx ...any)  { gethlog.Root().Warn(msg, l.with(ctx)...) }
func (l *lazyLogger) Error(msg string, ctx ...any) { gethlog.Root().Error(msg, l.with(ctx)...) }

// Crit logs and terminates the process.
func (l *lazyLogger) Crit(msg string, ctx ...any) { gethlog.Root().Crit(msg, l.with(ctx)...) }

func (l *lazyLogger) New(ctx ...any) Logger {
	return &lazyLogger{ctx: l.with(ctx)}
}

func (l *lazyLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return gethlog.Root().Enabled(ctx, level)
}
