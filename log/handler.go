// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// NewHandler returns a handler writing to w filtered by lvl. The level is
// read on every record, so changing lvl takes effect immediately.
// Terminal output gets colors when w is an interactive terminal.
func NewHandler(w io.Writer, lvl *slog.LevelVar, json bool) slog.Handler {
	var inner slog.Handler
	if json {
		inner = gethlog.JSONHandlerWithLevel(w, LevelTrace)
	} else {
		inner = gethlog.NewTerminalHandlerWithLevel(w, LevelTrace, useColor(w))
	}
	return &levelHandler{lvl: lvl, inner: inner}
}

// levelHandler gates an inner handler on a shared level variable.
type levelHandler struct {
	lvl   *slog.LevelVar
	inner slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.lvl.Level() && h.inner.Enabled(ctx, level)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{lvl: h.lvl, inner: h.inner.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{lvl: h.lvl, inner: h.inner.WithGroup(name)}
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetDefault installs h as the process wide handler.
func SetDefault(h slog.Handler) {
	gethlog.SetDefault(gethlog.NewLogger(h))
}

// Init configures the default logger writing to stderr and returns the level
// variable so it can be changed at runtime.
func Init(verbosity int, json bool) *slog.LevelVar {
	var lvl slog.LevelVar
	lvl.Set(FromLegacyLevel(verbosity))
	SetDefault(NewHandler(os.Stderr, &lvl, json))
	return &lvl
}
