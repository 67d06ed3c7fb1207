// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package obslog threads a *zap.SugaredLogger through context.Context, the
// way a Config.Logger field is passed into a long-lived component
// elsewhere in the pack, generalised to a context value so builders and
// readers several calls deep can log without a constructor parameter at
// every layer.
package obslog

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// nop is returned by FromContext when no logger was attached, so callers
// never need a nil check.
var nop = zap.NewNop().Sugar()

// WithLogger returns a context carrying log for retrieval by FromContext.
func WithLogger(ctx context.Context, log *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger attached to ctx, or a no-op logger if
// none was attached.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if log, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok && log != nil {
		return log
	}
	return nop
}

// New builds the default production logger: structured, console-encoded,
// info level.
func New() (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
