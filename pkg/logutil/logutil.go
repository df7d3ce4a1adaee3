// Copyright 2024 The OLAP Cache Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logutil provides the package-level structured-logging helpers
// used throughout the cache and loading pipeline, wrapping a single
// process-wide zap.Logger the way the rest of the house does it.
package logutil

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var global atomic.Pointer[zap.Logger]
var once sync.Once

func init() {
	once.Do(func() {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		global.Store(l)
	})
}

// SetGlobalLogger replaces the process-wide logger, e.g. to install a
// development logger in tests.
func SetGlobalLogger(l *zap.Logger) {
	global.Store(l)
}

func GetGlobalLogger() *zap.Logger {
	return global.Load()
}

type ctxKey struct{}

// WithFields attaches zap fields that every subsequent log call made
// with the returned context will carry, mirroring logutil2's
// ContextFields pattern without requiring a tracing backend.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	existing, _ := ctx.Value(ctxKey{}).([]zap.Field)
	merged := append(append([]zap.Field{}, existing...), fields...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

func contextFields(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(ctxKey{}).([]zap.Field)
	return fields
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	GetGlobalLogger().WithOptions(zap.AddCallerSkip(1)).Debug(msg, append(contextFields(ctx), fields...)...)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	GetGlobalLogger().WithOptions(zap.AddCallerSkip(1)).Info(msg, append(contextFields(ctx), fields...)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	GetGlobalLogger().WithOptions(zap.AddCallerSkip(1)).Warn(msg, append(contextFields(ctx), fields...)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	GetGlobalLogger().WithOptions(zap.AddCallerSkip(1)).Error(msg, append(contextFields(ctx), fields...)...)
}
