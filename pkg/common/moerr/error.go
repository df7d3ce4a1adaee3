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

// Package moerr is the typed error catalog shared across the cache and
// loading pipeline. Every error kind named by the design has a stable
// numeric code so callers can test membership with Is instead of string
// matching or type assertion chains.
package moerr

import (
	"context"
	"fmt"
)

type Code uint16

const (
	// Ok is never constructed; it exists so the zero value of Code is
	// recognizably "no error".
	Ok Code = 0

	ErrUnsatisfiable          Code = 100
	ErrCellRequestQuantum     Code = 101
	ErrNotReady               Code = 102
	ErrNotSerializable        Code = 103
	ErrSqlExecution           Code = 104
	ErrCancelled              Code = 105
	ErrTimeout                Code = 106
	ErrCorruptedSegment       Code = 107
	ErrShutdown               Code = 108
	ErrInvalidArg             Code = 109
	ErrNoSuchAggregate        Code = 110
)

var codeNames = map[Code]string{
	ErrUnsatisfiable:      "Unsatisfiable",
	ErrCellRequestQuantum: "CellRequestQuantumExceeded",
	ErrNotReady:           "NotReady",
	ErrNotSerializable:    "NotSerializable",
	ErrSqlExecution:       "SqlExecution",
	ErrCancelled:          "Cancelled",
	ErrTimeout:            "Timeout",
	ErrCorruptedSegment:   "CorruptedSegment",
	ErrShutdown:           "Shutdown",
	ErrInvalidArg:         "InvalidArg",
	ErrNoSuchAggregate:    "NoSuchAggregate",
}

// Error is the concrete error type produced by every NewXxx constructor
// in this package. It carries a stable code, a human message and an
// optional wrapped cause.
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", codeNames[e.code], e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", codeNames[e.code], e.message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Code() Code {
	return e.code
}

func newError(_ context.Context, code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a *Error carrying the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	var me *Error
	for {
		if e, ok := err.(*Error); ok {
			me = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
		if err == nil {
			return false
		}
	}
	return me.code == code
}

func NewUnsatisfiable(ctx context.Context, msg string) *Error {
	return newError(ctx, ErrUnsatisfiable, "%s", msg)
}

func NewCellRequestQuantumExceeded(ctx context.Context, count int) *Error {
	return newError(ctx, ErrCellRequestQuantum, "quantum of %d cell requests exceeded", count)
}

func NewNotReady(ctx context.Context) *Error {
	return newError(ctx, ErrNotReady, "cell value not yet available")
}

func NewNotSerializable(ctx context.Context, cause error) *Error {
	e := newError(ctx, ErrNotSerializable, "segment failed round-trip serialization check")
	e.cause = cause
	return e
}

func NewSqlExecution(ctx context.Context, cause error) *Error {
	e := newError(ctx, ErrSqlExecution, "fact table query failed")
	e.cause = cause
	return e
}

func NewCancelled(ctx context.Context) *Error {
	return newError(ctx, ErrCancelled, "operation cancelled")
}

func NewTimeout(ctx context.Context) *Error {
	return newError(ctx, ErrTimeout, "operation timed out")
}

func NewCorruptedSegment(ctx context.Context, reason string) *Error {
	return newError(ctx, ErrCorruptedSegment, "corrupted segment: %s", reason)
}

func NewShutdown(ctx context.Context) *Error {
	return newError(ctx, ErrShutdown, "cache manager is shut down")
}

func NewInvalidArg(ctx context.Context, arg string, val any) *Error {
	return newError(ctx, ErrInvalidArg, "invalid argument %s=%v", arg, val)
}

func NewNoSuchAggregate(ctx context.Context, star string) *Error {
	return newError(ctx, ErrNoSuchAggregate, "no aggregate table for star %s", star)
}
