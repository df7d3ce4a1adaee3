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

// Package future models a completion-with-value-or-error handle. The
// Cache Manager hands these back from Submit; callers block on Get,
// which is the only point at which evaluator threads wait (spec §5).
package future

import (
	"context"

	"github.com/CodeOnCoffee/olapcache/pkg/common/moerr"
)

// Future[T] is either already resolved, or backed by a one-shot
// channel a worker goroutine fills exactly once.
type Future[T any] struct {
	done   chan struct{}
	value  T
	err    error
	cancel context.CancelFunc
}

// New returns an unresolved Future and the function used to resolve
// it exactly once.
func New[T any](cancel context.CancelFunc) (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{}), cancel: cancel}
	resolve := func(v T, err error) {
		select {
		case <-f.done:
			return // already resolved; ignore duplicate completion
		default:
		}
		f.value = v
		f.err = err
		close(f.done)
	}
	return f, resolve
}

// Resolved returns an already-satisfied Future holding v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.value = v
	close(f.done)
	return f
}

// Failed returns an already-failed Future.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.err = err
	close(f.done)
	return f
}

// Get blocks until the future resolves or ctx is cancelled.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, moerr.NewCancelled(ctx)
	}
}

// Cancel requests cancellation of the work backing the future, if
// any. It does not itself resolve the future.
func (f *Future[T]) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
}

func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
