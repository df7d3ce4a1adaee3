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

package moerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesDirectCode(t *testing.T) {
	err := NewNotReady(context.Background())
	require.True(t, Is(err, ErrNotReady))
	require.False(t, Is(err, ErrTimeout))
}

func TestIsUnwrapsWrappedError(t *testing.T) {
	inner := NewSqlExecution(context.Background(), errors.New("boom"))
	wrapped := fmt.Errorf("loading composite: %w", inner)

	require.True(t, Is(wrapped, ErrSqlExecution))
	require.False(t, Is(wrapped, ErrCancelled))
}

func TestIsNilError(t *testing.T) {
	require.False(t, Is(nil, ErrTimeout))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNotSerializable(context.Background(), cause)

	require.Contains(t, err.Error(), "NotSerializable")
	require.Contains(t, err.Error(), "connection refused")
	require.Equal(t, cause, err.Unwrap())
}

func TestNewCellRequestQuantumExceededCarriesCount(t *testing.T) {
	err := NewCellRequestQuantumExceeded(context.Background(), 5000)
	require.Contains(t, err.Error(), "5000")
	require.True(t, Is(err, ErrCellRequestQuantum))
}
