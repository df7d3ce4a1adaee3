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

package cacheworker

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/star"
)

func headerN(n int) segment.Header {
	return segment.Header{
		StarIdentity: "foodmart#1/Sales/sales_fact_1997",
		Measure:      fmt.Sprintf("measure_%d", n),
		FactAlias:    "sales_fact_1997",
		BitKey:       star.NewBitKey(),
	}
}

func TestMemoryWorkerPutGetRoundTrip(t *testing.T) {
	w := NewMemoryWorker(10)
	ctx := context.Background()
	h := headerN(1)

	ok, err := w.Put(ctx, h, []byte("body"))
	require.NoError(t, err)
	require.True(t, ok)

	body, found, err := w.Get(ctx, h)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("body"), body)
}

func TestMemoryWorkerEvictsWhenOverCapacity(t *testing.T) {
	w := NewMemoryWorker(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := w.Put(ctx, headerN(i), []byte("x"))
		require.NoError(t, err)
	}

	require.Equal(t, 3, w.Len(), "resident count must never exceed capacity")
}

func TestMemoryWorkerEvictionFiresDeletedEvent(t *testing.T) {
	w := NewMemoryWorker(1)
	ctx := context.Background()

	events := make(chan Event, 10)
	w.AddListener(func(e Event) { events <- e })

	_, err := w.Put(ctx, headerN(1), []byte("x"))
	require.NoError(t, err)
	_, err = w.Put(ctx, headerN(2), []byte("x"))
	require.NoError(t, err)

	first := <-events
	require.Equal(t, EventCreated, first.Type)

	// The eviction fires its Deleted event from a separate goroutine
	// (to avoid reentering Put/Remove from inside a listener), so its
	// ordering relative to the second Put's own Created event is not
	// guaranteed — only that both arrive.
	second := <-events
	third := <-events
	types := []EventType{second.Type, third.Type}
	require.ElementsMatch(t, []EventType{EventCreated, EventDeleted}, types)
}

func TestMemoryWorkerRemove(t *testing.T) {
	w := NewMemoryWorker(10)
	ctx := context.Background()
	h := headerN(1)

	_, err := w.Put(ctx, h, []byte("x"))
	require.NoError(t, err)

	existed, err := w.Remove(ctx, h)
	require.NoError(t, err)
	require.True(t, existed)

	_, found, _ := w.Get(ctx, h)
	require.False(t, found)
}

func TestMemoryWorkerContains(t *testing.T) {
	w := NewMemoryWorker(10)
	ctx := context.Background()
	h := headerN(1)

	ok, _ := w.Contains(ctx, h)
	require.False(t, ok)

	_, err := w.Put(ctx, h, []byte("x"))
	require.NoError(t, err)

	ok, _ = w.Contains(ctx, h)
	require.True(t, ok)
}
