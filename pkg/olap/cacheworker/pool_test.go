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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
)

type fakeExternal struct {
	listeners []Listener
	bodies    map[string][]byte
}

func newFakeExternal() *fakeExternal {
	return &fakeExternal{bodies: map[string][]byte{}}
}

func (f *fakeExternal) Contains(_ context.Context, h segment.Header) (bool, error) {
	_, ok := f.bodies[h.Fingerprint()]
	return ok, nil
}
func (f *fakeExternal) Get(_ context.Context, h segment.Header) ([]byte, bool, error) {
	b, ok := f.bodies[h.Fingerprint()]
	return b, ok, nil
}
func (f *fakeExternal) Put(_ context.Context, h segment.Header, body []byte) (bool, error) {
	f.bodies[h.Fingerprint()] = body
	for _, l := range f.listeners {
		l(Event{Source: h, Type: EventCreated})
	}
	return true, nil
}
func (f *fakeExternal) Remove(_ context.Context, h segment.Header) (bool, error) {
	delete(f.bodies, h.Fingerprint())
	return true, nil
}
func (f *fakeExternal) GetSegmentHeaders(context.Context) ([]segment.Header, error) { return nil, nil }
func (f *fakeExternal) AddListener(l Listener)                                      { f.listeners = append(f.listeners, l) }
func (f *fakeExternal) RemoveListener(Listener)                                     {}
func (f *fakeExternal) SupportsRichIndex() bool                                     { return false }
func (f *fakeExternal) Shutdown(context.Context)                                    {}

var _ SegmentCache = (*fakeExternal)(nil)

func TestPoolPutRejectsOnRoundTripFailure(t *testing.T) {
	p := NewPool(10, false)
	h := headerN(1)

	err := p.Put(context.Background(), h, []byte("not a valid lz4 header"), []byte("body"))
	require.Error(t, err)
	require.Equal(t, 0, p.MemoryLen(), "a failed round-trip check must not write to any tier")
}

func TestPoolPutReplicatesToExternalAndMemory(t *testing.T) {
	p := NewPool(10, false)
	ext := newFakeExternal()
	p.AddExternal(ext)

	header, withData := buildTestSegment(t)
	headerBytes, err := EncodeHeader(header)
	require.NoError(t, err)
	bodyBytes, err := EncodeBody(withData)
	require.NoError(t, err)

	require.NoError(t, p.Put(context.Background(), header, headerBytes, bodyBytes))
	require.Equal(t, 1, p.MemoryLen())

	_, ok, err := ext.Get(context.Background(), header)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPoolForwardsExternalEventsOntoChannel(t *testing.T) {
	p := NewPool(10, false)
	ext := newFakeExternal()
	p.AddExternal(ext)

	header, withData := buildTestSegment(t)
	headerBytes, _ := EncodeHeader(header)
	bodyBytes, _ := EncodeBody(withData)
	require.NoError(t, p.Put(context.Background(), header, headerBytes, bodyBytes))

	e := <-p.Events()
	require.False(t, e.IsLocal, "external cache event must be forwarded onto the pool's event channel")
	require.Equal(t, EventCreated, e.Type)
}

func TestPoolGetTriesTiersInPriorityOrder(t *testing.T) {
	p := NewPool(10, false)
	header, withData := buildTestSegment(t)
	headerBytes, _ := EncodeHeader(header)
	bodyBytes, _ := EncodeBody(withData)
	require.NoError(t, p.Put(context.Background(), header, headerBytes, bodyBytes))

	body, ok, err := p.Get(context.Background(), header)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bodyBytes, body)
}
