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

// Package cacheworker implements the Cache Worker Pool (C3): a
// uniform front for one in-memory cache plus zero or more external
// SegmentCache plug-ins.
package cacheworker

import (
	"context"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/segment"
)

// EventType distinguishes the two lifecycle events a SegmentCache can
// report.
type EventType int

const (
	EventCreated EventType = iota
	EventDeleted
)

// Event is the tagged-event record used throughout C3/C4 in place of
// inner listener objects (SPEC_FULL "anonymous event emitter
// construct").
type Event struct {
	IsLocal bool
	Source  segment.Header
	Type    EventType
}

// Listener receives cache lifecycle events.
type Listener func(Event)

// SegmentCache is the external cache plug-in SPI. Implementations may
// be process-external. Every method is a synchronous call that
// returns its result directly; none returns a future.
type SegmentCache interface {
	Contains(ctx context.Context, header segment.Header) (bool, error)
	Get(ctx context.Context, header segment.Header) ([]byte, bool, error)
	Put(ctx context.Context, header segment.Header, body []byte) (bool, error)
	Remove(ctx context.Context, header segment.Header) (bool, error)
	GetSegmentHeaders(ctx context.Context) ([]segment.Header, error)
	AddListener(l Listener)
	RemoveListener(l Listener)
	// SupportsRichIndex reports whether GetSegmentHeaders is cheap
	// enough to drive Locate directly; if false, the Segment Index
	// falls back to full enumeration on startup (spec §6).
	SupportsRichIndex() bool
	Shutdown(ctx context.Context)
}
