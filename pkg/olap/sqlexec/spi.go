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

// Package sqlexec names the external collaborator the Segment Loader
// (C7) drives: a SQL dialect generator and a JDBC-equivalent executor
// live outside this module's scope (spec §1 Non-goals). Only the
// narrow interface the loader needs against them is declared here.
package sqlexec

import "context"

// ColumnType is the minimal type information the loader must pass so
// an executor can bind result columns without round-tripping through
// reflection on every row.
type ColumnType struct {
	Name     string
	BitPos   uint32
	IsNumber bool
}

// Row is one result row of a grouping-sets query: GroupingSetID
// identifies which grouping set (and so which requested batch) the row
// belongs to, ColumnValues are the GROUP BY column values in the order
// ColumnType was given, and MeasureValues are the requested measures in
// the order they were asked for.
type Row struct {
	GroupingSetID int
	ColumnValues  []any
	MeasureValues []any
}

// RowCursor streams a query's result set. Next returns false once
// exhausted or on error; Err reports which.
type RowCursor interface {
	Next(ctx context.Context) bool
	Row() Row
	Err() error
	Close() error
}

// SqlExecutor is the named external collaborator: given a finished SQL
// statement and its expected column shape, run it and hand back a
// cursor. Implementations own dialect generation and connection
// pooling; this module only ever calls Execute.
type SqlExecutor interface {
	Execute(ctx context.Context, sql string, columns []ColumnType) (RowCursor, error)
}
