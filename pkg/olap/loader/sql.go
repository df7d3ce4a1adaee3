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

package loader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CodeOnCoffee/olapcache/pkg/olap/batch"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/rollup"
	"github.com/CodeOnCoffee/olapcache/pkg/olap/sqlexec"
)

// buildSQL renders a generic ANSI GROUPING SETS statement for one
// composite: one grouping set per batch in the composite, the
// detailed batch's column list as the projection (every narrower
// summary grouping set leaves its absent columns null, per standard
// GROUPING SETS semantics). Exact dialect quoting/escaping is the
// external SQL generator's job (spec §1 Non-goals); this is enough
// structure for an executor to bind against.
func (l *Loader) buildSQL(c *rollup.Composite, from string) (string, []sqlexec.ColumnType) {
	detailed := c.Detailed
	sets := c.GroupingSets()

	cols := make([]sqlexec.ColumnType, len(detailed.Columns))
	colNames := make([]string, len(detailed.Columns))
	for i, col := range detailed.Columns {
		cols[i] = sqlexec.ColumnType{Name: col.Name, BitPos: col.BitPos, IsNumber: col.Cardinality > 0}
		colNames[i] = col.Name
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	for _, name := range colNames {
		fmt.Fprintf(&sb, "%s, ", name)
	}
	for _, m := range detailed.Measures {
		if expr, ok := detailed.DistinctMeasures[m]; ok {
			fmt.Fprintf(&sb, "COUNT(DISTINCT %s) AS %s, ", expr, m)
		} else {
			fmt.Fprintf(&sb, "SUM(%s) AS %s, ", m, m)
		}
	}
	sb.WriteString("GROUPING_ID() AS grouping_set_id FROM ")
	sb.WriteString(from)

	if where := whereClause(detailed); where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	sb.WriteString(" GROUP BY GROUPING SETS (")
	for i, b := range sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		sb.WriteString(strings.Join(sortedColumnNames(b), ", "))
		sb.WriteString(")")
	}
	sb.WriteString(")")

	return sb.String(), cols
}

func sortedColumnNames(b *batch.Batch) []string {
	names := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}

func whereClause(b *batch.Batch) string {
	positions := make([]uint32, 0, len(b.ValueSets))
	for pos := range b.ValueSets {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	var clauses []string
	colByPos := make(map[uint32]string, len(b.Columns))
	for _, c := range b.Columns {
		colByPos[c.BitPos] = c.Name
	}
	for _, pos := range positions {
		name, ok := colByPos[pos]
		if !ok {
			continue
		}
		values := b.ValueSets[pos]
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = fmt.Sprintf("%v", v)
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", name, strings.Join(strs, ", ")))
	}
	return strings.Join(clauses, " AND ")
}
