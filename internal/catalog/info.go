/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package catalog

import (
	"sort"

	"strata/internal/row"
	"strata/internal/value"
)

// SequenceColumns names the columns of INFORMATION_SCHEMA.SEQUENCES.
var SequenceColumns = []string{"SEQUENCE_SCHEMA", "SEQUENCE_NAME", "CURRENT_BASE", "INCREMENT", "CACHE", "MAX_VALUE"}

// TableColumns names the columns of INFORMATION_SCHEMA.TABLES.
var TableColumns = []string{"TABLE_SCHEMA", "TABLE_NAME", "TABLE_TYPE", "COLUMN_COUNT", "ROW_COUNT"}

// SequenceInfo returns one row per sequence visible to txn, ordered by
// schema and name. Values are read live from the allocators.
func (c *Catalog) SequenceInfo(txn *Txn) []*row.Row {
	var seqs []*Sequence
	c.visible(txn, func(obj Object) {
		if s, ok := obj.(*Sequence); ok {
			seqs = append(seqs, s)
		}
	})
	sort.Slice(seqs, func(i, j int) bool { return lessQualified(seqs[i], seqs[j]) })

	rows := make([]*row.Row, 0, len(seqs))
	for _, s := range seqs {
		rows = append(rows, row.Of(
			value.NewVarchar(s.Schema().Name()),
			value.NewVarchar(s.Name()),
			value.NewBigInt(s.CurrentBase()),
			value.NewBigInt(s.Increment()),
			value.NewBigInt(s.CacheSize()),
			value.NewBigInt(s.MaxValue()),
		))
	}
	return rows
}

// TablesInfo returns one row per table or view visible to txn, ordered by
// schema and name.
func (c *Catalog) TablesInfo(txn *Txn) []*row.Row {
	var rels []Object
	c.visible(txn, func(obj Object) {
		if obj.Kind() == KindTable || obj.Kind() == KindView {
			rels = append(rels, obj)
		}
	})
	sort.Slice(rels, func(i, j int) bool { return lessQualified(rels[i], rels[j]) })

	rows := make([]*row.Row, 0, len(rels))
	for _, obj := range rels {
		cols, count := int64(0), int64(0)
		if t, ok := obj.(*Table); ok {
			cols = int64(len(t.columns))
			count = int64(t.rows.Count())
		}
		rows = append(rows, row.Of(
			value.NewVarchar(obj.Schema().Name()),
			value.NewVarchar(obj.Name()),
			value.NewVarchar(obj.Kind().String()),
			value.NewBigInt(cols),
			value.NewBigInt(count),
		))
	}
	return rows
}

func lessQualified(a, b Object) bool {
	if a.Schema().Name() != b.Schema().Name() {
		return a.Schema().Name() < b.Schema().Name()
	}
	return a.Name() < b.Name()
}
