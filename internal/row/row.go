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

/*
Package row provides the search row abstraction and per-table row storage.

A row is a fixed-length ordered list of values plus the position the
table's store assigned to it. Positions are unique within one store and
never reused, so a position identifies a row for its whole lifetime.
*/
package row

import (
	"strings"

	ferrors "strata/internal/errors"
	"strata/internal/value"
)

// SearchRow is the view of a row used by lookups and introspection.
type SearchRow interface {
	// ColumnCount returns the fixed number of columns.
	ColumnCount() int
	// Value returns the value of column i.
	Value(i int) value.Value
	// SetValue replaces the value of column i.
	SetValue(i int, v value.Value)
	// Position returns the store position, or 0 if the row is not stored.
	Position() int64
	// SetPosition records the position assigned by a store.
	SetPosition(pos int64)
}

// Row is the concrete SearchRow.
type Row struct {
	values   []value.Value
	position int64
}

var _ SearchRow = (*Row)(nil)

// New allocates a row of columnCount NULL values. A positive maxColumns
// bounds the allocation; exceeding it fails with OutOfMemory.
func New(columnCount, maxColumns int) (*Row, error) {
	if columnCount < 0 {
		return nil, ferrors.InvalidValue("column count", "must not be negative")
	}
	if maxColumns > 0 && columnCount > maxColumns {
		return nil, ferrors.OutOfMemory(int64(columnCount))
	}
	values := make([]value.Value, columnCount)
	for i := range values {
		values[i] = value.Null
	}
	return &Row{values: values}, nil
}

// Of builds a row holding the given values.
func Of(values ...value.Value) *Row {
	vs := make([]value.Value, len(values))
	copy(vs, values)
	return &Row{values: vs}
}

func (r *Row) ColumnCount() int              { return len(r.values) }
func (r *Row) Value(i int) value.Value       { return r.values[i] }
func (r *Row) SetValue(i int, v value.Value) { r.values[i] = v }
func (r *Row) Position() int64               { return r.position }
func (r *Row) SetPosition(pos int64)         { r.position = pos }

// Values returns a copy of the row's values.
func (r *Row) Values() []value.Value {
	vs := make([]value.Value, len(r.values))
	copy(vs, r.values)
	return vs
}

// String renders the row as "(v1, v2, ...)".
func (r *Row) String() string {
	parts := make([]string, len(r.values))
	for i, v := range r.values {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
