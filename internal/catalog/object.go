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
	"fmt"
	"sync/atomic"

	ferrors "strata/internal/errors"
	"strata/internal/row"
	"strata/internal/sequence"
	"strata/internal/value"
)

// Kind is the closed set of schema object kinds.
type Kind int

const (
	KindTable Kind = iota + 1
	KindView
	KindSequence
	KindFunctionAlias
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "TABLE"
	case KindView:
		return "VIEW"
	case KindSequence:
		return "SEQUENCE"
	case KindFunctionAlias:
		return "FUNCTION ALIAS"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindTable, KindView, KindSequence, KindFunctionAlias} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown object kind %q", s)
}

// namespace groups kinds that share names within a schema.
type namespace int

const (
	nsRelation namespace = iota
	nsSequence
	nsAlias
)

func (k Kind) namespace() namespace {
	switch k {
	case KindTable, KindView:
		return nsRelation
	case KindSequence:
		return nsSequence
	case KindFunctionAlias:
		return nsAlias
	default:
		panic("catalog: unknown kind " + k.String())
	}
}

// Object is a schema object. The set of implementations is closed:
// *Table, *View, *Sequence and *FunctionAlias.
type Object interface {
	ID() int64
	Name() string
	Kind() Kind
	Schema() *Schema
	// QualifiedName returns "SCHEMA.NAME".
	QualifiedName() string
	// ModificationID changes every time the object is marked modified.
	ModificationID() int64
	// IsSystem reports whether the object is protected from DROP.
	IsSystem() bool

	header() *objectHeader
}

// objectHeader holds the attributes every object kind shares.
type objectHeader struct {
	id     int64
	name   atomic.Pointer[string]
	schema *Schema
	system bool
	modID  atomic.Int64
}

// init sets the header of a freshly allocated object.
func (h *objectHeader) init(id int64, schema *Schema, name string, system bool) {
	h.id, h.schema, h.system = id, schema, system
	h.name.Store(&name)
}

func (h *objectHeader) ID() int64             { return h.id }
func (h *objectHeader) Name() string          { return *h.name.Load() }
func (h *objectHeader) Schema() *Schema       { return h.schema }
func (h *objectHeader) ModificationID() int64 { return h.modID.Load() }
func (h *objectHeader) IsSystem() bool        { return h.system }
func (h *objectHeader) header() *objectHeader { return h }

func (h *objectHeader) QualifiedName() string {
	return h.schema.Name() + "." + h.Name()
}

// ============================================================================
// TABLE
// ============================================================================

// Column describes one table column.
type Column struct {
	Name     string     `json:"name"`
	Type     value.Type `json:"type"`
	Nullable bool       `json:"nullable"`
	// Identity columns take their value from the table's owned sequence
	// when NULL is inserted.
	Identity bool `json:"identity,omitempty"`
}

// Table is a relation with row storage.
type Table struct {
	objectHeader
	columns []Column
	rows    *row.Store
	owned   []*Sequence
	arith   value.Arithmetic
	maxCols int
}

func (t *Table) Kind() Kind { return KindTable }

// Columns returns the column definitions.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Rows returns the table's row store.
func (t *Table) Rows() *row.Store { return t.rows }

// OwnedSequences returns the sequences created for identity columns. They
// are removed together with the table.
func (t *Table) OwnedSequences() []*Sequence {
	out := make([]*Sequence, len(t.owned))
	copy(out, t.owned)
	return out
}

// Insert stores one row. Numeric values are converted to the column type
// under the table's overflow policy; NULL in an identity column is
// replaced by the next value of the owned sequence.
func (t *Table) Insert(values []value.Value) (*row.Row, error) {
	if len(values) != len(t.columns) {
		return nil, ferrors.InvalidValue(t.Name(),
			fmt.Sprintf("expected %d values, got %d", len(t.columns), len(values)))
	}

	r, err := row.New(len(t.columns), t.maxCols)
	if err != nil {
		return nil, err
	}

	identity := 0
	for i, col := range t.columns {
		v := values[i]
		if v.Type() == value.TypeNull && col.Identity && identity < len(t.owned) {
			n, err := t.owned[identity].Next()
			if err != nil {
				return nil, err
			}
			v = value.NewBigInt(n)
		}
		if col.Identity {
			identity++
		}

		v, err = t.coerce(col, v)
		if err != nil {
			return nil, err
		}
		r.SetValue(i, v)
	}

	if _, err := t.rows.Add(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (t *Table) coerce(col Column, v value.Value) (value.Value, error) {
	switch {
	case v.Type() == value.TypeNull:
		if !col.Nullable {
			return nil, ferrors.InvalidValue(col.Name, "NULL not allowed")
		}
		return v, nil
	case v.Type() == col.Type:
		return v, nil
	case col.Type.IsNumeric() && v.Type().IsNumeric():
		return t.arith.Convert(v.(value.Numeric), col.Type)
	default:
		return nil, ferrors.InvalidValue(col.Name,
			fmt.Sprintf("cannot store %s in %s column", v.Type(), col.Type))
	}
}

// ============================================================================
// VIEW
// ============================================================================

// View is a named query over other relations.
type View struct {
	objectHeader
	query     string
	dependsOn []string
}

func (v *View) Kind() Kind { return KindView }

// Query returns the view's defining query text.
func (v *View) Query() string { return v.query }

// DependsOn returns the qualified names of the relations the view reads.
func (v *View) DependsOn() []string {
	out := make([]string, len(v.dependsOn))
	copy(out, v.dependsOn)
	return out
}

func (v *View) dependsOnName(qualified string) bool {
	for _, d := range v.dependsOn {
		if d == qualified {
			return true
		}
	}
	return false
}

// ============================================================================
// SEQUENCE
// ============================================================================

// Sequence is a schema object wrapping the allocator.
type Sequence struct {
	objectHeader
	*sequence.Sequence
	// ownerTable is the ID of the table that owns this sequence, or 0.
	ownerTable int64
	// dropped stops late reservations from recreating the seq: record.
	dropped atomic.Bool
}

func (s *Sequence) Kind() Kind { return KindSequence }

// Name resolves the ambiguity between the header and the allocator.
func (s *Sequence) Name() string { return s.objectHeader.Name() }

// OwnerTable returns the owning table's ID, or 0.
func (s *Sequence) OwnerTable() int64 { return s.ownerTable }

// ============================================================================
// FUNCTION ALIAS
// ============================================================================

// FunctionAlias maps a SQL function name to a registered implementation.
type FunctionAlias struct {
	objectHeader
	target        string
	deterministic bool
}

func (f *FunctionAlias) Kind() Kind { return KindFunctionAlias }

// Target returns the name of the implementation the alias calls.
func (f *FunctionAlias) Target() string { return f.target }

// Deterministic reports whether equal arguments give equal results.
func (f *FunctionAlias) Deterministic() bool { return f.deterministic }

var (
	_ Object = (*Table)(nil)
	_ Object = (*View)(nil)
	_ Object = (*Sequence)(nil)
	_ Object = (*FunctionAlias)(nil)
)
