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
Package value implements Strata's typed value system.

Value Overview:
===============

Every cell of a row is a Value. Values are immutable and shared: the
factories (NewTinyInt, NewSmallInt, NewInt, NewBigInt, NewVarchar) return
the canonical instance held by the process-wide Cache, so two calls with
the same raw value return the same pointer for as long as the entry stays
cached. Callers must never rely on identity for correctness; equality is
always by value (Compare).

Numeric Family:
===============

	Type       Go type   Precision   Display size
	TINYINT    int8      3           4
	SMALLINT   int16     5           6
	INT        int32     10          11
	BIGINT     int64     19          20

Arithmetic on two values of the same type is performed in a wider
representation and narrowed back. How narrowing treats out-of-range
results is decided by Arithmetic.StrictOverflow.
*/
package value

import (
	"fmt"
)

// Type is the closed set of value type tags.
type Type int

const (
	TypeNull Type = iota
	TypeTinyInt
	TypeSmallInt
	TypeInt
	TypeBigInt
	TypeVarchar
)

// String returns the SQL name of the type.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeTinyInt:
		return "TINYINT"
	case TypeSmallInt:
		return "SMALLINT"
	case TypeInt:
		return "INT"
	case TypeBigInt:
		return "BIGINT"
	case TypeVarchar:
		return "VARCHAR"
	default:
		return fmt.Sprintf("TYPE(%d)", int(t))
	}
}

// IsNumeric reports whether t is one of the fixed-width integer types.
func (t Type) IsNumeric() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInt, TypeBigInt:
		return true
	default:
		return false
	}
}

// ParseType resolves a SQL type name, accepting the common aliases.
func ParseType(name string) (Type, bool) {
	switch name {
	case "TINYINT":
		return TypeTinyInt, true
	case "SMALLINT", "INT2":
		return TypeSmallInt, true
	case "INT", "INTEGER", "INT4":
		return TypeInt, true
	case "BIGINT", "INT8":
		return TypeBigInt, true
	case "VARCHAR", "TEXT":
		return TypeVarchar, true
	default:
		return TypeNull, false
	}
}

// Value is an immutable, shareable cell value.
type Value interface {
	// Type returns the type tag.
	Type() Type
	// String returns the canonical external representation.
	String() string
	// Native returns the plain Go representation (int8, int16, int32,
	// int64, string, or nil for NULL).
	Native() any
	// Precision is the maximum number of decimal digits (or characters).
	Precision() int64
	// DisplaySize is the maximum printed width including the sign.
	DisplaySize() int
}

// nullValue is the SQL NULL.
type nullValue struct{}

// Null is the single NULL instance.
var Null Value = nullValue{}

func (nullValue) Type() Type       { return TypeNull }
func (nullValue) String() string   { return "NULL" }
func (nullValue) Native() any      { return nil }
func (nullValue) Precision() int64 { return 1 }
func (nullValue) DisplaySize() int { return 4 }

// maxCachedVarchar bounds the strings that go through the cache; longer
// strings are rarely repeated and would only churn it.
const maxCachedVarchar = 64

// Varchar is a character string value.
type Varchar struct {
	s string
}

// NewVarchar returns the canonical Varchar for s.
func NewVarchar(s string) *Varchar {
	if len(s) > maxCachedVarchar {
		return &Varchar{s: s}
	}
	v := DefaultCache().Internalize(Key{Type: TypeVarchar, Str: s}, func() Value {
		return &Varchar{s: s}
	})
	return v.(*Varchar)
}

func (v *Varchar) Type() Type       { return TypeVarchar }
func (v *Varchar) String() string   { return v.s }
func (v *Varchar) Native() any      { return v.s }
func (v *Varchar) Precision() int64 { return int64(len(v.s)) }
func (v *Varchar) DisplaySize() int { return len(v.s) }

// Compare orders two values. NULL sorts before everything else; numeric
// values of different widths compare by signed value; strings compare
// byte-wise. Comparing a number with a string is a caller error and panics.
func Compare(a, b Value) int {
	if a.Type() == TypeNull || b.Type() == TypeNull {
		switch {
		case a.Type() == b.Type():
			return 0
		case a.Type() == TypeNull:
			return -1
		default:
			return 1
		}
	}

	if an, ok := a.(Numeric); ok {
		bn, ok := b.(Numeric)
		if !ok {
			panic(fmt.Sprintf("value: cannot compare %s with %s", a.Type(), b.Type()))
		}
		return compareInt64(an.Int64(), bn.Int64())
	}

	as, aok := a.(*Varchar)
	bs, bok := b.(*Varchar)
	if !aok || !bok {
		panic(fmt.Sprintf("value: cannot compare %s with %s", a.Type(), b.Type()))
	}
	switch {
	case as.s < bs.s:
		return -1
	case as.s > bs.s:
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b compare equal.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
