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

package value

import (
	"math"
	"strconv"
)

// Numeric is implemented by the fixed-width integer values.
type Numeric interface {
	Value
	// Int64 returns the raw value widened to int64.
	Int64() int64
	// Signum returns -1, 0 or 1.
	Signum() int
}

// widthInfo describes one member of the numeric family.
type widthInfo struct {
	bits        int
	min, max    int64
	precision   int64
	displaySize int
}

var widths = map[Type]widthInfo{
	TypeTinyInt:  {bits: 8, min: math.MinInt8, max: math.MaxInt8, precision: 3, displaySize: 4},
	TypeSmallInt: {bits: 16, min: math.MinInt16, max: math.MaxInt16, precision: 5, displaySize: 6},
	TypeInt:      {bits: 32, min: math.MinInt32, max: math.MaxInt32, precision: 10, displaySize: 11},
	TypeBigInt:   {bits: 64, min: math.MinInt64, max: math.MaxInt64, precision: 19, displaySize: 20},
}

// Range returns the inclusive bounds of a numeric type.
func Range(t Type) (min, max int64) {
	w, ok := widths[t]
	if !ok {
		panic("value: " + t.String() + " is not numeric")
	}
	return w.min, w.max
}

func signum(v int64) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// ============================================================================
// TINYINT
// ============================================================================

// TinyInt is an 8-bit signed integer value.
type TinyInt struct {
	v int8
}

// NewTinyInt returns the canonical TinyInt for v.
func NewTinyInt(v int8) *TinyInt {
	return DefaultCache().Internalize(Key{Type: TypeTinyInt, Int: int64(v)}, func() Value {
		return &TinyInt{v: v}
	}).(*TinyInt)
}

func (x *TinyInt) Type() Type       { return TypeTinyInt }
func (x *TinyInt) String() string   { return strconv.FormatInt(int64(x.v), 10) }
func (x *TinyInt) Native() any      { return x.v }
func (x *TinyInt) Precision() int64 { return widths[TypeTinyInt].precision }
func (x *TinyInt) DisplaySize() int { return widths[TypeTinyInt].displaySize }
func (x *TinyInt) Int64() int64     { return int64(x.v) }
func (x *TinyInt) Signum() int      { return signum(int64(x.v)) }

// Raw returns the underlying int8.
func (x *TinyInt) Raw() int8 { return x.v }

// ============================================================================
// SMALLINT
// ============================================================================

// SmallInt is a 16-bit signed integer value.
type SmallInt struct {
	v int16
}

// NewSmallInt returns the canonical SmallInt for v.
func NewSmallInt(v int16) *SmallInt {
	return DefaultCache().Internalize(Key{Type: TypeSmallInt, Int: int64(v)}, func() Value {
		return &SmallInt{v: v}
	}).(*SmallInt)
}

func (x *SmallInt) Type() Type       { return TypeSmallInt }
func (x *SmallInt) String() string   { return strconv.FormatInt(int64(x.v), 10) }
func (x *SmallInt) Native() any      { return x.v }
func (x *SmallInt) Precision() int64 { return widths[TypeSmallInt].precision }
func (x *SmallInt) DisplaySize() int { return widths[TypeSmallInt].displaySize }
func (x *SmallInt) Int64() int64     { return int64(x.v) }
func (x *SmallInt) Signum() int      { return signum(int64(x.v)) }

// Raw returns the underlying int16.
func (x *SmallInt) Raw() int16 { return x.v }

// ============================================================================
// INT
// ============================================================================

// Int is a 32-bit signed integer value.
type Int struct {
	v int32
}

// NewInt returns the canonical Int for v.
func NewInt(v int32) *Int {
	return DefaultCache().Internalize(Key{Type: TypeInt, Int: int64(v)}, func() Value {
		return &Int{v: v}
	}).(*Int)
}

func (x *Int) Type() Type       { return TypeInt }
func (x *Int) String() string   { return strconv.FormatInt(int64(x.v), 10) }
func (x *Int) Native() any      { return x.v }
func (x *Int) Precision() int64 { return widths[TypeInt].precision }
func (x *Int) DisplaySize() int { return widths[TypeInt].displaySize }
func (x *Int) Int64() int64     { return int64(x.v) }
func (x *Int) Signum() int      { return signum(int64(x.v)) }

// Raw returns the underlying int32.
func (x *Int) Raw() int32 { return x.v }

// ============================================================================
// BIGINT
// ============================================================================

// BigInt is a 64-bit signed integer value.
type BigInt struct {
	v int64
}

// NewBigInt returns the canonical BigInt for v.
func NewBigInt(v int64) *BigInt {
	return DefaultCache().Internalize(Key{Type: TypeBigInt, Int: v}, func() Value {
		return &BigInt{v: v}
	}).(*BigInt)
}

func (x *BigInt) Type() Type       { return TypeBigInt }
func (x *BigInt) String() string   { return strconv.FormatInt(x.v, 10) }
func (x *BigInt) Native() any      { return x.v }
func (x *BigInt) Precision() int64 { return widths[TypeBigInt].precision }
func (x *BigInt) DisplaySize() int { return widths[TypeBigInt].displaySize }
func (x *BigInt) Int64() int64     { return x.v }
func (x *BigInt) Signum() int      { return signum(x.v) }

// Raw returns the underlying int64.
func (x *BigInt) Raw() int64 { return x.v }

// fromInt64 builds a value of type t from v, which must already be in range.
func fromInt64(t Type, v int64) Numeric {
	switch t {
	case TypeTinyInt:
		return NewTinyInt(int8(v))
	case TypeSmallInt:
		return NewSmallInt(int16(v))
	case TypeInt:
		return NewInt(int32(v))
	case TypeBigInt:
		return NewBigInt(v)
	default:
		panic("value: " + t.String() + " is not numeric")
	}
}

// wrap truncates v to the width of t using two's-complement arithmetic.
func wrap(t Type, v int64) int64 {
	switch t {
	case TypeTinyInt:
		return int64(int8(v))
	case TypeSmallInt:
		return int64(int16(v))
	case TypeInt:
		return int64(int32(v))
	default:
		return v
	}
}
