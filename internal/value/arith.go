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
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	ferrors "strata/internal/errors"
)

// Arithmetic evaluates operators on numeric values of one type.
//
// With StrictOverflow set, a result outside the operand type's range fails
// with a NumericOverflow error naming the type. Without it, the result is
// truncated with two's-complement wraparound, so SMALLINT 32767 + 1 yields
// -32768.
//
// Both operands must have the same type; mixing types is a programming
// error and panics.
type Arithmetic struct {
	StrictOverflow bool
}

// Add returns x + y.
func (a Arithmetic) Add(x, y Numeric) (Numeric, error) {
	return a.binary('+', x, y)
}

// Subtract returns x - y.
func (a Arithmetic) Subtract(x, y Numeric) (Numeric, error) {
	return a.binary('-', x, y)
}

// Multiply returns x * y.
func (a Arithmetic) Multiply(x, y Numeric) (Numeric, error) {
	return a.binary('*', x, y)
}

// Divide returns x / y truncated toward zero.
func (a Arithmetic) Divide(x, y Numeric) (Numeric, error) {
	return a.binary('/', x, y)
}

// Modulus returns the remainder of x / y with the sign of x.
func (a Arithmetic) Modulus(x, y Numeric) (Numeric, error) {
	return a.binary('%', x, y)
}

// Negate returns -x. Negating the minimum value of a type overflows.
func (a Arithmetic) Negate(x Numeric) (Numeric, error) {
	t := x.Type()
	v := x.Int64()
	if t == TypeBigInt && v == math.MinInt64 {
		if a.StrictOverflow {
			return nil, ferrors.NumericOverflow(t.String())
		}
		return NewBigInt(v), nil
	}
	return a.narrow(t, -v)
}

// Convert changes x to type t under the same overflow policy.
func (a Arithmetic) Convert(x Numeric, t Type) (Numeric, error) {
	if !t.IsNumeric() {
		return nil, ferrors.InvalidValue(t.String(), "not a numeric type")
	}
	if x.Type() == t {
		return x, nil
	}
	return a.narrow(t, x.Int64())
}

func (a Arithmetic) binary(op byte, x, y Numeric) (Numeric, error) {
	t := x.Type()
	if y.Type() != t {
		panic(fmt.Sprintf("value: %s %c %s: operand types differ", t, op, y.Type()))
	}

	xv, yv := x.Int64(), y.Int64()
	if (op == '/' || op == '%') && yv == 0 {
		return nil, ferrors.DivisionByZero(fmt.Sprintf("%s %c %s", x, op, y))
	}

	if t == TypeBigInt {
		return a.bigBinary(op, xv, yv)
	}

	// Operands of at most 32 bits cannot overflow an int64 intermediate.
	var r int64
	switch op {
	case '+':
		r = xv + yv
	case '-':
		r = xv - yv
	case '*':
		r = xv * yv
	case '/':
		r = xv / yv
	case '%':
		r = xv % yv
	}
	return a.narrow(t, r)
}

// bigBinary evaluates BIGINT operators with an arbitrary precision
// intermediate to detect overflow; the wrapped result is Go's native
// int64 arithmetic, which is two's-complement.
func (a Arithmetic) bigBinary(op byte, xv, yv int64) (Numeric, error) {
	bx, by := big.NewInt(xv), big.NewInt(yv)
	wide := new(big.Int)
	var native int64
	switch op {
	case '+':
		wide.Add(bx, by)
		native = xv + yv
	case '-':
		wide.Sub(bx, by)
		native = xv - yv
	case '*':
		wide.Mul(bx, by)
		native = xv * yv
	case '/':
		wide.Quo(bx, by)
		native = xv / yv
	case '%':
		wide.Rem(bx, by)
		native = xv % yv
	}

	if wide.IsInt64() {
		return NewBigInt(wide.Int64()), nil
	}
	if a.StrictOverflow {
		return nil, ferrors.NumericOverflow(TypeBigInt.String())
	}
	return NewBigInt(native), nil
}

// narrow converts a wide intermediate result to type t.
func (a Arithmetic) narrow(t Type, r int64) (Numeric, error) {
	w := widths[t]
	if r < w.min || r > w.max {
		if a.StrictOverflow {
			return nil, ferrors.NumericOverflow(t.String())
		}
		r = wrap(t, r)
	}
	return fromInt64(t, r), nil
}

// Parse reads the external string form of a value of type t. For numeric
// types it accepts exactly what String produces plus surrounding spaces
// and an optional leading '+'.
func Parse(t Type, s string) (Value, error) {
	switch t {
	case TypeNull:
		if strings.EqualFold(strings.TrimSpace(s), "NULL") {
			return Null, nil
		}
		return nil, ferrors.InvalidValue(t.String(), s)
	case TypeVarchar:
		return NewVarchar(s), nil
	}

	w, ok := widths[t]
	if !ok {
		return nil, ferrors.InvalidValue(t.String(), "unknown type")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, w.bits)
	if err != nil {
		if stderrors.Is(err, strconv.ErrRange) {
			return nil, ferrors.NumericOverflow(t.String()).WithDetail(s)
		}
		return nil, ferrors.InvalidValue(t.String(), fmt.Sprintf("cannot parse %q", s)).WithCause(err)
	}
	return fromInt64(t, n), nil
}

// FromNative builds a value from its Go representation, the inverse of
// Value.Native.
func FromNative(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null, nil
	case int8:
		return NewTinyInt(x), nil
	case int16:
		return NewSmallInt(x), nil
	case int32:
		return NewInt(x), nil
	case int64:
		return NewBigInt(x), nil
	case int:
		return NewBigInt(int64(x)), nil
	case string:
		return NewVarchar(x), nil
	default:
		return nil, ferrors.InvalidValue("native", fmt.Sprintf("unsupported Go type %T", v))
	}
}
