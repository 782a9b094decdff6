// Package column implements the typed columnar data model consumed by the
// proof protocols: immutable column views, owned columns, tables, and
// nullable columns with the canonical-null invariant.
package column

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
)

// Type enumerates the supported column value kinds.
type Type uint8

const (
	TypeBoolean Type = iota + 1
	TypeSmallInt
	TypeInt
	TypeBigInt
	TypeDecimal
	TypeTimestamp
	TypeVarChar
	TypeScalar
)

func (t Type) String() string {
	switch t {
	case TypeBoolean:
		return "boolean"
	case TypeSmallInt:
		return "smallint"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeDecimal:
		return "decimal"
	case TypeTimestamp:
		return "timestamp"
	case TypeVarChar:
		return "varchar"
	case TypeScalar:
		return "scalar"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// IsInteger reports whether the type holds fixed-width signed integers.
func (t Type) IsInteger() bool {
	return t == TypeSmallInt || t == TypeInt || t == TypeBigInt
}

// IsNumeric reports whether values of the type support arithmetic.
func (t Type) IsNumeric() bool {
	return t.IsInteger() || t == TypeDecimal
}

// IsOrderable reports whether values of the type have an algebraically
// provable order (a signed interpretation of bounded bit width).
func (t Type) IsOrderable() bool {
	return t.IsInteger() || t == TypeDecimal || t == TypeTimestamp
}

// SignedBitWidth returns the bit width of the type's signed interpretation.
// Panics for types without one.
func (t Type) SignedBitWidth() int {
	switch t {
	case TypeBoolean:
		return 1
	case TypeSmallInt:
		return 16
	case TypeInt:
		return 32
	case TypeBigInt, TypeTimestamp:
		return 64
	case TypeDecimal:
		return scalar.MaxSignedBits
	}
	panic(fmt.Sprintf("column: %v has no signed bit width", t))
}

// TimeUnit is the resolution of a timestamp column.
type TimeUnit uint8

const (
	UnitSecond TimeUnit = iota
	UnitMillisecond
	UnitMicrosecond
	UnitNanosecond
)

func (u TimeUnit) String() string {
	switch u {
	case UnitSecond:
		return "s"
	case UnitMillisecond:
		return "ms"
	case UnitMicrosecond:
		return "us"
	case UnitNanosecond:
		return "ns"
	}
	return "unit(?)"
}

// Column is a typed, fixed-length, immutable view over homogeneous values.
// It borrows its backing slices; Materialize produces an owning copy.
type Column struct {
	typ Type

	bools   []bool
	i16     []int16
	i32     []int32
	i64     []int64 // bigint and timestamp values
	decs    []*big.Int
	strs    []string
	hashes  []fr.Element // field encodings paired with strs, equal length
	scalars []fr.Element

	precision uint8
	scale     int8
	unit      TimeUnit
}

// NewBoolean returns a boolean column view over vals.
func NewBoolean(vals []bool) Column {
	return Column{typ: TypeBoolean, bools: vals}
}

// NewSmallInt returns a 16-bit integer column view over vals.
func NewSmallInt(vals []int16) Column {
	return Column{typ: TypeSmallInt, i16: vals}
}

// NewInt returns a 32-bit integer column view over vals.
func NewInt(vals []int32) Column {
	return Column{typ: TypeInt, i32: vals}
}

// NewBigInt returns a 64-bit integer column view over vals.
func NewBigInt(vals []int64) Column {
	return Column{typ: TypeBigInt, i64: vals}
}

// NewDecimal returns a fixed-point decimal column view over vals, which hold
// the unscaled integer values. Precision is the maximum number of decimal
// digits (at most 75, so magnitudes stay within 252 bits) and scale the
// number of fractional digits.
func NewDecimal(precision uint8, decScale int8, vals []*big.Int) (Column, error) {
	if precision == 0 || precision > 75 {
		return Column{}, fmt.Errorf("column: decimal precision %d out of range [1, 75]", precision)
	}
	return Column{typ: TypeDecimal, decs: vals, precision: precision, scale: decScale}, nil
}

// NewTimestamp returns a timestamp column view over vals in the given unit.
func NewTimestamp(unit TimeUnit, vals []int64) Column {
	return Column{typ: TypeTimestamp, i64: vals, unit: unit}
}

// NewVarChar returns a string column view over vals, precomputing the field
// encoding of every value.
func NewVarChar(vals []string) Column {
	hashes := make([]fr.Element, len(vals))
	for i, s := range vals {
		hashes[i] = scalar.EncodeString(s)
	}
	return Column{typ: TypeVarChar, strs: vals, hashes: hashes}
}

// NewScalar returns a raw field element column view over vals.
func NewScalar(vals []fr.Element) Column {
	return Column{typ: TypeScalar, scalars: vals}
}

// Type returns the column's value kind.
func (c Column) Type() Type {
	return c.typ
}

// Len returns the row count.
func (c Column) Len() int {
	switch c.typ {
	case TypeBoolean:
		return len(c.bools)
	case TypeSmallInt:
		return len(c.i16)
	case TypeInt:
		return len(c.i32)
	case TypeBigInt, TypeTimestamp:
		return len(c.i64)
	case TypeDecimal:
		return len(c.decs)
	case TypeVarChar:
		return len(c.strs)
	case TypeScalar:
		return len(c.scalars)
	}
	return 0
}

// Precision returns the decimal precision. Meaningful only for decimals.
func (c Column) Precision() uint8 { return c.precision }

// Scale returns the decimal scale. Meaningful only for decimals.
func (c Column) Scale() int8 { return c.scale }

// Unit returns the timestamp resolution. Meaningful only for timestamps.
func (c Column) Unit() TimeUnit { return c.unit }

// Bools returns the backing slice of a boolean column.
func (c Column) Bools() []bool { return c.bools }

// SmallInts returns the backing slice of a smallint column.
func (c Column) SmallInts() []int16 { return c.i16 }

// Ints returns the backing slice of an int column.
func (c Column) Ints() []int32 { return c.i32 }

// BigInts returns the backing slice of a bigint or timestamp column.
func (c Column) BigInts() []int64 { return c.i64 }

// Decimals returns the backing slice of a decimal column.
func (c Column) Decimals() []*big.Int { return c.decs }

// Strings returns the backing slice of a varchar column.
func (c Column) Strings() []string { return c.strs }

// ScalarValues returns the backing slice of a scalar column.
func (c Column) ScalarValues() []fr.Element { return c.scalars }

// ScalarAt returns the field-element representation of row i.
func (c Column) ScalarAt(i int) fr.Element {
	switch c.typ {
	case TypeBoolean:
		if c.bools[i] {
			return fr.One()
		}
		return fr.Element{}
	case TypeSmallInt:
		return scalar.FromInt64(int64(c.i16[i]))
	case TypeInt:
		return scalar.FromInt64(int64(c.i32[i]))
	case TypeBigInt, TypeTimestamp:
		return scalar.FromInt64(c.i64[i])
	case TypeDecimal:
		return scalar.FromBigInt(c.decs[i])
	case TypeVarChar:
		return c.hashes[i]
	case TypeScalar:
		return c.scalars[i]
	}
	panic("column: invalid type")
}

// Scalars returns the field-element representation of the whole column.
func (c Column) Scalars() []fr.Element {
	if c.typ == TypeVarChar {
		return c.hashes
	}
	if c.typ == TypeScalar {
		return c.scalars
	}
	out := make([]fr.Element, c.Len())
	for i := range out {
		out[i] = c.ScalarAt(i)
	}
	return out
}

// ScalarsWithScaling returns the field-element representation with every
// value multiplied by 10^upscale. Decimal and timestamp types carry a scale
// that must be normalized this way before folding or arithmetic.
func (c Column) ScalarsWithScaling(upscale int) []fr.Element {
	if upscale < 0 {
		panic("column: negative upscale")
	}
	if !c.typ.IsNumeric() && c.typ != TypeTimestamp {
		panic(fmt.Sprintf("column: cannot scale %v", c.typ))
	}
	factor := scalar.FromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(upscale)), nil))
	out := c.Scalars()
	scaled := make([]fr.Element, len(out))
	for i := range out {
		scaled[i].Mul(&out[i], &factor)
	}
	return scaled
}

// Gather returns an owned column holding rows[i] = c[indices[i]].
func (c Column) Gather(indices []int) OwnedColumn {
	switch c.typ {
	case TypeBoolean:
		vals := make([]bool, len(indices))
		for i, j := range indices {
			vals[i] = c.bools[j]
		}
		return OwnedColumn{col: NewBoolean(vals)}
	case TypeSmallInt:
		vals := make([]int16, len(indices))
		for i, j := range indices {
			vals[i] = c.i16[j]
		}
		return OwnedColumn{col: NewSmallInt(vals)}
	case TypeInt:
		vals := make([]int32, len(indices))
		for i, j := range indices {
			vals[i] = c.i32[j]
		}
		return OwnedColumn{col: NewInt(vals)}
	case TypeBigInt, TypeTimestamp:
		vals := make([]int64, len(indices))
		for i, j := range indices {
			vals[i] = c.i64[j]
		}
		if c.typ == TypeTimestamp {
			return OwnedColumn{col: NewTimestamp(c.unit, vals)}
		}
		return OwnedColumn{col: NewBigInt(vals)}
	case TypeDecimal:
		vals := make([]*big.Int, len(indices))
		for i, j := range indices {
			vals[i] = new(big.Int).Set(c.decs[j])
		}
		col, err := NewDecimal(c.precision, c.scale, vals)
		if err != nil {
			panic(err)
		}
		return OwnedColumn{col: col}
	case TypeVarChar:
		vals := make([]string, len(indices))
		for i, j := range indices {
			vals[i] = c.strs[j]
		}
		return OwnedColumn{col: NewVarChar(vals)}
	case TypeScalar:
		vals := make([]fr.Element, len(indices))
		for i, j := range indices {
			vals[i] = c.scalars[j]
		}
		return OwnedColumn{col: NewScalar(vals)}
	}
	panic("column: invalid type")
}

// Materialize copies the view into an owning column.
func (c Column) Materialize() OwnedColumn {
	indices := make([]int, c.Len())
	for i := range indices {
		indices[i] = i
	}
	return c.Gather(indices)
}

// OwnedColumn owns its backing buffers. It is produced by materializing a
// view or by plan evaluation, and can lend itself back out as a view.
type OwnedColumn struct {
	col Column
}

// Own adopts a view's backing storage as an owned column without copying.
// The caller must hold the only reference to the backing slices.
func Own(c Column) OwnedColumn { return OwnedColumn{col: c} }

// View borrows the owned column as an immutable view without copying.
func (c OwnedColumn) View() Column { return c.col }

// Type returns the column's value kind.
func (c OwnedColumn) Type() Type { return c.col.typ }

// Len returns the row count.
func (c OwnedColumn) Len() int { return c.col.Len() }
