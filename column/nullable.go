package column

import (
	"fmt"
)

// NullableColumn pairs a column with an optional validity mask. A nil mask
// means no nulls. Canonical null invariant: wherever the mask is false the
// underlying value must equal the type's zero/empty value, so that a prover
// cannot smuggle unconstrained data underneath a null flag.
type NullableColumn struct {
	col      Column
	validity []bool
}

// NewNullable wraps a column with a validity mask, rejecting masks of the
// wrong length and non-canonical values under null positions.
func NewNullable(col Column, validity []bool) (NullableColumn, error) {
	if validity != nil && len(validity) != col.Len() {
		return NullableColumn{}, fmt.Errorf("column: validity mask has %d rows, column has %d", len(validity), col.Len())
	}
	if validity != nil {
		for i, valid := range validity {
			if !valid && !isCanonicalZero(col, i) {
				return NullableColumn{}, fmt.Errorf("column: non-canonical value under null at row %d", i)
			}
		}
	}
	return NullableColumn{col: col, validity: validity}, nil
}

func isCanonicalZero(col Column, i int) bool {
	switch col.Type() {
	case TypeBoolean:
		return !col.bools[i]
	case TypeSmallInt:
		return col.i16[i] == 0
	case TypeInt:
		return col.i32[i] == 0
	case TypeBigInt, TypeTimestamp:
		return col.i64[i] == 0
	case TypeDecimal:
		return col.decs[i].Sign() == 0
	case TypeVarChar:
		return col.strs[i] == ""
	case TypeScalar:
		return col.scalars[i].IsZero()
	}
	return false
}

// Column returns the underlying column view.
func (n NullableColumn) Column() Column { return n.col }

// Validity returns the validity mask, nil when the column has no nulls.
func (n NullableColumn) Validity() []bool { return n.validity }

// Len returns the row count.
func (n NullableColumn) Len() int { return n.col.Len() }

// ValidAt reports whether row i is non-null.
func (n NullableColumn) ValidAt(i int) bool {
	return n.validity == nil || n.validity[i]
}

func combinedValidity(a, b NullableColumn) []bool {
	if a.validity == nil && b.validity == nil {
		return nil
	}
	out := make([]bool, a.Len())
	for i := range out {
		out[i] = a.ValidAt(i) && b.ValidAt(i)
	}
	return out
}

func nullableBigIntOp(a, b NullableColumn, op func(x, y int64) int64) (NullableColumn, error) {
	if a.col.Type() != TypeBigInt || b.col.Type() != TypeBigInt {
		return NullableColumn{}, fmt.Errorf("column: nullable arithmetic requires bigint operands, got %v and %v", a.col.Type(), b.col.Type())
	}
	if a.Len() != b.Len() {
		return NullableColumn{}, fmt.Errorf("column: operand length mismatch %d vs %d", a.Len(), b.Len())
	}
	validity := combinedValidity(a, b)
	vals := make([]int64, a.Len())
	for i := range vals {
		if validity == nil || validity[i] {
			vals[i] = op(a.col.i64[i], b.col.i64[i])
		}
		// null positions keep the canonical zero
	}
	return NullableColumn{col: NewBigInt(vals), validity: validity}, nil
}

// AddNullableBigInt adds two nullable bigint columns. A row is null when
// either operand is null, and null rows carry the canonical zero.
func AddNullableBigInt(a, b NullableColumn) (NullableColumn, error) {
	return nullableBigIntOp(a, b, func(x, y int64) int64 { return x + y })
}

// SubtractNullableBigInt subtracts b from a with null propagation.
func SubtractNullableBigInt(a, b NullableColumn) (NullableColumn, error) {
	return nullableBigIntOp(a, b, func(x, y int64) int64 { return x - y })
}

// MultiplyNullableBigInt multiplies two nullable bigint columns with null
// propagation.
func MultiplyNullableBigInt(a, b NullableColumn) (NullableColumn, error) {
	return nullableBigIntOp(a, b, func(x, y int64) int64 { return x * y })
}
