package column_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
)

func TestTypeProperties(t *testing.T) {
	assert.True(t, column.TypeBigInt.IsInteger())
	assert.False(t, column.TypeDecimal.IsInteger())
	assert.True(t, column.TypeDecimal.IsNumeric())
	assert.True(t, column.TypeTimestamp.IsOrderable())
	assert.False(t, column.TypeVarChar.IsOrderable())
	assert.Equal(t, 64, column.TypeBigInt.SignedBitWidth())
	assert.Equal(t, 16, column.TypeSmallInt.SignedBitWidth())
	assert.Panics(t, func() { column.TypeVarChar.SignedBitWidth() })
}

func TestScalars(t *testing.T) {
	t.Run("Boolean", func(t *testing.T) {
		c := column.NewBoolean([]bool{true, false, true})
		assert.Equal(t, []fr.Element{fr.One(), {}, fr.One()}, c.Scalars())
	})

	t.Run("SignedIntegers", func(t *testing.T) {
		c := column.NewBigInt([]int64{-5, 0, 7})
		assert.Equal(t, scalar.FromInt64(-5), c.ScalarAt(0))
		assert.Equal(t, scalar.FromInt64(7), c.ScalarAt(2))
	})

	t.Run("Decimal", func(t *testing.T) {
		c, err := column.NewDecimal(10, 2, []*big.Int{big.NewInt(-125), big.NewInt(300)})
		require.NoError(t, err)
		assert.Equal(t, scalar.FromInt64(-125), c.ScalarAt(0))
		assert.Equal(t, int8(2), c.Scale())
	})

	t.Run("VarChar", func(t *testing.T) {
		c := column.NewVarChar([]string{"x", "y", "x"})
		s := c.Scalars()
		assert.Equal(t, scalar.EncodeString("x"), s[0])
		assert.Equal(t, s[0], s[2])
		assert.NotEqual(t, s[0], s[1])
	})
}

func TestDecimalPrecisionBounds(t *testing.T) {
	_, err := column.NewDecimal(0, 0, nil)
	assert.Error(t, err)
	_, err = column.NewDecimal(76, 0, nil)
	assert.Error(t, err)
	_, err = column.NewDecimal(75, -3, nil)
	assert.NoError(t, err)
}

func TestScalarsWithScaling(t *testing.T) {
	c := column.NewBigInt([]int64{3, -4})
	scaled := c.ScalarsWithScaling(2)
	assert.Equal(t, []fr.Element{scalar.FromInt64(300), scalar.FromInt64(-400)}, scaled)
	assert.Equal(t, c.Scalars(), c.ScalarsWithScaling(0))

	assert.Panics(t, func() { column.NewVarChar([]string{"a"}).ScalarsWithScaling(1) })
	assert.Panics(t, func() { c.ScalarsWithScaling(-1) })
}

func TestGather(t *testing.T) {
	c := column.NewInt([]int32{10, 20, 30, 40})
	g := c.Gather([]int{3, 1, 1})
	assert.Equal(t, []int32{40, 20, 20}, g.View().Ints())

	ts := column.NewTimestamp(column.UnitMillisecond, []int64{100, 200})
	gt := ts.Gather([]int{1})
	assert.Equal(t, column.TypeTimestamp, gt.Type())
	assert.Equal(t, column.UnitMillisecond, gt.View().Unit())
}

func TestTable(t *testing.T) {
	tab := column.NewTable(3)
	require.NoError(t, tab.Add("a", column.NewBigInt([]int64{1, 2, 3})))

	t.Run("LengthMismatch", func(t *testing.T) {
		assert.Error(t, tab.Add("b", column.NewBigInt([]int64{1})))
	})

	t.Run("DuplicateName", func(t *testing.T) {
		assert.Error(t, tab.Add("a", column.NewBigInt([]int64{4, 5, 6})))
	})

	t.Run("Lookup", func(t *testing.T) {
		c, ok := tab.Column("a")
		require.True(t, ok)
		assert.Equal(t, []int64{1, 2, 3}, c.BigInts())
		_, ok = tab.Column("missing")
		assert.False(t, ok)
	})

	t.Run("ZeroColumnsKeepRows", func(t *testing.T) {
		empty := column.NewTable(5)
		assert.Equal(t, 5, empty.NumRows())
		assert.Equal(t, 0, empty.NumColumns())
	})
}

func TestOwnedTableView(t *testing.T) {
	ot := column.NewOwnedTable(2)
	require.NoError(t, ot.Add("v", column.NewBigInt([]int64{7, 8}).Materialize()))
	v := ot.View()
	c, ok := v.Column("v")
	require.True(t, ok)
	assert.Equal(t, []int64{7, 8}, c.BigInts())
}

func TestNullable(t *testing.T) {
	t.Run("NilMaskMeansAllValid", func(t *testing.T) {
		n, err := column.NewNullable(column.NewBigInt([]int64{1, 2}), nil)
		require.NoError(t, err)
		assert.True(t, n.ValidAt(0))
		assert.Nil(t, n.Validity())
	})

	t.Run("RejectsNonCanonicalNull", func(t *testing.T) {
		_, err := column.NewNullable(column.NewBigInt([]int64{11, 5, 0}), []bool{true, false, false})
		assert.Error(t, err)
	})

	t.Run("RejectsMaskLengthMismatch", func(t *testing.T) {
		_, err := column.NewNullable(column.NewBigInt([]int64{1, 2}), []bool{true})
		assert.Error(t, err)
	})

	t.Run("AcceptsCanonicalNull", func(t *testing.T) {
		n, err := column.NewNullable(column.NewVarChar([]string{"a", ""}), []bool{true, false})
		require.NoError(t, err)
		assert.False(t, n.ValidAt(1))
	})
}

func TestNullableArithmetic(t *testing.T) {
	mk := func(vals []int64, validity []bool) column.NullableColumn {
		n, err := column.NewNullable(column.NewBigInt(vals), validity)
		if err != nil {
			t.Fatal(err)
		}
		return n
	}

	t.Run("AddPropagatesNulls", func(t *testing.T) {
		a := mk([]int64{1, 0, 3}, []bool{true, false, true})
		b := mk([]int64{10, 20, 0}, []bool{true, true, false})
		sum, err := column.AddNullableBigInt(a, b)
		require.NoError(t, err)
		assert.Equal(t, []int64{11, 0, 0}, sum.Column().BigInts())
		assert.Equal(t, []bool{true, false, false}, sum.Validity())
	})

	t.Run("NoMasksStayNil", func(t *testing.T) {
		prod, err := column.MultiplyNullableBigInt(mk([]int64{2, 3}, nil), mk([]int64{4, 5}, nil))
		require.NoError(t, err)
		assert.Nil(t, prod.Validity())
		assert.Equal(t, []int64{8, 15}, prod.Column().BigInts())
	})

	t.Run("Subtract", func(t *testing.T) {
		diff, err := column.SubtractNullableBigInt(mk([]int64{10, 0}, []bool{true, false}), mk([]int64{4, 6}, nil))
		require.NoError(t, err)
		assert.Equal(t, []int64{6, 0}, diff.Column().BigInts())
		assert.Equal(t, []bool{true, false}, diff.Validity())
	})

	t.Run("RejectsNonBigInt", func(t *testing.T) {
		a, err := column.NewNullable(column.NewInt([]int32{1}), nil)
		require.NoError(t, err)
		b := mk([]int64{1}, nil)
		_, err = column.AddNullableBigInt(a, b)
		assert.Error(t, err)
	})

	t.Run("RejectsLengthMismatch", func(t *testing.T) {
		_, err := column.AddNullableBigInt(mk([]int64{1, 2}, nil), mk([]int64{1}, nil))
		assert.Error(t, err)
	})
}

func TestNullableArithmeticProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300

	ops := []struct {
		name string
		col  func(a, b column.NullableColumn) (column.NullableColumn, error)
		i64  func(x, y int64) int64
	}{
		{"add", column.AddNullableBigInt, func(x, y int64) int64 { return x + y }},
		{"subtract", column.SubtractNullableBigInt, func(x, y int64) int64 { return x - y }},
		{"multiply", column.MultiplyNullableBigInt, func(x, y int64) int64 { return x * y }},
	}

	properties := gopter.NewProperties(parameters)
	properties.Property("null rows intersect and stay canonical", prop.ForAll(
		func(aVals, bVals []int64, aMask, bMask []bool) bool {
			n := min(len(aVals), len(bVals), len(aMask), len(bMask))
			aVals, bVals = aVals[:n], bVals[:n]
			aMask, bMask = aMask[:n], bMask[:n]
			// canonical zero under nulls
			for i := 0; i < n; i++ {
				if !aMask[i] {
					aVals[i] = 0
				}
				if !bMask[i] {
					bVals[i] = 0
				}
			}
			a, err := column.NewNullable(column.NewBigInt(aVals), aMask)
			if err != nil {
				return false
			}
			b, err := column.NewNullable(column.NewBigInt(bVals), bMask)
			if err != nil {
				return false
			}
			for _, op := range ops {
				got, err := op.col(a, b)
				if err != nil {
					return false
				}
				vals := got.Column().BigInts()
				for i := 0; i < n; i++ {
					if got.ValidAt(i) != (aMask[i] && bMask[i]) {
						return false
					}
					if got.ValidAt(i) {
						if vals[i] != op.i64(aVals[i], bVals[i]) {
							return false
						}
					} else if vals[i] != 0 {
						return false
					}
				}
				// the result must itself satisfy the canonical null invariant
				if _, err := column.NewNullable(got.Column(), got.Validity()); err != nil {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64()),
		gen.SliceOf(gen.Int64()),
		gen.SliceOf(gen.Bool()),
		gen.SliceOf(gen.Bool()),
	))
	properties.TestingRun(t)
}
