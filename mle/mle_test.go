package mle_test

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceandtimefdn/proof-of-sql-go/mle"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
)

func testPoint(seed, n int) []fr.Element {
	point := make([]fr.Element, n)
	for i := range point {
		point[i] = scalar.EncodeString(string(rune('a'+seed)) + string(rune('0'+i)))
	}
	return point
}

func TestNumVars(t *testing.T) {
	for _, tc := range []struct{ n, want int }{
		{0, 0}, {1, 0}, {2, 1}, {3, 2}, {4, 2}, {5, 3}, {8, 3}, {9, 4},
	} {
		assert.Equal(t, tc.want, mle.NumVars(tc.n))
	}
}

func TestEvaluateAt(t *testing.T) {
	t.Run("HypercubeVertices", func(t *testing.T) {
		vals := []fr.Element{scalar.FromInt64(7), scalar.FromInt64(-3), scalar.FromInt64(11)}
		zero := fr.Element{}
		one := fr.One()
		// point[0] binds the least significant index bit
		assert.Equal(t, vals[0], mle.EvaluateAt(vals, []fr.Element{zero, zero}))
		assert.Equal(t, vals[1], mle.EvaluateAt(vals, []fr.Element{one, zero}))
		assert.Equal(t, vals[2], mle.EvaluateAt(vals, []fr.Element{zero, one}))
		assert.Equal(t, zero, mle.EvaluateAt(vals, []fr.Element{one, one}))
	})

	t.Run("MatchesChiInnerProduct", func(t *testing.T) {
		vals := make([]fr.Element, 6)
		for i := range vals {
			vals[i] = scalar.FromInt64(int64(3*i - 5))
		}
		point := testPoint(0, 3)
		chi := mle.ChiEvals(point)
		require.Len(t, chi, 8)
		padded := make([]fr.Element, 8)
		copy(padded, vals)
		assert.Equal(t, scalar.InnerProduct(padded, chi), mle.EvaluateAt(vals, point))
	})

	t.Run("TooManyRowsPanics", func(t *testing.T) {
		vals := make([]fr.Element, 5)
		assert.Panics(t, func() { mle.EvaluateAt(vals, testPoint(1, 2)) })
	})
}

func TestChiEvalsSumToOne(t *testing.T) {
	point := testPoint(2, 4)
	chi := mle.ChiEvals(point)
	var sum fr.Element
	for i := range chi {
		sum.Add(&sum, &chi[i])
	}
	assert.Equal(t, fr.One(), sum)
}

func TestEqEval(t *testing.T) {
	a := testPoint(3, 3)
	b := testPoint(4, 3)

	t.Run("MatchesTensorInnerProduct", func(t *testing.T) {
		assert.Equal(t, scalar.InnerProduct(mle.ChiEvals(a), mle.ChiEvals(b)), mle.EqEval(a, b))
	})

	t.Run("Symmetric", func(t *testing.T) {
		assert.Equal(t, mle.EqEval(a, b), mle.EqEval(b, a))
	})

	t.Run("LengthMismatchPanics", func(t *testing.T) {
		assert.Panics(t, func() { mle.EqEval(a, b[:2]) })
	})
}

func TestTruncatedChiEval(t *testing.T) {
	point := testPoint(5, 3)
	one := fr.One()
	ones := make([]fr.Element, 8)
	for i := range ones {
		ones[i] = one
	}
	for n := 0; n <= 8; n++ {
		assert.Equal(t, mle.EvaluateAt(ones[:n], point), mle.TruncatedChiEval(n, point), "n=%d", n)
	}
	assert.Panics(t, func() { mle.TruncatedChiEval(9, point) })
	assert.Panics(t, func() { mle.TruncatedChiEval(-1, point) })
}

func TestTruncatedRhoEval(t *testing.T) {
	point := testPoint(6, 3)
	indexes := make([]fr.Element, 8)
	for i := range indexes {
		indexes[i] = scalar.FromInt64(int64(i))
	}
	for n := 0; n <= 8; n++ {
		assert.Equal(t, mle.EvaluateAt(indexes[:n], point), mle.TruncatedRhoEval(n, point), "n=%d", n)
	}
	assert.Equal(t, mle.RhoFullEval(point), mle.TruncatedRhoEval(8, point))
}
