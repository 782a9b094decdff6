package sumcheck_test

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceandtimefdn/proof-of-sql-go/mle"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
	"github.com/spaceandtimefdn/proof-of-sql-go/transcript"
)

func col(vs ...int64) []fr.Element {
	out := make([]fr.Element, len(vs))
	for i, v := range vs {
		out[i] = scalar.FromInt64(v)
	}
	return out
}

// zeroSumTerms builds sum_i a_i*b_i - sum_i c_i = 0 with c = a.*b.
func zeroSumTerms() []sumcheck.Term {
	a := col(2, -3, 5, 7, 0, 1)
	b := col(4, 4, -1, 2, 9, 9)
	c := make([]fr.Element, len(a))
	for i := range c {
		c[i].Mul(&a[i], &b[i])
	}
	var negOne fr.Element
	one := fr.One()
	negOne.Neg(&one)
	return []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{a, b}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{c}},
	}
}

// finalClaim evaluates the batched polynomial of terms directly at point.
func finalClaim(terms []sumcheck.Term, point []fr.Element) fr.Element {
	var acc, t fr.Element
	for _, term := range terms {
		t = term.Coeff
		for _, m := range term.Multiplicands {
			e := mle.EvaluateAt(m, point)
			t.Mul(&t, &e)
		}
		acc.Add(&acc, &t)
	}
	return acc
}

func TestProveVerify(t *testing.T) {
	const numVars, degree = 3, 2
	terms := zeroSumTerms()

	pf, provePoint := sumcheck.Prove(transcript.New("sumcheck test"), terms, numVars, degree)
	require.Len(t, pf.RoundPolys, numVars)

	point, claim, err := sumcheck.Verify(transcript.New("sumcheck test"), pf, numVars, degree)
	require.NoError(t, err)
	assert.Equal(t, provePoint, point)
	assert.Equal(t, finalClaim(terms, point), claim)
}

func TestVerifyRejects(t *testing.T) {
	const numVars, degree = 3, 2
	prove := func() sumcheck.Proof {
		pf, _ := sumcheck.Prove(transcript.New("sumcheck test"), zeroSumTerms(), numVars, degree)
		return pf
	}

	t.Run("TamperedCoefficient", func(t *testing.T) {
		pf := prove()
		one := fr.One()
		pf.RoundPolys[0][1].Add(&pf.RoundPolys[0][1], &one)
		_, _, err := sumcheck.Verify(transcript.New("sumcheck test"), pf, numVars, degree)
		assert.ErrorIs(t, err, sumcheck.ErrInvalid)
	})

	t.Run("NonZeroSumInput", func(t *testing.T) {
		// a*b without the cancelling term does not sum to zero
		terms := zeroSumTerms()[:1]
		pf, _ := sumcheck.Prove(transcript.New("sumcheck test"), terms, numVars, degree)
		_, _, err := sumcheck.Verify(transcript.New("sumcheck test"), pf, numVars, degree)
		assert.ErrorIs(t, err, sumcheck.ErrInvalid)
	})

	t.Run("WrongRoundCount", func(t *testing.T) {
		pf := prove()
		_, _, err := sumcheck.Verify(transcript.New("sumcheck test"), pf, numVars+1, degree)
		assert.ErrorIs(t, err, sumcheck.ErrInvalid)
	})

	t.Run("WrongDegree", func(t *testing.T) {
		pf := prove()
		_, _, err := sumcheck.Verify(transcript.New("sumcheck test"), pf, numVars, degree+1)
		assert.ErrorIs(t, err, sumcheck.ErrInvalid)
	})
}

func TestProverPanics(t *testing.T) {
	one := fr.One()
	t.Run("DegreeBound", func(t *testing.T) {
		terms := []sumcheck.Term{{Coeff: one, Multiplicands: [][]fr.Element{col(1), col(2), col(3)}}}
		assert.Panics(t, func() { sumcheck.Prove(transcript.New("x"), terms, 1, 2) })
	})
	t.Run("MultiplicandTooLong", func(t *testing.T) {
		terms := []sumcheck.Term{{Coeff: one, Multiplicands: [][]fr.Element{col(1, 2, 3)}}}
		assert.Panics(t, func() { sumcheck.Prove(transcript.New("x"), terms, 1, 1) })
	})
}

func TestEvaluatePoly(t *testing.T) {
	coeffs := col(7, -2, 3)
	x := scalar.FromInt64(5)
	// 7 - 2*5 + 3*25 = 72
	assert.Equal(t, scalar.FromInt64(72), sumcheck.EvaluatePoly(coeffs, x))
	assert.Equal(t, fr.Element{}, sumcheck.EvaluatePoly(nil, x))
}
