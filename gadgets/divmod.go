package gadgets

import (
	"math"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// The divide-modulo gadget proves 64-bit integer division with truncation:
// quotient and remainder columns such that q*b + r = a with |r| < |b| and
// sign(r) = sign(a). Division by zero yields quotient zero and remainder a,
// and MinInt64 / -1 yields the wrapped quotient MinInt64, matching the
// published quotient column while the true quotient q keeps the exact
// 65-bit value so the defining identity holds over the integers.
//
// The selector column s equals q or b per row and is bounded by the square
// root of 2^63, which caps |q*b| and rules out field wrap-around in the
// defining identity.

// sqrtMaxInt64 is the floor square root of 2^63. One factor of q*b always
// fits under it, since the product's magnitude is at most 2^63.
const sqrtMaxInt64 = 3037000499

// DivModVals computes the published quotient and remainder for 64-bit
// division with SQL semantics.
func DivModVals(a, b int64) (quot, rem int64) {
	switch {
	case b == 0:
		return 0, a
	case a == math.MinInt64 && b == -1:
		return math.MinInt64, 0
	default:
		return a / b, a % b
	}
}

func toInt64(x fr.Element) int64 {
	v := scalar.ToSignedBigInt(x)
	if !v.IsInt64() {
		panic("gadgets: value outside 64-bit range")
	}
	return v.Int64()
}

// DivModFinalRound proves quotient and remainder columns for the dividend
// and divisor columns a and b over n rows, whose values must be 64-bit
// integers. Returns the quotient and remainder columns.
func DivModFinalRound(rb *proof.FinalRoundBuilder, a, b []fr.Element, n int) (quot, rem []fr.Element) {
	quot = make([]fr.Element, n)
	rem = make([]fr.Element, n)
	q := make([]fr.Element, n)
	zb := make([]fr.Element, n)
	binv := make([]fr.Element, n)
	u := make([]fr.Element, n)
	sel := make([]fr.Element, n)
	uMinusChi := make([]fr.Element, n)

	one := fr.One()
	twoPow63 := scalar.PowerOfTwo(63)
	for i := 0; i < n; i++ {
		av := toInt64(a[i])
		bv := toInt64(b[i])
		qv, rv := DivModVals(av, bv)
		quot[i] = scalar.FromInt64(qv)
		rem[i] = scalar.FromInt64(rv)

		binv[i] = b[i]
		switch {
		case bv == 0:
			zb[i] = one
		case av == math.MinInt64 && bv == -1:
			q[i] = twoPow63
		default:
			q[i] = quot[i]
		}

		var absB, absR big.Int
		absB.Abs(big.NewInt(bv))
		if bv == math.MinInt64 {
			absB.Lsh(big.NewInt(1), 63)
		}
		absR.Abs(big.NewInt(rv))
		if rv == math.MinInt64 {
			absR.Lsh(big.NewInt(1), 63)
		}
		u[i] = scalar.FromBigInt(new(big.Int).Sub(&absB, &absR))
		uMinusChi[i].Sub(&u[i], &one)

		switch {
		case bv == 0:
			// selector zero matches q = 0
		case qv >= -sqrtMaxInt64 && qv <= sqrtMaxInt64 && !(av == math.MinInt64 && bv == -1):
			sel[i] = q[i]
		default:
			sel[i] = b[i]
		}
	}
	scalar.BatchInvertOrOne(binv)

	rb.ProduceChiEvaluationLength(n)
	chi := OnesVals(n)
	rb.ProduceIntermediateMLE(quot)
	rb.ProduceIntermediateMLE(rem)
	rb.ProduceIntermediateMLE(q)
	rb.ProduceIntermediateMLE(zb)
	rb.ProduceIntermediateMLE(binv)
	rb.ProduceIntermediateMLE(u)
	rb.ProduceIntermediateMLE(sel)

	var negOne, negTwoPow63 fr.Element
	negOne.Neg(&one)
	negTwoPow63.Neg(&twoPow63)
	two := scalar.FromInt64(2)
	var negTwo fr.Element
	negTwo.Neg(&two)

	// q*b + r - a = 0, exact over the integers by the range checks below
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{q, b}},
		{Coeff: one, Multiplicands: [][]fr.Element{rem}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{a}},
	}, 2)
	// (quot - q)(quot - MinInt64) = 0 pins the published quotient to the
	// true quotient except at the single wrapping value
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{quot, quot}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{quot, q}},
		{Coeff: twoPow63, Multiplicands: [][]fr.Element{quot}},
		{Coeff: negTwoPow63, Multiplicands: [][]fr.Element{q}},
	}, 2)
	// zb*b = 0
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{zb, b}},
	}, 2)
	// zb + b*binv - chi = 0 makes zb the exact zero indicator of b
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{zb}},
		{Coeff: one, Multiplicands: [][]fr.Element{b, binv}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{chi}},
	}, 2)
	// q*zb = 0
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{q, zb}},
	}, 2)

	sa := ProveSign(rb, a, n, 64)
	sb := ProveSign(rb, b, n, 64)
	sr := ProveSign(rb, rem, n, 64)
	ProveSign(rb, quot, n, 64)
	ProveSign(rb, q, n, 65)
	sv := ProveSign(rb, uMinusChi, n, 65)

	// (sr - sa)*r = 0: the remainder carries the dividend's sign
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{sr, rem}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{sa, rem}},
	}, 2)
	// u - |b| + |r| = 0 with |x| = x - 2*sx*x
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{u}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{b}},
		{Coeff: two, Multiplicands: [][]fr.Element{sb, b}},
		{Coeff: one, Multiplicands: [][]fr.Element{rem}},
		{Coeff: negTwo, Multiplicands: [][]fr.Element{sr, rem}},
	}, 2)
	// sv*(chi - zb) = 0: u >= 1, hence |r| < |b|, wherever b is nonzero
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{sv}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{sv, zb}},
	}, 2)
	// (s - q)(s - b) = 0
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{sel, sel}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{sel, b}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{sel, q}},
		{Coeff: one, Multiplicands: [][]fr.Element{q, b}},
	}, 2)

	sqrt := scalar.FromInt64(sqrtMaxInt64)
	lo := make([]fr.Element, n)
	hi := make([]fr.Element, n)
	var t fr.Element
	for i := 0; i < n; i++ {
		t.Mul(&sqrt, &chi[i])
		lo[i].Sub(&t, &sel[i])
		hi[i].Add(&t, &sel[i])
	}
	ProveNonNegative(rb, lo, n, 65)
	ProveNonNegative(rb, hi, n, 65)

	return quot, rem
}

// VerifyDivMod mirrors the prover round for dividend and divisor
// evaluations over n rows, returning the quotient and remainder
// evaluations.
func VerifyDivMod(vb *proof.VerificationBuilder, aEval, bEval fr.Element, n int) (quotEval, remEval fr.Element, err error) {
	fail := func(e error) (fr.Element, fr.Element, error) { return fr.Element{}, fr.Element{}, e }

	chiEval, m, err := vb.ConsumeChiEvaluation()
	if err != nil {
		return fail(err)
	}
	if m != n {
		return fail(errMismatch)
	}
	var evs [7]fr.Element
	for i := range evs {
		if evs[i], err = vb.ConsumeFinalRoundMLEEvaluation(); err != nil {
			return fail(err)
		}
	}
	quotEval, remEval = evs[0], evs[1]
	qEval, zbEval, binvEval, uEval, selEval := evs[2], evs[3], evs[4], evs[5], evs[6]

	twoPow63 := scalar.PowerOfTwo(63)
	var eval, t fr.Element

	eval.Mul(&qEval, &bEval)
	eval.Add(&eval, &remEval)
	eval.Sub(&eval, &aEval)
	if err = vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return fail(err)
	}

	eval.Square(&quotEval)
	t.Mul(&quotEval, &qEval)
	eval.Sub(&eval, &t)
	t.Mul(&twoPow63, &quotEval)
	eval.Add(&eval, &t)
	t.Mul(&twoPow63, &qEval)
	eval.Sub(&eval, &t)
	if err = vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return fail(err)
	}

	eval.Mul(&zbEval, &bEval)
	if err = vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return fail(err)
	}

	eval.Mul(&bEval, &binvEval)
	eval.Add(&eval, &zbEval)
	eval.Sub(&eval, &chiEval)
	if err = vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return fail(err)
	}

	eval.Mul(&qEval, &zbEval)
	if err = vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return fail(err)
	}

	saEval, err := VerifySign(vb, aEval, n, 64)
	if err != nil {
		return fail(err)
	}
	sbEval, err := VerifySign(vb, bEval, n, 64)
	if err != nil {
		return fail(err)
	}
	srEval, err := VerifySign(vb, remEval, n, 64)
	if err != nil {
		return fail(err)
	}
	if _, err = VerifySign(vb, quotEval, n, 64); err != nil {
		return fail(err)
	}
	if _, err = VerifySign(vb, qEval, n, 65); err != nil {
		return fail(err)
	}
	var uMinusChi fr.Element
	uMinusChi.Sub(&uEval, &chiEval)
	svEval, err := VerifySign(vb, uMinusChi, n, 65)
	if err != nil {
		return fail(err)
	}

	eval.Sub(&srEval, &saEval)
	eval.Mul(&eval, &remEval)
	if err = vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return fail(err)
	}

	two := scalar.FromInt64(2)
	eval = uEval
	eval.Sub(&eval, &bEval)
	t.Mul(&sbEval, &bEval)
	t.Mul(&t, &two)
	eval.Add(&eval, &t)
	eval.Add(&eval, &remEval)
	t.Mul(&srEval, &remEval)
	t.Mul(&t, &two)
	eval.Sub(&eval, &t)
	if err = vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return fail(err)
	}

	t.Mul(&svEval, &zbEval)
	eval.Sub(&svEval, &t)
	if err = vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return fail(err)
	}

	eval.Square(&selEval)
	t.Mul(&selEval, &bEval)
	eval.Sub(&eval, &t)
	t.Mul(&selEval, &qEval)
	eval.Sub(&eval, &t)
	t.Mul(&qEval, &bEval)
	eval.Add(&eval, &t)
	if err = vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return fail(err)
	}

	sqrt := scalar.FromInt64(sqrtMaxInt64)
	var loEval, hiEval fr.Element
	t.Mul(&sqrt, &chiEval)
	loEval.Sub(&t, &selEval)
	hiEval.Add(&t, &selEval)
	if err = VerifyNonNegative(vb, loEval, n, 65); err != nil {
		return fail(err)
	}
	if err = VerifyNonNegative(vb, hiEval, n, 65); err != nil {
		return fail(err)
	}
	return quotEval, remEval, nil
}
