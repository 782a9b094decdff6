package pedersen

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/mle"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/transcript"
)

// EvaluationProof proves that a committed MLE evaluates to a claimed value at
// a chosen point. It is the classic halving inner-product argument: one L/R
// pair per variable plus the fully folded scalar.
type EvaluationProof struct {
	L []bn254.G1Affine
	R []bn254.G1Affine
	A fr.Element
}

func msm(points []bn254.G1Affine, scalars []fr.Element) bn254.G1Jac {
	var aff bn254.G1Affine
	if _, err := aff.MultiExp(points, scalars, ecc.MultiExpConfig{}); err != nil {
		panic(err)
	}
	var jac bn254.G1Jac
	jac.FromAffine(&aff)
	return jac
}

func scalarMulAffine(p bn254.G1Affine, s fr.Element) bn254.G1Jac {
	var bi big.Int
	s.BigInt(&bi)
	var jac bn254.G1Jac
	jac.FromAffine(&p)
	jac.ScalarMultiplication(&jac, &bi)
	return jac
}

// ProveEvaluation proves that the MLE of values, zero-extended to
// 2^len(point) rows and committed with generators starting at offset,
// evaluates at point to the inner product of values with the chi tensor.
func (s *Setup) ProveEvaluation(tr *transcript.Transcript, values []fr.Element, point []fr.Element, offset int) EvaluationProof {
	n := 1 << len(point)
	if len(values) > n {
		panic("pedersen: too many rows for evaluation point")
	}

	a := make([]fr.Element, n)
	copy(a, values)
	b := mle.ChiEvals(point)
	g := make([]bn254.G1Affine, n)
	copy(g, s.generators(offset, n))

	value := scalar.InnerProduct(a, b)
	tr.AppendScalars("ipa value", value)
	tr.AppendScalars("ipa point", point...)
	w := tr.ChallengeScalar("ipa q scale")
	var qw bn254.G1Affine
	qw.FromJacobian(ptr(scalarMulAffine(s.q, w)))

	pf := EvaluationProof{
		L: make([]bn254.G1Affine, 0, len(point)),
		R: make([]bn254.G1Affine, 0, len(point)),
	}

	var t fr.Element
	for len(a) > 1 {
		half := len(a) >> 1
		aLo, aHi := a[:half], a[half:]
		bLo, bHi := b[:half], b[half:]
		gLo, gHi := g[:half], g[half:]

		l := msm(gHi, aLo)
		l.AddAssign(ptr(scalarMulAffine(qw, scalar.InnerProduct(aLo, bHi))))
		r := msm(gLo, aHi)
		r.AddAssign(ptr(scalarMulAffine(qw, scalar.InnerProduct(aHi, bLo))))

		var lAff, rAff bn254.G1Affine
		lAff.FromJacobian(&l)
		rAff.FromJacobian(&r)
		pf.L = append(pf.L, lAff)
		pf.R = append(pf.R, rAff)

		tr.AppendBytes("ipa l", lAff.Marshal())
		tr.AppendBytes("ipa r", rAff.Marshal())
		x := tr.ChallengeScalar("ipa fold")
		var xInv fr.Element
		xInv.Inverse(&x)

		var xBig, xInvBig big.Int
		x.BigInt(&xBig)
		xInv.BigInt(&xInvBig)
		var hiJac, loJac bn254.G1Jac
		for i := 0; i < half; i++ {
			t.Mul(&aHi[i], &xInv)
			aLo[i].Mul(&aLo[i], &x)
			aLo[i].Add(&aLo[i], &t)

			t.Mul(&bHi[i], &x)
			bLo[i].Mul(&bLo[i], &xInv)
			bLo[i].Add(&bLo[i], &t)

			loJac.FromAffine(&gLo[i])
			loJac.ScalarMultiplication(&loJac, &xInvBig)
			hiJac.FromAffine(&gHi[i])
			hiJac.ScalarMultiplication(&hiJac, &xBig)
			loJac.AddAssign(&hiJac)
			gLo[i].FromJacobian(&loJac)
		}
		a, b, g = a[:half], b[:half], g[:half]
	}

	pf.A = a[0]
	return pf
}

// VerifyEvaluation checks an evaluation proof against a commitment, a
// claimed value, and an evaluation point. It reports false on any mismatch.
func (s *Setup) VerifyEvaluation(tr *transcript.Transcript, pf EvaluationProof, com Commitment, value fr.Element, point []fr.Element, offset int) bool {
	if len(pf.L) != len(point) || len(pf.R) != len(point) {
		return false
	}
	n := 1 << len(point)

	b := mle.ChiEvals(point)
	g := make([]bn254.G1Affine, n)
	copy(g, s.generators(offset, n))

	tr.AppendScalars("ipa value", value)
	tr.AppendScalars("ipa point", point...)
	w := tr.ChallengeScalar("ipa q scale")
	var qw bn254.G1Affine
	qw.FromJacobian(ptr(scalarMulAffine(s.q, w)))

	p := scalarMulAffine(qw, value)
	var comJac bn254.G1Jac
	comJac.FromAffine(&com.point)
	p.AddAssign(&comJac)

	var t fr.Element
	for round := range point {
		tr.AppendBytes("ipa l", pf.L[round].Marshal())
		tr.AppendBytes("ipa r", pf.R[round].Marshal())
		x := tr.ChallengeScalar("ipa fold")
		var xInv, xSq, xInvSq fr.Element
		xInv.Inverse(&x)
		xSq.Square(&x)
		xInvSq.Square(&xInv)

		p.AddAssign(ptr(scalarMulAffine(pf.L[round], xSq)))
		p.AddAssign(ptr(scalarMulAffine(pf.R[round], xInvSq)))

		half := len(b) >> 1
		bLo, bHi := b[:half], b[half:]
		gLo, gHi := g[:half], g[half:]
		var xBig, xInvBig big.Int
		x.BigInt(&xBig)
		xInv.BigInt(&xInvBig)
		var hiJac, loJac bn254.G1Jac
		for i := 0; i < half; i++ {
			t.Mul(&bHi[i], &x)
			bLo[i].Mul(&bLo[i], &xInv)
			bLo[i].Add(&bLo[i], &t)

			loJac.FromAffine(&gLo[i])
			loJac.ScalarMultiplication(&loJac, &xInvBig)
			hiJac.FromAffine(&gHi[i])
			hiJac.ScalarMultiplication(&hiJac, &xBig)
			loJac.AddAssign(&hiJac)
			gLo[i].FromJacobian(&loJac)
		}
		b, g = b[:half], g[:half]
	}

	expected := scalarMulAffine(g[0], pf.A)
	t.Mul(&pf.A, &b[0])
	expected.AddAssign(ptr(scalarMulAffine(qw, t)))

	var pAff, expAff bn254.G1Affine
	pAff.FromJacobian(&p)
	expAff.FromJacobian(&expected)
	return pAff.Equal(&expAff)
}

func ptr(j bn254.G1Jac) *bn254.G1Jac {
	return &j
}
