package gadgets

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// proveSign decomposes values over n rows at the given signed width: the bit
// distribution is published, each varying bit becomes a committed boolean
// column, and the reconstruction identity ties the bits back to the values.
// Returns the distribution and the negative indicator column.
func proveSign(b *proof.FinalRoundBuilder, values []fr.Element, n, width int) (proof.BitDistribution, []fr.Element) {
	dist, bits := proof.ComputeBitDistribution(values, width)
	b.ProduceBitDistribution(dist)
	b.ProduceChiEvaluationLength(n)
	chi := OnesVals(n)

	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)

	for _, bit := range bits {
		b.ProduceIntermediateMLE(bit)
		b.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
			{Coeff: one, Multiplicands: [][]fr.Element{bit, bit}},
			{Coeff: negOne, Multiplicands: [][]fr.Element{bit}},
		}, 2)
	}

	terms := make([]sumcheck.Term, 0, len(bits)+2)
	for k, p := range dist.VaryingPositions() {
		terms = append(terms, sumcheck.Term{Coeff: scalar.PowerOfTwo(p), Multiplicands: [][]fr.Element{bits[k]}})
	}
	var negOffset, negVal fr.Element
	offset := dist.ConstantOffset()
	negOffset.Neg(&offset)
	negVal.Neg(&one)
	terms = append(terms,
		sumcheck.Term{Coeff: negOffset, Multiplicands: [][]fr.Element{chi}},
		sumcheck.Term{Coeff: negVal, Multiplicands: [][]fr.Element{values}},
	)
	b.ProduceSubpolynomial(proof.KindIdentity, terms, 1)

	lead := width - 1
	var s []fr.Element
	switch {
	case dist.VaryAt(lead):
		// the committed lead bit is the last varying position
		bLead := bits[len(bits)-1]
		s = make([]fr.Element, n)
		for i := range s {
			s[i].Sub(&one, &bLead[i])
		}
	case dist.ConstOneAt(lead):
		s = make([]fr.Element, n)
	default:
		s = OnesVals(n)
	}
	return dist, s
}

// ProveSign returns the negative indicator column of values over n rows:
// one where the signed interpretation is negative, zero elsewhere and on
// padding rows. Values must fit the signed width.
func ProveSign(b *proof.FinalRoundBuilder, values []fr.Element, n, width int) []fr.Element {
	_, s := proveSign(b, values, n, width)
	return s
}

// ProveNonNegative proves that every row of values is non-negative at the
// given signed width. Negative values are a prover bug and panic.
func ProveNonNegative(b *proof.FinalRoundBuilder, values []fr.Element, n, width int) {
	dist, _ := proveSign(b, values, n, width)
	if !dist.LeadBitConstOne() {
		panic("gadgets: non-negativity claim over negative values")
	}
}

func verifySign(b *proof.VerificationBuilder, valueEval fr.Element, n, width int) (proof.BitDistribution, fr.Element, error) {
	dist, err := b.ConsumeBitDistribution()
	if err != nil {
		return dist, fr.Element{}, err
	}
	if dist.Width() != width {
		return dist, fr.Element{}, errMismatch
	}
	chiEval, m, err := b.ConsumeChiEvaluation()
	if err != nil {
		return dist, fr.Element{}, err
	}
	if m != n {
		return dist, fr.Element{}, errMismatch
	}

	positions := dist.VaryingPositions()
	bitEvals := make([]fr.Element, len(positions))
	var t fr.Element
	for k := range positions {
		bitEvals[k], err = b.ConsumeFinalRoundMLEEvaluation()
		if err != nil {
			return dist, fr.Element{}, err
		}
		var eval fr.Element
		eval.Square(&bitEvals[k])
		eval.Sub(&eval, &bitEvals[k])
		if err := b.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
			return dist, fr.Element{}, err
		}
	}

	var recon fr.Element
	for k, p := range positions {
		pw := scalar.PowerOfTwo(p)
		t.Mul(&pw, &bitEvals[k])
		recon.Add(&recon, &t)
	}
	offset := dist.ConstantOffset()
	t.Mul(&offset, &chiEval)
	recon.Sub(&recon, &t)
	recon.Sub(&recon, &valueEval)
	if err := b.ProduceSubpolynomialEvaluation(proof.KindIdentity, recon, 1); err != nil {
		return dist, fr.Element{}, err
	}

	lead := width - 1
	var sEval fr.Element
	switch {
	case dist.VaryAt(lead):
		sEval.Sub(&chiEval, &bitEvals[len(bitEvals)-1])
	case dist.ConstOneAt(lead):
		// all rows non-negative
	default:
		sEval = chiEval
	}
	return dist, sEval, nil
}

// VerifySign mirrors ProveSign and returns the negative indicator
// evaluation.
func VerifySign(b *proof.VerificationBuilder, valueEval fr.Element, n, width int) (fr.Element, error) {
	_, sEval, err := verifySign(b, valueEval, n, width)
	return sEval, err
}

// VerifyNonNegative mirrors ProveNonNegative. It rejects any distribution
// whose lead bit is not constant one, which is what makes the claim binding.
func VerifyNonNegative(b *proof.VerificationBuilder, valueEval fr.Element, n, width int) error {
	dist, _, err := verifySign(b, valueEval, n, width)
	if err != nil {
		return err
	}
	if !dist.LeadBitConstOne() {
		return errMismatch
	}
	return nil
}
