package gadgets

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// The shift gadget proves that a committed column of length n+1 holds zero
// followed by the n source values. Soundness is a multiset argument over
// (value, position) pairs: source row j is tagged with position j+1 and the
// candidate row i with position i, and the candidate multiset must equal the
// source multiset plus the public pair (0, 0), whose star term is the
// one-row length indicator.

// ShiftFirstRound commits the shifted column. It must be committed before
// the fold challenges are drawn, since its values are not pointwise pinned.
// Returns the shifted column, length n+1.
func ShiftFirstRound(b *proof.FirstRoundBuilder, source []fr.Element) []fr.Element {
	shifted := make([]fr.Element, len(source)+1)
	copy(shifted[1:], source)
	b.ProduceIntermediateMLE(shifted)
	b.RequestPostResultChallenges(2)
	return shifted
}

// ShiftFinalRound records the shift constraints for a source of length n and
// the shifted column returned by ShiftFirstRound.
func ShiftFinalRound(rb *proof.FinalRoundBuilder, source, shifted []fr.Element) {
	n := len(source)
	alpha := rb.ConsumePostResultChallenge()
	beta := rb.ConsumePostResultChallenge()

	rb.ProduceRhoEvaluationLength(n)
	rb.ProduceRhoEvaluationLength(n + 1)

	cFold := FoldVals(alpha, beta, [][]fr.Element{source, IndexVals(1, n)}, n)
	cStar := ProveFoldStar(rb, cFold, n)
	dFold := FoldVals(alpha, beta, [][]fr.Element{shifted, IndexVals(0, n+1)}, n+1)
	dStar := ProveFoldStar(rb, dFold, n+1)

	rb.ProduceChiEvaluationLength(1)
	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)
	rb.ProduceSubpolynomial(proof.KindZeroSum, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{cStar}},
		{Coeff: one, Multiplicands: [][]fr.Element{OnesVals(1)}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{dStar}},
	}, 1)
}

// VerifyShift mirrors the two prover rounds and returns the shifted
// column's claimed evaluation.
func VerifyShift(b *proof.VerificationBuilder, sourceEval fr.Element, n int) (fr.Element, error) {
	shiftedEval, err := b.ConsumeFirstRoundMLEEvaluation()
	if err != nil {
		return fr.Element{}, err
	}
	alpha, err := b.ConsumePostResultChallenge()
	if err != nil {
		return fr.Element{}, err
	}
	beta, err := b.ConsumePostResultChallenge()
	if err != nil {
		return fr.Element{}, err
	}

	rhoN, m, err := b.ConsumeRhoEvaluation()
	if err != nil {
		return fr.Element{}, err
	}
	if m != n {
		return fr.Element{}, errMismatch
	}
	rhoN1, m, err := b.ConsumeRhoEvaluation()
	if err != nil {
		return fr.Element{}, err
	}
	if m != n+1 {
		return fr.Element{}, errMismatch
	}

	cStar, chiN, err := ConsumeFoldStar(b, n)
	if err != nil {
		return fr.Element{}, err
	}
	var cIdx fr.Element
	cIdx.Add(&rhoN, &chiN)
	cFold := FoldEval(alpha, beta, []fr.Element{sourceEval, cIdx})
	if err := CheckFoldStar(b, cStar, chiN, cFold); err != nil {
		return fr.Element{}, err
	}

	dStar, chiN1, err := ConsumeFoldStar(b, n+1)
	if err != nil {
		return fr.Element{}, err
	}
	dFold := FoldEval(alpha, beta, []fr.Element{shiftedEval, rhoN1})
	if err := CheckFoldStar(b, dStar, chiN1, dFold); err != nil {
		return fr.Element{}, err
	}

	chi1, m, err := b.ConsumeChiEvaluation()
	if err != nil {
		return fr.Element{}, err
	}
	if m != 1 {
		return fr.Element{}, errMismatch
	}
	var eval fr.Element
	eval.Add(&cStar, &chi1)
	eval.Sub(&eval, &dStar)
	if err := b.ProduceSubpolynomialEvaluation(proof.KindZeroSum, eval, 1); err != nil {
		return fr.Element{}, err
	}
	return shiftedEval, nil
}
