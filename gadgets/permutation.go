package gadgets

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// The permutation gadget proves that two tables hold the same multiset of
// row tuples: sum_i 1/(1+fold_A[i]) = sum_j 1/(1+fold_B[j]). Callers that
// need a position-respecting relation include index columns among the
// folded columns.

// PermutationFirstRound requests the fold challenges.
func PermutationFirstRound(b *proof.FirstRoundBuilder) {
	b.RequestPostResultChallenges(2)
}

// PermutationFinalRound records the permutation constraints between the
// two column lists, which must have equal column counts.
func PermutationFinalRound(rb *proof.FinalRoundBuilder, aCols [][]fr.Element, n int, bCols [][]fr.Element, m int) {
	if len(aCols) != len(bCols) {
		panic("gadgets: permutation column count mismatch")
	}
	alpha := rb.ConsumePostResultChallenge()
	beta := rb.ConsumePostResultChallenge()

	aStar := ProveFoldStar(rb, FoldVals(alpha, beta, aCols, n), n)
	bStar := ProveFoldStar(rb, FoldVals(alpha, beta, bCols, m), m)

	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)
	rb.ProduceSubpolynomial(proof.KindZeroSum, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{aStar}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{bStar}},
	}, 1)
}

// VerifyPermutation mirrors the prover rounds.
func VerifyPermutation(b *proof.VerificationBuilder, aEvals []fr.Element, n int, bEvals []fr.Element, m int) error {
	if len(aEvals) != len(bEvals) {
		return errMismatch
	}
	alpha, err := b.ConsumePostResultChallenge()
	if err != nil {
		return err
	}
	beta, err := b.ConsumePostResultChallenge()
	if err != nil {
		return err
	}

	aStar, chiN, err := ConsumeFoldStar(b, n)
	if err != nil {
		return err
	}
	if err := CheckFoldStar(b, aStar, chiN, FoldEval(alpha, beta, aEvals)); err != nil {
		return err
	}
	bStar, chiM, err := ConsumeFoldStar(b, m)
	if err != nil {
		return err
	}
	if err := CheckFoldStar(b, bStar, chiM, FoldEval(alpha, beta, bEvals)); err != nil {
		return err
	}

	var eval fr.Element
	eval.Sub(&aStar, &bStar)
	return b.ProduceSubpolynomialEvaluation(proof.KindZeroSum, eval, 1)
}
