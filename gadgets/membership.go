package gadgets

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// The membership gadget proves that every row tuple of a candidate table
// appears among the row tuples of a source table. The prover commits the
// per-source-row multiplicity column m and proves
// sum_i m[i]/(1+fold_A[i]) = sum_j 1/(1+fold_B[j]) via the star columns:
// any candidate row absent from the source would contribute a pole the left
// side cannot match.

func rowKey(cols [][]fr.Element, i int) string {
	key := make([]byte, 0, len(cols)*fr.Bytes)
	for _, col := range cols {
		b := col[i].Bytes()
		key = append(key, b[:]...)
	}
	return string(key)
}

// MembershipMultiplicities counts, for each source row, how many candidate
// rows hold the same tuple. A candidate tuple missing from the source is a
// prover bug and panics.
func MembershipMultiplicities(sourceCols [][]fr.Element, n int, candCols [][]fr.Element, m int) []fr.Element {
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		key := rowKey(sourceCols, i)
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}
	mult := make([]fr.Element, n)
	one := fr.One()
	for j := 0; j < m; j++ {
		i, ok := index[rowKey(candCols, j)]
		if !ok {
			panic(fmt.Sprintf("gadgets: candidate row %d not present in source", j))
		}
		mult[i].Add(&mult[i], &one)
	}
	return mult
}

// MembershipFirstRound commits the multiplicity column, which must be fixed
// before the fold challenges, and requests them.
func MembershipFirstRound(b *proof.FirstRoundBuilder, sourceCols [][]fr.Element, n int, candCols [][]fr.Element, m int) []fr.Element {
	mult := MembershipMultiplicities(sourceCols, n, candCols, m)
	b.ProduceIntermediateMLE(mult)
	b.RequestPostResultChallenges(2)
	return mult
}

// MembershipFinalRound records the membership constraints.
func MembershipFinalRound(rb *proof.FinalRoundBuilder, sourceCols [][]fr.Element, n int, candCols [][]fr.Element, m int, mult []fr.Element) {
	alpha := rb.ConsumePostResultChallenge()
	beta := rb.ConsumePostResultChallenge()

	aStar := ProveFoldStar(rb, FoldVals(alpha, beta, sourceCols, n), n)
	bStar := ProveFoldStar(rb, FoldVals(alpha, beta, candCols, m), m)

	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)
	rb.ProduceSubpolynomial(proof.KindZeroSum, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{mult, aStar}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{bStar}},
	}, 2)
}

// VerifyMembership mirrors the two prover rounds, given the source and
// candidate column evaluations and row counts.
func VerifyMembership(b *proof.VerificationBuilder, sourceEvals []fr.Element, n int, candEvals []fr.Element, m int) error {
	multEval, err := b.ConsumeFirstRoundMLEEvaluation()
	if err != nil {
		return err
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
	if err := CheckFoldStar(b, aStar, chiN, FoldEval(alpha, beta, sourceEvals)); err != nil {
		return err
	}
	bStar, chiM, err := ConsumeFoldStar(b, m)
	if err != nil {
		return err
	}
	if err := CheckFoldStar(b, bStar, chiM, FoldEval(alpha, beta, candEvals)); err != nil {
		return err
	}

	var eval, t fr.Element
	t.Mul(&multEval, &aStar)
	eval.Sub(&t, &bStar)
	return b.ProduceSubpolynomialEvaluation(proof.KindZeroSum, eval, 2)
}
