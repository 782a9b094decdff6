// Package gadgets implements the reusable constraint gadgets the plans are
// compiled from: random linear folds with their star inverses, signed bit
// decompositions, shift, membership and permutation set arguments,
// monotonicity, and integer division with remainder.
//
// Every gadget comes in up to three parts that must be called in matching
// order by the prover's two passes and the verifier's replay, since all
// builder state is positional.
package gadgets

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

var errMismatch = errors.New("gadgets: proof shape mismatch")

// OnesVals returns the length indicator of n rows: n ones.
func OnesVals(n int) []fr.Element {
	out := make([]fr.Element, n)
	one := fr.One()
	for i := range out {
		out[i] = one
	}
	return out
}

// IndexVals returns [start, start+1, ..., start+n-1] as field elements.
func IndexVals(start, n int) []fr.Element {
	out := make([]fr.Element, n)
	for i := range out {
		out[i] = scalar.FromInt64(int64(start + i))
	}
	return out
}

// FoldVals combines cols row-wise into alpha * sum_j beta^j * cols[j][i]
// over n rows, zero-extending shorter columns. The challenges make distinct
// row tuples fold to distinct values with overwhelming probability.
func FoldVals(alpha, beta fr.Element, cols [][]fr.Element, n int) []fr.Element {
	out := make([]fr.Element, n)
	var t fr.Element
	pow := fr.One()
	for _, col := range cols {
		for i := 0; i < n && i < len(col); i++ {
			t.Mul(&col[i], &pow)
			out[i].Add(&out[i], &t)
		}
		pow.Mul(&pow, &beta)
	}
	for i := range out {
		out[i].Mul(&out[i], &alpha)
	}
	return out
}

// FoldEval is the verifier-side image of FoldVals: folding commutes with MLE
// evaluation because it is linear.
func FoldEval(alpha, beta fr.Element, evals []fr.Element) fr.Element {
	var out, t fr.Element
	pow := fr.One()
	for i := range evals {
		t.Mul(&evals[i], &pow)
		out.Add(&out, &t)
		pow.Mul(&pow, &beta)
	}
	out.Mul(&out, &alpha)
	return out
}

// StarVals returns star[i] = 1/(1 + fold[i]) for i < n. A vanishing
// denominator inverts to one by the public sentinel rule; the fold-star
// identity then fails, which for an honest prover happens with negligible
// probability over the fold challenges.
func StarVals(fold []fr.Element, n int) []fr.Element {
	star := make([]fr.Element, n)
	one := fr.One()
	for i := range star {
		star[i].Add(&one, &fold[i])
	}
	scalar.BatchInvertOrOne(star)
	return star
}

// ProveFoldStar commits the star column of a fold over n rows and pins it
// with the identity star + fold*star - chi = 0, which also forces star to
// vanish on padding rows. Returns the star column.
func ProveFoldStar(b *proof.FinalRoundBuilder, fold []fr.Element, n int) []fr.Element {
	star := StarVals(fold, n)
	b.ProduceIntermediateMLE(star)
	b.ProduceChiEvaluationLength(n)

	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)
	b.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{star}},
		{Coeff: one, Multiplicands: [][]fr.Element{fold, star}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{OnesVals(n)}},
	}, 2)
	return star
}

// ConsumeFoldStar consumes the star evaluation and its length indicator for
// a fold over n rows. The caller computes the fold evaluation from the
// column evaluations and finishes with CheckFoldStar.
func ConsumeFoldStar(b *proof.VerificationBuilder, n int) (starEval, chiEval fr.Element, err error) {
	starEval, err = b.ConsumeFinalRoundMLEEvaluation()
	if err != nil {
		return
	}
	var m int
	chiEval, m, err = b.ConsumeChiEvaluation()
	if err != nil {
		return
	}
	if m != n {
		err = errMismatch
	}
	return
}

// ConsumeFoldStarDynamic is ConsumeFoldStar for a fold whose row count is
// known only to the prover; the count is read from the proof's registered
// length.
func ConsumeFoldStarDynamic(b *proof.VerificationBuilder) (starEval, chiEval fr.Element, n int, err error) {
	starEval, err = b.ConsumeFinalRoundMLEEvaluation()
	if err != nil {
		return
	}
	chiEval, n, err = b.ConsumeChiEvaluation()
	return
}

// CheckFoldStar accumulates the fold-star identity evaluation.
func CheckFoldStar(b *proof.VerificationBuilder, starEval, chiEval, foldEval fr.Element) error {
	var eval, t fr.Element
	eval = starEval
	t.Mul(&foldEval, &starEval)
	eval.Add(&eval, &t)
	eval.Sub(&eval, &chiEval)
	return b.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2)
}
