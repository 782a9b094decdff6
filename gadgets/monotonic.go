package gadgets

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// The monotonicity gadget proves that a column of signed values is strictly
// increasing. The column is shifted down by one, and the sign gadget applied
// to shifted - column yields an indicator that the previous row is smaller;
// that indicator is forced to one on every interior row. The comparison
// width is one wider than the value width, so it must stay below the field's
// safe signed range.

// MonotonicFirstRound commits the shifted column and requests the shift
// challenges. Returns the shifted column, length n+1.
func MonotonicFirstRound(b *proof.FirstRoundBuilder, col []fr.Element) []fr.Element {
	return ShiftFirstRound(b, col)
}

// MonotonicFinalRound records the strict ascending constraints for col with
// signed values of the given width.
func MonotonicFinalRound(rb *proof.FinalRoundBuilder, col, shifted []fr.Element, width int) {
	n := len(col)
	ShiftFinalRound(rb, col, shifted)

	diff := make([]fr.Element, n+1)
	for i := range diff {
		diff[i] = shifted[i]
		if i < n {
			diff[i].Sub(&diff[i], &col[i])
		}
	}
	s := ProveSign(rb, diff, n+1, width+1)

	rb.ProduceChiEvaluationLength(n)
	rb.ProduceChiEvaluationLength(1)
	interior := make([]fr.Element, n)
	one := fr.One()
	for i := 1; i < n; i++ {
		interior[i] = one
	}
	var negOne fr.Element
	negOne.Neg(&one)
	rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{interior}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{interior, s}},
	}, 2)
}

// VerifyMonotonic mirrors the prover rounds for a column evaluation over n
// rows.
func VerifyMonotonic(b *proof.VerificationBuilder, colEval fr.Element, n, width int) error {
	shiftedEval, err := VerifyShift(b, colEval, n)
	if err != nil {
		return err
	}
	var diffEval fr.Element
	diffEval.Sub(&shiftedEval, &colEval)
	sEval, err := VerifySign(b, diffEval, n+1, width+1)
	if err != nil {
		return err
	}

	chiN, m, err := b.ConsumeChiEvaluation()
	if err != nil {
		return err
	}
	if m != n {
		return errMismatch
	}
	chi1, m, err := b.ConsumeChiEvaluation()
	if err != nil {
		return err
	}
	if m != 1 {
		return errMismatch
	}
	var interior, eval, t fr.Element
	if n > 0 {
		// rows 1..n-1 hold consecutive-row comparisons
		interior.Sub(&chiN, &chi1)
	}
	t.Mul(&interior, &sEval)
	eval.Sub(&interior, &t)
	return b.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2)
}
