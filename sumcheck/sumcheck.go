// Package sumcheck implements the batched, Fiat-Shamir-driven sumcheck
// protocol over signed products of multilinear extensions.
//
// The prover's state is a list of terms, each a field coefficient times a
// list of MLE factors. The batched claim is always zero: identity
// constraints are compiled to zero-sums by the caller before entering the
// protocol. One round polynomial is produced per variable, transmitted as
// coefficients; the verifier checks p(0) + p(1) against the running claim
// and evaluates p at the round challenge to carry the claim forward.
package sumcheck

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/transcript"
)

// Term is a signed product of MLE factors: Coeff * prod_i Multiplicands[i].
type Term struct {
	Coeff         fr.Element
	Multiplicands [][]fr.Element
}

// Proof holds one round polynomial per variable, as coefficient lists with
// the constant coefficient first.
type Proof struct {
	RoundPolys [][]fr.Element
}

// ErrInvalid reports a malformed or inconsistent sumcheck proof.
var ErrInvalid = errors.New("sumcheck: round polynomial inconsistent with claim")

// Prove runs the sumcheck prover over the given terms. Every multiplicand is
// zero-extended to 2^numVars rows; degree bounds the factor count of any
// term. Returns the proof and the evaluation point assembled from the round
// challenges, least significant variable first.
func Prove(tr *transcript.Transcript, terms []Term, numVars, degree int) (Proof, []fr.Element) {
	size := 1 << numVars
	work := make([]Term, len(terms))
	for i, t := range terms {
		if len(t.Multiplicands) > degree {
			panic("sumcheck: term degree exceeds bound")
		}
		work[i].Coeff = t.Coeff
		work[i].Multiplicands = make([][]fr.Element, len(t.Multiplicands))
		for j, m := range t.Multiplicands {
			if len(m) > size {
				panic("sumcheck: multiplicand longer than hypercube")
			}
			buf := make([]fr.Element, size)
			copy(buf, m)
			work[i].Multiplicands[j] = buf
		}
	}

	pf := Proof{RoundPolys: make([][]fr.Element, numVars)}
	point := make([]fr.Element, 0, numVars)

	var a, b, t fr.Element
	for round := 0; round < numVars; round++ {
		half := size >> uint(round+1)
		coeffs := make([]fr.Element, degree+1)
		prod := make([]fr.Element, 0, degree+1)
		for _, term := range work {
			for i := 0; i < half; i++ {
				// product of the per-factor linear restrictions a + t*b
				prod = append(prod[:0], term.Coeff)
				for _, m := range term.Multiplicands {
					a = m[2*i]
					b.Sub(&m[2*i+1], &a)
					prod = mulLinear(prod, a, b)
				}
				for j := range prod {
					coeffs[j].Add(&coeffs[j], &prod[j])
				}
			}
		}

		tr.AppendScalars("sumcheck round", coeffs...)
		r := tr.ChallengeScalar("sumcheck challenge")
		point = append(point, r)
		pf.RoundPolys[round] = coeffs

		for _, term := range work {
			for j, m := range term.Multiplicands {
				for i := 0; i < half; i++ {
					a = m[2*i]
					b.Sub(&m[2*i+1], &a)
					t.Mul(&b, &r)
					m[i].Add(&a, &t)
				}
				term.Multiplicands[j] = m[:half]
			}
		}
	}

	return pf, point
}

// mulLinear multiplies the coefficient list p by (a + b*t), growing it by
// one degree.
func mulLinear(p []fr.Element, a, b fr.Element) []fr.Element {
	out := make([]fr.Element, len(p)+1)
	var t fr.Element
	for j := range p {
		t.Mul(&p[j], &a)
		out[j].Add(&out[j], &t)
		t.Mul(&p[j], &b)
		out[j+1].Add(&out[j+1], &t)
	}
	return out
}

// EvaluatePoly evaluates a coefficient list at x.
func EvaluatePoly(coeffs []fr.Element, x fr.Element) fr.Element {
	var acc fr.Element
	for j := len(coeffs) - 1; j >= 0; j-- {
		acc.Mul(&acc, &x)
		acc.Add(&acc, &coeffs[j])
	}
	return acc
}

// Verify replays the sumcheck rounds against a zero claim. It returns the
// evaluation point and the final claim, which the caller must equate with a
// direct evaluation of the batched polynomial at that point.
func Verify(tr *transcript.Transcript, pf Proof, numVars, degree int) ([]fr.Element, fr.Element, error) {
	var claim fr.Element
	if len(pf.RoundPolys) != numVars {
		return nil, claim, ErrInvalid
	}
	point := make([]fr.Element, 0, numVars)
	var p01 fr.Element
	for _, coeffs := range pf.RoundPolys {
		if len(coeffs) != degree+1 {
			return nil, claim, ErrInvalid
		}
		// p(0) + p(1) must reproduce the running claim
		p01 = coeffs[0]
		for j := range coeffs {
			p01.Add(&p01, &coeffs[j])
		}
		if !p01.Equal(&claim) {
			return nil, claim, ErrInvalid
		}
		tr.AppendScalars("sumcheck round", coeffs...)
		r := tr.ChallengeScalar("sumcheck challenge")
		point = append(point, r)
		claim = EvaluatePoly(coeffs, r)
	}
	return point, claim, nil
}
