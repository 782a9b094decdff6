package proof

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// SubpolynomialKind distinguishes the two constraint forms the sumcheck
// accepts.
type SubpolynomialKind uint8

const (
	// KindZeroSum asserts that the term sum over the hypercube is zero.
	KindZeroSum SubpolynomialKind = iota
	// KindIdentity asserts that the term sum is zero at every row. It is
	// compiled to a zero-sum by multiplying in a random equality tensor,
	// which raises the effective degree by one.
	KindIdentity
)

// Subpolynomial is one recorded constraint.
type Subpolynomial struct {
	Kind  SubpolynomialKind
	Terms []sumcheck.Term
}

// FinalRoundBuilder collects the prover's post-challenge production: helper
// columns that are pointwise pinned by constraints, bit distributions,
// evaluation-length registrations, and the constraint subpolynomials
// themselves. Misuse is a prover bug and panics.
type FinalRoundBuilder struct {
	challenges    []fr.Element
	nextChallenge int

	mles        [][]fr.Element
	bitDists    []BitDistribution
	subpolys    []Subpolynomial
	maxDegree   int
	rangeLength int
	chiLengths  []int
	rhoLengths  []int
}

// NewFinalRoundBuilder creates a final-round builder holding the drawn
// post-result challenges and the first round's range length.
func NewFinalRoundBuilder(challenges []fr.Element, rangeLength int) *FinalRoundBuilder {
	if rangeLength < 1 {
		rangeLength = 1
	}
	return &FinalRoundBuilder{challenges: challenges, maxDegree: 1, rangeLength: rangeLength}
}

// ConsumePostResultChallenge returns the next post-result challenge.
func (b *FinalRoundBuilder) ConsumePostResultChallenge() fr.Element {
	if b.nextChallenge >= len(b.challenges) {
		panic("proof: post-result challenges exhausted")
	}
	c := b.challenges[b.nextChallenge]
	b.nextChallenge++
	return c
}

// ProduceIntermediateMLE records a committed post-challenge column.
func (b *FinalRoundBuilder) ProduceIntermediateMLE(vals []fr.Element) {
	b.mles = append(b.mles, vals)
	b.UpdateRangeLength(len(vals))
}

// ProduceBitDistribution records a bit distribution for the proof.
func (b *FinalRoundBuilder) ProduceBitDistribution(d BitDistribution) {
	b.bitDists = append(b.bitDists, d)
}

// ProduceChiEvaluationLength registers a length indicator the verifier must
// evaluate. Registrations are consumed positionally, so their order must
// match the verifier's replay exactly.
func (b *FinalRoundBuilder) ProduceChiEvaluationLength(n int) {
	if n < 0 {
		panic("proof: negative chi length")
	}
	b.chiLengths = append(b.chiLengths, n)
	b.UpdateRangeLength(n)
}

// ProduceRhoEvaluationLength registers a row-index column the verifier must
// evaluate.
func (b *FinalRoundBuilder) ProduceRhoEvaluationLength(n int) {
	if n < 0 {
		panic("proof: negative rho length")
	}
	b.rhoLengths = append(b.rhoLengths, n)
	b.UpdateRangeLength(n)
}

// ProduceSubpolynomial records a constraint whose terms each hold at most
// degree multiplicands. Violating the bound would silently corrupt the
// round polynomials, so it panics instead.
func (b *FinalRoundBuilder) ProduceSubpolynomial(kind SubpolynomialKind, terms []sumcheck.Term, degree int) {
	if degree < 1 {
		panic("proof: subpolynomial degree must be positive")
	}
	for _, t := range terms {
		if len(t.Multiplicands) > degree {
			panic(fmt.Sprintf("proof: term with %d multiplicands exceeds degree bound %d", len(t.Multiplicands), degree))
		}
	}
	effective := degree
	if kind == KindIdentity {
		effective++
	}
	if effective > b.maxDegree {
		b.maxDegree = effective
	}
	b.subpolys = append(b.subpolys, Subpolynomial{Kind: kind, Terms: terms})
}

// UpdateRangeLength widens the generator range the proof will use.
func (b *FinalRoundBuilder) UpdateRangeLength(n int) {
	if n > b.rangeLength {
		b.rangeLength = n
	}
}

// AssertComplete panics unless every requested challenge was consumed.
func (b *FinalRoundBuilder) AssertComplete() {
	if b.nextChallenge != len(b.challenges) {
		panic(fmt.Sprintf("proof: %d of %d post-result challenges consumed", b.nextChallenge, len(b.challenges)))
	}
}

// MLEs returns the recorded columns in production order.
func (b *FinalRoundBuilder) MLEs() [][]fr.Element { return b.mles }

// BitDistributions returns the recorded distributions in production order.
func (b *FinalRoundBuilder) BitDistributions() []BitDistribution { return b.bitDists }

// Subpolynomials returns the recorded constraints in production order.
func (b *FinalRoundBuilder) Subpolynomials() []Subpolynomial { return b.subpolys }

// MaxDegree returns the sumcheck degree bound implied by the recorded
// constraints, at least one.
func (b *FinalRoundBuilder) MaxDegree() int { return b.maxDegree }

// RangeLength returns the widest length seen so far, at least one.
func (b *FinalRoundBuilder) RangeLength() int { return b.rangeLength }

// ChiEvaluationLengths returns the registered length indicators in order.
func (b *FinalRoundBuilder) ChiEvaluationLengths() []int { return b.chiLengths }

// RhoEvaluationLengths returns the registered row-index lengths in order.
func (b *FinalRoundBuilder) RhoEvaluationLengths() []int { return b.rhoLengths }
