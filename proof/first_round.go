package proof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// FirstRoundBuilder collects everything the prover produces before any
// challenge is drawn: the intermediate columns whose values a dishonest
// prover must not be able to choose after seeing challenges, the number of
// post-result challenges the plan will need, and the running range length.
type FirstRoundBuilder struct {
	postResultChallenges int
	mles                 [][]fr.Element
	rangeLength          int
}

// NewFirstRoundBuilder creates an empty first-round builder.
func NewFirstRoundBuilder() *FirstRoundBuilder {
	return &FirstRoundBuilder{rangeLength: 1}
}

// RequestPostResultChallenges asks for n additional challenges to be drawn
// after the result table is absorbed.
func (b *FirstRoundBuilder) RequestPostResultChallenges(n int) {
	if n < 0 {
		panic("proof: negative challenge request")
	}
	b.postResultChallenges += n
}

// ProduceIntermediateMLE records a committed pre-challenge column. Columns
// are committed and later evaluated in production order.
func (b *FirstRoundBuilder) ProduceIntermediateMLE(vals []fr.Element) {
	b.mles = append(b.mles, vals)
	b.UpdateRangeLength(len(vals))
}

// UpdateRangeLength widens the generator range the proof will use.
func (b *FirstRoundBuilder) UpdateRangeLength(n int) {
	if n > b.rangeLength {
		b.rangeLength = n
	}
}

// NumPostResultChallenges returns the total challenge request.
func (b *FirstRoundBuilder) NumPostResultChallenges() int { return b.postResultChallenges }

// MLEs returns the recorded columns in production order.
func (b *FirstRoundBuilder) MLEs() [][]fr.Element { return b.mles }

// RangeLength returns the widest recorded column length, at least one.
func (b *FirstRoundBuilder) RangeLength() int { return b.rangeLength }
