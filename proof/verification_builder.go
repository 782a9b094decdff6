package proof

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/mle"
)

// errStructure reports a structural mismatch between the proof and the plan's
// replay: a wrong count of evaluations, lengths, distributions, or
// challenges. The verifier surfaces it as an opaque verification failure.
var errStructure = errors.New("structural mismatch between proof and plan")

// VerificationBuilder is the verifier-side mirror of the two prover
// builders. The plan's replay consumes claimed evaluations, lengths, bit
// distributions, and challenges positionally, and accumulates the weighted
// constraint evaluations the sumcheck's final claim must equal.
type VerificationBuilder struct {
	point []fr.Element

	columnEvals map[ColumnID]fr.Element

	firstRoundEvals []fr.Element
	firstRoundNext  int
	finalRoundEvals []fr.Element
	finalRoundNext  int

	chiLengths []int
	chiNext    int
	rhoLengths []int
	rhoNext    int

	bitDists    []BitDistribution
	bitDistNext int

	challenges    []fr.Element
	challengeNext int

	result      *column.OwnedTable
	resultEvals []fr.Element
	resultNext  int

	gamma          fr.Element
	nextMultiplier fr.Element
	identityMult   fr.Element
	aggregate      fr.Element

	maxDegree   int
	rangeLength int
}

func newVerificationBuilder(
	point []fr.Element,
	columnEvals map[ColumnID]fr.Element,
	pf *QueryProof,
	challenges []fr.Element,
	result *column.OwnedTable,
	resultEvals []fr.Element,
	gamma, identityMult fr.Element,
) *VerificationBuilder {
	return &VerificationBuilder{
		point:           point,
		columnEvals:     columnEvals,
		result:          result,
		firstRoundEvals: pf.FirstRoundMLEEvaluations,
		finalRoundEvals: pf.FinalRoundMLEEvaluations,
		chiLengths:      pf.ChiEvaluationLengths,
		rhoLengths:      pf.RhoEvaluationLengths,
		bitDists:        pf.BitDistributions,
		challenges:      challenges,
		resultEvals:     resultEvals,
		gamma:           gamma,
		nextMultiplier:  fr.One(),
		identityMult:    identityMult,
		maxDegree:       pf.SumcheckMaxDegree,
		rangeLength:     1,
	}
}

// Point returns the sumcheck evaluation point.
func (b *VerificationBuilder) Point() []fr.Element { return b.point }

// ColumnEvaluation returns the claimed evaluation of a referenced committed
// column.
func (b *VerificationBuilder) ColumnEvaluation(id ColumnID) (fr.Element, error) {
	e, ok := b.columnEvals[id]
	if !ok {
		return fr.Element{}, errStructure
	}
	return e, nil
}

// ConsumeFirstRoundMLEEvaluation returns the next claimed pre-challenge
// column evaluation.
func (b *VerificationBuilder) ConsumeFirstRoundMLEEvaluation() (fr.Element, error) {
	if b.firstRoundNext >= len(b.firstRoundEvals) {
		return fr.Element{}, errStructure
	}
	e := b.firstRoundEvals[b.firstRoundNext]
	b.firstRoundNext++
	return e, nil
}

// ConsumeFinalRoundMLEEvaluation returns the next claimed post-challenge
// column evaluation.
func (b *VerificationBuilder) ConsumeFinalRoundMLEEvaluation() (fr.Element, error) {
	if b.finalRoundNext >= len(b.finalRoundEvals) {
		return fr.Element{}, errStructure
	}
	e := b.finalRoundEvals[b.finalRoundNext]
	b.finalRoundNext++
	return e, nil
}

// ConsumeChiEvaluation returns the next registered length indicator
// evaluation along with the length itself.
func (b *VerificationBuilder) ConsumeChiEvaluation() (fr.Element, int, error) {
	if b.chiNext >= len(b.chiLengths) {
		return fr.Element{}, 0, errStructure
	}
	n := b.chiLengths[b.chiNext]
	b.chiNext++
	if n < 0 || n > 1<<len(b.point) {
		return fr.Element{}, 0, errStructure
	}
	b.UpdateRangeLength(n)
	return mle.TruncatedChiEval(n, b.point), n, nil
}

// ConsumeRhoEvaluation returns the next registered row-index evaluation
// along with its length.
func (b *VerificationBuilder) ConsumeRhoEvaluation() (fr.Element, int, error) {
	if b.rhoNext >= len(b.rhoLengths) {
		return fr.Element{}, 0, errStructure
	}
	n := b.rhoLengths[b.rhoNext]
	b.rhoNext++
	if n < 0 || n > 1<<len(b.point) {
		return fr.Element{}, 0, errStructure
	}
	b.UpdateRangeLength(n)
	return mle.TruncatedRhoEval(n, b.point), n, nil
}

// TableChiEvaluation evaluates the length indicator of a table whose length
// the verifier knows directly, without consuming a registration.
func (b *VerificationBuilder) TableChiEvaluation(n int) (fr.Element, error) {
	if n < 0 || n > 1<<len(b.point) {
		return fr.Element{}, errStructure
	}
	b.UpdateRangeLength(n)
	return mle.TruncatedChiEval(n, b.point), nil
}

// ConsumeBitDistribution returns the next bit distribution. Distributions
// are validated when the proof is first absorbed.
func (b *VerificationBuilder) ConsumeBitDistribution() (BitDistribution, error) {
	if b.bitDistNext >= len(b.bitDists) {
		return BitDistribution{}, errStructure
	}
	d := b.bitDists[b.bitDistNext]
	b.bitDistNext++
	return d, nil
}

// ConsumePostResultChallenge returns the next post-result challenge.
func (b *VerificationBuilder) ConsumePostResultChallenge() (fr.Element, error) {
	if b.challengeNext >= len(b.challenges) {
		return fr.Element{}, errStructure
	}
	c := b.challenges[b.challengeNext]
	b.challengeNext++
	return c, nil
}

// ResultTable returns the decoded result table. Root plans whose output
// ordering cannot be checked algebraically inspect it directly.
func (b *VerificationBuilder) ResultTable() *column.OwnedTable { return b.result }

// ConsumeResultEvaluation returns the next evaluation derived from the
// decoded result table.
func (b *VerificationBuilder) ConsumeResultEvaluation() (fr.Element, error) {
	if b.resultNext >= len(b.resultEvals) {
		return fr.Element{}, errStructure
	}
	e := b.resultEvals[b.resultNext]
	b.resultNext++
	return e, nil
}

// ProduceSubpolynomialEvaluation accumulates one constraint's direct
// evaluation at the sumcheck point, weighted by the running power of the
// batching challenge. Identity constraints are multiplied by the equality
// tensor evaluation, mirroring their compilation to zero-sums.
func (b *VerificationBuilder) ProduceSubpolynomialEvaluation(kind SubpolynomialKind, eval fr.Element, degree int) error {
	effective := degree
	if kind == KindIdentity {
		effective++
		eval.Mul(&eval, &b.identityMult)
	}
	if degree < 1 || effective > b.maxDegree {
		return errStructure
	}
	eval.Mul(&eval, &b.nextMultiplier)
	b.aggregate.Add(&b.aggregate, &eval)
	b.nextMultiplier.Mul(&b.nextMultiplier, &b.gamma)
	return nil
}

// UpdateRangeLength widens the generator range the replay requires.
func (b *VerificationBuilder) UpdateRangeLength(n int) {
	if n > b.rangeLength {
		b.rangeLength = n
	}
}

// SumcheckEvaluation returns the accumulated weighted constraint evaluation.
func (b *VerificationBuilder) SumcheckEvaluation() fr.Element { return b.aggregate }

// assertExhausted checks that the replay consumed exactly what the proof
// supplied and stayed within the declared range length. The replay may see
// a smaller range than declared, since committed column lengths are known
// only to the prover, but never a larger one.
func (b *VerificationBuilder) assertExhausted(declaredRange int) error {
	switch {
	case b.firstRoundNext != len(b.firstRoundEvals),
		b.finalRoundNext != len(b.finalRoundEvals),
		b.chiNext != len(b.chiLengths),
		b.rhoNext != len(b.rhoLengths),
		b.bitDistNext != len(b.bitDists),
		b.challengeNext != len(b.challenges),
		b.rangeLength > declaredRange:
		return errStructure
	}
	return nil
}
