// Package proof implements the query proof lifecycle: the prover's two-pass
// builder protocol, the verifier's positional replay, and the batched
// commitment opening that ties every claimed evaluation back to a committed
// column.
package proof

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/logger"
	"github.com/spaceandtimefdn/proof-of-sql-go/mle"
	"github.com/spaceandtimefdn/proof-of-sql-go/pedersen"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
	"github.com/spaceandtimefdn/proof-of-sql-go/transcript"
)

const protocolLabel = "proof-of-sql-go:query:v1"

// QueryProof attests that a decoded result table is the correct output of a
// plan over committed data. All shape fields are absorbed into the
// transcript before any challenge that depends on them.
type QueryProof struct {
	RangeLength              int
	PostResultChallengeCount int
	SumcheckMaxDegree        int
	ChiEvaluationLengths     []int
	RhoEvaluationLengths     []int
	FirstRoundCommitments    []pedersen.Commitment
	FinalRoundCommitments    []pedersen.Commitment
	BitDistributions         []BitDistribution
	Sumcheck                 sumcheck.Proof
	ColumnEvaluations        []fr.Element
	FirstRoundMLEEvaluations []fr.Element
	FinalRoundMLEEvaluations []fr.Element
	Evaluation               pedersen.EvaluationProof
}

// Prove runs the plan over the accessor's data and produces the result table
// together with a proof of its correctness.
func Prove(plan ProofPlan, data DataAccessor, setup *pedersen.Setup) (*QueryProof, *column.OwnedTable, error) {
	tr := transcript.New(protocolLabel)

	refs := plan.ColumnRefs()
	cols := make([][]fr.Element, len(refs))
	for i, ref := range refs {
		c, err := data.Column(ref)
		if err != nil {
			return nil, nil, fmt.Errorf("proof: column %v: %w", ref, err)
		}
		cols[i] = c.Scalars()
		com := setup.Commit(cols[i], 0)
		tr.AppendBytes("input column", []byte(ref.String()))
		tr.AppendBytes("input commitment", com.Bytes())
	}

	fb := NewFirstRoundBuilder()
	result, err := plan.FirstRoundEvaluate(fb, data)
	if err != nil {
		return nil, nil, fmt.Errorf("proof: first round: %w", err)
	}
	result.AppendToTranscript(tr)

	tr.AppendUint64s("post result challenge count", uint64(fb.NumPostResultChallenges()))
	firstComs := setup.CommitAll(fb.MLEs(), 0)
	for _, c := range firstComs {
		tr.AppendBytes("first round commitment", c.Bytes())
	}
	challenges := tr.ChallengeScalars("post result challenge", fb.NumPostResultChallenges())

	rb := NewFinalRoundBuilder(challenges, fb.RangeLength())
	if err := plan.FinalRoundEvaluate(rb, data); err != nil {
		return nil, nil, fmt.Errorf("proof: final round: %w", err)
	}
	rb.AssertComplete()

	rangeLength := rb.RangeLength()
	numVars := mle.NumVars(rangeLength)
	if 1<<numVars > setup.NumGenerators() {
		return nil, nil, fmt.Errorf("proof: range length %d exceeds setup with %d generators", rangeLength, setup.NumGenerators())
	}
	maxDegree := rb.MaxDegree()

	tr.AppendUint64s("range length", uint64(rangeLength))
	tr.AppendUint64s("sumcheck max degree", uint64(maxDegree))
	appendLengths(tr, "chi evaluation lengths", rb.ChiEvaluationLengths())
	appendLengths(tr, "rho evaluation lengths", rb.RhoEvaluationLengths())
	for _, d := range rb.BitDistributions() {
		d.AppendToTranscript(tr)
	}
	finalComs := setup.CommitAll(rb.MLEs(), 0)
	for _, c := range finalComs {
		tr.AppendBytes("final round commitment", c.Bytes())
	}

	gamma := tr.ChallengeScalar("constraint batch challenge")
	z := tr.ChallengeScalars("identity point", numVars)
	terms := batchSubpolynomials(rb.Subpolynomials(), gamma, mle.ChiEvals(z))

	log := logger.Logger()
	log.Debug().
		Int("numVars", numVars).
		Int("maxDegree", maxDegree).
		Int("constraints", len(rb.Subpolynomials())).
		Int("firstRound", len(firstComs)).
		Int("finalRound", len(finalComs)).
		Msg("running sumcheck prover")

	scProof, point := sumcheck.Prove(tr, terms, numVars, maxDegree)

	colEvals := evaluateAll(cols, point)
	firstEvals := evaluateAll(fb.MLEs(), point)
	finalEvals := evaluateAll(rb.MLEs(), point)
	tr.AppendScalars("column evaluations", colEvals...)
	tr.AppendScalars("first round evaluations", firstEvals...)
	tr.AppendScalars("final round evaluations", finalEvals...)

	delta := tr.ChallengeScalar("evaluation batch challenge")
	folded := foldColumns(delta, 1<<numVars, cols, fb.MLEs(), rb.MLEs())
	evalProof := setup.ProveEvaluation(tr, folded, point, 0)

	pf := &QueryProof{
		RangeLength:              rangeLength,
		PostResultChallengeCount: fb.NumPostResultChallenges(),
		SumcheckMaxDegree:        maxDegree,
		ChiEvaluationLengths:     rb.ChiEvaluationLengths(),
		RhoEvaluationLengths:     rb.RhoEvaluationLengths(),
		FirstRoundCommitments:    firstComs,
		FinalRoundCommitments:    finalComs,
		BitDistributions:         rb.BitDistributions(),
		Sumcheck:                 scProof,
		ColumnEvaluations:        colEvals,
		FirstRoundMLEEvaluations: firstEvals,
		FinalRoundMLEEvaluations: finalEvals,
		Evaluation:               evalProof,
	}
	return pf, result, nil
}

// Verify checks a proof against the plan, the committed data's commitments,
// and the decoded result table. Any failure is reported as an opaque
// VerificationError.
func Verify(plan ProofPlan, acc CommitmentAccessor, result *column.OwnedTable, pf *QueryProof, setup *pedersen.Setup) error {
	if pf.RangeLength < 1 {
		return NewVerificationError("declared range length below one")
	}
	numVars := mle.NumVars(pf.RangeLength)
	if 1<<numVars > setup.NumGenerators() {
		return NewVerificationError("declared range length exceeds setup")
	}
	if pf.SumcheckMaxDegree < 1 {
		return NewVerificationError("sumcheck degree below one")
	}
	if pf.PostResultChallengeCount < 0 {
		return NewVerificationError("negative challenge count")
	}
	if len(pf.FirstRoundMLEEvaluations) != len(pf.FirstRoundCommitments) ||
		len(pf.FinalRoundMLEEvaluations) != len(pf.FinalRoundCommitments) {
		return NewVerificationError("evaluation and commitment counts differ")
	}
	refs := plan.ColumnRefs()
	if len(pf.ColumnEvaluations) != len(refs) {
		return NewVerificationError("wrong count of column evaluations")
	}
	for _, d := range pf.BitDistributions {
		if err := d.Validate(); err != nil {
			return NewVerificationError("invalid bit distribution: " + err.Error())
		}
	}
	if result.NumRows() > 1<<numVars {
		return NewVerificationError("result table longer than declared range")
	}

	tr := transcript.New(protocolLabel)

	inputComs := make([]pedersen.Commitment, len(refs))
	columnEvals := make(map[ColumnID]fr.Element, len(refs))
	for i, ref := range refs {
		com, err := acc.Commitment(ref)
		if err != nil {
			return fmt.Errorf("proof: commitment %v: %w", ref, err)
		}
		inputComs[i] = com
		columnEvals[ref] = pf.ColumnEvaluations[i]
		tr.AppendBytes("input column", []byte(ref.String()))
		tr.AppendBytes("input commitment", com.Bytes())
	}

	result.AppendToTranscript(tr)

	tr.AppendUint64s("post result challenge count", uint64(pf.PostResultChallengeCount))
	for _, c := range pf.FirstRoundCommitments {
		tr.AppendBytes("first round commitment", c.Bytes())
	}
	challenges := tr.ChallengeScalars("post result challenge", pf.PostResultChallengeCount)

	tr.AppendUint64s("range length", uint64(pf.RangeLength))
	tr.AppendUint64s("sumcheck max degree", uint64(pf.SumcheckMaxDegree))
	appendLengths(tr, "chi evaluation lengths", pf.ChiEvaluationLengths)
	appendLengths(tr, "rho evaluation lengths", pf.RhoEvaluationLengths)
	for _, d := range pf.BitDistributions {
		d.AppendToTranscript(tr)
	}
	for _, c := range pf.FinalRoundCommitments {
		tr.AppendBytes("final round commitment", c.Bytes())
	}

	gamma := tr.ChallengeScalar("constraint batch challenge")
	z := tr.ChallengeScalars("identity point", numVars)

	point, finalClaim, err := sumcheck.Verify(tr, pf.Sumcheck, numVars, pf.SumcheckMaxDegree)
	if err != nil {
		return NewVerificationError("sumcheck rejected: " + err.Error())
	}

	tr.AppendScalars("column evaluations", pf.ColumnEvaluations...)
	tr.AppendScalars("first round evaluations", pf.FirstRoundMLEEvaluations...)
	tr.AppendScalars("final round evaluations", pf.FinalRoundMLEEvaluations...)
	delta := tr.ChallengeScalar("evaluation batch challenge")

	resultEvals := make([]fr.Element, result.NumColumns())
	for i := range resultEvals {
		resultEvals[i] = mle.EvaluateAt(result.ColumnAt(i).View().Scalars(), point)
	}

	vb := newVerificationBuilder(point, columnEvals, pf, challenges, result, resultEvals, gamma, mle.EqEval(z, point))
	rootEval, err := plan.VerifierEvaluate(vb, acc)
	if err != nil {
		return NewVerificationError("plan replay failed: " + err.Error())
	}
	if err := checkRootAgainstResult(rootEval, result, resultEvals); err != nil {
		return NewVerificationError(err.Error())
	}
	if err := vb.assertExhausted(pf.RangeLength); err != nil {
		return NewVerificationError("replay left proof data unconsumed")
	}
	agg := vb.SumcheckEvaluation()
	if !agg.Equal(&finalClaim) {
		return NewVerificationError("constraint evaluation does not match sumcheck claim")
	}

	coms := make([]pedersen.Commitment, 0, len(inputComs)+len(pf.FirstRoundCommitments)+len(pf.FinalRoundCommitments))
	coms = append(coms, inputComs...)
	coms = append(coms, pf.FirstRoundCommitments...)
	coms = append(coms, pf.FinalRoundCommitments...)
	evals := make([]fr.Element, 0, len(coms))
	evals = append(evals, pf.ColumnEvaluations...)
	evals = append(evals, pf.FirstRoundMLEEvaluations...)
	evals = append(evals, pf.FinalRoundMLEEvaluations...)
	deltaPows := scalar.Powers(delta, len(coms))
	foldedCom := pedersen.FoldCommitments(coms, deltaPows)
	foldedVal := scalar.InnerProduct(evals, deltaPows)
	if !setup.VerifyEvaluation(tr, pf.Evaluation, foldedCom, foldedVal, point, 0) {
		return NewVerificationError("batched evaluation proof rejected")
	}
	return nil
}

// checkRootAgainstResult binds the root plan's output evaluation to the
// decoded result table: same shape, same column names and types, and the
// same evaluations at the sumcheck point.
func checkRootAgainstResult(rootEval *TableEvaluation, result *column.OwnedTable, resultEvals []fr.Element) error {
	if rootEval.Length() != result.NumRows() {
		return fmt.Errorf("plan output has %d rows, result has %d", rootEval.Length(), result.NumRows())
	}
	if rootEval.NumColumns() != result.NumColumns() {
		return fmt.Errorf("plan output has %d columns, result has %d", rootEval.NumColumns(), result.NumColumns())
	}
	for i, name := range result.Names() {
		if rootEval.Names()[i] != name {
			return fmt.Errorf("plan output column %d named %q, result has %q", i, rootEval.Names()[i], name)
		}
		if rootEval.TypeAt(i) != result.ColumnAt(i).Type() {
			return fmt.Errorf("plan output column %q has type %v, result has %v", name, rootEval.TypeAt(i), result.ColumnAt(i).Type())
		}
		e := rootEval.EvalAt(i)
		if !e.Equal(&resultEvals[i]) {
			return fmt.Errorf("result column %q does not match plan output", name)
		}
	}
	return nil
}

// batchSubpolynomials flattens the recorded constraints into one term list,
// weighting each constraint by the running power of the batching challenge
// and compiling identities to zero-sums with the equality tensor.
func batchSubpolynomials(subpolys []Subpolynomial, gamma fr.Element, eqZ []fr.Element) []sumcheck.Term {
	var terms []sumcheck.Term
	mult := fr.One()
	for _, sp := range subpolys {
		for _, t := range sp.Terms {
			var coeff fr.Element
			coeff.Mul(&t.Coeff, &mult)
			muls := make([][]fr.Element, len(t.Multiplicands), len(t.Multiplicands)+1)
			copy(muls, t.Multiplicands)
			if sp.Kind == KindIdentity {
				muls = append(muls, eqZ)
			}
			terms = append(terms, sumcheck.Term{Coeff: coeff, Multiplicands: muls})
		}
		mult.Mul(&mult, &gamma)
	}
	return terms
}

func evaluateAll(cols [][]fr.Element, point []fr.Element) []fr.Element {
	out := make([]fr.Element, len(cols))
	for i, c := range cols {
		out[i] = mle.EvaluateAt(c, point)
	}
	return out
}

func foldColumns(delta fr.Element, size int, groups ...[][]fr.Element) []fr.Element {
	folded := make([]fr.Element, size)
	mult := fr.One()
	var t fr.Element
	for _, group := range groups {
		for _, col := range group {
			for i := range col {
				t.Mul(&col[i], &mult)
				folded[i].Add(&folded[i], &t)
			}
			mult.Mul(&mult, &delta)
		}
	}
	return folded
}

func appendLengths(tr *transcript.Transcript, label string, ns []int) {
	vs := make([]uint64, len(ns))
	for i, n := range ns {
		vs[i] = uint64(n)
	}
	tr.AppendUint64s(label, vs...)
}
