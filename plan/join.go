package plan

import (
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/gadgets"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// JoinExec is an inner equijoin of two children on a single integer or
// timestamp key. The prover commits the strictly sorted distinct matched
// keys u with per-side multiplicities wl, wr, and per-output-row source
// indices il, ir. Membership arguments tie each output row's key and
// payload to a real source row at its index, the combined index
// nR*il + ir is strictly increasing so no pair repeats, and a partial
// fraction identity forces exactly wl[k]*wr[k] output rows per key:
//
//	sum_k wl[k]*wr[k]/(1+alpha*u[k]) = sum_j 1/(1+alpha*key_out[j]).
type JoinExec struct {
	left, right       Node
	leftKey, rightKey string
	outKeyName        string
	leftPay, rightPay []string
	keyType           column.Type
	schema            []ColumnMeta
}

// NewJoin creates an inner join of left and right on leftKey = rightKey.
// The output holds the key under outKeyName followed by the named payload
// columns of each side.
func NewJoin(left, right Node, leftKey, rightKey, outKeyName string, leftPay, rightPay []string) (*JoinExec, error) {
	if outKeyName == "" {
		return nil, newError("join key output column with empty name")
	}
	lLookup := schemaLookup(left.Schema())
	rLookup := schemaLookup(right.Schema())
	lt, ok := lLookup(leftKey)
	if !ok {
		return nil, newError("unknown join key %q", leftKey)
	}
	rt, ok := rLookup(rightKey)
	if !ok {
		return nil, newError("unknown join key %q", rightKey)
	}
	if lt != rt {
		return nil, newError("cannot join %v key with %v key", lt, rt)
	}
	if !lt.IsInteger() && lt != column.TypeTimestamp {
		return nil, newError("join key type %v is not joinable", lt)
	}

	schema := []ColumnMeta{{Name: outKeyName, Type: lt}}
	for _, name := range leftPay {
		t, ok := lLookup(name)
		if !ok {
			return nil, newError("unknown join payload column %q", name)
		}
		schema = append(schema, ColumnMeta{Name: name, Type: t})
	}
	for _, name := range rightPay {
		t, ok := rLookup(name)
		if !ok {
			return nil, newError("unknown join payload column %q", name)
		}
		schema = append(schema, ColumnMeta{Name: name, Type: t})
	}
	for i := range schema {
		for _, prev := range schema[:i] {
			if prev.Name == schema[i].Name {
				return nil, newError("duplicate join output column %q", schema[i].Name)
			}
		}
	}
	return &JoinExec{
		left: left, right: right,
		leftKey: leftKey, rightKey: rightKey,
		outKeyName: outKeyName,
		leftPay:    leftPay, rightPay: rightPay,
		keyType: lt,
		schema:  schema,
	}, nil
}

func (j *JoinExec) Schema() []ColumnMeta { return j.schema }

func (j *JoinExec) children() []Node { return []Node{j.left, j.right} }

func (j *JoinExec) collectRefs(seen map[proof.ColumnID]struct{}, refs *[]proof.ColumnID) {
	j.left.collectRefs(seen, refs)
	j.right.collectRefs(seen, refs)
}

// joinState holds everything the join proves about: the output table and
// the committed auxiliary columns.
type joinState struct {
	out            *column.OwnedTable
	u, wl, wr      []fr.Element
	il, ir, cidx   []fr.Element
	ilRows, irRows []int
}

func (j *JoinExec) join(lt, rt *column.OwnedTable) (*joinState, error) {
	lKeyCol, _ := lt.Column(j.leftKey)
	rKeyCol, _ := rt.Column(j.rightKey)
	lKeys := signedVals(lKeyCol)
	rKeys := signedVals(rKeyCol)
	nR := rt.NumRows()

	rRows := make(map[int64][]int)
	for i, k := range rKeys {
		rRows[k] = append(rRows[k], i)
	}
	lCount := make(map[int64]int)
	for _, k := range lKeys {
		lCount[k]++
	}

	var matched []int64
	for k := range lCount {
		if len(rRows[k]) > 0 {
			matched = append(matched, k)
		}
	}
	sort.Slice(matched, func(a, b int) bool { return matched[a] < matched[b] })
	d := len(matched)

	st := &joinState{
		u:  make([]fr.Element, d),
		wl: make([]fr.Element, d),
		wr: make([]fr.Element, d),
	}
	for i, k := range matched {
		st.u[i] = scalar.FromInt64(k)
		st.wl[i] = scalar.FromInt64(int64(lCount[k]))
		st.wr[i] = scalar.FromInt64(int64(len(rRows[k])))
	}

	// Output rows in (il, ir) order so the combined index increases.
	for i, k := range lKeys {
		for _, jr := range rRows[k] {
			st.ilRows = append(st.ilRows, i)
			st.irRows = append(st.irRows, jr)
		}
	}
	m := len(st.ilRows)
	st.il = make([]fr.Element, m)
	st.ir = make([]fr.Element, m)
	st.cidx = make([]fr.Element, m)
	nRs := scalar.FromInt64(int64(nR))
	for i := 0; i < m; i++ {
		st.il[i] = scalar.FromInt64(int64(st.ilRows[i]))
		st.ir[i] = scalar.FromInt64(int64(st.irRows[i]))
		st.cidx[i].Mul(&nRs, &st.il[i])
		st.cidx[i].Add(&st.cidx[i], &st.ir[i])
	}

	out := column.NewOwnedTable(m)
	if err := out.Add(j.outKeyName, lKeyCol.View().Gather(st.ilRows)); err != nil {
		return nil, err
	}
	for _, name := range j.leftPay {
		c, _ := lt.Column(name)
		if err := out.Add(name, c.View().Gather(st.ilRows)); err != nil {
			return nil, err
		}
	}
	for _, name := range j.rightPay {
		c, _ := rt.Column(name)
		if err := out.Add(name, c.View().Gather(st.irRows)); err != nil {
			return nil, err
		}
	}
	st.out = out
	return st, nil
}

// sideCols assembles the membership source and candidate columns for one
// side: key and payload values, tagged by the source row index on the
// source side and the committed index column on the candidate side.
func (j *JoinExec) sideCols(side *column.OwnedTable, key string, pay []string, out *column.OwnedTable, idx []fr.Element) (src, cand [][]fr.Element) {
	keyCol, _ := side.Column(key)
	src = [][]fr.Element{keyCol.View().Scalars()}
	outKey, _ := out.Column(j.outKeyName)
	cand = [][]fr.Element{outKey.View().Scalars()}
	for _, name := range pay {
		sc, _ := side.Column(name)
		src = append(src, sc.View().Scalars())
		oc, _ := out.Column(name)
		cand = append(cand, oc.View().Scalars())
	}
	src = append(src, gadgets.IndexVals(0, side.NumRows()))
	cand = append(cand, idx)
	return src, cand
}

func (j *JoinExec) execute(data proof.DataAccessor) (*column.OwnedTable, error) {
	lt, err := j.left.execute(data)
	if err != nil {
		return nil, err
	}
	rt, err := j.right.execute(data)
	if err != nil {
		return nil, err
	}
	st, err := j.join(lt, rt)
	if err != nil {
		return nil, err
	}
	return st.out, nil
}

func (j *JoinExec) firstRound(b *proof.FirstRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	lt, err := j.left.firstRound(b, data, false)
	if err != nil {
		return nil, err
	}
	rt, err := j.right.firstRound(b, data, false)
	if err != nil {
		return nil, err
	}
	st, err := j.join(lt, rt)
	if err != nil {
		return nil, err
	}
	m := st.out.NumRows()

	produceOutputs(b, st.out, root)
	b.ProduceIntermediateMLE(st.u)
	b.ProduceIntermediateMLE(st.wl)
	b.ProduceIntermediateMLE(st.wr)
	b.ProduceIntermediateMLE(st.il)
	b.ProduceIntermediateMLE(st.ir)

	srcL, candL := j.sideCols(lt, j.leftKey, j.leftPay, st.out, st.il)
	gadgets.MembershipFirstRound(b, srcL, lt.NumRows(), candL, m)
	srcR, candR := j.sideCols(rt, j.rightKey, j.rightPay, st.out, st.ir)
	gadgets.MembershipFirstRound(b, srcR, rt.NumRows(), candR, m)

	gadgets.MonotonicFirstRound(b, st.u)
	gadgets.MonotonicFirstRound(b, st.cidx)
	b.RequestPostResultChallenges(2)
	return st.out, nil
}

func (j *JoinExec) finalRound(b *proof.FinalRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	lt, err := j.left.finalRound(b, data, false)
	if err != nil {
		return nil, err
	}
	rt, err := j.right.finalRound(b, data, false)
	if err != nil {
		return nil, err
	}
	st, err := j.join(lt, rt)
	if err != nil {
		return nil, err
	}
	nL, nR := lt.NumRows(), rt.NumRows()
	d := len(st.u)
	m := st.out.NumRows()

	b.ProduceChiEvaluationLength(d)
	b.ProduceChiEvaluationLength(m)

	b.ProduceRhoEvaluationLength(nL)
	srcL, candL := j.sideCols(lt, j.leftKey, j.leftPay, st.out, st.il)
	multL := gadgets.MembershipMultiplicities(srcL, nL, candL, m)
	gadgets.MembershipFinalRound(b, srcL, nL, candL, m, multL)

	b.ProduceRhoEvaluationLength(nR)
	srcR, candR := j.sideCols(rt, j.rightKey, j.rightPay, st.out, st.ir)
	multR := gadgets.MembershipMultiplicities(srcR, nR, candR, m)
	gadgets.MembershipFinalRound(b, srcR, nR, candR, m, multR)

	shiftedU := make([]fr.Element, d+1)
	copy(shiftedU[1:], st.u)
	gadgets.MonotonicFinalRound(b, st.u, shiftedU, 64)
	shiftedC := make([]fr.Element, m+1)
	copy(shiftedC[1:], st.cidx)
	gadgets.MonotonicFinalRound(b, st.cidx, shiftedC, 128)

	alpha := b.ConsumePostResultChallenge()
	beta := b.ConsumePostResultChallenge()
	uStar := gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, [][]fr.Element{st.u}, d), d)
	outKey, _ := st.out.Column(j.outKeyName)
	outStar := gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, [][]fr.Element{outKey.View().Scalars()}, m), m)

	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)
	b.ProduceSubpolynomial(proof.KindZeroSum, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{st.wl, st.wr, uStar}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{outStar}},
	}, 3)
	b.ProduceSubpolynomial(proof.KindZeroSum, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{st.wl, st.wr}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{gadgets.OnesVals(m)}},
	}, 2)
	return st.out, nil
}

func (j *JoinExec) verify(b *proof.VerificationBuilder, acc proof.CommitmentAccessor, root bool) (*proof.TableEvaluation, error) {
	lte, err := j.left.verify(b, acc, false)
	if err != nil {
		return nil, err
	}
	rte, err := j.right.verify(b, acc, false)
	if err != nil {
		return nil, err
	}
	nL, nR := lte.Length(), rte.Length()

	_, d, err := b.ConsumeChiEvaluation()
	if err != nil {
		return nil, err
	}
	chiM, m, err := b.ConsumeChiEvaluation()
	if err != nil {
		return nil, err
	}

	outEvals, err := consumeOutputs(b, j.schema, root)
	if err != nil {
		return nil, err
	}
	outKeyEval := outEvals[0]
	lPayEvals := outEvals[1 : 1+len(j.leftPay)]
	rPayEvals := outEvals[1+len(j.leftPay):]

	uEval, err := b.ConsumeFirstRoundMLEEvaluation()
	if err != nil {
		return nil, err
	}
	wlEval, err := b.ConsumeFirstRoundMLEEvaluation()
	if err != nil {
		return nil, err
	}
	wrEval, err := b.ConsumeFirstRoundMLEEvaluation()
	if err != nil {
		return nil, err
	}
	ilEval, err := b.ConsumeFirstRoundMLEEvaluation()
	if err != nil {
		return nil, err
	}
	irEval, err := b.ConsumeFirstRoundMLEEvaluation()
	if err != nil {
		return nil, err
	}

	if err := j.verifySideMembership(b, lte, j.leftKey, j.leftPay, nL, outKeyEval, lPayEvals, ilEval, m); err != nil {
		return nil, err
	}
	if err := j.verifySideMembership(b, rte, j.rightKey, j.rightPay, nR, outKeyEval, rPayEvals, irEval, m); err != nil {
		return nil, err
	}

	if err := gadgets.VerifyMonotonic(b, uEval, d, 64); err != nil {
		return nil, err
	}
	nRs := scalar.FromInt64(int64(nR))
	var cidxEval fr.Element
	cidxEval.Mul(&nRs, &ilEval)
	cidxEval.Add(&cidxEval, &irEval)
	if err := gadgets.VerifyMonotonic(b, cidxEval, m, 128); err != nil {
		return nil, err
	}

	alpha, err := b.ConsumePostResultChallenge()
	if err != nil {
		return nil, err
	}
	beta, err := b.ConsumePostResultChallenge()
	if err != nil {
		return nil, err
	}
	uStar, chiD, err := gadgets.ConsumeFoldStar(b, d)
	if err != nil {
		return nil, err
	}
	if err := gadgets.CheckFoldStar(b, uStar, chiD, gadgets.FoldEval(alpha, beta, []fr.Element{uEval})); err != nil {
		return nil, err
	}
	outStar, chiM2, err := gadgets.ConsumeFoldStar(b, m)
	if err != nil {
		return nil, err
	}
	if err := gadgets.CheckFoldStar(b, outStar, chiM2, gadgets.FoldEval(alpha, beta, []fr.Element{outKeyEval})); err != nil {
		return nil, err
	}

	var pairs, eval, t fr.Element
	pairs.Mul(&wlEval, &wrEval)
	t.Mul(&pairs, &uStar)
	eval.Sub(&t, &outStar)
	if err := b.ProduceSubpolynomialEvaluation(proof.KindZeroSum, eval, 3); err != nil {
		return nil, err
	}
	eval.Sub(&pairs, &chiM)
	if err := b.ProduceSubpolynomialEvaluation(proof.KindZeroSum, eval, 2); err != nil {
		return nil, err
	}
	return buildEvaluation(j.schema, outEvals, m, chiM)
}

func (j *JoinExec) verifySideMembership(
	b *proof.VerificationBuilder,
	side *proof.TableEvaluation,
	key string, pay []string, n int,
	outKeyEval fr.Element, payEvals []fr.Element, idxEval fr.Element, m int,
) error {
	rho, rn, err := b.ConsumeRhoEvaluation()
	if err != nil {
		return err
	}
	if rn != n {
		return newError("row index registration does not match table length")
	}
	keyEval, _, ok := side.Evaluation(key)
	if !ok {
		return newError("unknown join key %q", key)
	}
	srcEvals := []fr.Element{keyEval}
	candEvals := []fr.Element{outKeyEval}
	for i, name := range pay {
		ev, _, ok := side.Evaluation(name)
		if !ok {
			return newError("unknown join payload column %q", name)
		}
		srcEvals = append(srcEvals, ev)
		candEvals = append(candEvals, payEvals[i])
	}
	srcEvals = append(srcEvals, rho)
	candEvals = append(candEvals, idxEval)
	return gadgets.VerifyMembership(b, srcEvals, n, candEvals, m)
}
