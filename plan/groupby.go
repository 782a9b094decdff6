package plan

import (
	"math/big"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/gadgets"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// GroupByExec groups the child rows passing a predicate by a tuple of key
// columns and outputs, per group, the keys, the sum of each value
// expression, and the row count. The core argument is a partial fraction
// identity over the folded keys,
//
//	sum_i sel[i]*(c + vfold[i])/(1+gfold_in[i])
//	    = sum_g (c*count[g] + sfold[g])/(1+gfold_out[g]),
//
// which is sound only when output keys are pairwise distinct. A single
// integer or timestamp key is proved distinct by strict monotonicity; any
// other key shape is checked on the decoded result table, which restricts
// the node to the plan root.
type GroupByExec struct {
	child     Node
	keys      []string
	keyTypes  []column.Type
	where     Expr
	sums      []NamedExpr
	countName string
	schema    []ColumnMeta
}

// NewGroupBy creates an aggregation of the child's rows. A nil predicate
// keeps every row. Aggregating with no keys yields a single row.
func NewGroupBy(child Node, keys []string, where Expr, sums []NamedExpr, countName string) (*GroupByExec, error) {
	if where == nil {
		where = NewBooleanLiteral(true)
	}
	if countName == "" {
		return nil, newError("aggregation count column with empty name")
	}
	lookup := schemaLookup(child.Schema())
	wt, err := validateExpr(where, lookup)
	if err != nil {
		return nil, err
	}
	if wt != column.TypeBoolean {
		return nil, newError("aggregation predicate has type %v, want boolean", wt)
	}

	schema := make([]ColumnMeta, 0, len(keys)+len(sums)+1)
	keyTypes := make([]column.Type, len(keys))
	for i, k := range keys {
		t, ok := lookup(k)
		if !ok {
			return nil, newError("unknown group key %q", k)
		}
		keyTypes[i] = t
		schema = append(schema, ColumnMeta{Name: k, Type: t})
	}
	for _, s := range sums {
		t, err := validateExpr(s.Expr, lookup)
		if err != nil {
			return nil, err
		}
		if t != column.TypeBigInt {
			return nil, newError("aggregated expression %q has type %v, want bigint", s.Name, t)
		}
		schema = append(schema, ColumnMeta{Name: s.Name, Type: column.TypeBigInt})
	}
	schema = append(schema, ColumnMeta{Name: countName, Type: column.TypeBigInt})
	for i := range schema {
		if schema[i].Name == "" {
			return nil, newError("aggregation output column with empty name")
		}
		for _, prev := range schema[:i] {
			if prev.Name == schema[i].Name {
				return nil, newError("duplicate aggregation output column %q", schema[i].Name)
			}
		}
	}
	return &GroupByExec{
		child:     child,
		keys:      keys,
		keyTypes:  keyTypes,
		where:     where,
		sums:      sums,
		countName: countName,
		schema:    schema,
	}, nil
}

// orderingGadget reports whether group distinctness is provable by the
// monotonicity gadget.
func (g *GroupByExec) orderingGadget() bool {
	if len(g.keys) != 1 {
		return false
	}
	t := g.keyTypes[0]
	return t.IsInteger() || t == column.TypeTimestamp
}

func (g *GroupByExec) Schema() []ColumnMeta { return g.schema }

func (g *GroupByExec) children() []Node { return []Node{g.child} }

func (g *GroupByExec) collectRefs(seen map[proof.ColumnID]struct{}, refs *[]proof.ColumnID) {
	g.child.collectRefs(seen, refs)
}

type aggGroup struct {
	repRow int
	count  int64
	sums   []*big.Int
	order  int64 // signed key value when the monotonic gadget applies
}

func (g *GroupByExec) group(ct *column.OwnedTable) (*column.OwnedTable, error) {
	sel := materializeExpr(g.where, ct).View().Bools()
	keyCols := make([][]fr.Element, len(g.keys))
	for i, k := range g.keys {
		c, _ := ct.Column(k)
		keyCols[i] = c.View().Scalars()
	}
	var keyOrder []int64
	if g.orderingGadget() {
		c, _ := ct.Column(g.keys[0])
		keyOrder = signedVals(c)
	}
	sumVals := make([][]int64, len(g.sums))
	for i, s := range g.sums {
		sumVals[i] = materializeExpr(s.Expr, ct).View().BigInts()
	}

	var groups []*aggGroup
	index := make(map[string]*aggGroup)
	if len(g.keys) == 0 {
		grp := &aggGroup{repRow: -1, sums: zeroSums(len(g.sums))}
		groups = append(groups, grp)
		index[""] = grp
	}
	for i := range sel {
		if !sel[i] {
			continue
		}
		key := tupleKey(keyCols, i)
		grp, ok := index[key]
		if !ok {
			grp = &aggGroup{repRow: i, sums: zeroSums(len(g.sums))}
			if keyOrder != nil {
				grp.order = keyOrder[i]
			}
			index[key] = grp
			groups = append(groups, grp)
		}
		grp.count++
		for j := range sumVals {
			grp.sums[j].Add(grp.sums[j], big.NewInt(sumVals[j][i]))
		}
	}
	if g.orderingGadget() {
		sort.Slice(groups, func(a, b int) bool { return groups[a].order < groups[b].order })
	}

	m := len(groups)
	out := column.NewOwnedTable(m)
	repRows := make([]int, m)
	for i, grp := range groups {
		repRows[i] = grp.repRow
	}
	for _, k := range g.keys {
		c, _ := ct.Column(k)
		if err := out.Add(k, c.View().Gather(repRows)); err != nil {
			return nil, err
		}
	}
	for j, s := range g.sums {
		vals := make([]int64, m)
		for i, grp := range groups {
			vals[i] = checkedI64(grp.sums[j])
		}
		if err := out.Add(s.Name, column.Own(column.NewBigInt(vals))); err != nil {
			return nil, err
		}
	}
	counts := make([]int64, m)
	for i, grp := range groups {
		counts[i] = grp.count
	}
	if err := out.Add(g.countName, column.Own(column.NewBigInt(counts))); err != nil {
		return nil, err
	}
	return out, nil
}

func zeroSums(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = new(big.Int)
	}
	return out
}

func (g *GroupByExec) execute(data proof.DataAccessor) (*column.OwnedTable, error) {
	ct, err := g.child.execute(data)
	if err != nil {
		return nil, err
	}
	return g.group(ct)
}

func (g *GroupByExec) firstRound(b *proof.FirstRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	ct, err := g.child.firstRound(b, data, false)
	if err != nil {
		return nil, err
	}
	out, err := g.group(ct)
	if err != nil {
		return nil, err
	}
	produceOutputs(b, out, root)
	if g.orderingGadget() {
		outKey, _ := out.Column(g.keys[0])
		gadgets.MonotonicFirstRound(b, outKey.View().Scalars())
	}
	b.RequestPostResultChallenges(3)
	return out, nil
}

func (g *GroupByExec) finalRound(b *proof.FinalRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	ct, err := g.child.finalRound(b, data, false)
	if err != nil {
		return nil, err
	}
	n := ct.NumRows()

	sel := proveExpr(g.where, ct, b)
	vCols := make([][]fr.Element, len(g.sums))
	for i, s := range g.sums {
		vCols[i] = proveExpr(s.Expr, ct, b)
	}

	alpha := b.ConsumePostResultChallenge()
	beta := b.ConsumePostResultChallenge()
	c := b.ConsumePostResultChallenge()

	keyCols := make([][]fr.Element, len(g.keys))
	for i, k := range g.keys {
		col, _ := ct.Column(k)
		keyCols[i] = col.View().Scalars()
	}
	inStar := gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, keyCols, n), n)

	out, err := g.group(ct)
	if err != nil {
		return nil, err
	}
	m := out.NumRows()
	outCols := tableScalars(out)
	outKeyCols := outCols[:len(g.keys)]
	sumCols := outCols[len(g.keys) : len(g.keys)+len(g.sums)]
	countCol := outCols[len(outCols)-1]
	outStar := gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, outKeyCols, m), m)

	// uIn[i] = c + vfold[i] on real rows; uOut[g] = c*count[g] + sfold[g].
	uIn := gadgets.FoldVals(alpha, beta, vCols, n)
	for i := range uIn {
		uIn[i].Add(&uIn[i], &c)
	}
	uOut := gadgets.FoldVals(alpha, beta, sumCols, m)
	var t fr.Element
	for i := range uOut {
		t.Mul(&c, &countCol[i])
		uOut[i].Add(&uOut[i], &t)
	}
	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)
	b.ProduceSubpolynomial(proof.KindZeroSum, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{sel, uIn, inStar}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{uOut, outStar}},
	}, 3)

	if len(g.keys) == 0 {
		gadgets.ProveNonNegative(b, countCol, m, 64)
	} else {
		above := make([]fr.Element, m)
		for i := range above {
			above[i].Sub(&countCol[i], &one)
		}
		gadgets.ProveNonNegative(b, above, m, 64)
	}

	if g.orderingGadget() {
		outKey := outKeyCols[0]
		shifted := make([]fr.Element, m+1)
		copy(shifted[1:], outKey)
		gadgets.MonotonicFinalRound(b, outKey, shifted, g.keyTypes[0].SignedBitWidth())
	}
	return out, nil
}

func (g *GroupByExec) verify(b *proof.VerificationBuilder, acc proof.CommitmentAccessor, root bool) (*proof.TableEvaluation, error) {
	cte, err := g.child.verify(b, acc, false)
	if err != nil {
		return nil, err
	}
	n := cte.Length()

	selEval, err := verifyExpr(g.where, cte, b)
	if err != nil {
		return nil, err
	}
	vEvals := make([]fr.Element, len(g.sums))
	for i, s := range g.sums {
		vEvals[i], err = verifyExpr(s.Expr, cte, b)
		if err != nil {
			return nil, err
		}
	}

	alpha, err := b.ConsumePostResultChallenge()
	if err != nil {
		return nil, err
	}
	beta, err := b.ConsumePostResultChallenge()
	if err != nil {
		return nil, err
	}
	c, err := b.ConsumePostResultChallenge()
	if err != nil {
		return nil, err
	}

	keyEvals := make([]fr.Element, len(g.keys))
	for i, k := range g.keys {
		ev, _, ok := cte.Evaluation(k)
		if !ok {
			return nil, newError("unknown group key %q", k)
		}
		keyEvals[i] = ev
	}
	inStar, chiN, err := gadgets.ConsumeFoldStar(b, n)
	if err != nil {
		return nil, err
	}
	if err := gadgets.CheckFoldStar(b, inStar, chiN, gadgets.FoldEval(alpha, beta, keyEvals)); err != nil {
		return nil, err
	}

	outStar, chiM, m, err := gadgets.ConsumeFoldStarDynamic(b)
	if err != nil {
		return nil, err
	}
	outEvals, err := consumeOutputs(b, g.schema, root)
	if err != nil {
		return nil, err
	}
	outKeyEvals := outEvals[:len(g.keys)]
	sumEvals := outEvals[len(g.keys) : len(g.keys)+len(g.sums)]
	countEval := outEvals[len(outEvals)-1]
	if err := gadgets.CheckFoldStar(b, outStar, chiM, gadgets.FoldEval(alpha, beta, outKeyEvals)); err != nil {
		return nil, err
	}

	var uIn, uOut, eval, t fr.Element
	uIn = gadgets.FoldEval(alpha, beta, vEvals)
	t.Mul(&c, &chiN)
	uIn.Add(&uIn, &t)
	uOut = gadgets.FoldEval(alpha, beta, sumEvals)
	t.Mul(&c, &countEval)
	uOut.Add(&uOut, &t)
	eval.Mul(&selEval, &uIn)
	eval.Mul(&eval, &inStar)
	t.Mul(&uOut, &outStar)
	eval.Sub(&eval, &t)
	if err := b.ProduceSubpolynomialEvaluation(proof.KindZeroSum, eval, 3); err != nil {
		return nil, err
	}

	if len(g.keys) == 0 {
		if err := gadgets.VerifyNonNegative(b, countEval, m, 64); err != nil {
			return nil, err
		}
	} else {
		var above fr.Element
		above.Sub(&countEval, &chiM)
		if err := gadgets.VerifyNonNegative(b, above, m, 64); err != nil {
			return nil, err
		}
	}

	if g.orderingGadget() {
		if err := gadgets.VerifyMonotonic(b, outKeyEvals[0], m, g.keyTypes[0].SignedBitWidth()); err != nil {
			return nil, err
		}
	} else if len(g.keys) > 0 {
		if !root {
			return nil, newError("aggregation with keys of this shape must be the root of the plan")
		}
		if err := g.checkResultKeysDistinct(b.ResultTable()); err != nil {
			return nil, err
		}
	}
	return buildEvaluation(g.schema, outEvals, m, chiM)
}

// checkResultKeysDistinct inspects the decoded result table directly. The
// result evaluations are bound to the proof, so distinct decoded key
// tuples imply distinct proved key tuples.
func (g *GroupByExec) checkResultKeysDistinct(result *column.OwnedTable) error {
	keyCols := make([][]fr.Element, len(g.keys))
	for i, k := range g.keys {
		c, ok := result.Column(k)
		if !ok {
			return newError("result table missing group key %q", k)
		}
		keyCols[i] = c.View().Scalars()
	}
	seen := make(map[string]struct{}, result.NumRows())
	for i := 0; i < result.NumRows(); i++ {
		key := tupleKey(keyCols, i)
		if _, ok := seen[key]; ok {
			return newError("duplicate group key tuple in result")
		}
		seen[key] = struct{}{}
	}
	return nil
}
