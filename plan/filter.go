package plan

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/gadgets"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// FilterExec keeps the child rows where a boolean predicate holds and
// computes one expression per output column over them. Correctness is a
// multiset argument: the folded output rows must equal the folded input
// rows weighted by the selection indicator,
//
//	sum_i sel[i]/(1+fold_in[i]) = sum_j 1/(1+fold_out[j]),
//
// which binds values and row counts but not row order.
type FilterExec struct {
	child   Node
	where   Expr
	outputs []NamedExpr
	schema  []ColumnMeta
}

// NewFilter creates a filter of the child's rows by the where predicate.
func NewFilter(child Node, outputs []NamedExpr, where Expr) (*FilterExec, error) {
	if len(outputs) == 0 {
		return nil, newError("filter with no columns")
	}
	lookup := schemaLookup(child.Schema())
	wt, err := validateExpr(where, lookup)
	if err != nil {
		return nil, err
	}
	if wt != column.TypeBoolean {
		return nil, newError("filter predicate has type %v, want boolean", wt)
	}
	schema, err := validateOutputs(outputs, lookup)
	if err != nil {
		return nil, err
	}
	return &FilterExec{child: child, where: where, outputs: outputs, schema: schema}, nil
}

func (f *FilterExec) Schema() []ColumnMeta { return f.schema }

func (f *FilterExec) children() []Node { return []Node{f.child} }

func (f *FilterExec) collectRefs(seen map[proof.ColumnID]struct{}, refs *[]proof.ColumnID) {
	f.child.collectRefs(seen, refs)
}

func (f *FilterExec) filter(ct *column.OwnedTable) (*column.OwnedTable, error) {
	sel := materializeExpr(f.where, ct).View().Bools()
	var indices []int
	for i, keep := range sel {
		if keep {
			indices = append(indices, i)
		}
	}
	out := column.NewOwnedTable(len(indices))
	for _, o := range f.outputs {
		col := materializeExpr(o.Expr, ct)
		if err := out.Add(o.Name, col.View().Gather(indices)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *FilterExec) execute(data proof.DataAccessor) (*column.OwnedTable, error) {
	ct, err := f.child.execute(data)
	if err != nil {
		return nil, err
	}
	return f.filter(ct)
}

func (f *FilterExec) firstRound(b *proof.FirstRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	ct, err := f.child.firstRound(b, data, false)
	if err != nil {
		return nil, err
	}
	out, err := f.filter(ct)
	if err != nil {
		return nil, err
	}
	produceOutputs(b, out, root)
	b.RequestPostResultChallenges(2)
	return out, nil
}

func (f *FilterExec) finalRound(b *proof.FinalRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	ct, err := f.child.finalRound(b, data, false)
	if err != nil {
		return nil, err
	}
	n := ct.NumRows()

	sel := proveExpr(f.where, ct, b)
	inCols := make([][]fr.Element, len(f.outputs))
	for i, o := range f.outputs {
		inCols[i] = proveExpr(o.Expr, ct, b)
	}

	alpha := b.ConsumePostResultChallenge()
	beta := b.ConsumePostResultChallenge()

	inStar := gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, inCols, n), n)

	out, err := f.filter(ct)
	if err != nil {
		return nil, err
	}
	m := out.NumRows()
	outStar := gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, tableScalars(out), m), m)

	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)
	b.ProduceSubpolynomial(proof.KindZeroSum, []sumcheck.Term{
		{Coeff: one, Multiplicands: [][]fr.Element{sel, inStar}},
		{Coeff: negOne, Multiplicands: [][]fr.Element{outStar}},
	}, 2)
	return out, nil
}

func (f *FilterExec) verify(b *proof.VerificationBuilder, acc proof.CommitmentAccessor, root bool) (*proof.TableEvaluation, error) {
	cte, err := f.child.verify(b, acc, false)
	if err != nil {
		return nil, err
	}
	n := cte.Length()

	selEval, err := verifyExpr(f.where, cte, b)
	if err != nil {
		return nil, err
	}
	inEvals := make([]fr.Element, len(f.outputs))
	for i, o := range f.outputs {
		inEvals[i], err = verifyExpr(o.Expr, cte, b)
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

	inStar, chiN, err := gadgets.ConsumeFoldStar(b, n)
	if err != nil {
		return nil, err
	}
	if err := gadgets.CheckFoldStar(b, inStar, chiN, gadgets.FoldEval(alpha, beta, inEvals)); err != nil {
		return nil, err
	}

	outStar, chiM, m, err := gadgets.ConsumeFoldStarDynamic(b)
	if err != nil {
		return nil, err
	}
	outEvals, err := consumeOutputs(b, f.schema, root)
	if err != nil {
		return nil, err
	}
	if err := gadgets.CheckFoldStar(b, outStar, chiM, gadgets.FoldEval(alpha, beta, outEvals)); err != nil {
		return nil, err
	}

	var eval, t fr.Element
	t.Mul(&selEval, &inStar)
	eval.Sub(&t, &outStar)
	if err := b.ProduceSubpolynomialEvaluation(proof.KindZeroSum, eval, 2); err != nil {
		return nil, err
	}
	return buildEvaluation(f.schema, outEvals, m, chiM)
}
