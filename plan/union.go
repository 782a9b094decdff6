package plan

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/gadgets"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// UnionExec concatenates the rows of same-schema children, keeping
// duplicates. The proof is a multiset argument: the folded output rows
// must equal the union of the folded child rows,
//
//	sum_k sum_i 1/(1+fold_k[i]) = sum_j 1/(1+fold_out[j]),
//
// so the concatenation order itself is not proved.
type UnionExec struct {
	inputs []Node
	schema []ColumnMeta
}

// NewUnion creates a union of at least two children with identical output
// schemas.
func NewUnion(inputs []Node) (*UnionExec, error) {
	if len(inputs) < 2 {
		return nil, newError("union needs at least two inputs")
	}
	schema := inputs[0].Schema()
	for _, in := range inputs[1:] {
		s := in.Schema()
		if len(s) != len(schema) {
			return nil, newError("union inputs have different column counts")
		}
		for i := range s {
			if s[i] != schema[i] {
				return nil, newError("union input column %d is %v %q, want %v %q",
					i, s[i].Type, s[i].Name, schema[i].Type, schema[i].Name)
			}
		}
	}
	return &UnionExec{inputs: inputs, schema: schema}, nil
}

func (u *UnionExec) Schema() []ColumnMeta { return u.schema }

func (u *UnionExec) children() []Node { return u.inputs }

func (u *UnionExec) collectRefs(seen map[proof.ColumnID]struct{}, refs *[]proof.ColumnID) {
	for _, in := range u.inputs {
		in.collectRefs(seen, refs)
	}
}

func (u *UnionExec) concat(tables []*column.OwnedTable) (*column.OwnedTable, error) {
	total := 0
	for _, t := range tables {
		total += t.NumRows()
	}
	out := column.NewOwnedTable(total)
	for ci, m := range u.schema {
		if err := out.Add(m.Name, concatTyped(tables, ci)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// concatTyped appends the ci-th column of every table by gathering each
// into one index space.
func concatTyped(tables []*column.OwnedTable, ci int) column.OwnedColumn {
	var parts []column.OwnedColumn
	total := 0
	for _, t := range tables {
		parts = append(parts, t.ColumnAt(ci))
		total += t.NumRows()
	}
	switch parts[0].Type() {
	case column.TypeBoolean:
		vals := make([]bool, 0, total)
		for _, p := range parts {
			vals = append(vals, p.View().Bools()...)
		}
		return column.Own(column.NewBoolean(vals))
	case column.TypeSmallInt:
		vals := make([]int16, 0, total)
		for _, p := range parts {
			vals = append(vals, p.View().SmallInts()...)
		}
		return column.Own(column.NewSmallInt(vals))
	case column.TypeInt:
		vals := make([]int32, 0, total)
		for _, p := range parts {
			vals = append(vals, p.View().Ints()...)
		}
		return column.Own(column.NewInt(vals))
	case column.TypeBigInt:
		vals := make([]int64, 0, total)
		for _, p := range parts {
			vals = append(vals, p.View().BigInts()...)
		}
		return column.Own(column.NewBigInt(vals))
	case column.TypeTimestamp:
		vals := make([]int64, 0, total)
		for _, p := range parts {
			vals = append(vals, p.View().BigInts()...)
		}
		return column.Own(column.NewTimestamp(parts[0].View().Unit(), vals))
	case column.TypeVarChar:
		vals := make([]string, 0, total)
		for _, p := range parts {
			vals = append(vals, p.View().Strings()...)
		}
		return column.Own(column.NewVarChar(vals))
	case column.TypeDecimal:
		first := parts[0].View()
		vals := make([]*big.Int, 0, total)
		for _, p := range parts {
			vals = append(vals, p.View().Decimals()...)
		}
		col, err := column.NewDecimal(first.Precision(), first.Scale(), vals)
		if err != nil {
			panic(err)
		}
		return column.Own(col)
	case column.TypeScalar:
		vals := make([]fr.Element, 0, total)
		for _, p := range parts {
			vals = append(vals, p.View().ScalarValues()...)
		}
		return column.Own(column.NewScalar(vals))
	}
	panic("plan: invalid union column type")
}

func (u *UnionExec) executeChildren(data proof.DataAccessor) ([]*column.OwnedTable, error) {
	tables := make([]*column.OwnedTable, len(u.inputs))
	for i, in := range u.inputs {
		t, err := in.execute(data)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	return tables, nil
}

func (u *UnionExec) execute(data proof.DataAccessor) (*column.OwnedTable, error) {
	tables, err := u.executeChildren(data)
	if err != nil {
		return nil, err
	}
	return u.concat(tables)
}

func (u *UnionExec) firstRound(b *proof.FirstRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	tables := make([]*column.OwnedTable, len(u.inputs))
	for i, in := range u.inputs {
		t, err := in.firstRound(b, data, false)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	out, err := u.concat(tables)
	if err != nil {
		return nil, err
	}
	produceOutputs(b, out, root)
	b.RequestPostResultChallenges(2)
	return out, nil
}

func (u *UnionExec) finalRound(b *proof.FinalRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	tables := make([]*column.OwnedTable, len(u.inputs))
	for i, in := range u.inputs {
		t, err := in.finalRound(b, data, false)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	out, err := u.concat(tables)
	if err != nil {
		return nil, err
	}
	m := out.NumRows()

	alpha := b.ConsumePostResultChallenge()
	beta := b.ConsumePostResultChallenge()

	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)
	terms := make([]sumcheck.Term, 0, len(tables)+1)
	for _, t := range tables {
		n := t.NumRows()
		star := gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, tableScalars(t), n), n)
		terms = append(terms, sumcheck.Term{Coeff: one, Multiplicands: [][]fr.Element{star}})
	}
	outStar := gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, tableScalars(out), m), m)
	terms = append(terms, sumcheck.Term{Coeff: negOne, Multiplicands: [][]fr.Element{outStar}})
	b.ProduceSubpolynomial(proof.KindZeroSum, terms, 1)
	return out, nil
}

func (u *UnionExec) verify(b *proof.VerificationBuilder, acc proof.CommitmentAccessor, root bool) (*proof.TableEvaluation, error) {
	ctes := make([]*proof.TableEvaluation, len(u.inputs))
	for i, in := range u.inputs {
		cte, err := in.verify(b, acc, false)
		if err != nil {
			return nil, err
		}
		ctes[i] = cte
	}

	alpha, err := b.ConsumePostResultChallenge()
	if err != nil {
		return nil, err
	}
	beta, err := b.ConsumePostResultChallenge()
	if err != nil {
		return nil, err
	}

	var eval fr.Element
	for _, cte := range ctes {
		evals := make([]fr.Element, len(u.schema))
		for i, m := range u.schema {
			ev, _, ok := cte.Evaluation(m.Name)
			if !ok {
				return nil, newError("union input missing column %q", m.Name)
			}
			evals[i] = ev
		}
		star, chiN, err := gadgets.ConsumeFoldStar(b, cte.Length())
		if err != nil {
			return nil, err
		}
		if err := gadgets.CheckFoldStar(b, star, chiN, gadgets.FoldEval(alpha, beta, evals)); err != nil {
			return nil, err
		}
		eval.Add(&eval, &star)
	}

	outStar, chiM, m, err := gadgets.ConsumeFoldStarDynamic(b)
	if err != nil {
		return nil, err
	}
	outEvals, err := consumeOutputs(b, u.schema, root)
	if err != nil {
		return nil, err
	}
	if err := gadgets.CheckFoldStar(b, outStar, chiM, gadgets.FoldEval(alpha, beta, outEvals)); err != nil {
		return nil, err
	}
	eval.Sub(&eval, &outStar)
	if err := b.ProduceSubpolynomialEvaluation(proof.KindZeroSum, eval, 1); err != nil {
		return nil, err
	}
	return buildEvaluation(u.schema, outEvals, m, chiM)
}
