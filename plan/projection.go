package plan

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
)

// ProjectionExec computes one expression per output column over every row
// of its child. Output evaluations are derived from the child's, so the
// projection commits nothing of its own; only the expressions' helper
// columns enter the proof.
type ProjectionExec struct {
	child   Node
	outputs []NamedExpr
	schema  []ColumnMeta
}

// NewProjection creates a projection of the child's rows.
func NewProjection(child Node, outputs []NamedExpr) (*ProjectionExec, error) {
	if len(outputs) == 0 {
		return nil, newError("projection with no columns")
	}
	schema, err := validateOutputs(outputs, schemaLookup(child.Schema()))
	if err != nil {
		return nil, err
	}
	return &ProjectionExec{child: child, outputs: outputs, schema: schema}, nil
}

func (p *ProjectionExec) Schema() []ColumnMeta { return p.schema }

func (p *ProjectionExec) children() []Node { return []Node{p.child} }

func (p *ProjectionExec) collectRefs(seen map[proof.ColumnID]struct{}, refs *[]proof.ColumnID) {
	p.child.collectRefs(seen, refs)
}

func (p *ProjectionExec) project(ct *column.OwnedTable) (*column.OwnedTable, error) {
	out := column.NewOwnedTable(ct.NumRows())
	for _, o := range p.outputs {
		if err := out.Add(o.Name, materializeExpr(o.Expr, ct)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *ProjectionExec) execute(data proof.DataAccessor) (*column.OwnedTable, error) {
	ct, err := p.child.execute(data)
	if err != nil {
		return nil, err
	}
	return p.project(ct)
}

func (p *ProjectionExec) firstRound(b *proof.FirstRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	ct, err := p.child.firstRound(b, data, false)
	if err != nil {
		return nil, err
	}
	return p.project(ct)
}

func (p *ProjectionExec) finalRound(b *proof.FinalRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	ct, err := p.child.finalRound(b, data, false)
	if err != nil {
		return nil, err
	}
	for _, o := range p.outputs {
		proveExpr(o.Expr, ct, b)
	}
	return p.project(ct)
}

func (p *ProjectionExec) verify(b *proof.VerificationBuilder, acc proof.CommitmentAccessor, root bool) (*proof.TableEvaluation, error) {
	cte, err := p.child.verify(b, acc, false)
	if err != nil {
		return nil, err
	}
	evals := make([]fr.Element, len(p.outputs))
	for i, o := range p.outputs {
		evals[i], err = verifyExpr(o.Expr, cte, b)
		if err != nil {
			return nil, err
		}
	}
	return buildEvaluation(p.schema, evals, cte.Length(), cte.ChiEval())
}
