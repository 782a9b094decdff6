// Package plan implements provable relational operators over committed
// tables: scans, projections, filters, aggregations, joins, and unions.
// A plan is a tree of nodes compiled into one proof: every node records
// its constraints through the shared builders, and the verifier replays
// the identical sequence against the claimed evaluations.
package plan

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
)

// ColumnMeta names a typed output column of a node.
type ColumnMeta struct {
	Name string
	Type column.Type
}

// NamedExpr binds an output column name to the expression producing it.
type NamedExpr struct {
	Name string
	Expr Expr
}

// Node is one operator of a plan tree. Implementations are provided by
// this package; the three proving methods must interact with the builders
// in the same order, since all builder state is positional.
type Node interface {
	// Schema returns the node's output columns in order.
	Schema() []ColumnMeta

	children() []Node
	collectRefs(seen map[proof.ColumnID]struct{}, refs *[]proof.ColumnID)

	// execute evaluates the node without recording anything.
	execute(data proof.DataAccessor) (*column.OwnedTable, error)

	// firstRound evaluates the node and records its pre-challenge
	// production: intermediate columns and challenge requests.
	firstRound(b *proof.FirstRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error)

	// finalRound re-evaluates the node and records its constraints.
	finalRound(b *proof.FinalRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error)

	// verify replays the node's constraint structure and returns the
	// evaluation of its output table.
	verify(b *proof.VerificationBuilder, acc proof.CommitmentAccessor, root bool) (*proof.TableEvaluation, error)
}

// Exec wraps a plan tree as a provable query. The root node's output is
// the query result; inner nodes commit their outputs as intermediate
// columns instead.
type Exec struct {
	root Node
}

// NewExec validates a plan tree for proving. Aggregations whose group
// ordering has no algebraic gadget can be checked only against the decoded
// result table, so they must sit at the root.
func NewExec(root Node) (*Exec, error) {
	if err := checkPlacement(root, true); err != nil {
		return nil, err
	}
	return &Exec{root: root}, nil
}

func checkPlacement(n Node, root bool) error {
	if g, ok := n.(*GroupByExec); ok && !root && !g.orderingGadget() {
		return newError("aggregation with keys of this shape must be the root of the plan")
	}
	for _, c := range n.children() {
		if err := checkPlacement(c, false); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the wrapped plan tree.
func (e *Exec) Root() Node { return e.root }

// Schema returns the query's output columns.
func (e *Exec) Schema() []ColumnMeta { return e.root.Schema() }

// Execute evaluates the plan without proving.
func (e *Exec) Execute(data proof.DataAccessor) (*column.OwnedTable, error) {
	return e.root.execute(data)
}

// ColumnRefs lists the committed columns the plan reads, deduplicated in
// first-reference order.
func (e *Exec) ColumnRefs() []proof.ColumnID {
	seen := make(map[proof.ColumnID]struct{})
	var refs []proof.ColumnID
	e.root.collectRefs(seen, &refs)
	return refs
}

// FirstRoundEvaluate computes the result table and records the plan's
// pre-challenge production.
func (e *Exec) FirstRoundEvaluate(b *proof.FirstRoundBuilder, data proof.DataAccessor) (*column.OwnedTable, error) {
	return e.root.firstRound(b, data, true)
}

// FinalRoundEvaluate records the plan's constraints.
func (e *Exec) FinalRoundEvaluate(b *proof.FinalRoundBuilder, data proof.DataAccessor) error {
	_, err := e.root.finalRound(b, data, true)
	return err
}

// VerifierEvaluate replays the plan against the claimed evaluations.
func (e *Exec) VerifierEvaluate(b *proof.VerificationBuilder, acc proof.CommitmentAccessor) (*proof.TableEvaluation, error) {
	return e.root.verify(b, acc, true)
}

func schemaLookup(schema []ColumnMeta) func(string) (column.Type, bool) {
	return func(name string) (column.Type, bool) {
		for _, m := range schema {
			if m.Name == name {
				return m.Type, true
			}
		}
		return 0, false
	}
}

func validateOutputs(outputs []NamedExpr, lookup func(string) (column.Type, bool)) ([]ColumnMeta, error) {
	schema := make([]ColumnMeta, 0, len(outputs))
	for _, out := range outputs {
		if out.Name == "" {
			return nil, newError("output column with empty name")
		}
		for _, m := range schema {
			if m.Name == out.Name {
				return nil, newError("duplicate output column %q", out.Name)
			}
		}
		typ, err := validateExpr(out.Expr, lookup)
		if err != nil {
			return nil, err
		}
		schema = append(schema, ColumnMeta{Name: out.Name, Type: typ})
	}
	return schema, nil
}

// produceOutputs commits a non-root node's output columns so their
// evaluations are available to the parent. The root's output is bound to
// the decoded result table instead.
func produceOutputs(b *proof.FirstRoundBuilder, out *column.OwnedTable, root bool) {
	if root {
		b.UpdateRangeLength(out.NumRows())
		return
	}
	for i := 0; i < out.NumColumns(); i++ {
		b.ProduceIntermediateMLE(out.ColumnAt(i).View().Scalars())
	}
}

// consumeOutputs returns a node's claimed output column evaluations, from
// the result table for the root and from the committed intermediates
// otherwise.
func consumeOutputs(b *proof.VerificationBuilder, schema []ColumnMeta, root bool) ([]fr.Element, error) {
	evals := make([]fr.Element, len(schema))
	var err error
	for i := range schema {
		if root {
			evals[i], err = b.ConsumeResultEvaluation()
		} else {
			evals[i], err = b.ConsumeFirstRoundMLEEvaluation()
		}
		if err != nil {
			return nil, err
		}
	}
	return evals, nil
}

func buildEvaluation(schema []ColumnMeta, evals []fr.Element, length int, chiEval fr.Element) (*proof.TableEvaluation, error) {
	te := proof.NewTableEvaluation(length, chiEval)
	for i, m := range schema {
		if err := te.Add(m.Name, m.Type, evals[i]); err != nil {
			return nil, err
		}
	}
	return te, nil
}

// tupleKey is a map key for a row tuple of scalar columns.
func tupleKey(cols [][]fr.Element, i int) string {
	key := make([]byte, 0, len(cols)*fr.Bytes)
	for _, col := range cols {
		b := col[i].Bytes()
		key = append(key, b[:]...)
	}
	return string(key)
}

func tableScalars(t *column.OwnedTable) [][]fr.Element {
	cols := make([][]fr.Element, t.NumColumns())
	for i := range cols {
		cols[i] = t.ColumnAt(i).View().Scalars()
	}
	return cols
}
