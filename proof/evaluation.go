package proof

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
)

// TableEvaluation is the verifier-side image of a table at the sumcheck
// evaluation point: one claimed or derived evaluation per column, plus the
// length indicator evaluation recording the table's row count.
type TableEvaluation struct {
	names   []string
	types   []column.Type
	evals   []fr.Element
	chiEval fr.Element
	length  int
}

// NewTableEvaluation creates an evaluation for a table of the given length.
func NewTableEvaluation(length int, chiEval fr.Element) *TableEvaluation {
	return &TableEvaluation{length: length, chiEval: chiEval}
}

// Add appends a named column evaluation.
func (t *TableEvaluation) Add(name string, typ column.Type, eval fr.Element) error {
	for _, n := range t.names {
		if n == name {
			return fmt.Errorf("duplicate column %q in table evaluation", name)
		}
	}
	t.names = append(t.names, name)
	t.types = append(t.types, typ)
	t.evals = append(t.evals, eval)
	return nil
}

// Evaluation looks up a column evaluation by name.
func (t *TableEvaluation) Evaluation(name string) (fr.Element, column.Type, bool) {
	for i, n := range t.names {
		if n == name {
			return t.evals[i], t.types[i], true
		}
	}
	return fr.Element{}, 0, false
}

// Names returns the column names in order.
func (t *TableEvaluation) Names() []string { return t.names }

// NumColumns returns the number of column evaluations.
func (t *TableEvaluation) NumColumns() int { return len(t.evals) }

// EvalAt returns the i-th column evaluation.
func (t *TableEvaluation) EvalAt(i int) fr.Element { return t.evals[i] }

// TypeAt returns the i-th column type.
func (t *TableEvaluation) TypeAt(i int) column.Type { return t.types[i] }

// ChiEval returns the evaluation of the table's length indicator.
func (t *TableEvaluation) ChiEval() fr.Element { return t.chiEval }

// Length returns the table's row count.
func (t *TableEvaluation) Length() int { return t.length }
