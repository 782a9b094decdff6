package plan

import (
	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
)

// ScanExec reads a subset of a committed table's columns. It is the only
// node touching committed data: its output evaluations are the claimed
// column evaluations themselves, checked by the batched opening proof, so
// no constraints are recorded.
type ScanExec struct {
	table  string
	schema []ColumnMeta
}

// NewScan creates a scan of the named columns of a committed table.
func NewScan(table string, cols []ColumnMeta) (*ScanExec, error) {
	if table == "" {
		return nil, newError("scan of unnamed table")
	}
	if len(cols) == 0 {
		return nil, newError("scan with no columns")
	}
	for i, c := range cols {
		if c.Name == "" {
			return nil, newError("scan column with empty name")
		}
		for _, prev := range cols[:i] {
			if prev.Name == c.Name {
				return nil, newError("duplicate scan column %q", c.Name)
			}
		}
	}
	return &ScanExec{table: table, schema: cols}, nil
}

func (s *ScanExec) Schema() []ColumnMeta { return s.schema }

func (s *ScanExec) children() []Node { return nil }

func (s *ScanExec) collectRefs(seen map[proof.ColumnID]struct{}, refs *[]proof.ColumnID) {
	for _, c := range s.schema {
		id := proof.ColumnID{Table: s.table, Column: c.Name}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		*refs = append(*refs, id)
	}
}

func (s *ScanExec) execute(data proof.DataAccessor) (*column.OwnedTable, error) {
	n, err := data.TableLength(s.table)
	if err != nil {
		return nil, err
	}
	t := column.NewOwnedTable(n)
	for _, m := range s.schema {
		c, err := data.Column(proof.ColumnID{Table: s.table, Column: m.Name})
		if err != nil {
			return nil, err
		}
		if c.Type() != m.Type {
			return nil, newError("column %s.%s has type %v, plan expects %v", s.table, m.Name, c.Type(), m.Type)
		}
		if err := t.Add(m.Name, c.Materialize()); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (s *ScanExec) firstRound(b *proof.FirstRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	t, err := s.execute(data)
	if err != nil {
		return nil, err
	}
	b.UpdateRangeLength(t.NumRows())
	return t, nil
}

func (s *ScanExec) finalRound(b *proof.FinalRoundBuilder, data proof.DataAccessor, root bool) (*column.OwnedTable, error) {
	return s.execute(data)
}

func (s *ScanExec) verify(b *proof.VerificationBuilder, acc proof.CommitmentAccessor, root bool) (*proof.TableEvaluation, error) {
	n, err := acc.TableLength(s.table)
	if err != nil {
		return nil, err
	}
	chiEval, err := b.TableChiEvaluation(n)
	if err != nil {
		return nil, err
	}
	te := proof.NewTableEvaluation(n, chiEval)
	for _, m := range s.schema {
		ev, err := b.ColumnEvaluation(proof.ColumnID{Table: s.table, Column: m.Name})
		if err != nil {
			return nil, err
		}
		if err := te.Add(m.Name, m.Type, ev); err != nil {
			return nil, err
		}
	}
	return te, nil
}
