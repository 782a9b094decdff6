package proof

import (
	"fmt"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/pedersen"
)

// MemoryAccessor serves committed tables from memory. It implements all
// three accessor interfaces: the prover reads column data directly and the
// verifier reads commitments computed once when a table is added.
type MemoryAccessor struct {
	setup  *pedersen.Setup
	tables map[string]*column.OwnedTable
	coms   map[ColumnID]pedersen.Commitment
}

// NewMemoryAccessor creates an empty accessor committing with setup.
func NewMemoryAccessor(setup *pedersen.Setup) *MemoryAccessor {
	return &MemoryAccessor{
		setup:  setup,
		tables: make(map[string]*column.OwnedTable),
		coms:   make(map[ColumnID]pedersen.Commitment),
	}
}

// AddTable registers a table and commits every column.
func (a *MemoryAccessor) AddTable(name string, t *column.OwnedTable) error {
	if _, ok := a.tables[name]; ok {
		return fmt.Errorf("proof: duplicate table %q", name)
	}
	if t.NumRows() > a.setup.NumGenerators() {
		return fmt.Errorf("proof: table %q has %d rows, setup has %d generators", name, t.NumRows(), a.setup.NumGenerators())
	}
	a.tables[name] = t
	for i, col := range t.Names() {
		a.coms[ColumnID{Table: name, Column: col}] = a.setup.Commit(t.ColumnAt(i).View().Scalars(), 0)
	}
	return nil
}

// Column returns the named column's data view.
func (a *MemoryAccessor) Column(id ColumnID) (column.Column, error) {
	t, ok := a.tables[id.Table]
	if !ok {
		return column.Column{}, fmt.Errorf("proof: unknown table %q", id.Table)
	}
	c, ok := t.Column(id.Column)
	if !ok {
		return column.Column{}, fmt.Errorf("proof: unknown column %v", id)
	}
	return c.View(), nil
}

// TableLength returns the named table's row count.
func (a *MemoryAccessor) TableLength(table string) (int, error) {
	t, ok := a.tables[table]
	if !ok {
		return 0, fmt.Errorf("proof: unknown table %q", table)
	}
	return t.NumRows(), nil
}

// Commitment returns the named column's commitment.
func (a *MemoryAccessor) Commitment(id ColumnID) (pedersen.Commitment, error) {
	c, ok := a.coms[id]
	if !ok {
		return pedersen.Commitment{}, fmt.Errorf("proof: unknown column %v", id)
	}
	return c, nil
}

// ColumnType returns the named column's value kind.
func (a *MemoryAccessor) ColumnType(id ColumnID) (column.Type, error) {
	t, ok := a.tables[id.Table]
	if !ok {
		return 0, fmt.Errorf("proof: unknown table %q", id.Table)
	}
	c, ok := t.Column(id.Column)
	if !ok {
		return 0, fmt.Errorf("proof: unknown column %v", id)
	}
	return c.Type(), nil
}

var (
	_ DataAccessor       = (*MemoryAccessor)(nil)
	_ CommitmentAccessor = (*MemoryAccessor)(nil)
	_ SchemaAccessor     = (*MemoryAccessor)(nil)
)
