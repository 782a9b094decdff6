package column

import (
	"fmt"

	"github.com/spaceandtimefdn/proof-of-sql-go/transcript"
)

// Table is an ordered mapping from column name to column view with a single
// shared row count. A table may hold zero columns and still carry a
// meaningful row count.
type Table struct {
	names []string
	cols  []Column
	rows  int
}

// NewTable creates an empty table with an explicit row count.
func NewTable(rows int) *Table {
	if rows < 0 {
		panic("column: negative row count")
	}
	return &Table{rows: rows}
}

// Add appends a named column. The column's length must match the table's row
// count and the name must be unused.
func (t *Table) Add(name string, col Column) error {
	if col.Len() != t.rows {
		return fmt.Errorf("column: %q has %d rows, table has %d", name, col.Len(), t.rows)
	}
	for _, n := range t.names {
		if n == name {
			return fmt.Errorf("column: duplicate column %q", name)
		}
	}
	t.names = append(t.names, name)
	t.cols = append(t.cols, col)
	return nil
}

// NumRows returns the shared row count.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string { return t.names }

// Column returns the named column view.
func (t *Table) Column(name string) (Column, bool) {
	for i, n := range t.names {
		if n == name {
			return t.cols[i], true
		}
	}
	return Column{}, false
}

// ColumnAt returns the i-th column view.
func (t *Table) ColumnAt(i int) Column { return t.cols[i] }

// OwnedTable owns its columns; it is the materialized result of a plan.
type OwnedTable struct {
	names []string
	cols  []OwnedColumn
	rows  int
}

// NewOwnedTable creates an empty owned table with an explicit row count.
func NewOwnedTable(rows int) *OwnedTable {
	if rows < 0 {
		panic("column: negative row count")
	}
	return &OwnedTable{rows: rows}
}

// Add appends a named owned column.
func (t *OwnedTable) Add(name string, col OwnedColumn) error {
	if col.Len() != t.rows {
		return fmt.Errorf("column: %q has %d rows, table has %d", name, col.Len(), t.rows)
	}
	for _, n := range t.names {
		if n == name {
			return fmt.Errorf("column: duplicate column %q", name)
		}
	}
	t.names = append(t.names, name)
	t.cols = append(t.cols, col)
	return nil
}

// NumRows returns the shared row count.
func (t *OwnedTable) NumRows() int { return t.rows }

// NumColumns returns the number of columns.
func (t *OwnedTable) NumColumns() int { return len(t.cols) }

// Names returns the column names in order.
func (t *OwnedTable) Names() []string { return t.names }

// Column returns the named owned column.
func (t *OwnedTable) Column(name string) (OwnedColumn, bool) {
	for i, n := range t.names {
		if n == name {
			return t.cols[i], true
		}
	}
	return OwnedColumn{}, false
}

// ColumnAt returns the i-th owned column.
func (t *OwnedTable) ColumnAt(i int) OwnedColumn { return t.cols[i] }

// View borrows every column of the table.
func (t *OwnedTable) View() *Table {
	v := NewTable(t.rows)
	for i, name := range t.names {
		if err := v.Add(name, t.cols[i].View()); err != nil {
			panic(err)
		}
	}
	return v
}

// AppendToTranscript absorbs the table's full logical content: row count,
// column names, type metadata, and the field encoding of every value.
func (t *OwnedTable) AppendToTranscript(tr *transcript.Transcript) {
	tr.AppendUint64s("result rows", uint64(t.rows), uint64(len(t.cols)))
	for i, name := range t.names {
		col := t.cols[i].View()
		tr.AppendBytes("result column name", []byte(name))
		tr.AppendUint64s("result column meta",
			uint64(col.Type()), uint64(col.Precision()), uint64(uint8(col.Scale())), uint64(col.Unit()))
		tr.AppendScalars("result column data", col.Scalars()...)
		if col.Type() == TypeVarChar {
			for _, s := range col.Strings() {
				tr.AppendBytes("result column string", []byte(s))
			}
		}
	}
}
