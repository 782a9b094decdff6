package proof

import (
	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/pedersen"
)

// ColumnID names a committed column within a table.
type ColumnID struct {
	Table  string
	Column string
}

func (id ColumnID) String() string { return id.Table + "." + id.Column }

// DataAccessor supplies the prover with committed column data.
type DataAccessor interface {
	Column(id ColumnID) (column.Column, error)
	TableLength(table string) (int, error)
}

// CommitmentAccessor supplies the verifier with the commitments and lengths
// of committed columns.
type CommitmentAccessor interface {
	Commitment(id ColumnID) (pedersen.Commitment, error)
	TableLength(table string) (int, error)
}

// SchemaAccessor supplies column types for plan construction checks.
type SchemaAccessor interface {
	ColumnType(id ColumnID) (column.Type, error)
}

// ProofPlan is a provable query plan. The three evaluation methods must
// perform the same sequence of builder interactions: the prover's two passes
// record shapes, intermediate columns, and constraints, and the verifier's
// pass consumes the matching claimed evaluations positionally.
type ProofPlan interface {
	// ColumnRefs lists every committed column the plan reads, in a fixed
	// deterministic order.
	ColumnRefs() []ColumnID

	// FirstRoundEvaluate computes the query result and records the shapes
	// and pre-challenge intermediate columns.
	FirstRoundEvaluate(b *FirstRoundBuilder, data DataAccessor) (*column.OwnedTable, error)

	// FinalRoundEvaluate records the post-challenge intermediate columns,
	// bit distributions, and constraint subpolynomials.
	FinalRoundEvaluate(b *FinalRoundBuilder, data DataAccessor) error

	// VerifierEvaluate replays the constraint structure against claimed
	// evaluations and returns the evaluation of the plan's output table.
	VerifierEvaluate(b *VerificationBuilder, acc CommitmentAccessor) (*TableEvaluation, error)
}
