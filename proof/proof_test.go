package proof_test

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/pedersen"
	"github.com/spaceandtimefdn/proof-of-sql-go/plan"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
)

var setup = pedersen.NewSetup(64)

func testAccessor(t *testing.T) *proof.MemoryAccessor {
	t.Helper()
	acc := proof.NewMemoryAccessor(setup)
	tab := column.NewOwnedTable(4)
	require.NoError(t, tab.Add("a", column.NewBigInt([]int64{1, 5, 2, 5}).Materialize()))
	require.NoError(t, tab.Add("b", column.NewBigInt([]int64{10, 20, 30, 40}).Materialize()))
	require.NoError(t, acc.AddTable("t1", tab))
	return acc
}

func testPlan(t *testing.T) *plan.Exec {
	t.Helper()
	scan, err := plan.NewScan("t1", []plan.ColumnMeta{
		{Name: "a", Type: column.TypeBigInt},
		{Name: "b", Type: column.TypeBigInt},
	})
	require.NoError(t, err)
	filter, err := plan.NewFilter(scan,
		[]plan.NamedExpr{{Name: "b", Expr: plan.ColumnExpr{Name: "b"}}},
		plan.EqualsExpr{L: plan.ColumnExpr{Name: "a"}, R: plan.NewBigIntLiteral(5)})
	require.NoError(t, err)
	exec, err := plan.NewExec(filter)
	require.NoError(t, err)
	return exec
}

func TestQueryProofLifecycle(t *testing.T) {
	acc := testAccessor(t)
	exec := testPlan(t)

	pf, result, err := proof.Prove(exec, acc, setup)
	require.NoError(t, err)

	bCol, ok := result.Column("b")
	require.True(t, ok)
	assert.Equal(t, []int64{20, 40}, bCol.View().BigInts())

	assert.NoError(t, proof.Verify(exec, acc, result, pf, setup))
}

func TestVerifyRejectsTampering(t *testing.T) {
	acc := testAccessor(t)
	exec := testPlan(t)
	one := fr.One()

	fresh := func() (*proof.QueryProof, *column.OwnedTable) {
		pf, result, err := proof.Prove(exec, acc, setup)
		require.NoError(t, err)
		return pf, result
	}

	t.Run("ForgedResultRow", func(t *testing.T) {
		pf, _ := fresh()
		forged := column.NewOwnedTable(2)
		require.NoError(t, forged.Add("b", column.NewBigInt([]int64{20, 41}).Materialize()))
		assert.Error(t, proof.Verify(exec, acc, forged, pf, setup))
	})

	t.Run("ForgedExtraRow", func(t *testing.T) {
		pf, _ := fresh()
		forged := column.NewOwnedTable(3)
		require.NoError(t, forged.Add("b", column.NewBigInt([]int64{20, 40, 40}).Materialize()))
		assert.Error(t, proof.Verify(exec, acc, forged, pf, setup))
	})

	t.Run("TamperedColumnEvaluation", func(t *testing.T) {
		pf, result := fresh()
		pf.ColumnEvaluations[0].Add(&pf.ColumnEvaluations[0], &one)
		assert.Error(t, proof.Verify(exec, acc, result, pf, setup))
	})

	t.Run("TamperedFinalRoundEvaluation", func(t *testing.T) {
		pf, result := fresh()
		pf.FinalRoundMLEEvaluations[0].Add(&pf.FinalRoundMLEEvaluations[0], &one)
		assert.Error(t, proof.Verify(exec, acc, result, pf, setup))
	})

	t.Run("TamperedRoundPolynomial", func(t *testing.T) {
		pf, result := fresh()
		pf.Sumcheck.RoundPolys[0][0].Add(&pf.Sumcheck.RoundPolys[0][0], &one)
		assert.Error(t, proof.Verify(exec, acc, result, pf, setup))
	})

	t.Run("SwappedCommitments", func(t *testing.T) {
		pf, result := fresh()
		require.GreaterOrEqual(t, len(pf.FinalRoundCommitments), 2)
		pf.FinalRoundCommitments[0], pf.FinalRoundCommitments[1] = pf.FinalRoundCommitments[1], pf.FinalRoundCommitments[0]
		assert.Error(t, proof.Verify(exec, acc, result, pf, setup))
	})

	t.Run("InflatedRangeLength", func(t *testing.T) {
		pf, result := fresh()
		pf.RangeLength = setup.NumGenerators() + 1
		assert.Error(t, proof.Verify(exec, acc, result, pf, setup))
	})
}

func TestProofWire(t *testing.T) {
	acc := testAccessor(t)
	exec := testPlan(t)
	pf, result, err := proof.Prove(exec, acc, setup)
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		data, err := proof.EncodeProof(pf)
		require.NoError(t, err)
		decoded, err := proof.DecodeProof(data)
		require.NoError(t, err)

		reencoded, err := proof.EncodeProof(decoded)
		require.NoError(t, err)
		assert.Equal(t, data, reencoded)

		assert.NoError(t, proof.Verify(exec, acc, result, decoded, setup))
	})

	t.Run("UnknownVersionRejected", func(t *testing.T) {
		// minimal CBOR map {1: 2}: an envelope claiming version 2
		_, err := proof.DecodeProof([]byte{0xa1, 0x01, 0x02})
		assert.Error(t, err)
	})

	t.Run("GarbageRejected", func(t *testing.T) {
		_, err := proof.DecodeProof([]byte{0xff, 0x00, 0x01})
		assert.Error(t, err)
	})

	t.Run("NonCanonicalScalarRejected", func(t *testing.T) {
		data, err := proof.EncodeProof(pf)
		require.NoError(t, err)
		// corrupting scalar bytes must not decode into a valid proof that
		// still verifies
		decoded, err := proof.DecodeProof(data)
		require.NoError(t, err)
		one := fr.One()
		decoded.ColumnEvaluations[0].Add(&decoded.ColumnEvaluations[0], &one)
		assert.Error(t, proof.Verify(exec, acc, result, decoded, setup))
	})
}

func TestMemoryAccessor(t *testing.T) {
	acc := testAccessor(t)

	t.Run("Lookups", func(t *testing.T) {
		n, err := acc.TableLength("t1")
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		typ, err := acc.ColumnType(proof.ColumnID{Table: "t1", Column: "a"})
		require.NoError(t, err)
		assert.Equal(t, column.TypeBigInt, typ)

		c, err := acc.Column(proof.ColumnID{Table: "t1", Column: "b"})
		require.NoError(t, err)
		assert.Equal(t, []int64{10, 20, 30, 40}, c.BigInts())
	})

	t.Run("UnknownNames", func(t *testing.T) {
		_, err := acc.TableLength("missing")
		assert.Error(t, err)
		_, err = acc.Column(proof.ColumnID{Table: "t1", Column: "missing"})
		assert.Error(t, err)
		_, err = acc.Commitment(proof.ColumnID{Table: "missing", Column: "a"})
		assert.Error(t, err)
		_, err = acc.ColumnType(proof.ColumnID{Table: "t1", Column: "missing"})
		assert.Error(t, err)
	})

	t.Run("DuplicateTable", func(t *testing.T) {
		assert.Error(t, acc.AddTable("t1", column.NewOwnedTable(0)))
	})

	t.Run("TooManyRows", func(t *testing.T) {
		big := column.NewOwnedTable(setup.NumGenerators() + 1)
		assert.Error(t, acc.AddTable("big", big))
	})

	t.Run("CommitmentMatchesDirectCommit", func(t *testing.T) {
		com, err := acc.Commitment(proof.ColumnID{Table: "t1", Column: "a"})
		require.NoError(t, err)
		c, err := acc.Column(proof.ColumnID{Table: "t1", Column: "a"})
		require.NoError(t, err)
		assert.True(t, com.Equal(setup.Commit(c.Scalars(), 0)))
	})
}
