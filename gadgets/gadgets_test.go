package gadgets_test

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/gadgets"
	"github.com/spaceandtimefdn/proof-of-sql-go/pedersen"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
)

var setup = pedersen.NewSetup(64)

func col(vs ...int64) []fr.Element {
	out := make([]fr.Element, len(vs))
	for i, v := range vs {
		out[i] = scalar.FromInt64(v)
	}
	return out
}

// constraintPlan drives the proof lifecycle with closures, producing an empty
// result table. It lets a single gadget be exercised end to end without a
// full query plan around it.
type constraintPlan struct {
	first  func(b *proof.FirstRoundBuilder)
	final  func(b *proof.FinalRoundBuilder)
	verify func(b *proof.VerificationBuilder) error
}

func (p constraintPlan) ColumnRefs() []proof.ColumnID { return nil }

func (p constraintPlan) FirstRoundEvaluate(b *proof.FirstRoundBuilder, _ proof.DataAccessor) (*column.OwnedTable, error) {
	if p.first != nil {
		p.first(b)
	}
	return column.NewOwnedTable(0), nil
}

func (p constraintPlan) FinalRoundEvaluate(b *proof.FinalRoundBuilder, _ proof.DataAccessor) error {
	p.final(b)
	return nil
}

func (p constraintPlan) VerifierEvaluate(b *proof.VerificationBuilder, _ proof.CommitmentAccessor) (*proof.TableEvaluation, error) {
	if err := p.verify(b); err != nil {
		return nil, err
	}
	return proof.NewTableEvaluation(0, fr.Element{}), nil
}

func roundTrip(t *testing.T, p constraintPlan) error {
	t.Helper()
	acc := proof.NewMemoryAccessor(setup)
	pf, result, err := proof.Prove(p, acc, setup)
	require.NoError(t, err)
	return proof.Verify(p, acc, result, pf, setup)
}

func TestFoldStar(t *testing.T) {
	data := col(3, -1, 0, 12, 7)
	n := len(data)
	alpha := scalar.EncodeString("alpha")
	beta := scalar.EncodeString("beta")

	p := constraintPlan{
		final: func(b *proof.FinalRoundBuilder) {
			b.ProduceIntermediateMLE(data)
			gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, [][]fr.Element{data}, n), n)
		},
		verify: func(b *proof.VerificationBuilder) error {
			dataEval, err := b.ConsumeFinalRoundMLEEvaluation()
			if err != nil {
				return err
			}
			star, chi, err := gadgets.ConsumeFoldStar(b, n)
			if err != nil {
				return err
			}
			return gadgets.CheckFoldStar(b, star, chi, gadgets.FoldEval(alpha, beta, []fr.Element{dataEval}))
		},
	}
	assert.NoError(t, roundTrip(t, p))
}

func TestFoldStarTamperedEvaluation(t *testing.T) {
	data := col(3, -1, 0, 12)
	n := len(data)
	alpha := scalar.EncodeString("alpha")
	beta := scalar.EncodeString("beta")

	p := constraintPlan{
		final: func(b *proof.FinalRoundBuilder) {
			b.ProduceIntermediateMLE(data)
			gadgets.ProveFoldStar(b, gadgets.FoldVals(alpha, beta, [][]fr.Element{data}, n), n)
		},
		verify: func(b *proof.VerificationBuilder) error {
			dataEval, err := b.ConsumeFinalRoundMLEEvaluation()
			if err != nil {
				return err
			}
			star, chi, err := gadgets.ConsumeFoldStar(b, n)
			if err != nil {
				return err
			}
			return gadgets.CheckFoldStar(b, star, chi, gadgets.FoldEval(alpha, beta, []fr.Element{dataEval}))
		},
	}
	acc := proof.NewMemoryAccessor(setup)
	pf, result, err := proof.Prove(p, acc, setup)
	require.NoError(t, err)
	one := fr.One()
	pf.FinalRoundMLEEvaluations[0].Add(&pf.FinalRoundMLEEvaluations[0], &one)
	assert.Error(t, proof.Verify(p, acc, result, pf, setup))
}

func TestSign(t *testing.T) {
	cases := []struct {
		name  string
		data  []fr.Element
		width int
	}{
		{"MixedSigns", col(5, -3, 0, 127, -128), 8},
		{"AllZero", col(0, 0, 0), 16},
		{"AllConstant", col(42, 42, 42, 42), 64},
		{"WideValues", col(1 << 40, -(1 << 40), 17), 64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := len(tc.data)
			p := constraintPlan{
				final: func(b *proof.FinalRoundBuilder) {
					b.ProduceIntermediateMLE(tc.data)
					gadgets.ProveSign(b, tc.data, n, tc.width)
				},
				verify: func(b *proof.VerificationBuilder) error {
					dataEval, err := b.ConsumeFinalRoundMLEEvaluation()
					if err != nil {
						return err
					}
					_, err = gadgets.VerifySign(b, dataEval, n, tc.width)
					return err
				},
			}
			assert.NoError(t, roundTrip(t, p))
		})
	}
}

func TestSignWidthMismatchRejected(t *testing.T) {
	data := col(5, -3, 0)
	n := len(data)
	p := constraintPlan{
		final: func(b *proof.FinalRoundBuilder) {
			b.ProduceIntermediateMLE(data)
			gadgets.ProveSign(b, data, n, 16)
		},
		verify: func(b *proof.VerificationBuilder) error {
			dataEval, err := b.ConsumeFinalRoundMLEEvaluation()
			if err != nil {
				return err
			}
			// replay expects a different width than the proof carries
			_, err = gadgets.VerifySign(b, dataEval, n, 32)
			return err
		},
	}
	assert.Error(t, roundTrip(t, p))
}

func TestNonNegative(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		data := col(0, 1, 2, 1000)
		n := len(data)
		p := constraintPlan{
			final: func(b *proof.FinalRoundBuilder) {
				b.ProduceIntermediateMLE(data)
				gadgets.ProveNonNegative(b, data, n, 64)
			},
			verify: func(b *proof.VerificationBuilder) error {
				dataEval, err := b.ConsumeFinalRoundMLEEvaluation()
				if err != nil {
					return err
				}
				return gadgets.VerifyNonNegative(b, dataEval, n, 64)
			},
		}
		assert.NoError(t, roundTrip(t, p))
	})

	t.Run("NegativeValuePanics", func(t *testing.T) {
		b := proof.NewFinalRoundBuilder(nil, 4)
		assert.Panics(t, func() { gadgets.ProveNonNegative(b, col(1, -2, 3), 3, 64) })
	})

	t.Run("ExcessiveWidthPanics", func(t *testing.T) {
		b := proof.NewFinalRoundBuilder(nil, 4)
		assert.Panics(t, func() { gadgets.ProveSign(b, col(1), 1, 254) })
	})

	t.Run("OutOfRangeValuePanics", func(t *testing.T) {
		b := proof.NewFinalRoundBuilder(nil, 4)
		assert.Panics(t, func() { gadgets.ProveSign(b, col(300), 1, 8) })
	})
}

func TestShift(t *testing.T) {
	source := col(9, -2, 5, 5)
	n := len(source)
	var shifted []fr.Element

	p := constraintPlan{
		first: func(b *proof.FirstRoundBuilder) {
			b.ProduceIntermediateMLE(source)
			shifted = gadgets.ShiftFirstRound(b, source)
		},
		final: func(b *proof.FinalRoundBuilder) {
			gadgets.ShiftFinalRound(b, source, shifted)
		},
		verify: func(b *proof.VerificationBuilder) error {
			sourceEval, err := b.ConsumeFirstRoundMLEEvaluation()
			if err != nil {
				return err
			}
			_, err = gadgets.VerifyShift(b, sourceEval, n)
			return err
		},
	}
	assert.NoError(t, roundTrip(t, p))
}

func TestShiftForgedColumnRejected(t *testing.T) {
	source := col(9, -2, 5)
	n := len(source)
	var shifted []fr.Element

	p := constraintPlan{
		first: func(b *proof.FirstRoundBuilder) {
			b.ProduceIntermediateMLE(source)
			// forge the shifted column: right values, wrong position
			shifted = make([]fr.Element, n+1)
			copy(shifted, source)
			b.ProduceIntermediateMLE(shifted)
			b.RequestPostResultChallenges(2)
		},
		final: func(b *proof.FinalRoundBuilder) {
			gadgets.ShiftFinalRound(b, source, shifted)
		},
		verify: func(b *proof.VerificationBuilder) error {
			sourceEval, err := b.ConsumeFirstRoundMLEEvaluation()
			if err != nil {
				return err
			}
			_, err = gadgets.VerifyShift(b, sourceEval, n)
			return err
		},
	}
	assert.Error(t, roundTrip(t, p))
}

func TestMembership(t *testing.T) {
	source := col(10, 20, 30, 40)
	cand := col(30, 10, 30)
	n, m := len(source), len(cand)
	var mult []fr.Element

	p := constraintPlan{
		first: func(b *proof.FirstRoundBuilder) {
			b.ProduceIntermediateMLE(source)
			b.ProduceIntermediateMLE(cand)
			mult = gadgets.MembershipFirstRound(b, [][]fr.Element{source}, n, [][]fr.Element{cand}, m)
		},
		final: func(b *proof.FinalRoundBuilder) {
			gadgets.MembershipFinalRound(b, [][]fr.Element{source}, n, [][]fr.Element{cand}, m, mult)
		},
		verify: func(b *proof.VerificationBuilder) error {
			sourceEval, err := b.ConsumeFirstRoundMLEEvaluation()
			if err != nil {
				return err
			}
			candEval, err := b.ConsumeFirstRoundMLEEvaluation()
			if err != nil {
				return err
			}
			return gadgets.VerifyMembership(b, []fr.Element{sourceEval}, n, []fr.Element{candEval}, m)
		},
	}
	assert.NoError(t, roundTrip(t, p))
}

func TestMembershipMultiplicities(t *testing.T) {
	source := [][]fr.Element{col(1, 2, 2, 3)}
	cand := [][]fr.Element{col(2, 2, 2, 1)}
	mult := gadgets.MembershipMultiplicities(source, 4, cand, 4)
	// duplicates in the source collapse onto the first occurrence
	assert.Equal(t, col(1, 3, 0, 0), mult)

	assert.Panics(t, func() {
		gadgets.MembershipMultiplicities(source, 4, [][]fr.Element{col(9)}, 1)
	})
}

func TestPermutation(t *testing.T) {
	a := col(4, 8, 15, 16, 23)
	b := col(23, 4, 16, 8, 15)
	n := len(a)

	p := constraintPlan{
		first: func(fb *proof.FirstRoundBuilder) {
			fb.ProduceIntermediateMLE(a)
			fb.ProduceIntermediateMLE(b)
			gadgets.PermutationFirstRound(fb)
		},
		final: func(rb *proof.FinalRoundBuilder) {
			gadgets.PermutationFinalRound(rb, [][]fr.Element{a}, n, [][]fr.Element{b}, n)
		},
		verify: func(vb *proof.VerificationBuilder) error {
			aEval, err := vb.ConsumeFirstRoundMLEEvaluation()
			if err != nil {
				return err
			}
			bEval, err := vb.ConsumeFirstRoundMLEEvaluation()
			if err != nil {
				return err
			}
			return gadgets.VerifyPermutation(vb, []fr.Element{aEval}, n, []fr.Element{bEval}, n)
		},
	}
	assert.NoError(t, roundTrip(t, p))
}

func TestPermutationOfDifferentMultisetRejected(t *testing.T) {
	a := col(1, 2, 3)
	b := col(1, 2, 4)
	n := len(a)

	p := constraintPlan{
		first: func(fb *proof.FirstRoundBuilder) {
			fb.ProduceIntermediateMLE(a)
			fb.ProduceIntermediateMLE(b)
			gadgets.PermutationFirstRound(fb)
		},
		final: func(rb *proof.FinalRoundBuilder) {
			gadgets.PermutationFinalRound(rb, [][]fr.Element{a}, n, [][]fr.Element{b}, n)
		},
		verify: func(vb *proof.VerificationBuilder) error {
			aEval, err := vb.ConsumeFirstRoundMLEEvaluation()
			if err != nil {
				return err
			}
			bEval, err := vb.ConsumeFirstRoundMLEEvaluation()
			if err != nil {
				return err
			}
			return gadgets.VerifyPermutation(vb, []fr.Element{aEval}, n, []fr.Element{bEval}, n)
		},
	}
	assert.Error(t, roundTrip(t, p))
}

func monotonicPlan(data []fr.Element, width int) (constraintPlan, *[]fr.Element) {
	n := len(data)
	shifted := new([]fr.Element)
	return constraintPlan{
		first: func(b *proof.FirstRoundBuilder) {
			b.ProduceIntermediateMLE(data)
			*shifted = gadgets.MonotonicFirstRound(b, data)
		},
		final: func(b *proof.FinalRoundBuilder) {
			gadgets.MonotonicFinalRound(b, data, *shifted, width)
		},
		verify: func(b *proof.VerificationBuilder) error {
			dataEval, err := b.ConsumeFirstRoundMLEEvaluation()
			if err != nil {
				return err
			}
			return gadgets.VerifyMonotonic(b, dataEval, n, width)
		},
	}, shifted
}

func TestMonotonic(t *testing.T) {
	t.Run("StrictlyAscending", func(t *testing.T) {
		p, _ := monotonicPlan(col(-50, -3, 0, 7, 1000), 64)
		assert.NoError(t, roundTrip(t, p))
	})

	t.Run("SingleRow", func(t *testing.T) {
		p, _ := monotonicPlan(col(42), 64)
		assert.NoError(t, roundTrip(t, p))
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		p, _ := monotonicPlan(col(1, 5, 5, 9), 64)
		assert.Error(t, roundTrip(t, p))
	})

	t.Run("DescendingPairRejected", func(t *testing.T) {
		p, _ := monotonicPlan(col(1, 9, 5), 64)
		assert.Error(t, roundTrip(t, p))
	})
}

func TestDivMod(t *testing.T) {
	a := col(7, -7, 7, -7, 100, 0, 5)
	b := col(2, 2, -2, -2, 0, 3, 5)
	n := len(a)

	p := constraintPlan{
		final: func(rb *proof.FinalRoundBuilder) {
			rb.ProduceIntermediateMLE(a)
			rb.ProduceIntermediateMLE(b)
			gadgets.DivModFinalRound(rb, a, b, n)
		},
		verify: func(vb *proof.VerificationBuilder) error {
			aEval, err := vb.ConsumeFinalRoundMLEEvaluation()
			if err != nil {
				return err
			}
			bEval, err := vb.ConsumeFinalRoundMLEEvaluation()
			if err != nil {
				return err
			}
			_, _, err = gadgets.VerifyDivMod(vb, aEval, bEval, n)
			return err
		},
	}
	assert.NoError(t, roundTrip(t, p))
}

func TestDivModWrapAndZero(t *testing.T) {
	const minInt64 = -9223372036854775808
	a := col(minInt64, minInt64, 1, -1)
	b := col(-1, 0, minInt64, 1)
	n := len(a)

	p := constraintPlan{
		final: func(rb *proof.FinalRoundBuilder) {
			rb.ProduceIntermediateMLE(a)
			rb.ProduceIntermediateMLE(b)
			gadgets.DivModFinalRound(rb, a, b, n)
		},
		verify: func(vb *proof.VerificationBuilder) error {
			aEval, err := vb.ConsumeFinalRoundMLEEvaluation()
			if err != nil {
				return err
			}
			bEval, err := vb.ConsumeFinalRoundMLEEvaluation()
			if err != nil {
				return err
			}
			_, _, err = gadgets.VerifyDivMod(vb, aEval, bEval, n)
			return err
		},
	}
	assert.NoError(t, roundTrip(t, p))
}

func TestIndexVals(t *testing.T) {
	assert.Equal(t, col(3, 4, 5), gadgets.IndexVals(3, 3))
	assert.Empty(t, gadgets.IndexVals(0, 0))
	one := fr.One()
	assert.Equal(t, []fr.Element{one, one}, gadgets.OnesVals(2))
}
