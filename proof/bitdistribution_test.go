package proof_test

import (
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
)

func col(vs ...int64) []fr.Element {
	out := make([]fr.Element, len(vs))
	for i, v := range vs {
		out[i] = scalar.FromInt64(v)
	}
	return out
}

func TestComputeBitDistribution(t *testing.T) {
	t.Run("MixedSigns", func(t *testing.T) {
		// shifted by 2^3: 13, 3, 8, 15
		d, bits := proof.ComputeBitDistribution(col(5, -5, 0, 7), 4)
		assert.Equal(t, 4, d.Width())
		require.Equal(t, []int{0, 1, 2, 3}, d.VaryingPositions())
		require.Len(t, bits, 4)
		one := fr.One()
		zero := fr.Element{}
		assert.Equal(t, []fr.Element{one, one, zero, one}, bits[0])
		assert.Equal(t, []fr.Element{zero, one, zero, one}, bits[1])
		assert.Equal(t, []fr.Element{one, zero, zero, one}, bits[2])
		assert.Equal(t, []fr.Element{one, zero, one, one}, bits[3])
		assert.False(t, d.LeadBitConstOne())
	})

	t.Run("ConstantColumn", func(t *testing.T) {
		d, bits := proof.ComputeBitDistribution(col(3, 3, 3), 8)
		assert.Empty(t, bits)
		assert.Equal(t, 0, d.NumVarying())
		// 3 + 128 = 0b10000011
		assert.True(t, d.ConstOneAt(0))
		assert.True(t, d.ConstOneAt(1))
		assert.True(t, d.ConstOneAt(7))
		assert.False(t, d.ConstOneAt(2))
		assert.True(t, d.LeadBitConstOne())
	})

	t.Run("EmptyColumn", func(t *testing.T) {
		d, bits := proof.ComputeBitDistribution(nil, 16)
		assert.Empty(t, bits)
		assert.True(t, d.LeadBitConstOne())
	})

	t.Run("ConstantOffset", func(t *testing.T) {
		d, _ := proof.ComputeBitDistribution(col(3, 3), 8)
		// 2^7 - (1 + 2 + 128) = -3, so reconstruction adds the constant 3
		assert.Equal(t, scalar.FromInt64(-3), d.ConstantOffset())
	})

	t.Run("OutOfRangePanics", func(t *testing.T) {
		assert.Panics(t, func() { proof.ComputeBitDistribution(col(8), 4) })
		assert.Panics(t, func() { proof.ComputeBitDistribution(col(-9), 4) })
		assert.Panics(t, func() { proof.ComputeBitDistribution(col(1), 0) })
		assert.Panics(t, func() { proof.ComputeBitDistribution(col(1), 254) })
	})

	t.Run("BoundaryValues", func(t *testing.T) {
		d, _ := proof.ComputeBitDistribution(col(7, -8), 4)
		assert.NoError(t, d.Validate())
	})
}

func TestBitDistributionValidate(t *testing.T) {
	t.Run("WidthOutOfRange", func(t *testing.T) {
		assert.Error(t, proof.NewBitDistribution(0, nil, nil).Validate())
		assert.Error(t, proof.NewBitDistribution(254, nil, nil).Validate())
	})

	t.Run("PositionAboveWidth", func(t *testing.T) {
		vary := bitset.New(8)
		vary.Set(5)
		assert.Error(t, proof.NewBitDistribution(4, vary, nil).Validate())

		constOnes := bitset.New(8)
		constOnes.Set(4)
		assert.Error(t, proof.NewBitDistribution(4, nil, constOnes).Validate())
	})

	t.Run("OverlappingMasks", func(t *testing.T) {
		vary := bitset.New(4)
		vary.Set(1)
		constOnes := bitset.New(4)
		constOnes.Set(1)
		assert.Error(t, proof.NewBitDistribution(4, vary, constOnes).Validate())
	})

	t.Run("Sound", func(t *testing.T) {
		vary := bitset.New(4)
		vary.Set(0)
		constOnes := bitset.New(4)
		constOnes.Set(3)
		assert.NoError(t, proof.NewBitDistribution(4, vary, constOnes).Validate())
	})
}
