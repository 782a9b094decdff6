package scalar_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"

	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
)

func TestSignedInterpretation(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		for _, v := range []int64{0, 1, -1, 42, -42, 1 << 40, -(1 << 40), 9223372036854775807, -9223372036854775808} {
			e := scalar.FromInt64(v)
			assert.Equal(t, big.NewInt(v), scalar.ToSignedBigInt(e))
			assert.Equal(t, v < 0, scalar.IsNegative(e))
		}
	})

	t.Run("HalfModulusBoundary", func(t *testing.T) {
		half := new(big.Int).Rsh(scalar.Modulus(), 1)
		e := scalar.FromBigInt(half)
		assert.Equal(t, half, scalar.ToSignedBigInt(e))
		assert.False(t, scalar.IsNegative(e))

		above := new(big.Int).Add(half, big.NewInt(1))
		e = scalar.FromBigInt(above)
		assert.True(t, scalar.IsNegative(e))
	})
}

func TestPowers(t *testing.T) {
	x := scalar.FromInt64(3)
	pows := scalar.Powers(x, 5)
	assert.Len(t, pows, 5)
	for i, want := range []int64{1, 3, 9, 27, 81} {
		assert.Equal(t, scalar.FromInt64(want), pows[i])
	}
	assert.Empty(t, scalar.Powers(x, 0))
}

func TestPowerOfTwo(t *testing.T) {
	assert.Equal(t, scalar.FromInt64(1), scalar.PowerOfTwo(0))
	assert.Equal(t, scalar.FromInt64(1024), scalar.PowerOfTwo(10))

	var doubled fr.Element
	p := scalar.PowerOfTwo(251)
	doubled.Double(&p)
	assert.Equal(t, scalar.PowerOfTwo(252), doubled)
}

func TestInnerProduct(t *testing.T) {
	a := []fr.Element{scalar.FromInt64(1), scalar.FromInt64(2), scalar.FromInt64(3)}
	b := []fr.Element{scalar.FromInt64(4), scalar.FromInt64(5), scalar.FromInt64(6)}
	assert.Equal(t, scalar.FromInt64(32), scalar.InnerProduct(a, b))

	assert.Panics(t, func() { scalar.InnerProduct(a, b[:2]) })
}

func TestBatchInvertOrOne(t *testing.T) {
	vals := []fr.Element{scalar.FromInt64(2), {}, scalar.FromInt64(-7), {}}
	scalar.BatchInvertOrOne(vals)

	one := fr.One()
	two := scalar.FromInt64(2)
	var prod fr.Element
	prod.Mul(&vals[0], &two)
	assert.Equal(t, one, prod)
	assert.Equal(t, one, vals[1])
	assert.Equal(t, one, vals[3])

	neg := scalar.FromInt64(-7)
	prod.Mul(&vals[2], &neg)
	assert.Equal(t, one, prod)
}

func TestEncodeString(t *testing.T) {
	a := scalar.EncodeString("hello")
	b := scalar.EncodeString("hello")
	c := scalar.EncodeString("world")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	assert.Equal(t, scalar.EncodeBytes([]byte("hello")), a)
	assert.NotEqual(t, scalar.EncodeString(""), fr.Element{})
}
