// Package scalar implements helpers over the BN254 scalar field used by the
// proof protocols: canonical signed interpretation, batched inversion with
// the public star sentinel, and string encoding for variable-length columns.
package scalar

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/blake2b"
)

// MaxSignedBits is the widest bit width a signed decomposition may request.
// Values v with |v| < 2^(MaxSignedBits-1) shifted by 2^(MaxSignedBits-1)
// stay below the field modulus, so wider requests would allow wrap-around
// forgeries and must be rejected.
const MaxSignedBits = 253

var (
	modulus     = fr.Modulus()
	halfModulus = new(big.Int).Rsh(fr.Modulus(), 1)
)

// Modulus returns the field modulus.
func Modulus() *big.Int {
	return new(big.Int).Set(modulus)
}

// FromInt64 returns the field element representing v.
func FromInt64(v int64) fr.Element {
	var e fr.Element
	e.SetInt64(v)
	return e
}

// FromUint64 returns the field element representing v.
func FromUint64(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// FromBigInt returns the field element representing v modulo the field order.
// Negative values map to their additive inverse.
func FromBigInt(v *big.Int) fr.Element {
	var e fr.Element
	e.SetBigInt(new(big.Int).Mod(v, modulus))
	return e
}

// ToSignedBigInt returns the canonical signed interpretation of x:
// the unique integer v with |v| <= (r-1)/2 and v = x mod r.
func ToSignedBigInt(x fr.Element) *big.Int {
	v := new(big.Int)
	x.BigInt(v)
	if v.Cmp(halfModulus) > 0 {
		v.Sub(v, modulus)
	}
	if v.Sign() == 0 {
		// x.BigInt leaves a non-nil empty mantissa for zero; normalize so the
		// result is deep-equal to big.NewInt(0).
		return new(big.Int)
	}
	return v
}

// IsNegative reports whether the canonical signed interpretation of x is negative.
func IsNegative(x fr.Element) bool {
	return ToSignedBigInt(x).Sign() < 0
}

// PowerOfTwo returns 2^i as a field element.
func PowerOfTwo(i int) fr.Element {
	var e fr.Element
	e.SetBigInt(new(big.Int).Lsh(big.NewInt(1), uint(i)))
	return e
}

// Powers returns [1, x, x^2, ..., x^(n-1)].
func Powers(x fr.Element, n int) []fr.Element {
	pow := make([]fr.Element, n)
	if n == 0 {
		return pow
	}
	pow[0].SetOne()
	for i := 1; i < n; i++ {
		pow[i].Mul(&pow[i-1], &x)
	}
	return pow
}

// InnerProduct returns the inner product of a and b, which must have equal length.
func InnerProduct(a, b []fr.Element) fr.Element {
	if len(a) != len(b) {
		panic("scalar: inner product length mismatch")
	}
	var acc, t fr.Element
	for i := range a {
		t.Mul(&a[i], &b[i])
		acc.Add(&acc, &t)
	}
	return acc
}

// BatchInvertOrOne inverts every element of v in place using a single batched
// inversion. Elements equal to zero invert to one; this sentinel is a public,
// value-independent rule applied identically by prover and verifier.
func BatchInvertOrOne(v []fr.Element) {
	one := fr.One()
	for i := range v {
		if v[i].IsZero() {
			v[i] = one
		}
	}
	inv := fr.BatchInvert(v)
	copy(v, inv)
}

// EncodeString returns the field encoding of a variable-length string value.
// Two equal strings always encode to the same element and, modulo hash
// collisions, distinct strings encode to distinct elements.
func EncodeString(s string) fr.Element {
	sum := blake2b.Sum256([]byte(s))
	var e fr.Element
	e.SetBigInt(new(big.Int).SetBytes(sum[:]))
	return e
}

// EncodeBytes returns the field encoding of a variable-length binary value.
func EncodeBytes(b []byte) fr.Element {
	sum := blake2b.Sum256(b)
	var e fr.Element
	e.SetBigInt(new(big.Int).SetBytes(sum[:]))
	return e
}
