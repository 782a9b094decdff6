// Package pedersen implements the commitment engine boundary: additively
// homomorphic Pedersen vector commitments over BN254 G1, batched commits at
// a generator offset, and an inner-product evaluation argument proving that
// a claimed MLE evaluation is consistent with a commitment.
package pedersen

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const domainSeparationTag = "proof-of-sql-go:pedersen:v1"

// Commitment is an opaque, binding commitment to a column of field elements.
type Commitment struct {
	point bn254.G1Affine
}

// Bytes returns the compressed encoding of the commitment.
func (c Commitment) Bytes() []byte {
	b := c.point.Bytes()
	return b[:]
}

// SetBytes decodes a compressed commitment.
func (c *Commitment) SetBytes(b []byte) error {
	_, err := c.point.SetBytes(b)
	return err
}

// Equal reports whether two commitments are identical.
func (c Commitment) Equal(other Commitment) bool {
	return c.point.Equal(&other.point)
}

// Setup holds the deterministically derived generators of the scheme.
// Generators are independent group elements with unknown discrete logs,
// derived by hashing to the curve.
type Setup struct {
	g []bn254.G1Affine
	q bn254.G1Affine
}

// NewSetup derives a setup with n column generators.
func NewSetup(n int) *Setup {
	s := &Setup{g: make([]bn254.G1Affine, n)}
	var buf [8]byte
	for i := range s.g {
		binary.BigEndian.PutUint64(buf[:], uint64(i))
		p, err := bn254.HashToG1(buf[:], []byte(domainSeparationTag))
		if err != nil {
			panic(err)
		}
		s.g[i] = p
	}
	q, err := bn254.HashToG1([]byte("inner-product"), []byte(domainSeparationTag))
	if err != nil {
		panic(err)
	}
	s.q = q
	return s
}

// NumGenerators returns the number of column generators in the setup.
func (s *Setup) NumGenerators() int {
	return len(s.g)
}

func (s *Setup) generators(offset, n int) []bn254.G1Affine {
	if offset < 0 || offset+n > len(s.g) {
		panic("pedersen: generator range out of bounds")
	}
	return s.g[offset : offset+n]
}

// Commit commits to a column of values using generators starting at offset.
// Trailing zeros do not change the commitment, so a zero-extended MLE and
// its raw column commit identically.
func (s *Setup) Commit(values []fr.Element, offset int) Commitment {
	var p bn254.G1Affine
	if len(values) == 0 {
		return Commitment{point: p}
	}
	if _, err := p.MultiExp(s.generators(offset, len(values)), values, ecc.MultiExpConfig{}); err != nil {
		panic(err)
	}
	return Commitment{point: p}
}

// CommitAll commits to a batch of columns at a shared generator offset.
func (s *Setup) CommitAll(columns [][]fr.Element, offset int) []Commitment {
	out := make([]Commitment, len(columns))
	for i, col := range columns {
		out[i] = s.Commit(col, offset)
	}
	return out
}

// FoldCommitments returns sum_i multipliers[i] * commitments[i], using the
// additive homomorphism of the scheme.
func FoldCommitments(commitments []Commitment, multipliers []fr.Element) Commitment {
	if len(commitments) != len(multipliers) {
		panic("pedersen: fold length mismatch")
	}
	var p bn254.G1Affine
	if len(commitments) == 0 {
		return Commitment{point: p}
	}
	points := make([]bn254.G1Affine, len(commitments))
	for i := range commitments {
		points[i] = commitments[i].point
	}
	if _, err := p.MultiExp(points, multipliers, ecc.MultiExpConfig{}); err != nil {
		panic(err)
	}
	return Commitment{point: p}
}
