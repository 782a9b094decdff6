package proof

import (
	"fmt"
	"math/big"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/transcript"
)

// BitDistribution summarizes the signed bit decomposition of a column at a
// declared width: which bit positions vary across rows and, among the
// constant positions, which are one. Varying positions get a committed bit
// column each; constant positions cost nothing. The distribution is public
// proof data, so its consistency with the committed bits is what the sign
// constraints enforce.
type BitDistribution struct {
	width     int
	vary      *bitset.BitSet
	constOnes *bitset.BitSet
}

// NewBitDistribution assembles a distribution from its parts, as when
// decoding a proof. Call Validate before trusting it.
func NewBitDistribution(width int, vary, constOnes *bitset.BitSet) BitDistribution {
	if vary == nil {
		vary = bitset.New(0)
	}
	if constOnes == nil {
		constOnes = bitset.New(0)
	}
	return BitDistribution{width: width, vary: vary, constOnes: constOnes}
}

// ComputeBitDistribution decomposes values at the given signed width. Each
// value v is shifted to t = v + 2^(width-1), which must land in [0, 2^width).
// It returns the distribution together with one bit column per varying
// position, in ascending position order. Out-of-range values are a prover
// bug and panic.
func ComputeBitDistribution(values []fr.Element, width int) (BitDistribution, [][]fr.Element) {
	if width < 1 || width > scalar.MaxSignedBits {
		panic(fmt.Sprintf("proof: bit width %d out of range", width))
	}
	offset := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
	limit := new(big.Int).Lsh(big.NewInt(1), uint(width))
	shifted := make([]*big.Int, len(values))
	for i := range values {
		t := scalar.ToSignedBigInt(values[i])
		t.Add(t, offset)
		if t.Sign() < 0 || t.Cmp(limit) >= 0 {
			panic(fmt.Sprintf("proof: row %d exceeds declared bit width %d", i, width))
		}
		shifted[i] = t
	}

	vary := bitset.New(uint(width))
	constOnes := bitset.New(uint(width))
	if len(shifted) == 0 {
		// conventional decomposition of the shifted zero value
		constOnes.Set(uint(width - 1))
	} else {
		first := shifted[0]
		for p := 0; p < width; p++ {
			if first.Bit(p) == 1 {
				constOnes.Set(uint(p))
			}
		}
		for _, t := range shifted[1:] {
			for p := 0; p < width; p++ {
				if t.Bit(p) != first.Bit(p) {
					vary.Set(uint(p))
				}
			}
		}
		constOnes.InPlaceDifference(vary)
	}

	d := BitDistribution{width: width, vary: vary, constOnes: constOnes}
	one := fr.One()
	mles := make([][]fr.Element, 0, vary.Count())
	for p, ok := vary.NextSet(0); ok; p, ok = vary.NextSet(p + 1) {
		vec := make([]fr.Element, len(shifted))
		for i, t := range shifted {
			if t.Bit(int(p)) == 1 {
				vec[i] = one
			}
		}
		mles = append(mles, vec)
	}
	return d, mles
}

// Width returns the declared signed bit width.
func (d BitDistribution) Width() int { return d.width }

// NumVarying returns the number of committed bit columns the distribution
// requires.
func (d BitDistribution) NumVarying() int { return int(d.vary.Count()) }

// VaryingPositions returns the varying bit positions in ascending order.
func (d BitDistribution) VaryingPositions() []int {
	out := make([]int, 0, d.vary.Count())
	for p, ok := d.vary.NextSet(0); ok; p, ok = d.vary.NextSet(p + 1) {
		out = append(out, int(p))
	}
	return out
}

// VaryAt reports whether bit position p varies across rows.
func (d BitDistribution) VaryAt(p int) bool { return d.vary.Test(uint(p)) }

// ConstOneAt reports whether bit position p is constant one.
func (d BitDistribution) ConstOneAt(p int) bool { return d.constOnes.Test(uint(p)) }

// LeadBitConstOne reports whether the sign-carrying lead bit is constant one,
// which means every row's signed value is non-negative.
func (d BitDistribution) LeadBitConstOne() bool {
	return !d.vary.Test(uint(d.width - 1)) && d.constOnes.Test(uint(d.width - 1))
}

// ConstantOffset returns 2^(width-1) - sum of 2^p over constant-one
// positions, the value subtracted (times the length indicator) when
// reconstructing the signed column from its committed bits.
func (d BitDistribution) ConstantOffset() fr.Element {
	v := new(big.Int).Lsh(big.NewInt(1), uint(d.width-1))
	for p, ok := d.constOnes.NextSet(0); ok; p, ok = d.constOnes.NextSet(p + 1) {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), p))
	}
	return scalar.FromBigInt(v)
}

// Validate checks that the distribution is structurally sound: width within
// the field's safe signed range, disjoint masks, and no position at or above
// the width. Untrusted distributions must pass before use.
func (d BitDistribution) Validate() error {
	if d.width < 1 || d.width > scalar.MaxSignedBits {
		return fmt.Errorf("bit width %d out of range [1, %d]", d.width, scalar.MaxSignedBits)
	}
	for p, ok := d.vary.NextSet(0); ok; p, ok = d.vary.NextSet(p + 1) {
		if int(p) >= d.width {
			return fmt.Errorf("varying bit position %d at or above width %d", p, d.width)
		}
		if d.constOnes.Test(p) {
			return fmt.Errorf("bit position %d both varying and constant one", p)
		}
	}
	for p, ok := d.constOnes.NextSet(0); ok; p, ok = d.constOnes.NextSet(p + 1) {
		if int(p) >= d.width {
			return fmt.Errorf("constant-one bit position %d at or above width %d", p, d.width)
		}
	}
	return nil
}

// AppendToTranscript absorbs the distribution's full content.
func (d BitDistribution) AppendToTranscript(tr *transcript.Transcript) {
	tr.AppendUint64s("bit distribution width", uint64(d.width))
	vb, err := d.vary.MarshalBinary()
	if err != nil {
		panic(err)
	}
	cb, err := d.constOnes.MarshalBinary()
	if err != nil {
		panic(err)
	}
	tr.AppendBytes("bit distribution varying", vb)
	tr.AppendBytes("bit distribution constant", cb)
}
