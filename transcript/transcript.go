// Package transcript implements the Fiat-Shamir hash chain shared by prover
// and verifier. Prover messages are absorbed with domain-separating labels
// and challenges are squeezed as field elements; both sides must perform the
// exact same sequence of appends and challenges, since every derived scalar
// is positional.
package transcript

import (
	"encoding/binary"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/blake2b"
)

// Transcript is a blake2b-based Fiat-Shamir hash chain.
type Transcript struct {
	state   [blake2b.Size]byte
	counter uint64
}

// New creates a transcript seeded with a protocol label.
func New(label string) *Transcript {
	t := &Transcript{}
	t.state = blake2b.Sum512([]byte(label))
	return t
}

func (t *Transcript) absorb(tag byte, label string, chunks ...[]byte) {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(err)
	}
	h.Write(t.state[:])
	h.Write([]byte{tag})
	writeLenPrefixed(h, []byte(label))
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(chunks)))
	h.Write(lenBuf[:])
	for _, c := range chunks {
		writeLenPrefixed(h, c)
	}
	copy(t.state[:], h.Sum(nil))
}

func writeLenPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}

// AppendBytes absorbs a labeled prover message.
func (t *Transcript) AppendBytes(label string, data []byte) {
	t.absorb(0x01, label, data)
}

// AppendUint64s absorbs a labeled sequence of integers.
func (t *Transcript) AppendUint64s(label string, vs ...uint64) {
	chunks := make([][]byte, len(vs))
	for i, v := range vs {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		chunks[i] = b
	}
	t.absorb(0x02, label, chunks...)
}

// AppendScalars absorbs a labeled sequence of field elements.
func (t *Transcript) AppendScalars(label string, xs ...fr.Element) {
	chunks := make([][]byte, len(xs))
	for i := range xs {
		b := xs[i].Bytes()
		chunks[i] = b[:]
	}
	t.absorb(0x03, label, chunks...)
}

// ChallengeScalar derives one pseudorandom field element.
func (t *Transcript) ChallengeScalar(label string) fr.Element {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(err)
	}
	h.Write(t.state[:])
	h.Write([]byte{0x10})
	writeLenPrefixed(h, []byte(label))
	var ctrBuf [8]byte
	binary.BigEndian.PutUint64(ctrBuf[:], t.counter)
	h.Write(ctrBuf[:])
	t.counter++

	digest := h.Sum(nil)
	copy(t.state[:], digest)

	var e fr.Element
	e.SetBigInt(new(big.Int).Mod(new(big.Int).SetBytes(digest), fr.Modulus()))
	return e
}

// ChallengeScalars derives n pseudorandom field elements.
func (t *Transcript) ChallengeScalars(label string, n int) []fr.Element {
	out := make([]fr.Element, n)
	for i := range out {
		out[i] = t.ChallengeScalar(label)
	}
	return out
}
