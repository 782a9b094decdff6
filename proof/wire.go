package proof

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"

	"github.com/spaceandtimefdn/proof-of-sql-go/pedersen"
)

// wireVersion is bumped on any incompatible envelope change. Decoding
// rejects unknown versions rather than guessing.
const wireVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1 << 24}.DecMode()
	if err != nil {
		panic(err)
	}
}

type wireBitDistribution struct {
	Width     int    `cbor:"1,keyasint"`
	Vary      []byte `cbor:"2,keyasint"`
	ConstOnes []byte `cbor:"3,keyasint"`
}

type wireProof struct {
	Version                  int                   `cbor:"1,keyasint"`
	RangeLength              int                   `cbor:"2,keyasint"`
	PostResultChallengeCount int                   `cbor:"3,keyasint"`
	SumcheckMaxDegree        int                   `cbor:"4,keyasint"`
	ChiEvaluationLengths     []int                 `cbor:"5,keyasint"`
	RhoEvaluationLengths     []int                 `cbor:"6,keyasint"`
	FirstRoundCommitments    [][]byte              `cbor:"7,keyasint"`
	FinalRoundCommitments    [][]byte              `cbor:"8,keyasint"`
	BitDistributions         []wireBitDistribution `cbor:"9,keyasint"`
	RoundPolys               [][]byte              `cbor:"10,keyasint"`
	ColumnEvaluations        []byte                `cbor:"11,keyasint"`
	FirstRoundMLEEvaluations []byte                `cbor:"12,keyasint"`
	FinalRoundMLEEvaluations []byte                `cbor:"13,keyasint"`
	EvaluationL              [][]byte              `cbor:"14,keyasint"`
	EvaluationR              [][]byte              `cbor:"15,keyasint"`
	EvaluationA              []byte                `cbor:"16,keyasint"`
}

// EncodeProof serializes a proof into the versioned CBOR envelope.
func EncodeProof(pf *QueryProof) ([]byte, error) {
	w := wireProof{
		Version:                  wireVersion,
		RangeLength:              pf.RangeLength,
		PostResultChallengeCount: pf.PostResultChallengeCount,
		SumcheckMaxDegree:        pf.SumcheckMaxDegree,
		ChiEvaluationLengths:     pf.ChiEvaluationLengths,
		RhoEvaluationLengths:     pf.RhoEvaluationLengths,
		FirstRoundCommitments:    encodeCommitments(pf.FirstRoundCommitments),
		FinalRoundCommitments:    encodeCommitments(pf.FinalRoundCommitments),
		ColumnEvaluations:        encodeScalars(pf.ColumnEvaluations),
		FirstRoundMLEEvaluations: encodeScalars(pf.FirstRoundMLEEvaluations),
		FinalRoundMLEEvaluations: encodeScalars(pf.FinalRoundMLEEvaluations),
		EvaluationA:              encodeScalars([]fr.Element{pf.Evaluation.A}),
	}
	for _, d := range pf.BitDistributions {
		vb, err := d.vary.MarshalBinary()
		if err != nil {
			return nil, err
		}
		cb, err := d.constOnes.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.BitDistributions = append(w.BitDistributions, wireBitDistribution{Width: d.width, Vary: vb, ConstOnes: cb})
	}
	for _, coeffs := range pf.Sumcheck.RoundPolys {
		w.RoundPolys = append(w.RoundPolys, encodeScalars(coeffs))
	}
	for i := range pf.Evaluation.L {
		lb := pf.Evaluation.L[i].Bytes()
		rb := pf.Evaluation.R[i].Bytes()
		w.EvaluationL = append(w.EvaluationL, lb[:])
		w.EvaluationR = append(w.EvaluationR, rb[:])
	}
	return encMode.Marshal(w)
}

// DecodeProof deserializes a proof envelope, rejecting unknown versions and
// any non-canonical field or curve encoding.
func DecodeProof(data []byte) (*QueryProof, error) {
	var w wireProof
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("proof: decode envelope: %w", err)
	}
	if w.Version != wireVersion {
		return nil, fmt.Errorf("proof: unsupported envelope version %d", w.Version)
	}

	pf := &QueryProof{
		RangeLength:              w.RangeLength,
		PostResultChallengeCount: w.PostResultChallengeCount,
		SumcheckMaxDegree:        w.SumcheckMaxDegree,
		ChiEvaluationLengths:     w.ChiEvaluationLengths,
		RhoEvaluationLengths:     w.RhoEvaluationLengths,
	}
	var err error
	if pf.FirstRoundCommitments, err = decodeCommitments(w.FirstRoundCommitments); err != nil {
		return nil, err
	}
	if pf.FinalRoundCommitments, err = decodeCommitments(w.FinalRoundCommitments); err != nil {
		return nil, err
	}
	for _, d := range w.BitDistributions {
		vary := bitset.New(0)
		if err := vary.UnmarshalBinary(d.Vary); err != nil {
			return nil, fmt.Errorf("proof: decode bit distribution: %w", err)
		}
		constOnes := bitset.New(0)
		if err := constOnes.UnmarshalBinary(d.ConstOnes); err != nil {
			return nil, fmt.Errorf("proof: decode bit distribution: %w", err)
		}
		pf.BitDistributions = append(pf.BitDistributions, NewBitDistribution(d.Width, vary, constOnes))
	}
	pf.Sumcheck.RoundPolys = make([][]fr.Element, 0, len(w.RoundPolys))
	for _, rp := range w.RoundPolys {
		coeffs, err := decodeScalars(rp)
		if err != nil {
			return nil, err
		}
		pf.Sumcheck.RoundPolys = append(pf.Sumcheck.RoundPolys, coeffs)
	}
	if pf.ColumnEvaluations, err = decodeScalars(w.ColumnEvaluations); err != nil {
		return nil, err
	}
	if pf.FirstRoundMLEEvaluations, err = decodeScalars(w.FirstRoundMLEEvaluations); err != nil {
		return nil, err
	}
	if pf.FinalRoundMLEEvaluations, err = decodeScalars(w.FinalRoundMLEEvaluations); err != nil {
		return nil, err
	}
	if len(w.EvaluationL) != len(w.EvaluationR) {
		return nil, fmt.Errorf("proof: evaluation proof sides differ in length")
	}
	for i := range w.EvaluationL {
		var l, r bn254.G1Affine
		if _, err := l.SetBytes(w.EvaluationL[i]); err != nil {
			return nil, fmt.Errorf("proof: decode evaluation point: %w", err)
		}
		if _, err := r.SetBytes(w.EvaluationR[i]); err != nil {
			return nil, fmt.Errorf("proof: decode evaluation point: %w", err)
		}
		pf.Evaluation.L = append(pf.Evaluation.L, l)
		pf.Evaluation.R = append(pf.Evaluation.R, r)
	}
	a, err := decodeScalars(w.EvaluationA)
	if err != nil {
		return nil, err
	}
	if len(a) != 1 {
		return nil, fmt.Errorf("proof: malformed folded scalar")
	}
	pf.Evaluation.A = a[0]
	return pf, nil
}

func encodeScalars(xs []fr.Element) []byte {
	out := make([]byte, 0, len(xs)*fr.Bytes)
	for i := range xs {
		b := xs[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}

func decodeScalars(data []byte) ([]fr.Element, error) {
	if len(data)%fr.Bytes != 0 {
		return nil, fmt.Errorf("proof: scalar block length %d not a multiple of %d", len(data), fr.Bytes)
	}
	out := make([]fr.Element, len(data)/fr.Bytes)
	for i := range out {
		if err := out[i].SetBytesCanonical(data[i*fr.Bytes : (i+1)*fr.Bytes]); err != nil {
			return nil, fmt.Errorf("proof: non-canonical scalar: %w", err)
		}
	}
	return out, nil
}

func encodeCommitments(coms []pedersen.Commitment) [][]byte {
	out := make([][]byte, len(coms))
	for i := range coms {
		out[i] = coms[i].Bytes()
	}
	return out
}

func decodeCommitments(blobs [][]byte) ([]pedersen.Commitment, error) {
	out := make([]pedersen.Commitment, len(blobs))
	for i := range blobs {
		if err := out[i].SetBytes(blobs[i]); err != nil {
			return nil, fmt.Errorf("proof: decode commitment: %w", err)
		}
	}
	return out, nil
}
