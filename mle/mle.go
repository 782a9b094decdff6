// Package mle implements multilinear extensions over the boolean hypercube.
//
// An MLE is a finite sequence of field elements, one per row, zero-extended
// to the hypercube size. Evaluation points list one challenge per variable,
// with index 0 binding the least significant index bit.
package mle

import (
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// NumVars returns the number of variables needed to address n rows.
func NumVars(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// EvaluateAt evaluates the MLE of vals, zero-extended to 2^len(point) rows,
// at the given point.
func EvaluateAt(vals []fr.Element, point []fr.Element) fr.Element {
	size := 1 << len(point)
	if len(vals) > size {
		panic("mle: too many rows for evaluation point")
	}
	buf := make([]fr.Element, size)
	copy(buf, vals)

	var lo, hi fr.Element
	for _, r := range point {
		half := len(buf) >> 1
		for i := 0; i < half; i++ {
			lo = buf[2*i]
			hi.Sub(&buf[2*i+1], &lo)
			hi.Mul(&hi, &r)
			buf[i].Add(&lo, &hi)
		}
		buf = buf[:half]
	}
	return buf[0]
}

// ChiEvals returns the full tensor of Lagrange basis evaluations at point:
// out[i] = prod_k (point[k] if bit k of i else 1-point[k]).
// The inner product of an MLE's rows with this tensor equals EvaluateAt.
func ChiEvals(point []fr.Element) []fr.Element {
	out := make([]fr.Element, 1<<len(point))
	out[0].SetOne()
	for k, r := range point {
		stride := 1 << k
		var t fr.Element
		for i := 0; i < stride; i++ {
			t.Mul(&out[i], &r)
			out[i+stride] = t
			out[i].Sub(&out[i], &t)
		}
	}
	return out
}

// EqEval returns eq(a, b) = prod_k (a_k*b_k + (1-a_k)*(1-b_k)).
func EqEval(a, b []fr.Element) fr.Element {
	if len(a) != len(b) {
		panic("mle: eq evaluation point length mismatch")
	}
	acc := fr.One()
	var u, v, t fr.Element
	one := fr.One()
	for k := range a {
		u.Mul(&a[k], &b[k])
		v.Sub(&one, &a[k])
		t.Sub(&one, &b[k])
		v.Mul(&v, &t)
		u.Add(&u, &v)
		acc.Mul(&acc, &u)
	}
	return acc
}

// TruncatedChiEval evaluates the indicator MLE of the first n rows at point:
// sum_{i<n} eq(i, point). It records a row count algebraically.
func TruncatedChiEval(n int, point []fr.Element) fr.Element {
	if n < 0 || n > 1<<len(point) {
		panic("mle: chi length out of range")
	}
	return truncChi(n, point)
}

func truncChi(n int, point []fr.Element) fr.Element {
	var zero fr.Element
	if n == 0 {
		return zero
	}
	if n == 1<<len(point) {
		return fr.One()
	}
	k := len(point)
	half := 1 << (k - 1)
	r := point[k-1]
	var out, t fr.Element
	one := fr.One()
	if n <= half {
		out.Sub(&one, &r)
		t = truncChi(n, point[:k-1])
		out.Mul(&out, &t)
		return out
	}
	out.Sub(&one, &r)
	t = truncChi(n-half, point[:k-1])
	t.Mul(&t, &r)
	out.Add(&out, &t)
	return out
}

// RhoFullEval returns sum_{i<2^len(point)} i * eq(i, point) = sum_k 2^k * point[k].
func RhoFullEval(point []fr.Element) fr.Element {
	var acc, t fr.Element
	for k := range point {
		var p fr.Element
		p.SetUint64(1 << uint(k))
		t.Mul(&p, &point[k])
		acc.Add(&acc, &t)
	}
	return acc
}

// TruncatedRhoEval evaluates the row-index MLE of the first n rows at point:
// sum_{i<n} i * eq(i, point).
func TruncatedRhoEval(n int, point []fr.Element) fr.Element {
	if n < 0 || n > 1<<len(point) {
		panic("mle: rho length out of range")
	}
	return truncRho(n, point)
}

func truncRho(n int, point []fr.Element) fr.Element {
	var zero fr.Element
	if n == 0 {
		return zero
	}
	k := len(point)
	if k == 0 {
		// single row with index zero
		return zero
	}
	half := 1 << (k - 1)
	r := point[k-1]
	one := fr.One()
	var out, t, u fr.Element
	if n <= half {
		out.Sub(&one, &r)
		t = truncRho(n, point[:k-1])
		out.Mul(&out, &t)
		return out
	}
	// lower half is complete; upper half holds indexes offset by 2^(k-1)
	out.Sub(&one, &r)
	t = RhoFullEval(point[:k-1])
	out.Mul(&out, &t)

	var offset fr.Element
	offset.SetUint64(uint64(half))
	t = truncChi(n-half, point[:k-1])
	t.Mul(&t, &offset)
	u = truncRho(n-half, point[:k-1])
	t.Add(&t, &u)
	t.Mul(&t, &r)
	out.Add(&out, &t)
	return out
}
