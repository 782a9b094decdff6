package plan

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/spaceandtimefdn/proof-of-sql-go/column"
	"github.com/spaceandtimefdn/proof-of-sql-go/gadgets"
	"github.com/spaceandtimefdn/proof-of-sql-go/proof"
	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/sumcheck"
)

// Expr is a provable expression over the columns of one input table. The
// set of expression forms is closed; each is validated against the input
// schema when its enclosing plan node is constructed.
type Expr interface {
	isExpr()
}

// ColumnExpr reads a named column of the input table.
type ColumnExpr struct {
	Name string
}

// LiteralExpr is a typed constant.
type LiteralExpr struct {
	typ  column.Type
	i64  int64
	b    bool
	s    string
	unit column.TimeUnit
}

// NewBigIntLiteral returns a 64-bit integer literal.
func NewBigIntLiteral(v int64) LiteralExpr {
	return LiteralExpr{typ: column.TypeBigInt, i64: v}
}

// NewSmallIntLiteral returns a 16-bit integer literal.
func NewSmallIntLiteral(v int16) LiteralExpr {
	return LiteralExpr{typ: column.TypeSmallInt, i64: int64(v)}
}

// NewIntLiteral returns a 32-bit integer literal.
func NewIntLiteral(v int32) LiteralExpr {
	return LiteralExpr{typ: column.TypeInt, i64: int64(v)}
}

// NewTimestampLiteral returns a timestamp literal in the given unit.
func NewTimestampLiteral(unit column.TimeUnit, v int64) LiteralExpr {
	return LiteralExpr{typ: column.TypeTimestamp, i64: v, unit: unit}
}

// NewBooleanLiteral returns a boolean literal.
func NewBooleanLiteral(v bool) LiteralExpr {
	return LiteralExpr{typ: column.TypeBoolean, b: v}
}

// NewVarCharLiteral returns a string literal.
func NewVarCharLiteral(v string) LiteralExpr {
	return LiteralExpr{typ: column.TypeVarChar, s: v}
}

// EqualsExpr compares two same-typed operands for equality.
type EqualsExpr struct {
	L, R Expr
}

// CompareOp selects the ordering relation of an InequalityExpr.
type CompareOp uint8

const (
	OpLt CompareOp = iota
	OpLe
	OpGt
	OpGe
)

// InequalityExpr orders two same-typed integer or timestamp operands.
type InequalityExpr struct {
	L, R Expr
	Op   CompareOp
}

// NotExpr negates a boolean operand.
type NotExpr struct {
	X Expr
}

// AndExpr is boolean conjunction.
type AndExpr struct {
	L, R Expr
}

// OrExpr is boolean disjunction.
type OrExpr struct {
	L, R Expr
}

// AddExpr adds two bigint operands. Overflowing the 64-bit range is a
// caller error and panics during evaluation.
type AddExpr struct {
	L, R Expr
}

// SubtractExpr subtracts two bigint operands.
type SubtractExpr struct {
	L, R Expr
}

// MultiplyExpr multiplies two bigint operands.
type MultiplyExpr struct {
	L, R Expr
}

// DivideExpr divides two bigint operands with truncation. Division by zero
// yields zero and MinInt64 / -1 wraps, matching the proved semantics.
type DivideExpr struct {
	L, R Expr
}

// ModuloExpr is the remainder of DivideExpr, carrying the dividend's sign.
type ModuloExpr struct {
	L, R Expr
}

func (ColumnExpr) isExpr()     {}
func (LiteralExpr) isExpr()    {}
func (EqualsExpr) isExpr()     {}
func (InequalityExpr) isExpr() {}
func (NotExpr) isExpr()        {}
func (AndExpr) isExpr()        {}
func (OrExpr) isExpr()         {}
func (AddExpr) isExpr()        {}
func (SubtractExpr) isExpr()   {}
func (MultiplyExpr) isExpr()   {}
func (DivideExpr) isExpr()     {}
func (ModuloExpr) isExpr()     {}

// validateExpr type-checks an expression against a schema lookup and
// returns its output type.
func validateExpr(e Expr, lookup func(string) (column.Type, bool)) (column.Type, error) {
	switch x := e.(type) {
	case ColumnExpr:
		t, ok := lookup(x.Name)
		if !ok {
			return 0, newError("unknown column %q", x.Name)
		}
		return t, nil
	case LiteralExpr:
		return x.typ, nil
	case EqualsExpr:
		lt, rt, err := validatePair(x.L, x.R, lookup)
		if err != nil {
			return 0, err
		}
		if lt != rt {
			return 0, newError("cannot compare %v with %v", lt, rt)
		}
		return column.TypeBoolean, nil
	case InequalityExpr:
		lt, rt, err := validatePair(x.L, x.R, lookup)
		if err != nil {
			return 0, err
		}
		if lt != rt {
			return 0, newError("cannot order %v against %v", lt, rt)
		}
		if !lt.IsInteger() && lt != column.TypeTimestamp {
			return 0, newError("ordering comparison unsupported for %v", lt)
		}
		return column.TypeBoolean, nil
	case NotExpr:
		t, err := validateExpr(x.X, lookup)
		if err != nil {
			return 0, err
		}
		if t != column.TypeBoolean {
			return 0, newError("NOT requires a boolean operand, got %v", t)
		}
		return column.TypeBoolean, nil
	case AndExpr:
		return validateBoolPair(x.L, x.R, lookup)
	case OrExpr:
		return validateBoolPair(x.L, x.R, lookup)
	case AddExpr:
		return validateBigIntPair(x.L, x.R, lookup)
	case SubtractExpr:
		return validateBigIntPair(x.L, x.R, lookup)
	case MultiplyExpr:
		return validateBigIntPair(x.L, x.R, lookup)
	case DivideExpr:
		return validateBigIntPair(x.L, x.R, lookup)
	case ModuloExpr:
		return validateBigIntPair(x.L, x.R, lookup)
	}
	return 0, newError("unsupported expression %T", e)
}

func validatePair(l, r Expr, lookup func(string) (column.Type, bool)) (column.Type, column.Type, error) {
	lt, err := validateExpr(l, lookup)
	if err != nil {
		return 0, 0, err
	}
	rt, err := validateExpr(r, lookup)
	if err != nil {
		return 0, 0, err
	}
	return lt, rt, nil
}

func validateBoolPair(l, r Expr, lookup func(string) (column.Type, bool)) (column.Type, error) {
	lt, rt, err := validatePair(l, r, lookup)
	if err != nil {
		return 0, err
	}
	if lt != column.TypeBoolean || rt != column.TypeBoolean {
		return 0, newError("logical operator requires boolean operands, got %v and %v", lt, rt)
	}
	return column.TypeBoolean, nil
}

func validateBigIntPair(l, r Expr, lookup func(string) (column.Type, bool)) (column.Type, error) {
	lt, rt, err := validatePair(l, r, lookup)
	if err != nil {
		return 0, err
	}
	if lt != column.TypeBigInt || rt != column.TypeBigInt {
		return 0, newError("arithmetic requires bigint operands, got %v and %v", lt, rt)
	}
	return column.TypeBigInt, nil
}

func checkedI64(v *big.Int) int64 {
	if !v.IsInt64() {
		panic("plan: arithmetic overflows the 64-bit range")
	}
	return v.Int64()
}

// materializeExpr evaluates an expression to a typed column over the input
// table. It is the plain evaluator shared by both prover passes.
func materializeExpr(e Expr, t *column.OwnedTable) column.OwnedColumn {
	n := t.NumRows()
	switch x := e.(type) {
	case ColumnExpr:
		col, ok := t.Column(x.Name)
		if !ok {
			panic("plan: unknown column after validation")
		}
		return col
	case LiteralExpr:
		switch x.typ {
		case column.TypeBoolean:
			vals := make([]bool, n)
			for i := range vals {
				vals[i] = x.b
			}
			return column.Own(column.NewBoolean(vals))
		case column.TypeSmallInt:
			vals := make([]int16, n)
			for i := range vals {
				vals[i] = int16(x.i64)
			}
			return column.Own(column.NewSmallInt(vals))
		case column.TypeInt:
			vals := make([]int32, n)
			for i := range vals {
				vals[i] = int32(x.i64)
			}
			return column.Own(column.NewInt(vals))
		case column.TypeBigInt:
			vals := make([]int64, n)
			for i := range vals {
				vals[i] = x.i64
			}
			return column.Own(column.NewBigInt(vals))
		case column.TypeTimestamp:
			vals := make([]int64, n)
			for i := range vals {
				vals[i] = x.i64
			}
			return column.Own(column.NewTimestamp(x.unit, vals))
		case column.TypeVarChar:
			vals := make([]string, n)
			for i := range vals {
				vals[i] = x.s
			}
			return column.Own(column.NewVarChar(vals))
		}
		panic("plan: unsupported literal type")
	case EqualsExpr:
		ls := materializeExpr(x.L, t).View().Scalars()
		rs := materializeExpr(x.R, t).View().Scalars()
		vals := make([]bool, n)
		for i := range vals {
			vals[i] = ls[i].Equal(&rs[i])
		}
		return column.Own(column.NewBoolean(vals))
	case InequalityExpr:
		lv := signedVals(materializeExpr(x.L, t))
		rv := signedVals(materializeExpr(x.R, t))
		vals := make([]bool, n)
		for i := range vals {
			switch x.Op {
			case OpLt:
				vals[i] = lv[i] < rv[i]
			case OpLe:
				vals[i] = lv[i] <= rv[i]
			case OpGt:
				vals[i] = lv[i] > rv[i]
			case OpGe:
				vals[i] = lv[i] >= rv[i]
			}
		}
		return column.Own(column.NewBoolean(vals))
	case NotExpr:
		xs := materializeExpr(x.X, t).View().Bools()
		vals := make([]bool, n)
		for i := range vals {
			vals[i] = !xs[i]
		}
		return column.Own(column.NewBoolean(vals))
	case AndExpr:
		ls := materializeExpr(x.L, t).View().Bools()
		rs := materializeExpr(x.R, t).View().Bools()
		vals := make([]bool, n)
		for i := range vals {
			vals[i] = ls[i] && rs[i]
		}
		return column.Own(column.NewBoolean(vals))
	case OrExpr:
		ls := materializeExpr(x.L, t).View().Bools()
		rs := materializeExpr(x.R, t).View().Bools()
		vals := make([]bool, n)
		for i := range vals {
			vals[i] = ls[i] || rs[i]
		}
		return column.Own(column.NewBoolean(vals))
	case AddExpr:
		return bigIntOp(x.L, x.R, t, func(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) })
	case SubtractExpr:
		return bigIntOp(x.L, x.R, t, func(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) })
	case MultiplyExpr:
		return bigIntOp(x.L, x.R, t, func(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) })
	case DivideExpr:
		ls := materializeExpr(x.L, t).View().BigInts()
		rs := materializeExpr(x.R, t).View().BigInts()
		vals := make([]int64, n)
		for i := range vals {
			vals[i], _ = gadgets.DivModVals(ls[i], rs[i])
		}
		return column.Own(column.NewBigInt(vals))
	case ModuloExpr:
		ls := materializeExpr(x.L, t).View().BigInts()
		rs := materializeExpr(x.R, t).View().BigInts()
		vals := make([]int64, n)
		for i := range vals {
			_, vals[i] = gadgets.DivModVals(ls[i], rs[i])
		}
		return column.Own(column.NewBigInt(vals))
	}
	panic("plan: unsupported expression")
}

func bigIntOp(l, r Expr, t *column.OwnedTable, op func(a, b *big.Int) *big.Int) column.OwnedColumn {
	ls := materializeExpr(l, t).View().BigInts()
	rs := materializeExpr(r, t).View().BigInts()
	vals := make([]int64, len(ls))
	for i := range vals {
		vals[i] = checkedI64(op(big.NewInt(ls[i]), big.NewInt(rs[i])))
	}
	return column.Own(column.NewBigInt(vals))
}

func signedVals(c column.OwnedColumn) []int64 {
	v := c.View()
	out := make([]int64, v.Len())
	switch v.Type() {
	case column.TypeSmallInt:
		for i, x := range v.SmallInts() {
			out[i] = int64(x)
		}
	case column.TypeInt:
		for i, x := range v.Ints() {
			out[i] = int64(x)
		}
	case column.TypeBigInt, column.TypeTimestamp:
		copy(out, v.BigInts())
	default:
		panic("plan: type has no 64-bit signed value")
	}
	return out
}

// proveExpr records the expression's constraints in the final round and
// returns its output column values over the input table.
func proveExpr(e Expr, t *column.OwnedTable, rb *proof.FinalRoundBuilder) []fr.Element {
	n := t.NumRows()
	one := fr.One()
	var negOne fr.Element
	negOne.Neg(&one)
	switch x := e.(type) {
	case ColumnExpr, LiteralExpr:
		return materializeExpr(e, t).View().Scalars()
	case EqualsExpr:
		lv := proveExpr(x.L, t, rb)
		rv := proveExpr(x.R, t, rb)
		diff := subVals(lv, rv)
		eq := make([]fr.Element, n)
		dinv := make([]fr.Element, n)
		for i := range diff {
			if diff[i].IsZero() {
				eq[i] = one
			}
			dinv[i] = diff[i]
		}
		scalar.BatchInvertOrOne(dinv)
		rb.ProduceIntermediateMLE(eq)
		rb.ProduceIntermediateMLE(dinv)
		rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
			{Coeff: one, Multiplicands: [][]fr.Element{eq, diff}},
		}, 2)
		rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
			{Coeff: one, Multiplicands: [][]fr.Element{eq}},
			{Coeff: one, Multiplicands: [][]fr.Element{diff, dinv}},
			{Coeff: negOne, Multiplicands: [][]fr.Element{gadgets.OnesVals(n)}},
		}, 2)
		return eq
	case InequalityExpr:
		lv := proveExpr(x.L, t, rb)
		rv := proveExpr(x.R, t, rb)
		width := exprWidth(x.L, t) + 1
		var diff []fr.Element
		if x.Op == OpLt || x.Op == OpGe {
			diff = subVals(lv, rv)
		} else {
			diff = subVals(rv, lv)
		}
		s := gadgets.ProveSign(rb, diff, n, width)
		if x.Op == OpLt || x.Op == OpGt {
			return s
		}
		out := make([]fr.Element, n)
		for i := range out {
			out[i].Sub(&one, &s[i])
		}
		return out
	case NotExpr:
		xv := proveExpr(x.X, t, rb)
		out := make([]fr.Element, n)
		for i := range out {
			out[i].Sub(&one, &xv[i])
		}
		return out
	case AndExpr:
		lv := proveExpr(x.L, t, rb)
		rv := proveExpr(x.R, t, rb)
		res := make([]fr.Element, n)
		for i := range res {
			res[i].Mul(&lv[i], &rv[i])
		}
		rb.ProduceIntermediateMLE(res)
		rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
			{Coeff: one, Multiplicands: [][]fr.Element{res}},
			{Coeff: negOne, Multiplicands: [][]fr.Element{lv, rv}},
		}, 2)
		return res
	case OrExpr:
		lv := proveExpr(x.L, t, rb)
		rv := proveExpr(x.R, t, rb)
		res := make([]fr.Element, n)
		var p fr.Element
		for i := range res {
			res[i].Add(&lv[i], &rv[i])
			p.Mul(&lv[i], &rv[i])
			res[i].Sub(&res[i], &p)
		}
		rb.ProduceIntermediateMLE(res)
		rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
			{Coeff: one, Multiplicands: [][]fr.Element{res}},
			{Coeff: negOne, Multiplicands: [][]fr.Element{lv}},
			{Coeff: negOne, Multiplicands: [][]fr.Element{rv}},
			{Coeff: one, Multiplicands: [][]fr.Element{lv, rv}},
		}, 2)
		return res
	case AddExpr:
		return addVals(proveExpr(x.L, t, rb), proveExpr(x.R, t, rb))
	case SubtractExpr:
		return subVals(proveExpr(x.L, t, rb), proveExpr(x.R, t, rb))
	case MultiplyExpr:
		lv := proveExpr(x.L, t, rb)
		rv := proveExpr(x.R, t, rb)
		res := make([]fr.Element, n)
		for i := range res {
			res[i].Mul(&lv[i], &rv[i])
		}
		rb.ProduceIntermediateMLE(res)
		rb.ProduceSubpolynomial(proof.KindIdentity, []sumcheck.Term{
			{Coeff: one, Multiplicands: [][]fr.Element{res}},
			{Coeff: negOne, Multiplicands: [][]fr.Element{lv, rv}},
		}, 2)
		return res
	case DivideExpr:
		lv := proveExpr(x.L, t, rb)
		rv := proveExpr(x.R, t, rb)
		quot, _ := gadgets.DivModFinalRound(rb, lv, rv, n)
		return quot
	case ModuloExpr:
		lv := proveExpr(x.L, t, rb)
		rv := proveExpr(x.R, t, rb)
		_, rem := gadgets.DivModFinalRound(rb, lv, rv, n)
		return rem
	}
	panic("plan: unsupported expression")
}

// verifyExpr mirrors proveExpr against the input table's evaluation and
// returns the expression's output evaluation.
func verifyExpr(e Expr, te *proof.TableEvaluation, vb *proof.VerificationBuilder) (fr.Element, error) {
	n := te.Length()
	chiEval := te.ChiEval()
	var zero fr.Element
	switch x := e.(type) {
	case ColumnExpr:
		ev, _, ok := te.Evaluation(x.Name)
		if !ok {
			return zero, newError("unknown column %q", x.Name)
		}
		return ev, nil
	case LiteralExpr:
		var ev fr.Element
		v := literalScalar(x)
		ev.Mul(&v, &chiEval)
		return ev, nil
	case EqualsExpr:
		lv, err := verifyExpr(x.L, te, vb)
		if err != nil {
			return zero, err
		}
		rv, err := verifyExpr(x.R, te, vb)
		if err != nil {
			return zero, err
		}
		var diff fr.Element
		diff.Sub(&lv, &rv)
		eq, err := vb.ConsumeFinalRoundMLEEvaluation()
		if err != nil {
			return zero, err
		}
		dinv, err := vb.ConsumeFinalRoundMLEEvaluation()
		if err != nil {
			return zero, err
		}
		var eval, tmp fr.Element
		eval.Mul(&eq, &diff)
		if err := vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
			return zero, err
		}
		tmp.Mul(&diff, &dinv)
		eval.Add(&eq, &tmp)
		eval.Sub(&eval, &chiEval)
		if err := vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
			return zero, err
		}
		return eq, nil
	case InequalityExpr:
		lv, err := verifyExpr(x.L, te, vb)
		if err != nil {
			return zero, err
		}
		rv, err := verifyExpr(x.R, te, vb)
		if err != nil {
			return zero, err
		}
		width := exprWidthEval(x.L, te) + 1
		var diff fr.Element
		if x.Op == OpLt || x.Op == OpGe {
			diff.Sub(&lv, &rv)
		} else {
			diff.Sub(&rv, &lv)
		}
		s, err := gadgets.VerifySign(vb, diff, n, width)
		if err != nil {
			return zero, err
		}
		if x.Op == OpLt || x.Op == OpGt {
			return s, nil
		}
		var out fr.Element
		out.Sub(&chiEval, &s)
		return out, nil
	case NotExpr:
		xv, err := verifyExpr(x.X, te, vb)
		if err != nil {
			return zero, err
		}
		var out fr.Element
		out.Sub(&chiEval, &xv)
		return out, nil
	case AndExpr:
		return verifyProduct(x.L, x.R, te, vb, false)
	case OrExpr:
		return verifyProduct(x.L, x.R, te, vb, true)
	case AddExpr:
		lv, err := verifyExpr(x.L, te, vb)
		if err != nil {
			return zero, err
		}
		rv, err := verifyExpr(x.R, te, vb)
		if err != nil {
			return zero, err
		}
		var out fr.Element
		out.Add(&lv, &rv)
		return out, nil
	case SubtractExpr:
		lv, err := verifyExpr(x.L, te, vb)
		if err != nil {
			return zero, err
		}
		rv, err := verifyExpr(x.R, te, vb)
		if err != nil {
			return zero, err
		}
		var out fr.Element
		out.Sub(&lv, &rv)
		return out, nil
	case MultiplyExpr:
		return verifyProduct(x.L, x.R, te, vb, false)
	case DivideExpr:
		lv, err := verifyExpr(x.L, te, vb)
		if err != nil {
			return zero, err
		}
		rv, err := verifyExpr(x.R, te, vb)
		if err != nil {
			return zero, err
		}
		quot, _, err := gadgets.VerifyDivMod(vb, lv, rv, n)
		return quot, err
	case ModuloExpr:
		lv, err := verifyExpr(x.L, te, vb)
		if err != nil {
			return zero, err
		}
		rv, err := verifyExpr(x.R, te, vb)
		if err != nil {
			return zero, err
		}
		_, rem, err := gadgets.VerifyDivMod(vb, lv, rv, n)
		return rem, err
	}
	return zero, newError("unsupported expression %T", e)
}

// verifyProduct handles the committed product forms: AND is l*r, OR is
// l + r - l*r, and MULTIPLY is l*r without the boolean context.
func verifyProduct(l, r Expr, te *proof.TableEvaluation, vb *proof.VerificationBuilder, or bool) (fr.Element, error) {
	var zero fr.Element
	lv, err := verifyExpr(l, te, vb)
	if err != nil {
		return zero, err
	}
	rv, err := verifyExpr(r, te, vb)
	if err != nil {
		return zero, err
	}
	res, err := vb.ConsumeFinalRoundMLEEvaluation()
	if err != nil {
		return zero, err
	}
	var eval, prod fr.Element
	prod.Mul(&lv, &rv)
	if or {
		eval.Sub(&res, &lv)
		eval.Sub(&eval, &rv)
		eval.Add(&eval, &prod)
	} else {
		eval.Sub(&res, &prod)
	}
	if err := vb.ProduceSubpolynomialEvaluation(proof.KindIdentity, eval, 2); err != nil {
		return zero, err
	}
	return res, nil
}

func literalScalar(x LiteralExpr) fr.Element {
	switch x.typ {
	case column.TypeBoolean:
		if x.b {
			return fr.One()
		}
		return fr.Element{}
	case column.TypeVarChar:
		return scalar.EncodeString(x.s)
	default:
		return scalar.FromInt64(x.i64)
	}
}

// exprWidth returns the signed bit width of an ordering comparison's
// operand type, resolved from the prover-side table. Both operands share
// the type after validation.
func exprWidth(e Expr, t *column.OwnedTable) int {
	lookup := func(name string) (column.Type, bool) {
		c, ok := t.Column(name)
		if !ok {
			return 0, false
		}
		return c.Type(), true
	}
	typ, err := validateExpr(e, lookup)
	if err != nil {
		panic(err)
	}
	return typ.SignedBitWidth()
}

// exprWidthEval is exprWidth resolved from the verifier-side evaluation.
func exprWidthEval(e Expr, te *proof.TableEvaluation) int {
	lookup := func(name string) (column.Type, bool) {
		_, typ, ok := te.Evaluation(name)
		return typ, ok
	}
	typ, err := validateExpr(e, lookup)
	if err != nil {
		panic(err)
	}
	return typ.SignedBitWidth()
}

func addVals(a, b []fr.Element) []fr.Element {
	out := make([]fr.Element, len(a))
	for i := range out {
		out[i].Add(&a[i], &b[i])
	}
	return out
}

func subVals(a, b []fr.Element) []fr.Element {
	out := make([]fr.Element, len(a))
	for i := range out {
		out[i].Sub(&a[i], &b[i])
	}
	return out
}
