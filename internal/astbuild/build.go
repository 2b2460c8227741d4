package astbuild

import (
	"fmt"

	"github.com/polygen-dev/polygen/internal/poly"
)

// iterSlot records what a schedule dimension turned into: either a loop
// iterator or a fixed constant used to sequence statements.
type iterSlot struct {
	name  string
	fixed bool
	val   int64
}

// Build is the state of the AST construction at one position: the
// partial schedule covering the dimensions generated so far (including
// the one currently being generated) and the iterators or constants
// those dimensions map to. A Build is handed to every hook and is only
// valid during that invocation.
type Build struct {
	schedule *poly.UnionMap
	space    *poly.Space
	slots    []iterSlot
}

// Schedule returns the partial schedule at this position, mapping each
// statement's iteration domain to the time dimensions generated so far.
func (b *Build) Schedule() *poly.UnionMap {
	return b.schedule
}

// ScheduleSpace returns the (anonymous) space of the partial schedule's
// time dimensions.
func (b *Build) ScheduleSpace() *poly.Space {
	return b.space
}

// Depth returns the number of schedule dimensions generated so far.
func (b *Build) Depth() int {
	return len(b.slots)
}

// ExprFromPwAff materializes a piecewise affine expression over the time
// dimensions as an expression over the generated loop iterators.
func (b *Build) ExprFromPwAff(pa *poly.PwAff) (Expr, error) {
	aff, err := pa.SinglePiece()
	if err != nil {
		return nil, err
	}
	return b.exprFromAff(aff)
}

// exprFromAff renders (coef . dims + const) / den, folding constants
// from fixed schedule dimensions.
func (b *Build) exprFromAff(a *poly.Aff) (Expr, error) {
	nParam := len(a.Space.Params)
	if len(a.Coef) != nParam+len(b.slots) {
		return nil, fmt.Errorf("affine expression over %d dimensions at depth %d", len(a.Coef)-nParam, len(b.slots))
	}
	e := newAffBuilder()
	for i := 0; i < nParam; i++ {
		e.addTerm(a.Coef[i], &Ident{Name: a.Space.Params[i]})
	}
	for i, slot := range b.slots {
		c := a.Coef[nParam+i]
		if c == 0 {
			continue
		}
		if slot.fixed {
			e.addConst(c * slot.val)
		} else {
			e.addTerm(c, &Ident{Name: slot.name})
		}
	}
	e.addConst(a.Const)
	return e.result(a.Den), nil
}

// affBuilder accumulates an affine sum as an expression tree, keeping
// pure constants folded.
type affBuilder struct {
	expr Expr
	cst  int64
}

func newAffBuilder() *affBuilder {
	return &affBuilder{}
}

func (e *affBuilder) addConst(v int64) {
	e.cst += v
}

func (e *affBuilder) addTerm(coef int64, x Expr) {
	if coef == 0 {
		return
	}
	neg := coef < 0
	if neg {
		coef = -coef
	}
	if coef != 1 {
		x = &BinaryExpr{Op: OpMul, Left: &IntConst{Value: coef}, Right: x}
	}
	switch {
	case e.expr == nil && neg:
		e.expr = &NegExpr{X: x}
	case e.expr == nil:
		e.expr = x
	case neg:
		e.expr = &BinaryExpr{Op: OpSub, Left: e.expr, Right: x}
	default:
		e.expr = &BinaryExpr{Op: OpAdd, Left: e.expr, Right: x}
	}
}

// result finalizes the sum, dividing by den with a floor when needed.
func (e *affBuilder) result(den int64) Expr {
	num := e.expr
	switch {
	case num == nil:
		if den > 1 {
			return &IntConst{Value: floorDivInt(e.cst, den)}
		}
		return &IntConst{Value: e.cst}
	case e.cst > 0:
		num = &BinaryExpr{Op: OpAdd, Left: num, Right: &IntConst{Value: e.cst}}
	case e.cst < 0:
		num = &BinaryExpr{Op: OpSub, Left: num, Right: &IntConst{Value: -e.cst}}
	}
	if den > 1 {
		return &BinaryExpr{Op: OpFDiv, Left: num, Right: &IntConst{Value: den}}
	}
	return num
}

func floorDivInt(a, b int64) int64 {
	if a >= 0 {
		return a / b
	}
	return -((-a + b - 1) / b)
}
