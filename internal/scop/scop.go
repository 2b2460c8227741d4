// Package scop models the polyhedral description of a source region:
// statement iteration domains, the schedule, dependence relations,
// array declarations, and statement body templates whose array and
// scalar operands carry access relations.
package scop

import (
	"github.com/polygen-dev/polygen/internal/poly"
)

// Scop is the polyhedral model of one delimited source region.
type Scop struct {
	// Context constrains the symbolic parameters.
	Context *poly.Set

	// Domain is the union of the statement iteration domains.
	Domain *poly.UnionSet

	// Schedule maps every statement instance to a common time space.
	Schedule *poly.UnionMap

	// DepFlow holds the flow (read-after-write) dependences and
	// DepFalse the false (anti and output) dependences, both between
	// statement instances.
	DepFlow  *poly.UnionMap
	DepFalse *poly.UnionMap

	Stmts  []*Stmt
	Arrays []*Array
}

// Stmt pairs a statement's iteration domain with its body template.
// The domain's tuple name identifies the statement.
type Stmt struct {
	Domain *poly.Set
	Body   Expr
}

// Name returns the statement's identifying tuple name.
func (s *Stmt) Name() string {
	return s.Domain.Space.OutName
}

// Stmt returns the statement whose domain tuple carries the given
// name, or nil.
func (s *Scop) Stmt(name string) *Stmt {
	for _, st := range s.Stmts {
		if st.Name() == name {
			return st
		}
	}
	return nil
}

// Array describes one array (or scalar) referenced inside the region.
type Array struct {
	Name     string
	ElemType string
	// Extent holds one size expression per dimension; empty for
	// scalars.
	Extent []string
	// Declared marks arrays declared inside the region; Exposed marks
	// declared arrays whose values are live after the region.
	Declared bool
	Exposed  bool
}

// Expr is a node of a statement body template.
type Expr interface {
	bodyNode()
}

// AccessExpr is an array or scalar operand. Access relates the
// statement's iteration domain to the accessed index space; an access
// with an unnamed output tuple is a value expression rather than a
// memory reference. Write marks store operands.
type AccessExpr struct {
	Access *poly.Map
	Write  bool
}

func (*AccessExpr) bodyNode() {}

// OpExpr applies an operator to its arguments in order.
type OpExpr struct {
	Op   string
	Args []Expr
}

func (*OpExpr) bodyNode() {}

// CallExpr is a function call operand.
type CallExpr struct {
	Name string
	Args []Expr
}

func (*CallExpr) bodyNode() {}

// IntExpr is an integer literal operand.
type IntExpr struct {
	Value int64
}

func (*IntExpr) bodyNode() {}

// Accesses returns the body's access expressions in depth-first
// order. The order is stable and shared with everything that walks
// the template.
func (s *Stmt) Accesses() []*AccessExpr {
	var out []*AccessExpr
	collectAccesses(s.Body, &out)
	return out
}

func collectAccesses(e Expr, out *[]*AccessExpr) {
	switch e := e.(type) {
	case *AccessExpr:
		*out = append(*out, e)
	case *OpExpr:
		for _, a := range e.Args {
			collectAccesses(a, out)
		}
	case *CallExpr:
		for _, a := range e.Args {
			collectAccesses(a, out)
		}
	}
}
