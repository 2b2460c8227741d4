package codegen

import (
	"github.com/polygen-dev/polygen/internal/astbuild"
	"github.com/polygen-dev/polygen/internal/scop"
)

// printFor emits the OpenMP pragma on the line before a loop marked
// parallel and otherwise defers to the default rendering.
func printFor(p *astbuild.Printer, n *astbuild.ForNode, opts *astbuild.PrintOptions) {
	if info, ok := n.Annotation.(*loopInfo); ok && info.isParallel {
		p.StartLine()
		p.Print("#pragma omp parallel for")
		p.EndLine()
	}
	astbuild.PrintForDefault(p, n, opts)
}

// printUser replays a statement's body template, substituting each
// access operand with its rewritten indices in lockstep with the
// template's depth-first access order.
func printUser(p *astbuild.Printer, n *astbuild.UserNode, opts *astbuild.PrintOptions) {
	inst, ok := n.Annotation.(*stmtInstance)
	if !ok {
		astbuild.PrintUserDefault(p, n)
		return
	}
	p.StartLine()
	w := &bodyWriter{p: p, access: inst.access}
	w.write(inst.stmt.Body)
	p.Print(";")
	p.EndLine()
}

// bodyWriter renders a body template, consuming one rewritten access
// per AccessExpr encountered.
type bodyWriter struct {
	p      *astbuild.Printer
	access [][]astbuild.Expr
	next   int
}

func (w *bodyWriter) write(e scop.Expr) {
	switch e := e.(type) {
	case *scop.AccessExpr:
		w.writeAccess(e)
	case *scop.OpExpr:
		w.writeOp(e)
	case *scop.CallExpr:
		w.p.Print(e.Name)
		w.p.Print("(")
		for i, a := range e.Args {
			if i > 0 {
				w.p.Print(", ")
			}
			w.write(a)
		}
		w.p.Print(")")
	case *scop.IntExpr:
		w.p.Printf("%d", e.Value)
	}
}

// writeAccess prints one access operand. Value expressions (accesses
// with an unnamed target tuple) print parenthesized; named accesses
// print the array name followed by one bracketed index per dimension,
// which for scalars is just the name.
func (w *bodyWriter) writeAccess(e *scop.AccessExpr) {
	exprs := w.access[w.next]
	w.next++
	if e.Access.Space.OutName == "" {
		w.p.Print("(")
		w.p.Print(astbuild.ExprString(exprs[0]))
		w.p.Print(")")
		return
	}
	w.p.Print(e.Access.Space.OutName)
	for _, idx := range exprs {
		w.p.Print("[")
		w.p.Print(astbuild.ExprString(idx))
		w.p.Print("]")
	}
}

func (w *bodyWriter) writeOp(e *scop.OpExpr) {
	switch e.Op {
	case "()":
		w.p.Print("(")
		w.write(e.Args[0])
		w.p.Print(")")
	case "neg":
		w.p.Print("-")
		w.write(e.Args[0])
	default:
		w.write(e.Args[0])
		w.p.Print(" " + e.Op + " ")
		w.write(e.Args[1])
	}
}
