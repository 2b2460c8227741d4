package astbuild

import (
	"fmt"
	"strings"
)

// Printer renders generated AST nodes as C source. It tracks the
// current indentation level; callbacks installed through PrintOptions
// receive the same printer and can emit extra lines before delegating
// to the default rendering.
type Printer struct {
	buf    strings.Builder
	indent int
}

// NewPrinter returns a printer starting at the given indentation level.
func NewPrinter(indent int) *Printer {
	return &Printer{indent: indent}
}

// StartLine begins a new line at the current indentation.
func (p *Printer) StartLine() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("  ")
	}
}

// Print appends text to the current line.
func (p *Printer) Print(s string) {
	p.buf.WriteString(s)
}

// Printf appends formatted text to the current line.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(&p.buf, format, args...)
}

// EndLine terminates the current line.
func (p *Printer) EndLine() {
	p.buf.WriteByte('\n')
}

// Indent shifts subsequent lines one level to the right.
func (p *Printer) Indent() {
	p.indent++
}

// Unindent shifts subsequent lines one level back to the left.
func (p *Printer) Unindent() {
	p.indent--
}

// String returns everything printed so far.
func (p *Printer) String() string {
	return p.buf.String()
}

// PrintOptions overrides how individual node kinds are rendered.
// A nil callback selects the default rendering.
type PrintOptions struct {
	// PrintFor renders a loop node. Implementations typically print a
	// prefix and then call PrintForDefault.
	PrintFor func(p *Printer, n *ForNode, opts *PrintOptions)

	// PrintUser renders a statement instance node.
	PrintUser func(p *Printer, n *UserNode, opts *PrintOptions)
}

// PrintNode renders a node and its children.
func PrintNode(p *Printer, n Node, opts *PrintOptions) {
	if opts == nil {
		opts = &PrintOptions{}
	}
	switch n := n.(type) {
	case *ForNode:
		if opts.PrintFor != nil {
			opts.PrintFor(p, n, opts)
		} else {
			PrintForDefault(p, n, opts)
		}
	case *UserNode:
		if opts.PrintUser != nil {
			opts.PrintUser(p, n, opts)
		} else {
			PrintUserDefault(p, n)
		}
	case *BlockNode:
		for _, c := range n.Children {
			PrintNode(p, c, opts)
		}
	}
}

// PrintForDefault renders a loop node as a C for statement with a
// braced body. For unit-stride loops the condition uses a strict
// comparison when the inclusive bound is a value minus one; strided
// loops keep the inclusive form.
func PrintForDefault(p *Printer, n *ForNode, opts *PrintOptions) {
	step := n.Stride
	if step == 0 {
		step = 1
	}
	p.StartLine()
	p.Printf("for (int %s = ", n.Iterator)
	p.Print(ExprString(n.Init))
	p.Print("; ")
	if strict, ok := strictBound(n.Bound); ok && step == 1 {
		p.Printf("%s < %s", n.Iterator, ExprString(strict))
	} else {
		p.Printf("%s <= %s", n.Iterator, ExprString(n.Bound))
	}
	p.Printf("; %s += %d) {", n.Iterator, step)
	p.EndLine()
	p.Indent()
	PrintNode(p, n.Body, opts)
	p.Unindent()
	p.StartLine()
	p.Print("}")
	p.EndLine()
}

// PrintUserDefault renders a statement instance as a call.
func PrintUserDefault(p *Printer, n *UserNode) {
	p.StartLine()
	p.Print(n.Name)
	p.Print("(")
	for i, a := range n.Args {
		if i > 0 {
			p.Print(", ")
		}
		p.Print(ExprString(a))
	}
	p.Print(");")
	p.EndLine()
}

// strictBound rewrites an inclusive bound of the form e - 1 (or a
// constant) into the exclusive bound e.
func strictBound(b Expr) (Expr, bool) {
	switch b := b.(type) {
	case *IntConst:
		return &IntConst{Value: b.Value + 1}, true
	case *BinaryExpr:
		if b.Op == OpSub {
			if c, ok := b.Right.(*IntConst); ok && c.Value == 1 {
				return b.Left, true
			}
		}
	}
	return nil, false
}

// precedence levels for rendering, loosest binding first
const (
	precAdd = iota
	precMul
	precUnary
	precAtom
)

// ExprString renders an expression as C source. Min, max and floor
// division are rendered as macro invocations.
func ExprString(e Expr) string {
	var b strings.Builder
	writeExpr(&b, e, precAdd)
	return b.String()
}

func writeExpr(b *strings.Builder, e Expr, prec int) {
	switch e := e.(type) {
	case *Ident:
		b.WriteString(e.Name)
	case *IntConst:
		fmt.Fprintf(b, "%d", e.Value)
	case *NegExpr:
		if prec > precUnary {
			b.WriteByte('(')
			defer b.WriteByte(')')
		}
		b.WriteByte('-')
		writeExpr(b, e.X, precUnary)
	case *BinaryExpr:
		switch e.Op {
		case OpMin, OpMax, OpFDiv:
			b.WriteString(macroName(e.Op))
			b.WriteByte('(')
			writeExpr(b, e.Left, precAdd)
			b.WriteString(", ")
			writeExpr(b, e.Right, precAdd)
			b.WriteByte(')')
		case OpMul:
			if prec > precMul {
				b.WriteByte('(')
				defer b.WriteByte(')')
			}
			writeExpr(b, e.Left, precMul)
			b.WriteString(" * ")
			writeExpr(b, e.Right, precUnary)
		case OpAdd:
			if prec > precAdd {
				b.WriteByte('(')
				defer b.WriteByte(')')
			}
			writeExpr(b, e.Left, precAdd)
			b.WriteString(" + ")
			writeExpr(b, e.Right, precMul)
		case OpSub:
			if prec > precAdd {
				b.WriteByte('(')
				defer b.WriteByte(')')
			}
			writeExpr(b, e.Left, precAdd)
			b.WriteString(" - ")
			writeExpr(b, e.Right, precMul)
		}
	}
}

func macroName(op BinOp) string {
	switch op {
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	case OpFDiv:
		return "floord"
	}
	return ""
}

// macro definitions, emitted only when the corresponding operation
// appears in the generated code
var macroDefs = map[BinOp]string{
	OpMin:  "#define min(x,y)    ((x) < (y) ? (x) : (y))",
	OpMax:  "#define max(x,y)    ((x) > (y) ? (x) : (y))",
	OpFDiv: "#define floord(n,d) (((n)<0) ? -((-(n)+(d)-1)/(d)) : (n)/(d))",
}

// PrintMacros emits the helper macro definitions needed by the node's
// expressions and by any extra expressions that live outside the tree,
// such as rewritten array indices attached to annotations.
func PrintMacros(p *Printer, n Node, extra ...Expr) {
	used := map[BinOp]bool{}
	collectNodeOps(n, used)
	for _, e := range extra {
		collectExprOps(e, used)
	}
	for _, op := range []BinOp{OpFDiv, OpMin, OpMax} {
		if used[op] {
			p.StartLine()
			p.Print(macroDefs[op])
			p.EndLine()
		}
	}
}

func collectNodeOps(n Node, used map[BinOp]bool) {
	switch n := n.(type) {
	case *ForNode:
		collectExprOps(n.Init, used)
		collectExprOps(n.Bound, used)
		collectNodeOps(n.Body, used)
	case *UserNode:
		for _, a := range n.Args {
			collectExprOps(a, used)
		}
	case *BlockNode:
		for _, c := range n.Children {
			collectNodeOps(c, used)
		}
	}
}

func collectExprOps(e Expr, used map[BinOp]bool) {
	switch e := e.(type) {
	case *NegExpr:
		collectExprOps(e.X, used)
	case *BinaryExpr:
		used[e.Op] = true
		collectExprOps(e.Left, used)
		collectExprOps(e.Right, used)
	}
}
