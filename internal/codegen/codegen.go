// Package codegen rewrites a C source file, replacing its delimited
// scop region with loop code generated from the polyhedral model and
// annotated with OpenMP pragmas where the schedule allows it.
package codegen

import (
	"fmt"
	"os"
	"strings"

	"github.com/polygen-dev/polygen/internal/astbuild"
	"github.com/polygen-dev/polygen/internal/scop"
)

const (
	pragmaScop    = "#pragma scop"
	pragmaEndScop = "#pragma endscop"
)

// Options configures generation.
type Options struct {
	// OpenMP enables the parallelism analysis and pragma annotation.
	OpenMP bool
	// Output is the path of the generated file. When empty, file.c
	// becomes file.polygen.c.
	Output string
}

// Generate rewrites the file at inputPath using the given scop and
// returns the path of the generated file.
func Generate(inputPath string, s *scop.Scop, opts Options) (string, error) {
	if s == nil {
		return "", fmt.Errorf("no scop to generate code for")
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	out, err := generateSource(string(data), s, opts)
	if err != nil {
		return "", err
	}
	outPath := opts.Output
	if outPath == "" {
		outPath = outputName(inputPath)
	}
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		return "", fmt.Errorf("writing output: %w", err)
	}
	return outPath, nil
}

// outputName derives file.polygen.c from file.c.
func outputName(input string) string {
	base := strings.TrimSuffix(input, ".c")
	return base + ".polygen.c"
}

// generateSource replaces the scop region of src with generated code.
func generateSource(src string, s *scop.Scop, opts Options) (string, error) {
	before, after, err := splitAtPragmas(src)
	if err != nil {
		return "", err
	}
	node, err := buildTree(s, opts)
	if err != nil {
		return "", err
	}

	p := astbuild.NewPrinter(0)
	p.StartLine()
	p.Print("/* polygen generated CPU code */")
	p.EndLine()
	p.EndLine()

	printDeclarations(p, s, declExposed)
	hidden := hasDeclarations(s, declHidden)
	if hidden {
		p.StartLine()
		p.Print("{")
		p.EndLine()
		p.Indent()
		printDeclarations(p, s, declHidden)
	}

	astbuild.PrintMacros(p, node, rewrittenExprs(node)...)
	astbuild.PrintNode(p, node, &astbuild.PrintOptions{
		PrintFor:  printFor,
		PrintUser: printUser,
	})

	if hidden {
		p.Unindent()
		p.StartLine()
		p.Print("}")
		p.EndLine()
	}
	return before + p.String() + after, nil
}

// buildTree runs the AST construction with the annotation hooks
// installed. The parallelism hooks are only installed when OpenMP
// annotation is requested; access rewriting always runs.
func buildTree(s *scop.Scop, opts Options) (astbuild.Node, error) {
	bc := &buildContext{scop: s}
	b := &astbuild.Builder{
		Context:      s.Context,
		AtEachDomain: bc.atEachDomain,
	}
	if opts.OpenMP {
		b.BeforeFor = bc.beforeFor
		b.AfterFor = bc.afterFor
	}
	sched, err := s.Schedule.IntersectDomain(s.Domain)
	if err != nil {
		return nil, err
	}
	node, err := b.BuildFromSchedule(sched)
	if err != nil {
		return nil, err
	}
	if bc.err != nil {
		return nil, bc.err
	}
	return node, nil
}

// splitAtPragmas cuts the source at its first scop region: the text
// before the scop pragma and after the matching endscop pragma, with
// the pragma lines themselves dropped. A second region is an error
// rather than a silently ignored one.
func splitAtPragmas(src string) (before, after string, err error) {
	lines := strings.SplitAfter(src, "\n")
	start, end := -1, -1
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case pragmaScop:
			if start >= 0 {
				return "", "", fmt.Errorf("input has more than one %s region", pragmaScop)
			}
			start = i
		case pragmaEndScop:
			if start < 0 {
				return "", "", fmt.Errorf("%s without a preceding %s", pragmaEndScop, pragmaScop)
			}
			if end >= 0 {
				return "", "", fmt.Errorf("input has more than one %s region", pragmaScop)
			}
			end = i
		}
	}
	if start < 0 || end < 0 {
		return "", "", fmt.Errorf("input has no %s / %s region", pragmaScop, pragmaEndScop)
	}
	return strings.Join(lines[:start], ""), strings.Join(lines[end+1:], ""), nil
}

type declClass int

const (
	declExposed declClass = iota
	declHidden
)

func matchesClass(arr *scop.Array, class declClass) bool {
	if !arr.Declared {
		return false
	}
	if class == declExposed {
		return arr.Exposed
	}
	return !arr.Exposed
}

func hasDeclarations(s *scop.Scop, class declClass) bool {
	for _, arr := range s.Arrays {
		if matchesClass(arr, class) {
			return true
		}
	}
	return false
}

// printDeclarations emits the declarations of the arrays declared
// inside the region, either the exposed ones or the hidden ones.
func printDeclarations(p *astbuild.Printer, s *scop.Scop, class declClass) {
	for _, arr := range s.Arrays {
		if !matchesClass(arr, class) {
			continue
		}
		p.StartLine()
		p.Printf("%s %s", arr.ElemType, arr.Name)
		for _, ext := range arr.Extent {
			p.Printf("[%s]", ext)
		}
		p.Print(";")
		p.EndLine()
	}
}

// rewrittenExprs collects the rewritten access index expressions
// attached to the statement instance nodes; they live outside the tree
// proper but may still need the helper macros.
func rewrittenExprs(n astbuild.Node) []astbuild.Expr {
	var out []astbuild.Expr
	collectRewritten(n, &out)
	return out
}

func collectRewritten(n astbuild.Node, out *[]astbuild.Expr) {
	switch n := n.(type) {
	case *astbuild.ForNode:
		collectRewritten(n.Body, out)
	case *astbuild.BlockNode:
		for _, c := range n.Children {
			collectRewritten(c, out)
		}
	case *astbuild.UserNode:
		if inst, ok := n.Annotation.(*stmtInstance); ok {
			for _, exprs := range inst.access {
				*out = append(*out, exprs...)
			}
		}
	}
}
