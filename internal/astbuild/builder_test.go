package astbuild

import (
	"strings"
	"testing"

	"github.com/polygen-dev/polygen/internal/poly"
)

func mustSchedule(t *testing.T, s string) *poly.UnionMap {
	t.Helper()
	um, err := poly.ParseUnionMap(s)
	if err != nil {
		t.Fatalf("ParseUnionMap(%q): %v", s, err)
	}
	return um
}

func mustBuild(t *testing.T, b *Builder, s string) Node {
	t.Helper()
	node, err := b.BuildFromSchedule(mustSchedule(t, s))
	if err != nil {
		t.Fatalf("BuildFromSchedule: %v", err)
	}
	return node
}

func render(n Node) string {
	p := NewPrinter(0)
	PrintNode(p, n, nil)
	return p.String()
}

func TestBuildSingleLoop(t *testing.T) {
	node := mustBuild(t, &Builder{}, "[N] -> { S0[i] -> [i] : 0 <= i < N }")
	f, ok := node.(*ForNode)
	if !ok {
		t.Fatalf("node = %T, want *ForNode", node)
	}
	if f.Iterator != "c0" {
		t.Errorf("iterator = %q, want c0", f.Iterator)
	}
	u, ok := f.Body.(*UserNode)
	if !ok {
		t.Fatalf("body = %T, want *UserNode", f.Body)
	}
	if u.Name != "S0" || len(u.Args) != 1 {
		t.Errorf("user = %s/%d args, want S0/1", u.Name, len(u.Args))
	}

	got := render(node)
	want := "for (int c0 = 0; c0 < N; c0 += 1) {\n  S0(c0);\n}\n"
	if got != want {
		t.Errorf("rendered:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildSequenceOrder(t *testing.T) {
	node := mustBuild(t, &Builder{},
		"[N] -> { S1[i] -> [1, i] : 0 <= i < N ; S0[i] -> [0, i] : 0 <= i < N }")
	blk, ok := node.(*BlockNode)
	if !ok {
		t.Fatalf("node = %T, want *BlockNode", node)
	}
	if len(blk.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(blk.Children))
	}
	first := blk.Children[0].(*ForNode).Body.(*UserNode)
	second := blk.Children[1].(*ForNode).Body.(*UserNode)
	if first.Name != "S0" || second.Name != "S1" {
		t.Errorf("order = %s, %s; want S0, S1", first.Name, second.Name)
	}
}

func TestBuildNestedLoops(t *testing.T) {
	node := mustBuild(t, &Builder{},
		"[N, M] -> { S[i, j] -> [i, j] : 0 <= i < N and 0 <= j < M }")
	outer, ok := node.(*ForNode)
	if !ok {
		t.Fatalf("node = %T, want *ForNode", node)
	}
	inner, ok := outer.Body.(*ForNode)
	if !ok {
		t.Fatalf("body = %T, want *ForNode", outer.Body)
	}
	if outer.Iterator != "c0" || inner.Iterator != "c1" {
		t.Errorf("iterators = %s, %s; want c0, c1", outer.Iterator, inner.Iterator)
	}
}

func TestBuildScheduleTransform(t *testing.T) {
	// reversed schedule: domain iterator recovered as N - 1 - c0
	node := mustBuild(t, &Builder{}, "[N] -> { S[i] -> [N - 1 - i] : 0 <= i < N }")
	f := node.(*ForNode)
	u := f.Body.(*UserNode)
	got := ExprString(u.Args[0])
	if !strings.Contains(got, "c0") || !strings.Contains(got, "N") {
		t.Errorf("argument = %q, want expression over N and c0", got)
	}
}

func TestBuildStridedSchedule(t *testing.T) {
	// compressing the time axis must not revisit instances: the loop
	// steps by the schedule coefficient and recovers i as c0 / 2
	node := mustBuild(t, &Builder{}, "{ S0[i] -> [2 * i] : 0 <= i <= 4 }")
	f, ok := node.(*ForNode)
	if !ok {
		t.Fatalf("node = %T, want *ForNode", node)
	}
	if f.Stride != 2 {
		t.Errorf("stride = %d, want 2", f.Stride)
	}

	got := render(node)
	want := "for (int c0 = 0; c0 <= 8; c0 += 2) {\n  S0(floord(c0, 2));\n}\n"
	if got != want {
		t.Errorf("rendered:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildStridedOffsetSchedule(t *testing.T) {
	node := mustBuild(t, &Builder{}, "{ S0[i] -> [2 * i + 1] : 0 <= i <= 4 }")
	got := render(node)
	want := "for (int c0 = 1; c0 <= 9; c0 += 2) {\n  S0(floord(c0 - 1, 2));\n}\n"
	if got != want {
		t.Errorf("rendered:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildStridedSymbolicOffset(t *testing.T) {
	// the residue depends on N, so the loop anchors at its lower bound
	node := mustBuild(t, &Builder{}, "[N] -> { S0[i] -> [2 * i + N] : 0 <= i <= 4 }")
	f := node.(*ForNode)
	if f.Stride != 2 {
		t.Errorf("stride = %d, want 2", f.Stride)
	}
	if got := ExprString(f.Init); got != "N" {
		t.Errorf("init = %q, want N", got)
	}
	if got := ExprString(f.Bound); got != "N + 8" {
		t.Errorf("bound = %q, want N + 8", got)
	}
}

func TestBuildRejectsMixedStrides(t *testing.T) {
	b := &Builder{}
	_, err := b.BuildFromSchedule(mustSchedule(t,
		"{ S0[i] -> [2 * i] : 0 <= i <= 4 ; S1[i] -> [i] : 0 <= i <= 8 }"))
	if err == nil || !strings.Contains(err.Error(), "strides") {
		t.Errorf("err = %v, want stride mismatch error", err)
	}
}

func TestBuildHookOrder(t *testing.T) {
	var trace []string
	b := &Builder{
		BeforeFor: func(bu *Build) any {
			trace = append(trace, "before")
			return bu.Depth()
		},
		AfterFor: func(n *ForNode, bu *Build) {
			trace = append(trace, "after")
		},
		AtEachDomain: func(n *UserNode, bu *Build) error {
			trace = append(trace, "domain")
			return nil
		},
	}
	node := mustBuild(t, b,
		"[N] -> { S[i, j] -> [i, j] : 0 <= i < N and 0 <= j < N }")

	want := []string{"before", "before", "domain", "after", "after"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}

	outer := node.(*ForNode)
	inner := outer.Body.(*ForNode)
	if outer.Annotation != 1 || inner.Annotation != 2 {
		t.Errorf("annotations = %v, %v; want depths 1, 2", outer.Annotation, inner.Annotation)
	}
}

func TestBuildHookSchedule(t *testing.T) {
	// the partial schedule at the outer loop covers one dimension
	b := &Builder{}
	b.BeforeFor = func(bu *Build) any {
		return len(bu.Schedule().Maps[0].Space.Out)
	}
	node := mustBuild(t, b,
		"[N] -> { S[i, j] -> [i, j] : 0 <= i < N and 0 <= j < N }")
	outer := node.(*ForNode)
	if outer.Annotation != 1 {
		t.Errorf("outer schedule dims = %v, want 1", outer.Annotation)
	}
	if inner := outer.Body.(*ForNode); inner.Annotation != 2 {
		t.Errorf("inner schedule dims = %v, want 2", inner.Annotation)
	}
}

func TestBuildWithContext(t *testing.T) {
	ctx, err := poly.ParseSet("[N] -> { : N >= 1 }")
	if err != nil {
		t.Fatalf("ParseSet: %v", err)
	}
	node := mustBuild(t, &Builder{Context: ctx}, "[N] -> { S[i] -> [i] : 0 <= i < N }")
	if _, ok := node.(*ForNode); !ok {
		t.Fatalf("node = %T, want *ForNode", node)
	}
}

func TestBuildRejectsMixedDimension(t *testing.T) {
	b := &Builder{}
	_, err := b.BuildFromSchedule(mustSchedule(t,
		"[N] -> { S0[i] -> [0, i] : 0 <= i < N ; S1[i] -> [i, 0] : 0 <= i < N }"))
	if err == nil {
		t.Error("expected error for dimension mixing loops and constants")
	}
}

func TestPrintMacrosOnlyWhenUsed(t *testing.T) {
	node := mustBuild(t, &Builder{}, "[N] -> { S[i] -> [i] : 0 <= i < N }")
	p := NewPrinter(0)
	PrintMacros(p, node)
	if p.String() != "" {
		t.Errorf("no macros expected, got:\n%s", p.String())
	}

	withMin := &ForNode{
		Iterator: "c0",
		Init:     &IntConst{Value: 0},
		Bound: &BinaryExpr{Op: OpMin,
			Left:  &Ident{Name: "N"},
			Right: &Ident{Name: "M"}},
		Body: &UserNode{Name: "S"},
	}
	p = NewPrinter(0)
	PrintMacros(p, withMin)
	if !strings.Contains(p.String(), "#define min") {
		t.Errorf("expected min macro, got:\n%s", p.String())
	}
	if strings.Contains(p.String(), "#define max") {
		t.Errorf("unexpected max macro:\n%s", p.String())
	}
}

func TestExprStringPrecedence(t *testing.T) {
	// 2 * (c0 + 1)
	e := &BinaryExpr{Op: OpMul,
		Left: &IntConst{Value: 2},
		Right: &BinaryExpr{Op: OpAdd,
			Left:  &Ident{Name: "c0"},
			Right: &IntConst{Value: 1}}}
	if got := ExprString(e); got != "2 * (c0 + 1)" {
		t.Errorf("got %q, want %q", got, "2 * (c0 + 1)")
	}

	fd := &BinaryExpr{Op: OpFDiv,
		Left:  &Ident{Name: "c0"},
		Right: &IntConst{Value: 3}}
	if got := ExprString(fd); got != "floord(c0, 3)" {
		t.Errorf("got %q, want %q", got, "floord(c0, 3)")
	}
}
