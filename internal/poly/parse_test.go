package poly

import (
	"testing"
)

func mustParseSet(t *testing.T, s string) *Set {
	t.Helper()
	set, err := ParseSet(s)
	if err != nil {
		t.Fatalf("ParseSet(%q): %v", s, err)
	}
	return set
}

func mustParseMap(t *testing.T, s string) *Map {
	t.Helper()
	m, err := ParseMap(s)
	if err != nil {
		t.Fatalf("ParseMap(%q): %v", s, err)
	}
	return m
}

func TestParseSetBasic(t *testing.T) {
	set := mustParseSet(t, "[N] -> { S0[i] : 0 <= i < N }")
	if set.Space.OutName != "S0" {
		t.Errorf("tuple name = %q, want S0", set.Space.OutName)
	}
	if got := len(set.Space.Out); got != 1 {
		t.Errorf("dims = %d, want 1", got)
	}
	if got := len(set.Space.Params); got != 1 || set.Space.Params[0] != "N" {
		t.Errorf("params = %v, want [N]", set.Space.Params)
	}
	if len(set.Disjuncts) != 1 {
		t.Fatalf("disjuncts = %d, want 1", len(set.Disjuncts))
	}
	// chained comparison produces two inequalities
	if got := len(set.Disjuncts[0].Cons); got != 2 {
		t.Errorf("constraints = %d, want 2", got)
	}
}

func TestParseMapOutputExpressions(t *testing.T) {
	m := mustParseMap(t, "{ S[i, j] -> [i, j + 1] }")
	if len(m.Space.In) != 2 || len(m.Space.Out) != 2 {
		t.Fatalf("arity = %d -> %d, want 2 -> 2", len(m.Space.In), len(m.Space.Out))
	}
	pma, err := PwMultiAffFromMap(m)
	if err != nil {
		t.Fatalf("PwMultiAffFromMap: %v", err)
	}
	a0, err := pma.At(0).SinglePiece()
	if err != nil {
		t.Fatalf("At(0): %v", err)
	}
	if a0.Coef[0] != 1 || a0.Coef[1] != 0 || a0.Const != 0 || a0.Den != 1 {
		t.Errorf("dim 0 = %v + %d, want i", a0.Coef, a0.Const)
	}
	a1, err := pma.At(1).SinglePiece()
	if err != nil {
		t.Fatalf("At(1): %v", err)
	}
	if a1.Coef[0] != 0 || a1.Coef[1] != 1 || a1.Const != 1 {
		t.Errorf("dim 1 = %v + %d, want j + 1", a1.Coef, a1.Const)
	}
}

func TestParseNamedOutputDim(t *testing.T) {
	m := mustParseMap(t, "{ S[i] -> a[o] : o = 2*i + 1 }")
	pma, err := PwMultiAffFromMap(m)
	if err != nil {
		t.Fatalf("PwMultiAffFromMap: %v", err)
	}
	a, err := pma.At(0).SinglePiece()
	if err != nil {
		t.Fatalf("SinglePiece: %v", err)
	}
	if a.Coef[0] != 2 || a.Const != 1 || a.Den != 1 {
		t.Errorf("got %v + %d / %d, want 2i + 1", a.Coef, a.Const, a.Den)
	}
}

func TestParseScalarAccess(t *testing.T) {
	m := mustParseMap(t, "{ S[i] -> x[] }")
	if m.Space.OutName != "x" || len(m.Space.Out) != 0 {
		t.Errorf("space = %s, want x[]", m.Space)
	}
}

func TestParseParamOnlyContext(t *testing.T) {
	set := mustParseSet(t, "[N] -> { : N >= 1 }")
	if len(set.Space.Out) != 0 {
		t.Errorf("dims = %d, want 0", len(set.Space.Out))
	}
	if set.IsEmpty() {
		t.Error("context should not be empty")
	}
}

func TestParseEmptyUnion(t *testing.T) {
	u, err := ParseUnionMap("{}")
	if err != nil {
		t.Fatalf("ParseUnionMap: %v", err)
	}
	if !u.IsEmpty() {
		t.Error("expected empty union")
	}
}

func TestParseUnionOfTuples(t *testing.T) {
	u, err := ParseUnionMap("[N] -> { S0[i] -> [0, i] ; S1[i] -> [1, i] : 0 <= i < N }")
	if err != nil {
		t.Fatalf("ParseUnionMap: %v", err)
	}
	if len(u.Maps) != 2 {
		t.Fatalf("maps = %d, want 2", len(u.Maps))
	}
}

func TestParseDisjunction(t *testing.T) {
	set := mustParseSet(t, "{ S[i] : i = 0 or i = 5 }")
	if len(set.Disjuncts) != 2 {
		t.Fatalf("disjuncts = %d, want 2", len(set.Disjuncts))
	}
}

func TestParseRejectsUnknownName(t *testing.T) {
	if _, err := ParseSet("{ S[i] : 0 <= q }"); err == nil {
		t.Error("expected error for unknown dimension")
	}
}
