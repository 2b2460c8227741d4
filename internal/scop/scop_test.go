package scop

import (
	"strings"
	"testing"
)

const vectorAddDesc = `
# element-wise vector addition
context [N] -> { : N >= 1 }
domain [N] -> { S0[i] : 0 <= i < N }
schedule [N] -> { S0[i] -> [i] }
flow { }
false { }
array a float N
array b float N
array c float N
S0: c[i] = a[i] + b[i]
`

func mustParse(t *testing.T, desc string) *Scop {
	t.Helper()
	s, diags := Parse(desc)
	if diags.HasErrors() {
		t.Fatalf("Parse:\n%s", diags.Format("test"))
	}
	return s
}

func TestParseVectorAdd(t *testing.T) {
	s := mustParse(t, vectorAddDesc)
	if s.Context == nil || s.Context.IsEmpty() {
		t.Error("context missing or empty")
	}
	if len(s.Stmts) != 1 {
		t.Fatalf("stmts = %d, want 1", len(s.Stmts))
	}
	if got := s.Stmts[0].Name(); got != "S0" {
		t.Errorf("stmt name = %q, want S0", got)
	}
	if len(s.Arrays) != 3 {
		t.Errorf("arrays = %d, want 3", len(s.Arrays))
	}
	if !s.DepFlow.IsEmpty() || !s.DepFalse.IsEmpty() {
		t.Error("dependences should be empty")
	}
}

func TestParseBodyAccessOrder(t *testing.T) {
	s := mustParse(t, vectorAddDesc)
	accs := s.Stmts[0].Accesses()
	if len(accs) != 3 {
		t.Fatalf("accesses = %d, want 3", len(accs))
	}
	// depth-first order: the written c, then a, then b
	if !accs[0].Write {
		t.Error("first access should be the write to c")
	}
	names := []string{"c", "a", "b"}
	for i, acc := range accs {
		if got := acc.Access.Space.OutName; got != names[i] {
			t.Errorf("access %d targets %q, want %q", i, got, names[i])
		}
		if acc.Access.Space.Out == nil && i > 0 {
			t.Errorf("access %d lost its subscript", i)
		}
	}
}

func TestParseValueAccess(t *testing.T) {
	desc := `
domain [N] -> { S0[i] : 0 <= i < N }
schedule [N] -> { S0[i] -> [i] }
S0: c[i] = i + N
`
	s := mustParse(t, desc)
	accs := s.Stmts[0].Accesses()
	if len(accs) != 3 {
		t.Fatalf("accesses = %d, want 3", len(accs))
	}
	// i and N are value expressions with an unnamed target tuple
	for _, acc := range accs[1:] {
		if acc.Access.Space.OutName != "" {
			t.Errorf("value access has tuple name %q", acc.Access.Space.OutName)
		}
		if len(acc.Access.Space.Out) != 1 {
			t.Errorf("value access dims = %d, want 1", len(acc.Access.Space.Out))
		}
	}
}

func TestParseScalarReference(t *testing.T) {
	desc := `
domain { S0[i] : 0 <= i <= 9 }
schedule { S0[i] -> [i] }
S0: sum = sum + 1
`
	s := mustParse(t, desc)
	accs := s.Stmts[0].Accesses()
	if len(accs) != 2 {
		t.Fatalf("accesses = %d, want 2", len(accs))
	}
	for _, acc := range accs {
		if acc.Access.Space.OutName != "sum" || len(acc.Access.Space.Out) != 0 {
			t.Errorf("scalar access space = %s", acc.Access.Space)
		}
	}
	if !accs[0].Write || accs[1].Write {
		t.Error("write flags: want write then read")
	}
}

func TestParseAffineSubscript(t *testing.T) {
	desc := `
domain [N] -> { S0[i] : 1 <= i < N }
schedule [N] -> { S0[i] -> [i] }
S0: a[i] = a[i - 1] + 1
`
	s := mustParse(t, desc)
	accs := s.Stmts[0].Accesses()
	if len(accs) != 2 {
		t.Fatalf("accesses = %d, want 2", len(accs))
	}
	if accs[0].Access.Space.OutName != "a" || accs[1].Access.Space.OutName != "a" {
		t.Error("both accesses should target a")
	}
}

func TestParseMultiDimSubscript(t *testing.T) {
	desc := `
domain [N] -> { S0[i, j] : 0 <= i < N and 0 <= j < N }
schedule [N] -> { S0[i, j] -> [i, j] }
array A float N N
S0: A[i][2*j + 1] = 0
`
	s := mustParse(t, desc)
	accs := s.Stmts[0].Accesses()
	if len(accs) != 1 {
		t.Fatalf("accesses = %d, want 1", len(accs))
	}
	if got := len(accs[0].Access.Space.Out); got != 2 {
		t.Errorf("subscript dims = %d, want 2", got)
	}
}

func TestParseArrayFlags(t *testing.T) {
	desc := `
domain { S0[i] : 0 <= i <= 3 }
schedule { S0[i] -> [i] }
array a float 4
array tmp float 4 declared
array out float 4 exposed
S0: a[i] = 0
`
	s := mustParse(t, desc)
	if len(s.Arrays) != 3 {
		t.Fatalf("arrays = %d, want 3", len(s.Arrays))
	}
	a, tmp, out := s.Arrays[0], s.Arrays[1], s.Arrays[2]
	if a.Declared || a.Exposed {
		t.Error("a should be neither declared nor exposed")
	}
	if !tmp.Declared || tmp.Exposed {
		t.Error("tmp should be declared and hidden")
	}
	if !out.Declared || !out.Exposed {
		t.Error("out should be declared and exposed")
	}
	if len(a.Extent) != 1 || a.Extent[0] != "4" {
		t.Errorf("extent = %v, want [4]", a.Extent)
	}
}

func TestParseWarnings(t *testing.T) {
	desc := `
domain { S0[i] : 0 <= i <= 3 }
schedule { S0[i] -> [i] }
array a float 4
array unused float 4
array result float 4 exposed
S0: a[i] = result[i]
`
	_, diags := Parse(desc)
	if diags.HasErrors() {
		t.Fatalf("Parse:\n%s", diags.Format("test"))
	}
	if diags.Count() != 2 {
		t.Fatalf("warnings = %d, want 2:\n%s", diags.Count(), diags.Format("test"))
	}
	got := diags.Format("test")
	if !strings.Contains(got, "array unused is never accessed") {
		t.Errorf("missing unused-array warning:\n%s", got)
	}
	if !strings.Contains(got, "exposed array result is never written") {
		t.Errorf("missing unwritten-exposed warning:\n%s", got)
	}
}

func TestParseNoWarningsWhenArraysUsed(t *testing.T) {
	_, diags := Parse(vectorAddDesc)
	if diags.Count() != 0 {
		t.Errorf("unexpected diagnostics:\n%s", diags.Format("test"))
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		desc string
		want string
	}{
		{"no domain", "schedule { S0[i] -> [i] }\n", "no domain"},
		{"no schedule", "domain { S0[i] : 0 <= i <= 3 }\n", "no schedule"},
		{"unknown statement",
			"domain { S0[i] : 0 <= i <= 3 }\nschedule { S0[i] -> [i] }\nS9: a[i] = 0\n",
			"no iteration domain"},
		{"bad subscript",
			"domain { S0[i] : 0 <= i <= 3 }\nschedule { S0[i] -> [i] }\nS0: a[i*i] = 0\n",
			"not affine"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, diags := Parse(tc.desc)
			if !diags.HasErrors() {
				t.Fatal("expected a parse error")
			}
			if got := diags.Format("test"); !strings.Contains(got, tc.want) {
				t.Errorf("diagnostics %q do not mention %q", got, tc.want)
			}
		})
	}
}

func TestStmtLookup(t *testing.T) {
	s := mustParse(t, vectorAddDesc)
	if s.Stmt("S0") == nil {
		t.Error("S0 not found")
	}
	if s.Stmt("S1") != nil {
		t.Error("S1 should not exist")
	}
}
