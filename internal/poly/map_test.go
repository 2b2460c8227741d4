package poly

import "testing"

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		name  string
		set   string
		empty bool
	}{
		{"bounded interval", "{ S[i] : 0 <= i and i <= 5 }", false},
		{"contradiction", "[N] -> { S[i] : 0 <= i < N and i >= N }", true},
		{"no integer point", "{ S[i] : 2*i = 1 }", true},
		{"single point", "{ S[i] : i = 3 }", false},
		{"parametric", "[N] -> { S[i] : 0 <= i < N }", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := mustParseSet(t, tc.set)
			if got := set.IsEmpty(); got != tc.empty {
				t.Errorf("IsEmpty = %v, want %v", got, tc.empty)
			}
		})
	}
}

func TestIsSubsetEquatedDimension(t *testing.T) {
	// a uniform dependence with distance one is not a subset of the
	// relation equating the dimension; a zero-distance one is
	shifted := mustParseMap(t, "[N] -> { [i] -> [i + 1] : 0 <= i < N }")
	test := UniverseMap(shifted.Space).Equate(DimOut, 0, DimIn, 0)

	ok, err := shifted.IsSubset(test)
	if err != nil {
		t.Fatalf("IsSubset: %v", err)
	}
	if ok {
		t.Error("shifted dependence should not equate the dimension")
	}

	same := mustParseMap(t, "[N] -> { [i] -> [i] : 0 <= i < N }")
	ok, err = same.IsSubset(test)
	if err != nil {
		t.Fatalf("IsSubset: %v", err)
	}
	if !ok {
		t.Error("identity relation should equate the dimension")
	}
}

func TestApplyRangeComposition(t *testing.T) {
	sched := mustParseMap(t, "{ [t] -> S[t] }")
	access := mustParseMap(t, "{ S[i] -> a[i + 1] }")
	composed, err := sched.ApplyRange(access)
	if err != nil {
		t.Fatalf("ApplyRange: %v", err)
	}
	if composed.Space.InName != "" || composed.Space.OutName != "a" {
		t.Fatalf("space = %s", composed.Space)
	}
	pma, err := PwMultiAffFromMap(composed)
	if err != nil {
		t.Fatalf("PwMultiAffFromMap: %v", err)
	}
	a, err := pma.At(0).SinglePiece()
	if err != nil {
		t.Fatalf("SinglePiece: %v", err)
	}
	if a.Coef[0] != 1 || a.Const != 1 || a.Den != 1 {
		t.Errorf("composed access = %v + %d, want t + 1", a.Coef, a.Const)
	}
}

func TestApplyDomain(t *testing.T) {
	// dep: S0 -> S1, schedule: S0 -> time; mapping the domain through the
	// schedule yields time -> S1
	dep := mustParseMap(t, "{ S0[i] -> S1[i] }")
	sched, err := NewUnionMap(mustParseMap(t, "{ S0[i] -> [i] }"))
	if err != nil {
		t.Fatalf("NewUnionMap: %v", err)
	}
	deps, err := NewUnionMap(dep)
	if err != nil {
		t.Fatalf("NewUnionMap: %v", err)
	}
	mapped, err := deps.ApplyDomain(sched)
	if err != nil {
		t.Fatalf("ApplyDomain: %v", err)
	}
	if len(mapped.Maps) != 1 {
		t.Fatalf("maps = %d, want 1", len(mapped.Maps))
	}
	space := mapped.Maps[0].Space
	if space.InName != "" || space.OutName != "S1" {
		t.Errorf("space = %s, want [t] -> S1", space)
	}
}

func TestIntersectDomain(t *testing.T) {
	m := mustParseMap(t, "[N] -> { S[i] -> [i] }")
	dom := mustParseSet(t, "[N] -> { S[i] : 0 <= i < N }")
	res, err := m.IntersectDomain(dom)
	if err != nil {
		t.Fatalf("IntersectDomain: %v", err)
	}
	// with N = 0 the relation is empty
	zero := mustParseSet(t, "[N] -> { : N = 0 }")
	restricted, err := res.IntersectParams(zero)
	if err != nil {
		t.Fatalf("IntersectParams: %v", err)
	}
	if !restricted.IsEmpty() {
		t.Error("expected empty relation for N = 0")
	}
	if res.IsEmpty() {
		t.Error("relation should be non-empty for unconstrained N")
	}
}

func TestPlainFixedVal(t *testing.T) {
	m := mustParseMap(t, "{ S[i] -> [0, i] }")
	v, ok := m.PlainFixedVal(0)
	if !ok || v != 0 {
		t.Errorf("dim 0: (%d, %v), want (0, true)", v, ok)
	}
	if _, ok := m.PlainFixedVal(1); ok {
		t.Error("dim 1 should not be fixed")
	}
}

func TestProjectOutAfter(t *testing.T) {
	m := mustParseMap(t, "[N] -> { S[i] -> [i, i + 1] : 0 <= i < N }")
	p := m.ProjectOutAfter(1)
	if len(p.Space.Out) != 1 {
		t.Fatalf("out dims = %d, want 1", len(p.Space.Out))
	}
	// the projected relation still relates i to its time point
	pma, err := PwMultiAffFromMap(p)
	if err != nil {
		t.Fatalf("PwMultiAffFromMap: %v", err)
	}
	a, err := pma.At(0).SinglePiece()
	if err != nil {
		t.Fatalf("SinglePiece: %v", err)
	}
	if a.Coef[1] != 1 || a.Const != 0 {
		t.Errorf("projected dim = %v + %d, want i", a.Coef, a.Const)
	}
}

func TestRangeSetBounds(t *testing.T) {
	m := mustParseMap(t, "[N] -> { S[i] -> [i] : 0 <= i < N }")
	rng := m.RangeSet()
	if len(rng.Space.Out) != 1 {
		t.Fatalf("range dims = %d, want 1", len(rng.Space.Out))
	}
	// range must be empty once we also require t >= N
	test := rng.Clone()
	for _, d := range test.Disjuncts {
		c := d.newConstraint(false)
		c.Coef[test.Space.Col(DimOut, 0)] = 1
		c.Coef[test.Space.Col(DimParam, 0)] = -1
		d.Cons = append(d.Cons, c)
	}
	if !test.IsEmpty() {
		t.Error("range should not contain t >= N")
	}
}

func TestMapFromUnionMap(t *testing.T) {
	single, err := NewUnionMap(mustParseMap(t, "{ S[i] -> [i] }"))
	if err != nil {
		t.Fatalf("NewUnionMap: %v", err)
	}
	if _, err := MapFromUnionMap(single); err != nil {
		t.Errorf("single-space union: %v", err)
	}

	double, err := NewUnionMap(
		mustParseMap(t, "{ S0[i] -> [i] }"),
		mustParseMap(t, "{ S1[i, j] -> [i] }"),
	)
	if err != nil {
		t.Fatalf("NewUnionMap: %v", err)
	}
	if _, err := MapFromUnionMap(double); err == nil {
		t.Error("expected error for union over two spaces")
	}
}

func TestCoalesceDropsRedundantDisjuncts(t *testing.T) {
	set := mustParseSet(t, "{ S[i] : 0 <= i <= 10 or 2 <= i <= 5 }")
	c := set.Coalesce()
	if len(c.Disjuncts) != 1 {
		t.Errorf("disjuncts after coalesce = %d, want 1", len(c.Disjuncts))
	}
}

func TestUnionMapUnionMergesSpaces(t *testing.T) {
	a, err := NewUnionMap(mustParseMap(t, "{ S0[i] -> S1[i] }"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewUnionMap(mustParseMap(t, "{ S0[i] -> S1[i + 1] }"))
	if err != nil {
		t.Fatal(err)
	}
	u, err := a.Union(b)
	if err != nil {
		t.Fatalf("Union: %v", err)
	}
	if len(u.Maps) != 1 {
		t.Fatalf("maps = %d, want 1 (same space merged)", len(u.Maps))
	}
	if len(u.Maps[0].Disjuncts) != 2 {
		t.Errorf("disjuncts = %d, want 2", len(u.Maps[0].Disjuncts))
	}
}
