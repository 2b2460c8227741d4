package astbuild

import (
	"fmt"
	"sort"

	"github.com/polygen-dev/polygen/internal/poly"
)

// Builder lowers a union schedule map into an AST of loops and statement
// calls. The three hooks mirror the construction order: BeforeFor runs
// before a loop's body is generated and its return value becomes the
// loop node's annotation; AfterFor runs once the loop node is complete;
// AtEachDomain runs for every statement instance node. Hooks observe a
// strict depth-first pairing: a loop's BeforeFor precedes all hooks of
// its body, which precede its AfterFor.
type Builder struct {
	// Context constrains the symbolic parameters during generation.
	Context *poly.Set

	BeforeFor    func(*Build) any
	AfterFor     func(*ForNode, *Build)
	AtEachDomain func(*UserNode, *Build) error
}

// part is one statement's contribution to the schedule.
type part struct {
	name string
	m    *poly.Map // iteration domain -> full time space
}

// BuildFromSchedule generates the AST for the given schedule. The
// schedule must map every statement to a common time space of equal
// arity.
func (b *Builder) BuildFromSchedule(schedule *poly.UnionMap) (Node, error) {
	if b.Context != nil {
		restricted, err := schedule.IntersectParams(b.Context)
		if err != nil {
			return nil, err
		}
		schedule = restricted
	}
	if len(schedule.Maps) == 0 {
		return nil, fmt.Errorf("cannot generate an AST from an empty schedule")
	}
	n := len(schedule.Maps[0].Space.Out)
	var parts []part
	for _, m := range schedule.Maps {
		if len(m.Space.Out) != n {
			return nil, fmt.Errorf("schedule dimensions differ: %d vs %d", n, len(m.Space.Out))
		}
		if m.IsEmpty() {
			continue
		}
		parts = append(parts, part{name: m.Space.InName, m: m})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("schedule has no statement instances")
	}
	return b.lower(0, n, parts, nil)
}

// lower generates the subtree for schedule dimensions d and beyond.
func (b *Builder) lower(d, n int, parts []part, slots []iterSlot) (Node, error) {
	if d == n {
		return b.lowerLeaves(n, parts, slots)
	}

	fixed := 0
	for _, pt := range parts {
		if _, ok := pt.m.PlainFixedVal(d); ok {
			fixed++
		}
	}
	switch {
	case fixed == len(parts):
		return b.lowerSequence(d, n, parts, slots)
	case fixed == 0:
		return b.lowerLoop(d, n, parts, slots)
	default:
		return nil, fmt.Errorf("schedule dimension %d mixes loops and constant positions", d)
	}
}

// lowerSequence handles a dimension on which every statement is
// scheduled at a constant time: statements are grouped by value and
// sequenced in increasing order.
func (b *Builder) lowerSequence(d, n int, parts []part, slots []iterSlot) (Node, error) {
	groups := make(map[int64][]part)
	var vals []int64
	for _, pt := range parts {
		v, _ := pt.m.PlainFixedVal(d)
		if _, seen := groups[v]; !seen {
			vals = append(vals, v)
		}
		groups[v] = append(groups[v], pt)
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })

	var children []Node
	for _, v := range vals {
		child, err := b.lower(d+1, n, groups[v], append(slots, iterSlot{fixed: true, val: v}))
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &BlockNode{Children: children}, nil
}

// lowerLoop generates a for node over schedule dimension d.
func (b *Builder) lowerLoop(d, n int, parts []part, slots []iterSlot) (Node, error) {
	iter := fmt.Sprintf("c%d", d)
	init, bound, err := b.loopBounds(d, parts, slots)
	if err != nil {
		return nil, err
	}
	stride, err := loopStride(d, parts)
	if err != nil {
		return nil, err
	}
	if stride.stride > 1 && stride.constant {
		init = alignLower(init, stride.phase, stride.stride)
	}

	inner := append(slots, iterSlot{name: iter})
	build, err := b.buildAt(d+1, parts, inner)
	if err != nil {
		return nil, err
	}

	var ann any
	if b.BeforeFor != nil {
		ann = b.BeforeFor(build)
	}

	body, err := b.lower(d+1, n, parts, inner)
	if err != nil {
		return nil, err
	}
	node := &ForNode{Iterator: iter, Init: init, Bound: bound, Stride: stride.stride, Body: body, Annotation: ann}
	if b.AfterFor != nil {
		b.AfterFor(node, build)
	}
	return node, nil
}

// lowerLeaves generates the statement instance nodes once every
// schedule dimension has been handled.
func (b *Builder) lowerLeaves(n int, parts []part, slots []iterSlot) (Node, error) {
	var children []Node
	for _, pt := range parts {
		user, err := b.buildUserNode(n, pt, slots)
		if err != nil {
			return nil, err
		}
		children = append(children, user)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &BlockNode{Children: children}, nil
}

// buildUserNode creates the call node for one statement instance,
// expressing the domain iterators in terms of the generated loop
// iterators.
func (b *Builder) buildUserNode(n int, pt part, slots []iterSlot) (*UserNode, error) {
	sched, err := poly.NewUnionMap(pt.m)
	if err != nil {
		return nil, err
	}
	build := &Build{schedule: sched, space: timeSpace(pt.m.Space, n), slots: slots}

	rev := pt.m.Reverse()
	pma, err := poly.PwMultiAffFromMap(rev)
	if err != nil {
		return nil, fmt.Errorf("schedule of %s is not invertible: %w", pt.name, err)
	}
	pma = pma.Coalesce()

	user := &UserNode{Name: pt.name}
	for i := 0; i < pma.Dim(); i++ {
		arg, err := build.ExprFromPwAff(pma.At(i))
		if err != nil {
			return nil, err
		}
		user.Args = append(user.Args, arg)
	}
	if b.AtEachDomain != nil {
		if err := b.AtEachDomain(user, build); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// buildAt assembles the Build state exposed to hooks at depth k.
func (b *Builder) buildAt(k int, parts []part, slots []iterSlot) (*Build, error) {
	maps := make([]*poly.Map, len(parts))
	for i, pt := range parts {
		maps[i] = pt.m.ProjectOutAfter(k)
	}
	prefix, err := poly.NewUnionMap(maps...)
	if err != nil {
		return nil, err
	}
	return &Build{schedule: prefix, space: timeSpace(parts[0].m.Space, k), slots: slots}, nil
}

// timeSpace returns the anonymous set space of the first k time
// dimensions.
func timeSpace(s *poly.Space, k int) *poly.Space {
	dims := make([]string, k)
	for i := range dims {
		dims[i] = fmt.Sprintf("c%d", i)
	}
	return poly.SetSpace(s.Params, "", dims)
}

// loopBounds derives inclusive lower and upper bounds for schedule
// dimension d from the statements' time ranges.
func (b *Builder) loopBounds(d int, parts []part, slots []iterSlot) (Expr, Expr, error) {
	var merged *poly.Set
	for _, pt := range parts {
		rng := pt.m.RangeSet().ProjectOutAfter(d + 1)
		if merged == nil {
			merged = rng
			continue
		}
		u, err := merged.Union(rng)
		if err != nil {
			return nil, nil, err
		}
		merged = u
	}
	merged = merged.Coalesce()
	if len(merged.Disjuncts) != 1 {
		return nil, nil, fmt.Errorf("loop at dimension %d has a disjunctive bound, which is not supported", d)
	}
	bs := merged.Disjuncts[0]
	space := merged.Space
	col := space.Col(poly.DimOut, d)

	var lowers, uppers []Expr
	for _, c := range bs.Cons {
		k := c.Coef[col]
		if k == 0 {
			continue
		}
		if c.Eq || k > 0 {
			e, err := b.boundExpr(space, c, col, slots, true)
			if err != nil {
				return nil, nil, err
			}
			lowers = append(lowers, e)
		}
		if c.Eq || k < 0 {
			e, err := b.boundExpr(space, c, col, slots, false)
			if err != nil {
				return nil, nil, err
			}
			uppers = append(uppers, e)
		}
	}
	if len(lowers) == 0 || len(uppers) == 0 {
		return nil, nil, fmt.Errorf("loop at dimension %d is unbounded", d)
	}
	return fold(OpMax, lowers), fold(OpMin, uppers), nil
}

// boundExpr turns one constraint k*t + rest >= 0 (or = 0) involving
// the loop dimension t into the bound expression -rest/k over the
// outer iterators and parameters, with a floor for upper bounds and a
// ceiling for lower bounds.
func (b *Builder) boundExpr(space *poly.Space, c poly.Constraint, col int, slots []iterSlot, lower bool) (Expr, error) {
	k := c.Coef[col]
	sign := int64(-1) // multiplier applied to the remaining terms
	if k < 0 {
		sign, k = 1, -k
	}

	e := newAffBuilder()
	for i, p := range space.Params {
		e.addTerm(sign*c.Coef[space.Col(poly.DimParam, i)], &Ident{Name: p})
	}
	for i, slot := range slots {
		cc := c.Coef[space.Col(poly.DimOut, i)]
		if cc == 0 {
			continue
		}
		if slot.fixed {
			e.addConst(sign * cc * slot.val)
		} else {
			e.addTerm(sign*cc, &Ident{Name: slot.name})
		}
	}
	e.addConst(sign * c.Coef[len(c.Coef)-1])
	if k > 1 && lower {
		// ceil(x/k) = floor((x + k - 1)/k)
		e.addConst(k - 1)
	}
	return e.result(k), nil
}

// strideInfo records that a schedule dimension only takes values
// congruent to phase modulo stride. When constant is false the offset
// is symbolic; the loop then starts at its lower bound, which the
// projected range attains.
type strideInfo struct {
	stride   int64
	phase    int64
	constant bool
}

// loopStride determines the common stride of schedule dimension d. The
// bound projection is rational and forgets congruences, so the stride
// has to be read off the schedule equalities before projection; a loop
// that ignored it would visit time points with no statement instance.
func loopStride(d int, parts []part) (strideInfo, error) {
	first := strideInfo{stride: 1, constant: true}
	for i, pt := range parts {
		info, err := mapStride(pt.m, d)
		if err != nil {
			return strideInfo{}, err
		}
		if i == 0 {
			first = info
		} else if info != first {
			return strideInfo{}, fmt.Errorf("schedule dimension %d mixes different strides", d)
		}
	}
	if first.stride > 1 && !first.constant && len(parts) > 1 {
		return strideInfo{}, fmt.Errorf("schedule dimension %d has a symbolic stride offset over several statements", d)
	}
	return first, nil
}

func mapStride(m *poly.Map, d int) (strideInfo, error) {
	res := strideInfo{stride: 1, constant: true}
	for i, bm := range m.Disjuncts {
		info, err := basicStride(bm, d)
		if err != nil {
			return strideInfo{}, err
		}
		if i == 0 {
			res = info
		} else if info != res {
			return strideInfo{}, fmt.Errorf("schedule dimension %d has diverging strides across pieces", d)
		}
	}
	return res, nil
}

// basicStride inspects the equalities defining output dimension d. An
// equality t = sum(k_j * x_j) + c whose varying terms share a factor s
// confines t to one residue class modulo s; the phase is a known
// constant when the parameter and outer-dimension terms vanish modulo s
// as well.
func basicStride(bm *poly.BasicMap, d int) (strideInfo, error) {
	space := bm.Space
	col := space.Col(poly.DimOut, d)
	best := strideInfo{stride: 1, constant: true}
	for _, c := range bm.Cons {
		if !c.Eq || c.Coef[col] == 0 {
			continue
		}
		coefs := append([]int64(nil), c.Coef...)
		if g := rowGCD(coefs); g > 1 {
			for i := range coefs {
				coefs[i] /= g
			}
		}
		if coefs[col] < 0 {
			for i := range coefs {
				coefs[i] = -coefs[i]
			}
		}
		if coefs[col] != 1 {
			return strideInfo{}, fmt.Errorf("schedule dimension %d has a non-integral definition", d)
		}
		var mod int64
		for i := 0; i < len(space.In); i++ {
			mod = gcdInt(mod, coefs[space.Col(poly.DimIn, i)])
		}
		for i := space.NumCols(); i < space.NumCols()+bm.NDiv; i++ {
			mod = gcdInt(mod, coefs[i])
		}
		if mod <= 1 {
			continue
		}
		info := strideInfo{stride: mod, constant: true}
		for i := range space.Params {
			if coefs[space.Col(poly.DimParam, i)]%mod != 0 {
				info.constant = false
			}
		}
		for j := range space.Out {
			if j != d && coefs[space.Col(poly.DimOut, j)]%mod != 0 {
				info.constant = false
			}
		}
		if info.constant {
			cst := coefs[len(coefs)-1]
			info.phase = ((-cst)%mod + mod) % mod
		}
		if info.stride > best.stride {
			best = info
		}
	}
	return best, nil
}

// alignLower raises an inclusive lower bound to the first value
// congruent to phase modulo stride.
func alignLower(lb Expr, phase, stride int64) Expr {
	if c, ok := lb.(*IntConst); ok {
		v := c.Value + ((phase-c.Value)%stride+stride)%stride
		return &IntConst{Value: v}
	}
	// phase + stride * ceil((lb - phase)/stride)
	num := lb
	if adj := stride - 1 - phase; adj > 0 {
		num = &BinaryExpr{Op: OpAdd, Left: num, Right: &IntConst{Value: adj}}
	} else if adj < 0 {
		num = &BinaryExpr{Op: OpSub, Left: num, Right: &IntConst{Value: -adj}}
	}
	e := Expr(&BinaryExpr{
		Op:    OpMul,
		Left:  &IntConst{Value: stride},
		Right: &BinaryExpr{Op: OpFDiv, Left: num, Right: &IntConst{Value: stride}},
	})
	if phase != 0 {
		e = &BinaryExpr{Op: OpAdd, Left: e, Right: &IntConst{Value: phase}}
	}
	return e
}

func gcdInt(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func rowGCD(coefs []int64) int64 {
	var g int64
	for _, v := range coefs {
		g = gcdInt(g, v)
	}
	return g
}

func fold(op BinOp, exprs []Expr) Expr {
	res := exprs[0]
	for _, e := range exprs[1:] {
		res = &BinaryExpr{Op: op, Left: res, Right: e}
	}
	return res
}
