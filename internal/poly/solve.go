package poly

import "fmt"

// row is the internal form constraints take during elimination. The last
// entry of c is the constant term; eq marks an equality.
type row struct {
	eq bool
	c  []int64
}

func toRows(bm *BasicMap) []row {
	rows := make([]row, len(bm.Cons))
	for i, c := range bm.Cons {
		rows[i] = row{eq: c.Eq, c: append([]int64(nil), c.Coef...)}
	}
	return rows
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func gcd64(a, b int64) int64 {
	a, b = abs64(a), abs64(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// floorDiv returns floor(a/b) for b > 0.
func floorDiv(a, b int64) int64 {
	if a >= 0 {
		return a / b
	}
	return -((-a + b - 1) / b)
}

// normalize divides a row by the gcd of its variable coefficients,
// tightening the constant term of inequalities toward the integer hull.
// It reports false when the row is integrally infeasible on its own
// (an equality whose constant is not a multiple of the coefficient gcd,
// or a constant-only row that is violated).
func (r *row) normalize() bool {
	n := len(r.c) - 1
	var g int64
	for i := 0; i < n; i++ {
		g = gcd64(g, r.c[i])
	}
	cst := r.c[n]
	if g == 0 {
		if r.eq {
			return cst == 0
		}
		return cst >= 0
	}
	if r.eq {
		if cst%g != 0 {
			return false
		}
		for i := 0; i <= n; i++ {
			r.c[i] /= g
		}
		return true
	}
	for i := 0; i < n; i++ {
		r.c[i] /= g
	}
	r.c[n] = floorDiv(cst, g)
	return true
}

// substitute eliminates column col from r using the equality eq, whose
// coefficient at col must be positive. The inequality direction of r is
// preserved.
func substitute(r, eqRow row, col int) row {
	p := eqRow.c[col]
	b := r.c[col]
	out := row{eq: r.eq, c: make([]int64, len(r.c))}
	for i := range r.c {
		out.c[i] = r.c[i]*p - eqRow.c[i]*b
	}
	return out
}

// eliminateCols removes the given columns from the system, substituting
// through equalities where possible and falling back to Fourier-Motzkin
// combination of inequality pairs. The returned rows have zero
// coefficients in every eliminated column. An infeasible row is returned
// as a single marker row so feasibility checks can observe it.
func eliminateCols(rows []row, cols []int) []row {
	for _, col := range cols {
		// prefer an equality pivot
		pivot := -1
		for i, r := range rows {
			if r.eq && r.c[col] != 0 {
				pivot = i
				break
			}
		}
		if pivot >= 0 {
			eqRow := rows[pivot]
			if eqRow.c[col] < 0 {
				for i := range eqRow.c {
					eqRow.c[i] = -eqRow.c[i]
				}
			}
			var next []row
			for i, r := range rows {
				if i == pivot {
					continue
				}
				if r.c[col] == 0 {
					next = append(next, r)
					continue
				}
				nr := substitute(r, eqRow, col)
				if !nr.normalize() {
					return []row{infeasibleRow(len(r.c))}
				}
				next = append(next, nr)
			}
			rows = next
			continue
		}
		// Fourier-Motzkin on inequalities
		var lower, upper, rest []row
		for _, r := range rows {
			switch {
			case r.c[col] > 0:
				lower = append(lower, r)
			case r.c[col] < 0:
				upper = append(upper, r)
			default:
				rest = append(rest, r)
			}
		}
		for _, l := range lower {
			for _, u := range upper {
				nr := row{c: make([]int64, len(l.c))}
				a := -u.c[col]
				b := l.c[col]
				for i := range l.c {
					nr.c[i] = l.c[i]*a + u.c[i]*b
				}
				if !nr.normalize() {
					return []row{infeasibleRow(len(l.c))}
				}
				rest = append(rest, nr)
			}
		}
		rows = rest
	}
	return rows
}

// infeasibleRow is a constant row encoding "0 >= 1".
func infeasibleRow(n int) row {
	r := row{c: make([]int64, n)}
	r.c[n-1] = -1
	return r
}

// feasible reports whether the system of rows has a rational solution,
// applying the integer gcd test on equalities. nCols includes the
// constant column.
func feasible(rows []row, nCols int) bool {
	work := make([]row, len(rows))
	for i, r := range rows {
		work[i] = row{eq: r.eq, c: append([]int64(nil), r.c...)}
		if !work[i].normalize() {
			return false
		}
	}
	cols := make([]int, 0, nCols-1)
	for i := 0; i < nCols-1; i++ {
		cols = append(cols, i)
	}
	work = eliminateCols(work, cols)
	for _, r := range work {
		cst := r.c[len(r.c)-1]
		if r.eq && cst != 0 {
			return false
		}
		if !r.eq && cst < 0 {
			return false
		}
	}
	return true
}

// compressRows drops the given (now zero) columns from each row and
// returns constraints over the remaining columns, omitting trivially
// satisfied rows.
func compressRows(rows []row, dropped []int, oldNCols int) []Constraint {
	isDropped := make([]bool, oldNCols)
	for _, c := range dropped {
		isDropped[c] = true
	}
	var cons []Constraint
	for _, r := range rows {
		c := Constraint{Eq: r.eq}
		for i, v := range r.c {
			if i < oldNCols-1 && isDropped[i] {
				continue
			}
			c.Coef = append(c.Coef, v)
		}
		trivial := true
		for i := 0; i < len(c.Coef)-1; i++ {
			if c.Coef[i] != 0 {
				trivial = false
				break
			}
		}
		cst := c.Coef[len(c.Coef)-1]
		if trivial && ((c.Eq && cst == 0) || (!c.Eq && cst >= 0)) {
			continue
		}
		cons = append(cons, c)
	}
	return cons
}

// isFeasible reports whether the basic relation has any point.
func (bm *BasicMap) isFeasible() bool {
	return feasible(toRows(bm), bm.numCols())
}

// IsEmpty reports whether the relation contains no points.
func (m *Map) IsEmpty() bool {
	for _, d := range m.Disjuncts {
		if d.isFeasible() {
			return false
		}
	}
	return true
}

// basicSubset reports whether every point of a satisfies all constraints
// of b. Only div-free right-hand sides are supported; callers construct
// such relations (universes with equated dimensions).
func basicSubset(a, b *BasicMap) (bool, error) {
	if b.NDiv > 0 {
		return false, fmt.Errorf("subset test against quantified constraints is not supported")
	}
	rows := toRows(a)
	n := a.numCols()
	// b's columns are a's space columns; pad with a's divs
	pad := func(c Constraint, negate bool, shift int64) row {
		r := row{c: make([]int64, n)}
		m := 1
		if negate {
			m = -1
		}
		for i := 0; i < b.numCols()-1; i++ {
			r.c[i] = c.Coef[i] * int64(m)
		}
		r.c[n-1] = c.Coef[b.numCols()-1]*int64(m) + shift
		return r
	}
	for _, c := range b.Cons {
		if c.Eq {
			// violated when e >= 1 or -e >= 1
			hi := append(rows, pad(c, false, -1))
			if feasible(hi, n) {
				return false, nil
			}
			lo := append(rows, pad(c, true, -1))
			if feasible(lo, n) {
				return false, nil
			}
		} else {
			// violated when -e - 1 >= 0
			neg := append(rows, pad(c, true, -1))
			if feasible(neg, n) {
				return false, nil
			}
		}
	}
	return true, nil
}

// IsSubset reports whether every point of m is contained in other. Each
// disjunct of m must be contained in a single disjunct of other; this is
// exact when other is a single conjunction, and conservative otherwise.
func (m *Map) IsSubset(other *Map) (bool, error) {
	a, b, err := alignSpaces(m, other)
	if err != nil {
		return false, err
	}
	for _, da := range a.Disjuncts {
		if !da.isFeasible() {
			continue
		}
		contained := false
		for _, db := range b.Disjuncts {
			ok, err := basicSubset(da, db)
			if err != nil {
				return false, err
			}
			if ok {
				contained = true
				break
			}
		}
		if !contained {
			return false, nil
		}
	}
	return true, nil
}

// Coalesce drops empty disjuncts and disjuncts contained in another
// disjunct.
func (m *Map) Coalesce() *Map {
	res := &Map{Space: m.Space.Clone()}
	kept := make([]bool, len(m.Disjuncts))
	for i, d := range m.Disjuncts {
		kept[i] = d.isFeasible()
	}
	for i, d := range m.Disjuncts {
		if !kept[i] {
			continue
		}
		redundant := false
		for j, o := range m.Disjuncts {
			if i == j || !kept[j] {
				continue
			}
			if o.NDiv > 0 {
				continue
			}
			if ok, err := basicSubset(d, o); err == nil && ok {
				// drop the earlier of two mutually containing disjuncts
				if eq, _ := basicSubset(o, d); !eq || j > i {
					redundant = true
					break
				}
			}
		}
		if !redundant {
			res.Disjuncts = append(res.Disjuncts, d.clone())
		}
	}
	return res
}
