package poly

import (
	"fmt"
)

// Constraint is one affine constraint of a basic relation. Coef holds one
// coefficient per column in the order parameters, input dimensions, output
// dimensions, existentially quantified columns, and finally the constant
// term. An equality constrains the expression to zero; an inequality
// constrains it to be non-negative.
type Constraint struct {
	Eq   bool
	Coef []int64
}

func (c Constraint) clone() Constraint {
	return Constraint{Eq: c.Eq, Coef: append([]int64(nil), c.Coef...)}
}

// BasicMap is a conjunction of affine constraints over a space, with NDiv
// additional existentially quantified columns between the space columns
// and the constant term.
type BasicMap struct {
	Space *Space
	NDiv  int
	Cons  []Constraint
}

// BasicSet is a basic relation without input dimensions.
type BasicSet = BasicMap

// numCols returns the total number of constraint columns, including the
// constant term.
func (bm *BasicMap) numCols() int {
	return bm.Space.NumCols() + bm.NDiv + 1
}

// constCol returns the column index of the constant term.
func (bm *BasicMap) constCol() int {
	return bm.Space.NumCols() + bm.NDiv
}

func (bm *BasicMap) clone() *BasicMap {
	cons := make([]Constraint, len(bm.Cons))
	for i, c := range bm.Cons {
		cons[i] = c.clone()
	}
	return &BasicMap{Space: bm.Space.Clone(), NDiv: bm.NDiv, Cons: cons}
}

// universeBasic returns the unconstrained basic relation over a space.
func universeBasic(space *Space) *BasicMap {
	return &BasicMap{Space: space.Clone()}
}

// newConstraint returns an all-zero constraint sized for bm.
func (bm *BasicMap) newConstraint(eq bool) Constraint {
	return Constraint{Eq: eq, Coef: make([]int64, bm.numCols())}
}

// addEquate adds the constraint dim(t1,i) = dim(t2,j).
func (bm *BasicMap) addEquate(t1 DimType, i int, t2 DimType, j int) {
	c := bm.newConstraint(true)
	c.Coef[bm.Space.Col(t1, i)] = 1
	c.Coef[bm.Space.Col(t2, j)] -= 1
	bm.Cons = append(bm.Cons, c)
}

// Map is a finite union of basic relations in one space. A relation with
// no disjuncts is empty. Sets are represented as maps without input
// dimensions.
type Map struct {
	Space     *Space
	Disjuncts []*BasicMap
}

// Set is a relation without input dimensions.
type Set = Map

// UniverseMap returns the unconstrained relation over a space.
func UniverseMap(space *Space) *Map {
	return &Map{Space: space.Clone(), Disjuncts: []*BasicMap{universeBasic(space)}}
}

// EmptyMap returns the empty relation over a space.
func EmptyMap(space *Space) *Map {
	return &Map{Space: space.Clone()}
}

// Clone returns a deep copy of the relation.
func (m *Map) Clone() *Map {
	ds := make([]*BasicMap, len(m.Disjuncts))
	for i, d := range m.Disjuncts {
		ds[i] = d.clone()
	}
	return &Map{Space: m.Space.Clone(), Disjuncts: ds}
}

// remapColumns rewrites a constraint row from an old layout to a new one.
// colMap[i] names the new column of old column i; the last old column is
// the constant term and maps to the last new column.
func remapColumns(c Constraint, colMap []int, nNewCols int) Constraint {
	out := Constraint{Eq: c.Eq, Coef: make([]int64, nNewCols)}
	for i, v := range c.Coef {
		if v == 0 {
			continue
		}
		if i == len(c.Coef)-1 {
			out.Coef[nNewCols-1] += v
		} else {
			out.Coef[colMap[i]] += v
		}
	}
	return out
}

// alignBasic rewrites bm to live in the given space (which must contain
// bm's parameters and relate the same tuples), keeping bm's divs.
func alignBasic(bm *BasicMap, space *Space) *BasicMap {
	res := &BasicMap{Space: space.Clone(), NDiv: bm.NDiv}
	nNew := res.numCols()
	colMap := make([]int, bm.numCols()-1)
	for i := range bm.Space.Params {
		colMap[bm.Space.Col(DimParam, i)] = space.Col(DimParam, paramIndex(space.Params, bm.Space.Params[i]))
	}
	for i := range bm.Space.In {
		colMap[bm.Space.Col(DimIn, i)] = space.Col(DimIn, i)
	}
	for i := range bm.Space.Out {
		colMap[bm.Space.Col(DimOut, i)] = space.Col(DimOut, i)
	}
	for i := 0; i < bm.NDiv; i++ {
		colMap[bm.Space.NumCols()+i] = space.NumCols() + i
	}
	for _, c := range bm.Cons {
		res.Cons = append(res.Cons, remapColumns(c, colMap, nNew))
	}
	return res
}

// alignSpaces returns both relations rewritten over the union of their
// parameter lists. The tuples must already match.
func alignSpaces(a, b *Map) (*Map, *Map, error) {
	if !a.Space.TuplesEqual(b.Space) {
		return nil, nil, fmt.Errorf("space mismatch: %s vs %s", a.Space, b.Space)
	}
	params := mergeParams(a.Space.Params, b.Space.Params)
	sa := a.Space.Clone()
	sa.Params = params
	sb := b.Space.Clone()
	sb.Params = params
	ra := &Map{Space: sa}
	for _, d := range a.Disjuncts {
		ra.Disjuncts = append(ra.Disjuncts, alignBasic(d, sa))
	}
	rb := &Map{Space: sb}
	for _, d := range b.Disjuncts {
		rb.Disjuncts = append(rb.Disjuncts, alignBasic(d, sb))
	}
	return ra, rb, nil
}

// Union returns the union of two relations over the same tuples.
func (m *Map) Union(other *Map) (*Map, error) {
	a, b, err := alignSpaces(m, other)
	if err != nil {
		return nil, err
	}
	a.Disjuncts = append(a.Disjuncts, b.Disjuncts...)
	return a, nil
}

// Reverse returns the relation with input and output tuples swapped.
func (m *Map) Reverse() *Map {
	space := m.Space.Reverse()
	res := &Map{Space: space}
	for _, d := range m.Disjuncts {
		nd := &BasicMap{Space: space.Clone(), NDiv: d.NDiv}
		nNew := nd.numCols()
		colMap := make([]int, d.numCols()-1)
		for i := range d.Space.Params {
			colMap[d.Space.Col(DimParam, i)] = space.Col(DimParam, i)
		}
		for i := range d.Space.In {
			colMap[d.Space.Col(DimIn, i)] = space.Col(DimOut, i)
		}
		for i := range d.Space.Out {
			colMap[d.Space.Col(DimOut, i)] = space.Col(DimIn, i)
		}
		for i := 0; i < d.NDiv; i++ {
			colMap[d.Space.NumCols()+i] = space.NumCols() + i
		}
		for _, c := range d.Cons {
			nd.Cons = append(nd.Cons, remapColumns(c, colMap, nNew))
		}
		res.Disjuncts = append(res.Disjuncts, nd)
	}
	return res
}

// applyBasic composes a: A -> B with b: B -> C into A -> C, turning the
// shared B dimensions into existentially quantified columns.
func applyBasic(a, b *BasicMap, space *Space, params []string) *BasicMap {
	nMid := len(a.Space.Out)
	res := &BasicMap{Space: space.Clone(), NDiv: a.NDiv + b.NDiv + nMid}
	nNew := res.numCols()
	divBase := space.NumCols()

	colMap := make([]int, a.numCols()-1)
	for i := range a.Space.Params {
		colMap[a.Space.Col(DimParam, i)] = space.Col(DimParam, paramIndex(params, a.Space.Params[i]))
	}
	for i := range a.Space.In {
		colMap[a.Space.Col(DimIn, i)] = space.Col(DimIn, i)
	}
	for i := range a.Space.Out {
		colMap[a.Space.Col(DimOut, i)] = divBase + a.NDiv + b.NDiv + i
	}
	for i := 0; i < a.NDiv; i++ {
		colMap[a.Space.NumCols()+i] = divBase + i
	}
	for _, c := range a.Cons {
		res.Cons = append(res.Cons, remapColumns(c, colMap, nNew))
	}

	colMap = make([]int, b.numCols()-1)
	for i := range b.Space.Params {
		colMap[b.Space.Col(DimParam, i)] = space.Col(DimParam, paramIndex(params, b.Space.Params[i]))
	}
	for i := range b.Space.In {
		colMap[b.Space.Col(DimIn, i)] = divBase + a.NDiv + b.NDiv + i
	}
	for i := range b.Space.Out {
		colMap[b.Space.Col(DimOut, i)] = space.Col(DimOut, i)
	}
	for i := 0; i < b.NDiv; i++ {
		colMap[b.Space.NumCols()+i] = divBase + a.NDiv + i
	}
	for _, c := range b.Cons {
		res.Cons = append(res.Cons, remapColumns(c, colMap, nNew))
	}
	return res
}

// ApplyRange composes m: A -> B with other: B -> C into A -> C.
func (m *Map) ApplyRange(other *Map) (*Map, error) {
	if m.Space.OutName != other.Space.InName || len(m.Space.Out) != len(other.Space.In) {
		return nil, fmt.Errorf("cannot compose %s with %s", m.Space, other.Space)
	}
	params := mergeParams(m.Space.Params, other.Space.Params)
	space := MapSpace(params, m.Space.InName, m.Space.In, other.Space.OutName, other.Space.Out)
	res := &Map{Space: space}
	for _, a := range m.Disjuncts {
		for _, b := range other.Disjuncts {
			res.Disjuncts = append(res.Disjuncts, applyBasic(a, b, space, params))
		}
	}
	return res, nil
}

// ApplyDomain maps the domain of m: A -> B through other: A -> C,
// yielding C -> B.
func (m *Map) ApplyDomain(other *Map) (*Map, error) {
	return other.Reverse().ApplyRange(m)
}

// IntersectDomain restricts the input tuple of m to the given set.
func (m *Map) IntersectDomain(set *Set) (*Map, error) {
	if m.Space.InName != set.Space.OutName || len(m.Space.In) != len(set.Space.Out) {
		return nil, fmt.Errorf("domain mismatch: %s vs %s", m.Space, set.Space)
	}
	params := mergeParams(m.Space.Params, set.Space.Params)
	space := m.Space.Clone()
	space.Params = params
	res := &Map{Space: space}
	for _, a := range m.Disjuncts {
		for _, b := range set.Disjuncts {
			d := alignBasic(a, space)
			// rewrite the set constraints onto the input columns
			nd := d.NDiv
			d.NDiv += b.NDiv
			grown := &BasicMap{Space: space.Clone(), NDiv: d.NDiv}
			nNew := grown.numCols()
			for _, c := range d.Cons {
				row := Constraint{Eq: c.Eq, Coef: make([]int64, nNew)}
				copy(row.Coef[:space.NumCols()+nd], c.Coef[:space.NumCols()+nd])
				row.Coef[nNew-1] = c.Coef[len(c.Coef)-1]
				grown.Cons = append(grown.Cons, row)
			}
			colMap := make([]int, b.numCols()-1)
			for i := range b.Space.Params {
				colMap[b.Space.Col(DimParam, i)] = space.Col(DimParam, paramIndex(params, b.Space.Params[i]))
			}
			for i := range b.Space.Out {
				colMap[b.Space.Col(DimOut, i)] = space.Col(DimIn, i)
			}
			for i := 0; i < b.NDiv; i++ {
				colMap[b.Space.NumCols()+i] = space.NumCols() + nd + i
			}
			for _, c := range b.Cons {
				grown.Cons = append(grown.Cons, remapColumns(c, colMap, nNew))
			}
			res.Disjuncts = append(res.Disjuncts, grown)
		}
	}
	return res, nil
}

// IntersectParams restricts the parameters of m to the given parameter
// set (a set with no set dimensions).
func (m *Map) IntersectParams(set *Set) (*Map, error) {
	if len(set.Space.Out) != 0 {
		return nil, fmt.Errorf("parameter set has dimensions: %s", set.Space)
	}
	params := mergeParams(m.Space.Params, set.Space.Params)
	space := m.Space.Clone()
	space.Params = params
	res := &Map{Space: space}
	for _, a := range m.Disjuncts {
		for _, b := range set.Disjuncts {
			d := alignBasic(a, space)
			nd := d.NDiv
			d.NDiv += b.NDiv
			grown := &BasicMap{Space: space.Clone(), NDiv: d.NDiv}
			nNew := grown.numCols()
			for _, c := range d.Cons {
				row := Constraint{Eq: c.Eq, Coef: make([]int64, nNew)}
				copy(row.Coef[:space.NumCols()+nd], c.Coef[:space.NumCols()+nd])
				row.Coef[nNew-1] = c.Coef[len(c.Coef)-1]
				grown.Cons = append(grown.Cons, row)
			}
			colMap := make([]int, b.numCols()-1)
			for i := range b.Space.Params {
				colMap[b.Space.Col(DimParam, i)] = space.Col(DimParam, paramIndex(params, b.Space.Params[i]))
			}
			for i := 0; i < b.NDiv; i++ {
				colMap[b.Space.NumCols()+i] = space.NumCols() + nd + i
			}
			for _, c := range b.Cons {
				grown.Cons = append(grown.Cons, remapColumns(c, colMap, nNew))
			}
			res.Disjuncts = append(res.Disjuncts, grown)
		}
	}
	return res, nil
}

// Equate adds the constraint that two dimensions are equal on every
// disjunct.
func (m *Map) Equate(t1 DimType, i int, t2 DimType, j int) *Map {
	res := m.Clone()
	for _, d := range res.Disjuncts {
		d.addEquate(t1, i, t2, j)
	}
	return res
}

// ProjectOutAfter existentially quantifies all output dimensions from
// index k onward, as well as all div columns, and eliminates them so the
// result is quantifier-free. The elimination is rational: congruence
// information, such as a dimension taking only even values, is not
// retained, so callers that depend on it must recover it from the
// original relation.
func (m *Map) ProjectOutAfter(k int) *Map {
	space := m.Space.Clone()
	space.Out = space.Out[:k]
	res := &Map{Space: space}
	for _, d := range m.Disjuncts {
		var drop []int
		for i := k; i < len(d.Space.Out); i++ {
			drop = append(drop, d.Space.Col(DimOut, i))
		}
		for i := 0; i < d.NDiv; i++ {
			drop = append(drop, d.Space.NumCols()+i)
		}
		rows := eliminateCols(toRows(d), drop)
		nd := &BasicMap{Space: space.Clone()}
		nd.Cons = compressRows(rows, drop, d.numCols())
		res.Disjuncts = append(res.Disjuncts, nd)
	}
	return res
}

// RangeSet existentially quantifies the input tuple, returning the set of
// range elements.
func (m *Map) RangeSet() *Set {
	space := SetSpace(m.Space.Params, m.Space.OutName, m.Space.Out)
	res := &Map{Space: space}
	for _, d := range m.Disjuncts {
		var drop []int
		for i := range d.Space.In {
			drop = append(drop, d.Space.Col(DimIn, i))
		}
		for i := 0; i < d.NDiv; i++ {
			drop = append(drop, d.Space.NumCols()+i)
		}
		rows := eliminateCols(toRows(d), drop)
		nd := &BasicMap{Space: space.Clone()}
		nd.Cons = compressRows(rows, drop, d.numCols())
		res.Disjuncts = append(res.Disjuncts, nd)
	}
	return res
}

// PlainFixedVal reports whether output dimension i is fixed to the same
// integer constant on every disjunct, and that constant.
func (m *Map) PlainFixedVal(i int) (int64, bool) {
	if len(m.Disjuncts) == 0 {
		return 0, false
	}
	var val int64
	for di, d := range m.Disjuncts {
		v, ok := d.plainFixedVal(i)
		if !ok {
			return 0, false
		}
		if di == 0 {
			val = v
		} else if v != val {
			return 0, false
		}
	}
	return val, true
}

// plainFixedVal looks for an equality fixing output dimension i to an
// integer constant with no other variables involved.
func (bm *BasicMap) plainFixedVal(i int) (int64, bool) {
	col := bm.Space.Col(DimOut, i)
	for _, c := range bm.Cons {
		if !c.Eq || c.Coef[col] == 0 {
			continue
		}
		plain := true
		for j := 0; j < len(c.Coef)-1; j++ {
			if j != col && c.Coef[j] != 0 {
				plain = false
				break
			}
		}
		if !plain {
			continue
		}
		k := c.Coef[col]
		cst := c.Coef[len(c.Coef)-1]
		if cst%k != 0 {
			return 0, false
		}
		return -cst / k, true
	}
	return 0, false
}
