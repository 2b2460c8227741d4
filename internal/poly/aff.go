package poly

import "fmt"

// Aff is a rational affine expression over the parameters and input
// dimensions of a space: (sum of Coef*dim + Const) / Den, with Den > 0.
// Integer division enters only when the expression is materialized as an
// AST expression, via a floor of the quotient.
type Aff struct {
	Space *Space
	Coef  []int64 // one per parameter, then one per input dimension
	Const int64
	Den   int64
}

// equal reports structural equality of two affine expressions.
func (a *Aff) equal(b *Aff) bool {
	if a.Den != b.Den || a.Const != b.Const || len(a.Coef) != len(b.Coef) {
		return false
	}
	for i := range a.Coef {
		if a.Coef[i] != b.Coef[i] {
			return false
		}
	}
	return true
}

// MultiAff is a tuple of affine expressions, one per output dimension of
// a relation.
type MultiAff struct {
	Space *Space
	Affs  []*Aff
}

func (ma *MultiAff) equal(mb *MultiAff) bool {
	if len(ma.Affs) != len(mb.Affs) {
		return false
	}
	for i := range ma.Affs {
		if !ma.Affs[i].equal(mb.Affs[i]) {
			return false
		}
	}
	return true
}

// PwMultiAff is a piecewise multi-affine function: one MultiAff per
// disjunct of the relation it was derived from.
type PwMultiAff struct {
	Space  *Space
	Pieces []*MultiAff
}

// Coalesce merges structurally identical pieces.
func (p *PwMultiAff) Coalesce() *PwMultiAff {
	res := &PwMultiAff{Space: p.Space}
	for _, piece := range p.Pieces {
		dup := false
		for _, kept := range res.Pieces {
			if kept.equal(piece) {
				dup = true
				break
			}
		}
		if !dup {
			res.Pieces = append(res.Pieces, piece)
		}
	}
	return res
}

// PwAff is a piecewise affine expression for a single output dimension.
type PwAff struct {
	Space  *Space
	Pieces []*Aff
}

// At extracts the piecewise affine expression of output dimension i.
func (p *PwMultiAff) At(i int) *PwAff {
	pa := &PwAff{Space: p.Space}
	for _, piece := range p.Pieces {
		pa.Pieces = append(pa.Pieces, piece.Affs[i])
	}
	return pa
}

// Dim returns the number of output dimensions of the function.
func (p *PwMultiAff) Dim() int {
	if len(p.Pieces) == 0 {
		return 0
	}
	return len(p.Pieces[0].Affs)
}

// SinglePiece returns the unique affine expression of the piecewise
// expression, after merging identical pieces. It fails when genuinely
// different pieces remain.
func (p *PwAff) SinglePiece() (*Aff, error) {
	if len(p.Pieces) == 0 {
		return nil, fmt.Errorf("empty piecewise expression")
	}
	first := p.Pieces[0]
	for _, a := range p.Pieces[1:] {
		if !a.equal(first) {
			return nil, fmt.Errorf("piecewise index expression with %d distinct pieces", len(p.Pieces))
		}
	}
	return first, nil
}

// PwMultiAffFromMap converts a relation into a piecewise multi-affine
// function from its input tuple to its output tuple. Every output
// dimension must be uniquely determined by the equality constraints of
// each disjunct; a dimension that is not is a contract violation of the
// caller (a non-single-valued access relation).
func PwMultiAffFromMap(m *Map) (*PwMultiAff, error) {
	res := &PwMultiAff{Space: m.Space.Clone()}
	nOut := len(m.Space.Out)
	for _, d := range m.Disjuncts {
		if !d.isFeasible() {
			continue
		}
		rows := toRows(d)
		var divCols []int
		for i := 0; i < d.NDiv; i++ {
			divCols = append(divCols, d.Space.NumCols()+i)
		}
		rows = eliminateCols(rows, divCols)

		// Gaussian elimination over the output columns: after the loop,
		// pivots[j] defines output j in terms of parameters and inputs only.
		pivots := make([]int, nOut)
		for j := 0; j < nOut; j++ {
			col := d.Space.Col(DimOut, j)
			pivots[j] = -1
			for i, r := range rows {
				if r.eq && r.c[col] != 0 && !contains(pivots[:j], i) {
					pivots[j] = i
					break
				}
			}
			if pivots[j] < 0 {
				return nil, fmt.Errorf("output dimension %d of %s is not determined by the relation", j, m.Space)
			}
			piv := rows[pivots[j]]
			if piv.c[col] < 0 {
				for i := range piv.c {
					piv.c[i] = -piv.c[i]
				}
			}
			for i, r := range rows {
				if i == pivots[j] || r.c[col] == 0 {
					continue
				}
				rows[i] = substitute(r, piv, col)
			}
		}

		ma := &MultiAff{Space: m.Space.Clone()}
		for j := 0; j < nOut; j++ {
			piv := rows[pivots[j]]
			col := d.Space.Col(DimOut, j)
			den := piv.c[col]
			aff := &Aff{
				Space: m.Space.Clone(),
				Coef:  make([]int64, len(m.Space.Params)+len(m.Space.In)),
				Den:   den,
			}
			for i := range m.Space.Params {
				aff.Coef[i] = -piv.c[d.Space.Col(DimParam, i)]
			}
			for i := range m.Space.In {
				aff.Coef[len(m.Space.Params)+i] = -piv.c[d.Space.Col(DimIn, i)]
			}
			aff.Const = -piv.c[len(piv.c)-1]
			// other output dimensions must no longer appear
			for k := 0; k < nOut; k++ {
				if k != j && piv.c[d.Space.Col(DimOut, k)] != 0 {
					return nil, fmt.Errorf("output dimensions %d and %d of %s are coupled", j, k, m.Space)
				}
			}
			aff.reduce()
			ma.Affs = append(ma.Affs, aff)
		}
		res.Pieces = append(res.Pieces, ma)
	}
	if len(res.Pieces) == 0 {
		return nil, fmt.Errorf("cannot convert empty relation %s to an affine function", m.Space)
	}
	return res, nil
}

// reduce divides the expression by the gcd of all terms and the
// denominator.
func (a *Aff) reduce() {
	g := a.Den
	for _, c := range a.Coef {
		g = gcd64(g, c)
	}
	g = gcd64(g, a.Const)
	if g > 1 {
		for i := range a.Coef {
			a.Coef[i] /= g
		}
		a.Const /= g
		a.Den /= g
	}
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
