package poly

import (
	"fmt"
	"strconv"

	"github.com/polygen-dev/polygen/internal/diagnostic"
)

// This file parses the textual notation for sets and relations used by
// scop descriptions and tests:
//
//	[N] -> { S0[i, j] -> [i, j + 1] : 0 <= i < N and 0 <= j < N }
//
// The first tuple declares dimension names. Elements of the second tuple
// are either fresh identifiers, which become named output dimensions, or
// affine expressions over the declared dimensions, which pin the output
// dimension to that expression. Conditions are conjunctions of (possibly
// chained) affine comparisons, with "or" separating disjuncts and ";"
// separating relations over different tuples.

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokInt
	tokArrow     // ->
	tokLBrace    // {
	tokRBrace    // }
	tokLBracket  // [
	tokRBracket  // ]
	tokLParen    // (
	tokRParen    // )
	tokComma     // ,
	tokColon     // :
	tokSemicolon // ;
	tokPlus      // +
	tokMinus     // -
	tokStar      // *
	tokLT        // <
	tokLE        // <=
	tokGT        // >
	tokGE        // >=
	tokEQ        // = or ==
	tokAnd       // and
	tokOr        // or
	tokIllegal
)

type token struct {
	typ  tokenType
	text string
	col  int
}

// scan tokenizes the notation input.
func scan(input string) []token {
	var toks []token
	i := 0
	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case isIdentStart(ch):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			text := input[start:i]
			switch text {
			case "and":
				toks = append(toks, token{tokAnd, text, start + 1})
			case "or":
				toks = append(toks, token{tokOr, text, start + 1})
			default:
				toks = append(toks, token{tokIdent, text, start + 1})
			}
		case ch >= '0' && ch <= '9':
			start := i
			for i < len(input) && input[i] >= '0' && input[i] <= '9' {
				i++
			}
			toks = append(toks, token{tokInt, input[start:i], start + 1})
		case ch == '-':
			if i+1 < len(input) && input[i+1] == '>' {
				toks = append(toks, token{tokArrow, "->", i + 1})
				i += 2
			} else {
				toks = append(toks, token{tokMinus, "-", i + 1})
				i++
			}
		case ch == '<':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{tokLE, "<=", i + 1})
				i += 2
			} else {
				toks = append(toks, token{tokLT, "<", i + 1})
				i++
			}
		case ch == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{tokGE, ">=", i + 1})
				i += 2
			} else {
				toks = append(toks, token{tokGT, ">", i + 1})
				i++
			}
		case ch == '=':
			if i+1 < len(input) && input[i+1] == '=' {
				i += 2
			} else {
				i++
			}
			toks = append(toks, token{tokEQ, "=", i})
		default:
			typ := tokIllegal
			switch ch {
			case '{':
				typ = tokLBrace
			case '}':
				typ = tokRBrace
			case '[':
				typ = tokLBracket
			case ']':
				typ = tokRBracket
			case '(':
				typ = tokLParen
			case ')':
				typ = tokRParen
			case ',':
				typ = tokComma
			case ':':
				typ = tokColon
			case ';':
				typ = tokSemicolon
			case '+':
				typ = tokPlus
			case '*':
				typ = tokStar
			}
			toks = append(toks, token{typ, string(ch), i + 1})
			i++
		}
	}
	toks = append(toks, token{tokEOF, "", len(input) + 1})
	return toks
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

type parser struct {
	toks   []token
	pos    int
	diags  *diagnostic.Diagnostics
	params []string
}

func (p *parser) current() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) check(t tokenType) bool { return p.current().typ == t }

func (p *parser) accept(t tokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(t tokenType, what string) token {
	if p.check(t) {
		return p.advance()
	}
	p.diags.Errorf(1, p.current().col, "expected %s, found %q", what, p.current().text)
	return p.current()
}

// ParseUnionMap parses the notation into a union of relations.
func ParseUnionMap(input string) (*UnionMap, error) {
	p := &parser{toks: scan(input), diags: diagnostic.New()}
	u := p.parseUnion()
	if p.diags.HasErrors() {
		return nil, fmt.Errorf("invalid notation %q: %s", input, p.diags.All()[0].Message)
	}
	return u, nil
}

// ParseUnionSet parses the notation into a union of sets.
func ParseUnionSet(input string) (*UnionSet, error) {
	return ParseUnionMap(input)
}

// ParseMap parses notation describing a single relation.
func ParseMap(input string) (*Map, error) {
	u, err := ParseUnionMap(input)
	if err != nil {
		return nil, err
	}
	if len(u.Maps) != 1 {
		return nil, fmt.Errorf("notation %q describes %d relations, expected one", input, len(u.Maps))
	}
	return u.Maps[0], nil
}

// ParseSet parses notation describing a single set.
func ParseSet(input string) (*Set, error) {
	return ParseMap(input)
}

func (p *parser) parseUnion() *UnionMap {
	if p.accept(tokLBracket) {
		for !p.check(tokRBracket) && !p.check(tokEOF) {
			id := p.expect(tokIdent, "parameter name")
			p.params = append(p.params, id.text)
			if !p.accept(tokComma) {
				break
			}
		}
		p.expect(tokRBracket, "']'")
		p.expect(tokArrow, "'->'")
	}
	p.expect(tokLBrace, "'{'")
	u := &UnionMap{}
	for !p.check(tokRBrace) && !p.check(tokEOF) {
		m := p.parseConjunct()
		if m != nil {
			if err := u.add(m); err != nil {
				p.diags.Errorf(1, p.current().col, "%s", err)
			}
		}
		if !p.accept(tokSemicolon) {
			break
		}
	}
	p.expect(tokRBrace, "'}'")
	return u
}

// tupleElem is one parsed element of a tuple: either a fresh dimension
// name or an affine expression over the previously declared dimensions.
type tupleElem struct {
	name string  // non-empty for a fresh named dimension
	coef []int64 // over params + in dims
	cst  int64
}

func (p *parser) parseConjunct() *Map {
	// a parameter-only set such as "[N] -> { : N >= 1 }" has no tuple
	if p.check(tokColon) {
		p.advance()
		space := SetSpace(p.params, "", nil)
		m := &Map{Space: space}
		for _, cons := range p.parseCondition(space) {
			m.Disjuncts = append(m.Disjuncts, &BasicMap{Space: space.Clone(), Cons: cons})
		}
		return m
	}

	// first tuple: declares dimensions
	inName, inDims := p.parseDeclTuple()
	var outName string
	var outElems []tupleElem
	isMap := false
	if p.accept(tokArrow) {
		isMap = true
		outName, outElems = p.parseExprTuple(inDims)
	}

	var space *Space
	var base []Constraint
	if !isMap {
		// a set: the declared tuple is the output tuple
		space = SetSpace(p.params, inName, inDims)
	} else {
		outDims := make([]string, len(outElems))
		for i, e := range outElems {
			outDims[i] = e.name
		}
		space = MapSpace(p.params, inName, inDims, outName, outDims)
		nCols := space.NumCols() + 1
		for i, e := range outElems {
			if e.name != "" {
				continue
			}
			c := Constraint{Eq: true, Coef: make([]int64, nCols)}
			c.Coef[space.Col(DimOut, i)] = -1
			for j, v := range e.coef {
				if j < len(p.params) {
					c.Coef[space.Col(DimParam, j)] = v
				} else {
					c.Coef[space.Col(DimIn, j-len(p.params))] = v
				}
			}
			c.Coef[nCols-1] = e.cst
			base = append(base, c)
		}
	}

	var disjuncts [][]Constraint
	if p.accept(tokColon) {
		disjuncts = p.parseCondition(space)
	} else {
		disjuncts = [][]Constraint{nil}
	}

	m := &Map{Space: space}
	for _, extra := range disjuncts {
		bm := &BasicMap{Space: space.Clone()}
		for _, c := range base {
			bm.Cons = append(bm.Cons, c.clone())
		}
		for _, c := range extra {
			bm.Cons = append(bm.Cons, c.clone())
		}
		m.Disjuncts = append(m.Disjuncts, bm)
	}
	return m
}

// parseDeclTuple parses a tuple whose elements are fresh dimension names.
func (p *parser) parseDeclTuple() (string, []string) {
	name := ""
	if p.check(tokIdent) {
		name = p.advance().text
	}
	p.expect(tokLBracket, "'['")
	var dims []string
	for !p.check(tokRBracket) && !p.check(tokEOF) {
		id := p.expect(tokIdent, "dimension name")
		dims = append(dims, id.text)
		if !p.accept(tokComma) {
			break
		}
	}
	p.expect(tokRBracket, "']'")
	return name, dims
}

// parseExprTuple parses a tuple whose elements are either fresh names or
// affine expressions over the input dimensions and parameters.
func (p *parser) parseExprTuple(inDims []string) (string, []tupleElem) {
	name := ""
	if p.check(tokIdent) && p.toks[p.pos+1].typ == tokLBracket {
		name = p.advance().text
	}
	p.expect(tokLBracket, "'['")
	var elems []tupleElem
	for !p.check(tokRBracket) && !p.check(tokEOF) {
		// a lone identifier that is not a parameter or input dimension
		// declares a named output dimension
		if p.check(tokIdent) {
			next := p.toks[p.pos+1].typ
			known := paramIndex(p.params, p.current().text) >= 0 ||
				paramIndex(inDims, p.current().text) >= 0
			if !known && (next == tokComma || next == tokRBracket) {
				elems = append(elems, tupleElem{name: p.advance().text})
				if !p.accept(tokComma) {
					break
				}
				continue
			}
		}
		coef, cst, _ := p.parseAffExpr(inDims, nil, nil)
		elems = append(elems, tupleElem{coef: coef, cst: cst})
		if !p.accept(tokComma) {
			break
		}
	}
	p.expect(tokRBracket, "']'")
	return name, elems
}

// parseCondition parses "or"-separated conjunctions of chained affine
// comparisons into constraint lists over the full space.
func (p *parser) parseCondition(space *Space) [][]Constraint {
	var disjuncts [][]Constraint
	for {
		var cons []Constraint
		for {
			cons = append(cons, p.parseComparisonChain(space)...)
			if !p.accept(tokAnd) {
				break
			}
		}
		disjuncts = append(disjuncts, cons)
		if !p.accept(tokOr) {
			break
		}
	}
	return disjuncts
}

// parseComparisonChain parses e0 op e1 op e2 ... producing one constraint
// per adjacent pair.
func (p *parser) parseComparisonChain(space *Space) []Constraint {
	var cons []Constraint
	lc, lcst, _ := p.parseAffExpr(space.In, space.Out, space)
	for {
		var op tokenType
		switch p.current().typ {
		case tokLT, tokLE, tokGT, tokGE, tokEQ:
			op = p.advance().typ
		default:
			return cons
		}
		rc, rcst, _ := p.parseAffExpr(space.In, space.Out, space)
		cons = append(cons, makeComparison(space, op, lc, lcst, rc, rcst))
		lc, lcst = rc, rcst
	}
}

// makeComparison builds the constraint for "left op right".
func makeComparison(space *Space, op tokenType, lc []int64, lcst int64, rc []int64, rcst int64) Constraint {
	n := space.NumCols()
	c := Constraint{Coef: make([]int64, n+1)}
	// diff = right - left
	for i := 0; i < n; i++ {
		c.Coef[i] = rc[i] - lc[i]
	}
	c.Coef[n] = rcst - lcst
	switch op {
	case tokEQ:
		c.Eq = true
	case tokLT: // left < right: diff - 1 >= 0
		c.Coef[n]--
	case tokLE: // left <= right: diff >= 0
	case tokGT, tokGE: // flip to left - right
		for i := 0; i <= n; i++ {
			c.Coef[i] = -c.Coef[i]
		}
		if op == tokGT {
			c.Coef[n]--
		}
	}
	return c
}

// parseAffExpr parses an affine expression and returns its coefficients.
// When space is nil the expression may only use parameters and inDims and
// the coefficients run over params then inDims; otherwise they run over
// the full space columns.
func (p *parser) parseAffExpr(inDims, outDims []string, space *Space) ([]int64, int64, bool) {
	n := len(p.params) + len(inDims) + len(outDims)
	resolve := func(name string) int {
		if space != nil {
			if i := paramIndex(space.Params, name); i >= 0 {
				return space.Col(DimParam, i)
			}
			if i := paramIndex(space.In, name); i >= 0 {
				return space.Col(DimIn, i)
			}
			if i := paramIndex(space.Out, name); i >= 0 {
				return space.Col(DimOut, i)
			}
			return -1
		}
		if i := paramIndex(p.params, name); i >= 0 {
			return i
		}
		if i := paramIndex(inDims, name); i >= 0 {
			return len(p.params) + i
		}
		return -1
	}

	coef := make([]int64, n)
	cst, ok := p.parseAffSum(coef, resolve)
	return coef, cst, ok
}

// parseAffSum parses term (('+'|'-') term)* accumulating into coef.
func (p *parser) parseAffSum(coef []int64, resolve func(string) int) (int64, bool) {
	cst, ok := p.parseAffTerm(coef, 1, resolve)
	for {
		switch {
		case p.accept(tokPlus):
			c2, ok2 := p.parseAffTerm(coef, 1, resolve)
			cst += c2
			ok = ok && ok2
		case p.accept(tokMinus):
			c2, ok2 := p.parseAffTerm(coef, -1, resolve)
			cst += c2
			ok = ok && ok2
		default:
			return cst, ok
		}
	}
}

// parseAffTerm parses factor ('*' factor)*; at most one factor may carry
// dimensions (an identifier or a parenthesized sub-expression), the rest
// must be integer constants.
func (p *parser) parseAffTerm(coef []int64, sign int64, resolve func(string) int) (int64, bool) {
	mult := sign
	var lin []int64 // linear part of the single non-constant factor
	var linCst int64
	ok := true
	for {
		for p.accept(tokMinus) {
			mult = -mult
		}
		switch {
		case p.check(tokInt):
			v, _ := strconv.ParseInt(p.advance().text, 10, 64)
			mult *= v
		case p.check(tokIdent):
			c := resolve(p.current().text)
			if c < 0 {
				p.diags.Errorf(1, p.current().col, "unknown dimension %q", p.current().text)
				ok = false
			} else if lin != nil {
				p.diags.Errorf(1, p.current().col, "non-affine term")
				ok = false
			} else {
				lin = make([]int64, len(coef))
				lin[c] = 1
			}
			p.advance()
		case p.accept(tokLParen):
			sub := make([]int64, len(coef))
			scst, sok := p.parseAffSum(sub, resolve)
			ok = ok && sok
			p.expect(tokRParen, "')'")
			if allZero(sub) {
				mult *= scst
			} else if lin != nil {
				p.diags.Errorf(1, p.current().col, "non-affine term")
				ok = false
			} else {
				lin = sub
				linCst = scst
			}
		default:
			p.diags.Errorf(1, p.current().col, "expected affine term, found %q", p.current().text)
			ok = false
			p.advance()
		}
		if !p.accept(tokStar) {
			break
		}
	}
	if lin == nil {
		return mult, ok
	}
	for i := range lin {
		coef[i] += mult * lin[i]
	}
	return mult * linCst, ok
}

func allZero(xs []int64) bool {
	for _, v := range xs {
		if v != 0 {
			return false
		}
	}
	return true
}
