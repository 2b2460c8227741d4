package scop

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/polygen-dev/polygen/internal/diagnostic"
	"github.com/polygen-dev/polygen/internal/poly"
)

// This file parses the textual scop description that stands in for a
// polyhedral extractor. The format is line oriented:
//
//	context [N] -> { : N >= 1 }
//	domain [N] -> { S0[i] : 0 <= i < N }
//	schedule [N] -> { S0[i] -> [i] }
//	flow { S0[i] -> S1[i] }
//	false { }
//	array a float N
//	array tmp float N declared
//	S0: c[i] = a[i] + b[i]
//
// Lines starting with # are comments. The domain, schedule, flow and
// false sections may be split over several lines; their relations are
// unioned. A statement line names a domain tuple and gives the C-like
// body whose array subscripts must be affine in the iterators and
// parameters.

// ParseFile reads and parses a scop description file.
func ParseFile(path string) (*Scop, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scop description: %w", err)
	}
	s, diags := Parse(string(data))
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid scop description:\n%s", diags.Format(path))
	}
	return s, nil
}

// Parse parses a scop description. The returned diagnostics carry all
// problems found; the scop is only meaningful when there are no
// errors.
func Parse(src string) (*Scop, *diagnostic.Diagnostics) {
	diags := diagnostic.New()
	s := &Scop{
		DepFlow:  poly.EmptyUnionMap(),
		DepFalse: poly.EmptyUnionMap(),
	}

	type stmtLine struct {
		name string
		body string
		line int
	}
	var stmts []stmtLine
	var arrayLines []int

	for i, raw := range strings.Split(src, "\n") {
		line := i + 1
		text := strings.TrimSpace(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		keyword, rest, _ := strings.Cut(text, " ")
		rest = strings.TrimSpace(rest)
		switch keyword {
		case "context":
			set, err := poly.ParseSet(rest)
			if err != nil {
				diags.Errorf(line, 1, "context: %v", err)
				continue
			}
			s.Context = set
		case "domain":
			u, err := poly.ParseUnionSet(rest)
			if err != nil {
				diags.Errorf(line, 1, "domain: %v", err)
				continue
			}
			s.Domain = unionInto(s.Domain, u, diags, line)
		case "schedule":
			u, err := poly.ParseUnionMap(rest)
			if err != nil {
				diags.Errorf(line, 1, "schedule: %v", err)
				continue
			}
			s.Schedule = unionInto(s.Schedule, u, diags, line)
		case "flow":
			u, err := poly.ParseUnionMap(rest)
			if err != nil {
				diags.Errorf(line, 1, "flow dependences: %v", err)
				continue
			}
			s.DepFlow = unionInto(s.DepFlow, u, diags, line)
		case "false":
			u, err := poly.ParseUnionMap(rest)
			if err != nil {
				diags.Errorf(line, 1, "false dependences: %v", err)
				continue
			}
			s.DepFalse = unionInto(s.DepFalse, u, diags, line)
		case "array":
			if arr := parseArrayLine(rest, diags, line); arr != nil {
				s.Arrays = append(s.Arrays, arr)
				arrayLines = append(arrayLines, line)
			}
		default:
			name, body, ok := strings.Cut(text, ":")
			if !ok {
				diags.Errorf(line, 1, "unknown directive %q", keyword)
				continue
			}
			stmts = append(stmts, stmtLine{
				name: strings.TrimSpace(name),
				body: strings.TrimSpace(body),
				line: line,
			})
		}
	}

	if s.Domain == nil {
		diags.Errorf(1, 1, "scop description has no domain")
	}
	if s.Schedule == nil {
		diags.Errorf(1, 1, "scop description has no schedule")
	}
	if diags.HasErrors() {
		return s, diags
	}

	for _, sl := range stmts {
		dom := domainOf(s.Domain, sl.name)
		if dom == nil {
			diags.Errorf(sl.line, 1, "statement %s has no iteration domain", sl.name)
			continue
		}
		st := &Stmt{Domain: dom}
		st.Body = parseBody(sl.body, dom, diags, sl.line)
		s.Stmts = append(s.Stmts, st)
	}
	validateArrays(s, arrayLines, diags)
	return s, diags
}

// validateArrays warns about arrays the statement bodies never touch
// and exposed arrays nothing writes; both usually mean the description
// is stale relative to the code it was extracted from.
func validateArrays(s *Scop, lines []int, diags *diagnostic.Diagnostics) {
	written := map[string]bool{}
	read := map[string]bool{}
	for _, st := range s.Stmts {
		for _, acc := range st.Accesses() {
			name := acc.Access.Space.OutName
			if name == "" {
				continue
			}
			if acc.Write {
				written[name] = true
			} else {
				read[name] = true
			}
		}
	}
	for i, arr := range s.Arrays {
		switch {
		case !written[arr.Name] && !read[arr.Name]:
			diags.Warningf(lines[i], 1, "array %s is never accessed", arr.Name)
		case arr.Exposed && !written[arr.Name]:
			diags.Warningf(lines[i], 1, "exposed array %s is never written", arr.Name)
		}
	}
}

func unionInto(dst, src *poly.UnionMap, diags *diagnostic.Diagnostics, line int) *poly.UnionMap {
	if dst == nil {
		return src
	}
	u, err := dst.Union(src)
	if err != nil {
		diags.Errorf(line, 1, "%v", err)
		return dst
	}
	return u
}

// domainOf extracts the iteration domain with the given tuple name.
func domainOf(domain *poly.UnionSet, name string) *poly.Set {
	for _, m := range domain.Maps {
		if m.Space.OutName == name {
			return m
		}
	}
	return nil
}

// parseArrayLine parses "array <name> <type> <extent...> [declared] [exposed]".
func parseArrayLine(rest string, diags *diagnostic.Diagnostics, line int) *Array {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		diags.Errorf(line, 1, "array line needs a name and an element type")
		return nil
	}
	arr := &Array{Name: fields[0], ElemType: fields[1]}
	for _, f := range fields[2:] {
		switch f {
		case "declared":
			arr.Declared = true
		case "exposed":
			arr.Declared = true
			arr.Exposed = true
		default:
			arr.Extent = append(arr.Extent, f)
		}
	}
	return arr
}

// --- statement body parsing ---

type bodyTokKind int

const (
	bodyEOF bodyTokKind = iota
	bodyIdent
	bodyInt
	bodyPunct
)

type bodyTok struct {
	kind bodyTokKind
	text string
	pos  int // byte offset into the body source
}

func scanBody(src string) []bodyTok {
	var toks []bodyTok
	i := 0
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++
		case ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z'):
			start := i
			for i < len(src) && (src[i] == '_' ||
				(src[i] >= 'a' && src[i] <= 'z') ||
				(src[i] >= 'A' && src[i] <= 'Z') ||
				(src[i] >= '0' && src[i] <= '9')) {
				i++
			}
			toks = append(toks, bodyTok{bodyIdent, src[start:i], start})
		case ch >= '0' && ch <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			toks = append(toks, bodyTok{bodyInt, src[start:i], start})
		default:
			text := string(ch)
			if i+1 < len(src) {
				two := src[i : i+2]
				switch two {
				case "==", "!=", "<=", ">=", "&&", "||":
					text = two
				}
			}
			toks = append(toks, bodyTok{bodyPunct, text, i})
			i += len(text)
		}
	}
	toks = append(toks, bodyTok{bodyEOF, "", len(src)})
	return toks
}

type bodyParser struct {
	src    string
	toks   []bodyTok
	pos    int
	line   int
	diags  *diagnostic.Diagnostics
	domain *poly.Set
	known  map[string]bool // iterator and parameter names
}

// parseBody parses a statement body into a template whose operands
// carry access relations over the statement's iteration domain.
func parseBody(src string, domain *poly.Set, diags *diagnostic.Diagnostics, line int) Expr {
	known := map[string]bool{}
	for _, p := range domain.Space.Params {
		known[p] = true
	}
	for _, d := range domain.Space.Out {
		known[d] = true
	}
	bp := &bodyParser{
		src:    src,
		toks:   scanBody(src),
		line:   line,
		diags:  diags,
		domain: domain,
		known:  known,
	}
	e := bp.parseAssign()
	if bp.current().kind != bodyEOF {
		bp.errorf("unexpected %q after statement body", bp.current().text)
	}
	return e
}

func (bp *bodyParser) current() bodyTok { return bp.toks[bp.pos] }

func (bp *bodyParser) advance() bodyTok {
	t := bp.toks[bp.pos]
	if t.kind != bodyEOF {
		bp.pos++
	}
	return t
}

func (bp *bodyParser) acceptPunct(text string) bool {
	if t := bp.current(); t.kind == bodyPunct && t.text == text {
		bp.advance()
		return true
	}
	return false
}

func (bp *bodyParser) checkPunct(text string) bool {
	t := bp.current()
	return t.kind == bodyPunct && t.text == text
}

func (bp *bodyParser) errorf(format string, args ...any) {
	bp.diags.Errorf(bp.line, bp.current().pos+1, format, args...)
}

func (bp *bodyParser) parseAssign() Expr {
	left := bp.parseCompare()
	if bp.acceptPunct("=") {
		if acc, ok := left.(*AccessExpr); ok {
			acc.Write = true
		} else {
			bp.errorf("left side of assignment is not an array or scalar reference")
		}
		right := bp.parseAssign()
		return &OpExpr{Op: "=", Args: []Expr{left, right}}
	}
	return left
}

func (bp *bodyParser) parseCompare() Expr {
	left := bp.parseAdditive()
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if bp.acceptPunct(op) {
			right := bp.parseAdditive()
			return &OpExpr{Op: op, Args: []Expr{left, right}}
		}
	}
	return left
}

func (bp *bodyParser) parseAdditive() Expr {
	left := bp.parseMultiplicative()
	for {
		switch {
		case bp.acceptPunct("+"):
			left = &OpExpr{Op: "+", Args: []Expr{left, bp.parseMultiplicative()}}
		case bp.acceptPunct("-"):
			left = &OpExpr{Op: "-", Args: []Expr{left, bp.parseMultiplicative()}}
		default:
			return left
		}
	}
}

func (bp *bodyParser) parseMultiplicative() Expr {
	left := bp.parseUnary()
	for {
		switch {
		case bp.acceptPunct("*"):
			left = &OpExpr{Op: "*", Args: []Expr{left, bp.parseUnary()}}
		case bp.acceptPunct("/"):
			left = &OpExpr{Op: "/", Args: []Expr{left, bp.parseUnary()}}
		case bp.acceptPunct("%"):
			left = &OpExpr{Op: "%", Args: []Expr{left, bp.parseUnary()}}
		default:
			return left
		}
	}
}

func (bp *bodyParser) parseUnary() Expr {
	if bp.acceptPunct("-") {
		return &OpExpr{Op: "neg", Args: []Expr{bp.parseUnary()}}
	}
	return bp.parsePrimary()
}

func (bp *bodyParser) parsePrimary() Expr {
	t := bp.current()
	switch {
	case t.kind == bodyInt:
		bp.advance()
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			bp.errorf("integer literal %q out of range", t.text)
		}
		return &IntExpr{Value: v}
	case t.kind == bodyPunct && t.text == "(":
		bp.advance()
		inner := bp.parseAssign()
		if !bp.acceptPunct(")") {
			bp.errorf("expected ')'")
		}
		return &OpExpr{Op: "()", Args: []Expr{inner}}
	case t.kind == bodyIdent:
		bp.advance()
		switch {
		case bp.checkPunct("("):
			return bp.parseCall(t.text)
		case bp.checkPunct("["):
			return bp.parseArrayAccess(t.text)
		default:
			return bp.leafAccess(t.text)
		}
	default:
		bp.errorf("unexpected %q in statement body", t.text)
		bp.advance()
		return &IntExpr{}
	}
}

func (bp *bodyParser) parseCall(name string) Expr {
	bp.advance() // (
	call := &CallExpr{Name: name}
	if !bp.checkPunct(")") {
		for {
			call.Args = append(call.Args, bp.parseAssign())
			if !bp.acceptPunct(",") {
				break
			}
		}
	}
	if !bp.acceptPunct(")") {
		bp.errorf("expected ')' after call arguments")
	}
	return call
}

// parseArrayAccess handles name[e0][e1]... by capturing the raw text
// of each subscript and handing it to the relation parser.
func (bp *bodyParser) parseArrayAccess(name string) Expr {
	var indices []string
	for bp.checkPunct("[") {
		bp.advance()
		start := bp.current().pos
		depth := 1
		end := start
		for depth > 0 {
			t := bp.current()
			if t.kind == bodyEOF {
				bp.errorf("unterminated subscript on %s", name)
				break
			}
			if t.kind == bodyPunct {
				switch t.text {
				case "[":
					depth++
				case "]":
					depth--
					if depth == 0 {
						end = t.pos
					}
				}
			}
			bp.advance()
			if depth == 0 {
				break
			}
		}
		indices = append(indices, strings.TrimSpace(bp.src[start:end]))
	}
	return bp.access(name, indices)
}

// leafAccess handles a bare identifier: iterators and parameters
// become value expressions, anything else a scalar reference.
func (bp *bodyParser) leafAccess(name string) Expr {
	if bp.known[name] {
		return bp.valueAccess(name)
	}
	return bp.access(name, nil)
}

// valueAccess builds an access with an unnamed output tuple holding
// the value of an affine expression.
func (bp *bodyParser) valueAccess(expr string) Expr {
	return bp.buildAccess(fmt.Sprintf("[(%s)]", expr))
}

// access builds a named access to array element name[indices...].
func (bp *bodyParser) access(name string, indices []string) Expr {
	var subs []string
	for _, idx := range indices {
		subs = append(subs, "("+idx+")")
	}
	return bp.buildAccess(fmt.Sprintf("%s[%s]", name, strings.Join(subs, ", ")))
}

func (bp *bodyParser) buildAccess(target string) Expr {
	space := bp.domain.Space
	var b strings.Builder
	if len(space.Params) > 0 {
		b.WriteString("[" + strings.Join(space.Params, ", ") + "] -> ")
	}
	fmt.Fprintf(&b, "{ %s[%s] -> %s }",
		space.OutName, strings.Join(space.Out, ", "), target)

	m, err := poly.ParseMap(b.String())
	if err != nil {
		bp.errorf("subscript is not affine: %v", err)
		return &IntExpr{}
	}
	return &AccessExpr{Access: m}
}
