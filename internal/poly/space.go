package poly

import (
	"fmt"
	"strings"
)

// DimType selects one of the dimension blocks of a space.
type DimType int

const (
	DimParam DimType = iota
	DimIn
	DimOut
)

// Space describes the dimensions a set or relation is defined over:
// a list of symbolic parameters, an optional input tuple and an output
// tuple. Sets are relations without an input tuple. Tuples may be
// anonymous (empty name), which is how schedule time spaces are
// represented.
type Space struct {
	Params  []string
	InName  string
	In      []string
	OutName string
	Out     []string
}

// SetSpace creates the space of a set with the given tuple name and
// dimension names.
func SetSpace(params []string, name string, dims []string) *Space {
	return &Space{
		Params:  append([]string(nil), params...),
		OutName: name,
		Out:     append([]string(nil), dims...),
	}
}

// MapSpace creates the space of a relation between two tuples.
func MapSpace(params []string, inName string, in []string, outName string, out []string) *Space {
	return &Space{
		Params:  append([]string(nil), params...),
		InName:  inName,
		In:      append([]string(nil), in...),
		OutName: outName,
		Out:     append([]string(nil), out...),
	}
}

// Dim returns the number of dimensions of the given type.
func (s *Space) Dim(t DimType) int {
	switch t {
	case DimParam:
		return len(s.Params)
	case DimIn:
		return len(s.In)
	default:
		return len(s.Out)
	}
}

// offset returns the first constraint column of the given dimension block.
func (s *Space) offset(t DimType) int {
	switch t {
	case DimParam:
		return 0
	case DimIn:
		return len(s.Params)
	default:
		return len(s.Params) + len(s.In)
	}
}

// Col returns the constraint column of dimension i of the given type.
func (s *Space) Col(t DimType, i int) int {
	return s.offset(t) + i
}

// NumCols returns the number of non-div, non-constant constraint columns.
func (s *Space) NumCols() int {
	return len(s.Params) + len(s.In) + len(s.Out)
}

// Reverse returns the space with input and output tuples swapped.
func (s *Space) Reverse() *Space {
	return &Space{
		Params:  append([]string(nil), s.Params...),
		InName:  s.OutName,
		In:      append([]string(nil), s.Out...),
		OutName: s.InName,
		Out:     append([]string(nil), s.In...),
	}
}

// Clone returns a deep copy of the space.
func (s *Space) Clone() *Space {
	return &Space{
		Params:  append([]string(nil), s.Params...),
		InName:  s.InName,
		In:      append([]string(nil), s.In...),
		OutName: s.OutName,
		Out:     append([]string(nil), s.Out...),
	}
}

// TuplesEqual reports whether two spaces relate the same tuples.
// Dimension names are not compared; only tuple names and arities matter
// for deciding whether two relations live in the same space.
func (s *Space) TuplesEqual(o *Space) bool {
	return s.InName == o.InName && len(s.In) == len(o.In) &&
		s.OutName == o.OutName && len(s.Out) == len(o.Out)
}

// key identifies the space inside a union of relations.
func (s *Space) key() string {
	return fmt.Sprintf("%s/%d->%s/%d", s.InName, len(s.In), s.OutName, len(s.Out))
}

// String renders the space in map notation, for error messages.
func (s *Space) String() string {
	var b strings.Builder
	if len(s.Params) > 0 {
		b.WriteString("[" + strings.Join(s.Params, ", ") + "] -> ")
	}
	b.WriteString("{ ")
	if s.InName != "" || len(s.In) > 0 {
		b.WriteString(s.InName + "[" + strings.Join(s.In, ", ") + "] -> ")
	}
	b.WriteString(s.OutName + "[" + strings.Join(s.Out, ", ") + "] }")
	return b.String()
}

// mergeParams computes the union of two parameter lists, preserving the
// order of the first list.
func mergeParams(a, b []string) []string {
	merged := append([]string(nil), a...)
	seen := make(map[string]bool, len(a))
	for _, p := range a {
		seen[p] = true
	}
	for _, p := range b {
		if !seen[p] {
			merged = append(merged, p)
			seen[p] = true
		}
	}
	return merged
}

// paramIndex returns the index of a parameter name, or -1.
func paramIndex(params []string, name string) int {
	for i, p := range params {
		if p == name {
			return i
		}
	}
	return -1
}
