package poly

import "fmt"

// UnionMap is a union of relations over possibly different tuple spaces,
// such as the schedules or dependences of all statements in a region.
type UnionMap struct {
	Maps []*Map
}

// UnionSet is a union of sets over possibly different tuples, such as the
// iteration domains of all statements.
type UnionSet = UnionMap

// NewUnionMap builds a union from the given relations, merging relations
// that live in the same space.
func NewUnionMap(maps ...*Map) (*UnionMap, error) {
	u := &UnionMap{}
	for _, m := range maps {
		if err := u.add(m); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// EmptyUnionMap returns a union with no relations.
func EmptyUnionMap() *UnionMap {
	return &UnionMap{}
}

func (u *UnionMap) add(m *Map) error {
	for i, existing := range u.Maps {
		if existing.Space.TuplesEqual(m.Space) {
			merged, err := existing.Union(m)
			if err != nil {
				return err
			}
			u.Maps[i] = merged
			return nil
		}
	}
	u.Maps = append(u.Maps, m.Clone())
	return nil
}

// Clone returns a deep copy of the union.
func (u *UnionMap) Clone() *UnionMap {
	res := &UnionMap{}
	for _, m := range u.Maps {
		res.Maps = append(res.Maps, m.Clone())
	}
	return res
}

// Union returns the union of two unions of relations.
func (u *UnionMap) Union(other *UnionMap) (*UnionMap, error) {
	res := u.Clone()
	for _, m := range other.Maps {
		if err := res.add(m); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ApplyRange composes each relation of u with each relation of other
// whose input tuple matches the relation's output tuple. Pairs without a
// matching tuple contribute nothing, as in a union of disjoint spaces.
func (u *UnionMap) ApplyRange(other *UnionMap) (*UnionMap, error) {
	res := &UnionMap{}
	for _, m := range u.Maps {
		for _, n := range other.Maps {
			if m.Space.OutName != n.Space.InName || len(m.Space.Out) != len(n.Space.In) {
				continue
			}
			composed, err := m.ApplyRange(n)
			if err != nil {
				return nil, err
			}
			if err := res.add(composed); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

// ApplyDomain maps the domains of the relations of u through other.
func (u *UnionMap) ApplyDomain(other *UnionMap) (*UnionMap, error) {
	res := &UnionMap{}
	for _, m := range u.Maps {
		for _, n := range other.Maps {
			if m.Space.InName != n.Space.InName || len(m.Space.In) != len(n.Space.In) {
				continue
			}
			mapped, err := m.ApplyDomain(n)
			if err != nil {
				return nil, err
			}
			if err := res.add(mapped); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

// IntersectDomain restricts each relation's domain to the matching set of
// the union set.
func (u *UnionMap) IntersectDomain(sets *UnionSet) (*UnionMap, error) {
	res := &UnionMap{}
	for _, m := range u.Maps {
		for _, s := range sets.Maps {
			if m.Space.InName != s.Space.OutName || len(m.Space.In) != len(s.Space.Out) {
				continue
			}
			restricted, err := m.IntersectDomain(s)
			if err != nil {
				return nil, err
			}
			if err := res.add(restricted); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

// IntersectParams restricts every relation by the parameter set.
func (u *UnionMap) IntersectParams(set *Set) (*UnionMap, error) {
	res := &UnionMap{}
	for _, m := range u.Maps {
		restricted, err := m.IntersectParams(set)
		if err != nil {
			return nil, err
		}
		if err := res.add(restricted); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ProjectOutAfter keeps the first k output dimensions of every relation.
func (u *UnionMap) ProjectOutAfter(k int) *UnionMap {
	res := &UnionMap{}
	for _, m := range u.Maps {
		res.Maps = append(res.Maps, m.ProjectOutAfter(k))
	}
	return res
}

// IsEmpty reports whether every relation in the union is empty.
func (u *UnionMap) IsEmpty() bool {
	for _, m := range u.Maps {
		if !m.IsEmpty() {
			return false
		}
	}
	return true
}

// MapFromUnionMap extracts the single relation of a union. It is an
// error to call it on a union spanning several spaces.
func MapFromUnionMap(u *UnionMap) (*Map, error) {
	var nonEmpty []*Map
	for _, m := range u.Maps {
		if !m.IsEmpty() {
			nonEmpty = append(nonEmpty, m)
		}
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0].Clone(), nil
	}
	if len(nonEmpty) == 0 && len(u.Maps) > 0 {
		return u.Maps[0].Clone(), nil
	}
	return nil, fmt.Errorf("union contains %d relations, expected exactly one", len(nonEmpty))
}
