package codegen

import (
	"github.com/polygen-dev/polygen/internal/astbuild"
	"github.com/polygen-dev/polygen/internal/poly"
	"github.com/polygen-dev/polygen/internal/scop"
)

// scheduleDimIsParallel reports whether the loop over the innermost
// schedule dimension covered by build carries no dependence. The test
// maps both endpoints of every dependence into the partial time space
// and asks whether, with all outer dimensions equated, the current
// dimension is forced equal too: a dependence staying at the same time
// point is not carried by the loop.
func scheduleDimIsParallel(build *astbuild.Build, s *scop.Scop) (bool, error) {
	deps, err := s.DepFlow.Union(s.DepFalse)
	if err != nil {
		return false, err
	}
	sched := build.Schedule()
	deps, err = deps.ApplyRange(sched)
	if err != nil {
		return false, err
	}
	deps, err = deps.ApplyDomain(sched)
	if err != nil {
		return false, err
	}
	if deps.IsEmpty() {
		return true, nil
	}

	m, err := poly.MapFromUnionMap(deps)
	if err != nil {
		return false, err
	}
	last := build.Depth() - 1
	for i := 0; i < last; i++ {
		m = m.Equate(poly.DimIn, i, poly.DimOut, i)
	}
	test := poly.UniverseMap(m.Space).Equate(poly.DimIn, last, poly.DimOut, last)
	return m.IsSubset(test)
}
