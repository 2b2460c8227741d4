package codegen

import (
	"fmt"

	"github.com/polygen-dev/polygen/internal/astbuild"
	"github.com/polygen-dev/polygen/internal/poly"
	"github.com/polygen-dev/polygen/internal/scop"
)

// loopInfo annotates a generated loop node.
type loopInfo struct {
	isParallel bool
}

// stmtInstance annotates a statement instance node with its body
// template and the rewritten index expressions of every access, in the
// template's depth-first order.
type stmtInstance struct {
	stmt   *scop.Stmt
	access [][]astbuild.Expr
}

// buildContext carries the state shared by the generation hooks. Only
// the outermost parallel loop of a nest is marked: once inside one,
// inner loops are not tested.
type buildContext struct {
	scop          *scop.Scop
	inParallelFor bool
	err           error
}

// beforeFor decides whether the loop about to be generated gets an
// OpenMP annotation.
func (bc *buildContext) beforeFor(build *astbuild.Build) any {
	info := &loopInfo{}
	if bc.err != nil || bc.inParallelFor {
		return info
	}
	parallel, err := scheduleDimIsParallel(build, bc.scop)
	if err != nil {
		bc.err = err
		return info
	}
	if parallel {
		info.isParallel = true
		bc.inParallelFor = true
	}
	return info
}

// afterFor clears the parallel flag when leaving the loop that set it.
func (bc *buildContext) afterFor(n *astbuild.ForNode, build *astbuild.Build) {
	if info, ok := n.Annotation.(*loopInfo); ok && info.isParallel {
		bc.inParallelFor = false
	}
}

// atEachDomain attaches the statement instance record to a generated
// call node, rewriting every access of the body template into
// expressions over the generated loop iterators.
func (bc *buildContext) atEachDomain(n *astbuild.UserNode, build *astbuild.Build) error {
	st := bc.scop.Stmt(n.Name)
	if st == nil {
		return fmt.Errorf("statement %s not found in scop", n.Name)
	}

	var sched *poly.Map
	for _, m := range build.Schedule().Maps {
		if m.Space.InName == n.Name {
			sched = m
		}
	}
	if sched == nil {
		return fmt.Errorf("statement %s has no schedule at this position", n.Name)
	}
	rev := sched.Reverse()

	inst := &stmtInstance{stmt: st}
	for _, acc := range st.Accesses() {
		exprs, err := rewriteAccess(build, rev, acc.Access)
		if err != nil {
			return fmt.Errorf("statement %s: %w", n.Name, err)
		}
		inst.access = append(inst.access, exprs)
	}
	n.Annotation = inst
	return nil
}

// rewriteAccess composes an access relation with the reversed schedule
// and materializes one index expression per array dimension.
func rewriteAccess(build *astbuild.Build, revSched, access *poly.Map) ([]astbuild.Expr, error) {
	composed, err := revSched.ApplyRange(access)
	if err != nil {
		return nil, err
	}
	pma, err := poly.PwMultiAffFromMap(composed)
	if err != nil {
		return nil, err
	}
	pma = pma.Coalesce()

	exprs := make([]astbuild.Expr, pma.Dim())
	for i := range exprs {
		e, err := build.ExprFromPwAff(pma.At(i))
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}
	return exprs, nil
}
