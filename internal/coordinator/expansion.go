package coordinator

import (
	"sort"

	"github.com/rawblock/constructible-engine/internal/geometry"
	"github.com/rawblock/constructible-engine/internal/scalar"
)

// sortWorking restores the stable (x,y) total order spec.md §4.5 requires
// before indexing a pivot: points loaded in separate batches as the working
// set grows are each individually ordered by the store's query, but the
// merged slice is not. Ordering depends only on each point's own coordinates,
// so re-sorting after every append reproduces the same order every worker
// would see over the same accumulated set.
func sortWorking(env *scalar.Env, working []geometry.Point) {
	sort.SliceStable(working, func(i, j int) bool {
		if c := env.Cmp(working[i].X, working[j].X); c != 0 {
			return c < 0
		}
		return env.Cmp(working[i].Y, working[j].Y) < 0
	})
}

// driveExpansion implements spec.md §4.5's nested-loop expansion algorithm
// for the pivot point working[pivot]. emit is called once per raw
// intersection point produced; the caller (Coordinator.runTask) is
// responsible for offering each to the dedup cache. The index-ordering
// pair-skip predicate below is spec.md's explicit choice among the source
// variants described in its Design Notes — see DESIGN.md's Open Question
// decisions.
func driveExpansion(env *scalar.Env, working []geometry.Point, pivot int, fpDigits int, emit func(geometry.Point) error) error {
	n := len(working)
	p1 := working[pivot]

	for j2 := pivot + 1; j2 < n; j2++ {
		p2 := working[j2]
		d12 := geometry.Dist(env, p1, p2)
		if env.IsZero(d12) {
			continue
		}

		lLeft := geometry.NewLine(p1, p2)
		cLa := geometry.NewCircle(p1, d12)
		cLb := geometry.NewCircle(p2, d12)

		if err := emitAll(emit,
			geometry.IntersectCircleLine(env, cLa, lLeft, fpDigits),
			geometry.IntersectCircleLine(env, cLb, lLeft, fpDigits),
			geometry.IntersectCircleCircle(env, cLa, cLb, fpDigits),
		); err != nil {
			return err
		}

		for j3 := pivot; j3 < n; j3++ {
			p3 := working[j3]
			for j4 := j3 + 1; j4 < n; j4++ {
				if j3 == pivot && j4 <= j2 {
					continue
				}
				p4 := working[j4]

				d34 := geometry.Dist(env, p3, p4)
				if env.IsZero(d34) {
					continue
				}

				d13 := geometry.Dist(env, p1, p3)
				d24 := geometry.Dist(env, p2, p4)
				if env.IsZero(d13) && env.IsZero(d24) {
					continue
				}

				lRight := geometry.NewLine(p3, p4)
				cRa := geometry.NewCircle(p3, d34)
				cRb := geometry.NewCircle(p4, d34)

				if err := emitAll(emit,
					geometry.IntersectLineLine(env, lLeft, lRight, fpDigits),
					geometry.IntersectCircleLine(env, cRa, lLeft, fpDigits),
					geometry.IntersectCircleLine(env, cRb, lLeft, fpDigits),
					geometry.IntersectCircleLine(env, cLa, lRight, fpDigits),
					geometry.IntersectCircleCircle(env, cLa, cRa, fpDigits),
					geometry.IntersectCircleCircle(env, cLa, cRb, fpDigits),
					geometry.IntersectCircleLine(env, cLb, lRight, fpDigits),
					geometry.IntersectCircleCircle(env, cLb, cRa, fpDigits),
					geometry.IntersectCircleCircle(env, cLb, cRb, fpDigits),
				); err != nil {
					return err
				}

				if err := emitAll(emit,
					geometry.IntersectCircleLine(env, cRa, lRight, fpDigits),
					geometry.IntersectCircleLine(env, cRb, lRight, fpDigits),
					geometry.IntersectCircleCircle(env, cRa, cRb, fpDigits),
				); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func emitAll(emit func(geometry.Point) error, groups ...[]geometry.Point) error {
	for _, g := range groups {
		for _, p := range g {
			if err := emit(p); err != nil {
				return err
			}
		}
	}
	return nil
}
