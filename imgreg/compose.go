package imgreg

import "fmt"

// controlPointSource is implemented by Transform variants whose domain is
// defined by a discrete control-point set (Mesh, Grid), the only kind
// Compose can build a new Mesh out of (spec §4.C, "Composition").
type controlPointSource interface {
	ControlPairs() []ControlPointPair
}

// ControlPairs returns a copy of m's control-point pairs.
func (m *Mesh) ControlPairs() []ControlPointPair { return append([]ControlPointPair(nil), m.Pairs...) }

// ControlPairs returns the Grid's lattice/image pairs as control points,
// suitable for feeding into Compose.
func (g *Grid) ControlPairs() []ControlPointPair { return g.controlPairs() }

// Compose returns a Mesh whose transform(s) = b.transform(a.transform(s))
// (spec §4.C). a's target points are mapped through b's forward transform
// and paired back up with a's source points to seed the new Mesh. When
// tolerance and maxDepth are both positive, edges of the resulting
// triangulation whose midpoint, round-tripped through the true composition
// a-then-b, deviates from the new Mesh's own piecewise-linear estimate by
// more than tolerance are subdivided by inserting the true midpoint
// correspondence, up to maxDepth refinement passes.
func Compose(a, b Transform, basis RBFBasis, tolerance float64, maxDepth int) (*Mesh, error) {
	src, ok := a.(controlPointSource)
	if !ok {
		return nil, fmt.Errorf("compose: %w: a has no discrete control points", ErrUnsupportedFormat)
	}
	aPairs := src.ControlPairs()
	if len(aPairs) == 0 {
		return nil, fmt.Errorf("compose: %w: a has no control points", ErrInsufficientEvidence)
	}

	newPairs := make([]ControlPointPair, len(aPairs))
	for i, p := range aPairs {
		s := p.SourcePoint()
		tgt := b.TransformPoints([]Pt{p.TargetPoint()})[0]
		newPairs[i] = ControlPointPair{SourceX: s[0], SourceY: s[1], TargetX: tgt[0], TargetY: tgt[1]}
	}
	mesh := NewMesh(newPairs, basis)

	if tolerance > 0 && maxDepth > 0 {
		refineComposition(mesh, a, b, tolerance, maxDepth)
	}
	return mesh, nil
}

func triangulationEdges(tri triangulation) [][2]int {
	type edge struct{ a, b int }
	seen := make(map[edge]bool)
	var edges [][2]int
	add := func(a, b int) {
		if a > b {
			a, b = b, a
		}
		e := edge{a, b}
		if !seen[e] {
			seen[e] = true
			edges = append(edges, [2]int{a, b})
		}
	}
	for _, t := range tri.Triangles {
		add(t[0], t[1])
		add(t[1], t[2])
		add(t[2], t[0])
	}
	return edges
}

// refineComposition inserts true-composition midpoints wherever the Mesh's
// piecewise-linear estimate disagrees with a-then-b by more than tolerance,
// stopping after maxDepth passes or once a pass adds nothing new.
func refineComposition(mesh *Mesh, a, b Transform, tolerance float64, maxDepth int) {
	for depth := 0; depth < maxDepth; depth++ {
		mesh.ensureTriangulations()
		edges := triangulationEdges(mesh.sourceTri)

		srcPts := make([]Pt, len(mesh.Pairs))
		for i, p := range mesh.Pairs {
			srcPts[i] = p.SourcePoint()
		}
		index := buildControlPointIndex(srcPts)

		added := false
		for _, e := range edges {
			p0 := mesh.Pairs[e[0]].SourcePoint()
			p1 := mesh.Pairs[e[1]].SourcePoint()
			mid := Pt{(p0[0] + p1[0]) / 2, (p0[1] + p1[1]) / 2}

			edgeLen := ptDist(p0, p1)
			if _, nearestDist, ok := index.Nearest(mid); ok && nearestDist < edgeLen*0.1 {
				continue // a control point already sits essentially at this midpoint
			}

			estimate := mesh.TransformPoints([]Pt{mid})[0]
			actual := b.TransformPoints(a.TransformPoints([]Pt{mid}))[0]
			if isNaNPt(estimate) || ptDist(estimate, actual) <= tolerance {
				continue
			}
			if err := mesh.AddPoint(ControlPointPair{SourceX: mid[0], SourceY: mid[1], TargetX: actual[0], TargetY: actual[1]}); err == nil {
				added = true
			}
		}
		if !added {
			break
		}
	}
}
