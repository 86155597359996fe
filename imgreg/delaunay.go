package imgreg

import "math"

// Triangle is a set of three indices into the point slice a triangulation
// was built from.
type Triangle [3]int

// triangulation is a Delaunay triangulation over a fixed point set, used by
// Mesh and Grid to locate the triangle containing a query point for
// barycentric interpolation (spec §4.C).
//
// Implemented as Bowyer-Watson over plain float64 arithmetic rather than
// wired to a pack dependency: the only triangulation-adjacent library
// anywhere in the retrieved pack (github.com/ByteArena/poly2tri-go) is an
// indirect dependency pulled in solely for font glyph tessellation inside
// tdewolff/canvas (itself dropped — see DESIGN.md), and it implements
// constrained polygon triangulation (a contour plus holes), not unconstrained
// Delaunay triangulation of a bare point set — the shape this component
// needs. Grounded on the classical Bowyer-Watson algorithm used by
// scipy.spatial.Delaunay in the original Python source
// (controlpointbase.py's self._ConvexHullTriangulation).
type triangulation struct {
	Points    []Pt
	Triangles []Triangle
}

// buildTriangulation computes the Delaunay triangulation of pts via
// Bowyer-Watson incremental insertion. Requires at least 3 non-collinear
// points; returns an empty triangulation otherwise.
func buildTriangulation(pts []Pt) triangulation {
	n := len(pts)
	if n < 3 {
		return triangulation{Points: pts}
	}

	// Super-triangle large enough to contain every input point.
	minX, minY := pts[0][0], pts[0][1]
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p[0])
		maxX = math.Max(maxX, p[0])
		minY = math.Min(minY, p[1])
		maxY = math.Max(maxY, p[1])
	}
	dx, dy := maxX-minX, maxY-minY
	deltaMax := math.Max(dx, dy)
	if deltaMax == 0 {
		deltaMax = 1
	}
	midX, midY := (minX+maxX)/2, (minY+maxY)/2

	work := append([]Pt(nil), pts...)
	superA := Pt{midX - 20*deltaMax, midY - deltaMax}
	superB := Pt{midX, midY + 20*deltaMax}
	superC := Pt{midX + 20*deltaMax, midY - deltaMax}
	work = append(work, superA, superB, superC)
	superIdx := [3]int{n, n + 1, n + 2}

	tris := []Triangle{{superIdx[0], superIdx[1], superIdx[2]}}

	for i := 0; i < n; i++ {
		p := work[i]
		var badTris []Triangle
		for _, t := range tris {
			if pointInCircumcircle(p, work[t[0]], work[t[1]], work[t[2]]) {
				badTris = append(badTris, t)
			}
		}

		type edge struct{ a, b int }
		edgeCount := make(map[edge]int)
		addEdge := func(a, b int) {
			if a > b {
				a, b = b, a
			}
			edgeCount[edge{a, b}]++
		}
		for _, t := range badTris {
			addEdge(t[0], t[1])
			addEdge(t[1], t[2])
			addEdge(t[2], t[0])
		}

		remaining := tris[:0]
		for _, t := range tris {
			bad := false
			for _, b := range badTris {
				if t == b {
					bad = true
					break
				}
			}
			if !bad {
				remaining = append(remaining, t)
			}
		}
		tris = remaining

		for e, count := range edgeCount {
			if count == 1 {
				tris = append(tris, Triangle{e.a, e.b, i})
			}
		}
	}

	out := make([]Triangle, 0, len(tris))
	for _, t := range tris {
		if t[0] < n && t[1] < n && t[2] < n {
			out = append(out, t)
		}
	}
	return triangulation{Points: pts, Triangles: out}
}

// pointInCircumcircle reports whether p lies inside the circumcircle of
// triangle (a, b, c).
func pointInCircumcircle(p, a, b, c Pt) bool {
	ax, ay := a[0]-p[0], a[1]-p[1]
	bx, by := b[0]-p[0], b[1]-p[1]
	cx, cy := c[0]-p[0], c[1]-p[1]

	det := (ax*ax+ay*ay)*(bx*cy-cx*by) -
		(bx*bx+by*by)*(ax*cy-cx*ay) +
		(cx*cx+cy*cy)*(ax*by-bx*ay)

	// Orientation of a,b,c determines which sign of det means "inside".
	orient := (b[0]-a[0])*(c[1]-a[1]) - (c[0]-a[0])*(b[1]-a[1])
	if orient > 0 {
		return det > 0
	}
	return det < 0
}

// barycentric returns the barycentric coordinates of p with respect to
// triangle (a, b, c).
func barycentric(p, a, b, c Pt) (u, v, w float64, ok bool) {
	denom := (b[1]-c[1])*(a[0]-c[0]) + (c[0]-b[0])*(a[1]-c[1])
	if denom == 0 {
		return 0, 0, 0, false
	}
	u = ((b[1]-c[1])*(p[0]-c[0]) + (c[0]-b[0])*(p[1]-c[1])) / denom
	v = ((c[1]-a[1])*(p[0]-c[0]) + (a[0]-c[0])*(p[1]-c[1])) / denom
	w = 1 - u - v
	return u, v, w, true
}

const baryEpsilon = -1e-9

// locate finds the triangle containing p (barycentric coordinates all >=
// -epsilon), returning its index and barycentric coordinates. Linear scan:
// the control-point counts this module operates on (hundreds to low
// thousands of grid/mesh points) make an acceleration structure unnecessary.
func (t triangulation) locate(p Pt) (triIdx int, u, v, w float64, found bool) {
	for i, tri := range t.Triangles {
		a, b, c := t.Points[tri[0]], t.Points[tri[1]], t.Points[tri[2]]
		bu, bv, bw, ok := barycentric(p, a, b, c)
		if !ok {
			continue
		}
		if bu >= baryEpsilon && bv >= baryEpsilon && bw >= baryEpsilon {
			return i, bu, bv, bw, true
		}
	}
	return 0, 0, 0, 0, false
}
