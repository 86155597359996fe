package imgreg

import "math"

// Grid is a regular axis-aligned lattice in source space whose images are
// stored (arbitrarily warped) in target space (spec §4.C). transform(s)
// does a bilinear lookup in the grid cell containing s; inverse_transform(t)
// triangulates the (possibly very irregular) target points and does
// barycentric interpolation, since a bilinear lookup is not well-defined
// once the target side is no longer a regular lattice. Both directions fall
// back to RBF-with-linear-correction outside their respective domains.
type Grid struct {
	changeNotifier
	Rows, Cols int
	// Origin and Spacing describe the regular source-space lattice:
	// AxisPoint(row, col) = Origin + (col*Spacing.X, row*Spacing.Y).
	Origin, Spacing Pt
	// TargetGrid holds the Rows*Cols warped target-space images of the
	// lattice, row-major (index = row*Cols + col).
	TargetGrid           []Pt
	Basis                RBFBasis
	DisableExtrapolation bool

	targetTri              triangulation
	triValid               bool
	rbf                    *rbfFallback
	targetBBox, sourceBBox bboxCache
}

// NewGrid builds a Grid transform over a Rows x Cols source lattice with
// the given origin/spacing and initial (typically identity-mapped)
// TargetGrid images.
func NewGrid(rows, cols int, origin, spacing Pt, targetGrid []Pt, basis RBFBasis) *Grid {
	return &Grid{
		Rows: rows, Cols: cols, Origin: origin, Spacing: spacing,
		TargetGrid: append([]Pt(nil), targetGrid...),
		Basis:      basis,
		rbf:        newRBFFallback(basis),
	}
}

// AxisPoint returns the source-space lattice point at (row, col).
func (g *Grid) AxisPoint(row, col int) Pt {
	return Pt{g.Origin[0] + float64(col)*g.Spacing[0], g.Origin[1] + float64(row)*g.Spacing[1]}
}

// AxisPoints materialises every lattice point, row-major, matching
// TargetGrid's ordering.
func (g *Grid) AxisPoints() []Pt {
	out := make([]Pt, 0, g.Rows*g.Cols)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			out = append(out, g.AxisPoint(row, col))
		}
	}
	return out
}

func (g *Grid) targetAt(row, col int) Pt { return g.TargetGrid[row*g.Cols+col] }

func (g *Grid) invalidateAll() {
	g.triValid = false
	g.rbf.invalidate()
	g.targetBBox.invalidate()
	g.sourceBBox.invalidate()
}

func (g *Grid) controlPairs() []ControlPointPair {
	axis := g.AxisPoints()
	pairs := make([]ControlPointPair, len(axis))
	for i, a := range axis {
		t := g.TargetGrid[i]
		pairs[i] = ControlPointPair{TargetX: t[0], TargetY: t[1], SourceX: a[0], SourceY: a[1]}
	}
	return pairs
}

func lerpPt(a, b Pt, t float64) Pt {
	return Pt{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}

func (g *Grid) TransformPoints(pts []Pt) []Pt {
	out := make([]Pt, len(pts))
	for i, p := range pts {
		fc := (p[0] - g.Origin[0]) / g.Spacing[0]
		fr := (p[1] - g.Origin[1]) / g.Spacing[1]
		if fr >= 0 && fr <= float64(g.Rows-1) && fc >= 0 && fc <= float64(g.Cols-1) {
			r0 := int(math.Floor(fr))
			c0 := int(math.Floor(fc))
			r1, c1 := r0+1, c0+1
			if r1 > g.Rows-1 {
				r1 = g.Rows - 1
			}
			if c1 > g.Cols-1 {
				c1 = g.Cols - 1
			}
			ty := fr - float64(r0)
			tx := fc - float64(c0)
			top := lerpPt(g.targetAt(r0, c0), g.targetAt(r0, c1), tx)
			bot := lerpPt(g.targetAt(r1, c0), g.targetAt(r1, c1), tx)
			out[i] = lerpPt(top, bot, ty)
			continue
		}
		out[i] = g.fallbackForward(p)
	}
	return out
}

func (g *Grid) ensureTargetTriangulation() {
	if g.triValid {
		return
	}
	g.targetTri = buildTriangulation(g.TargetGrid)
	g.triValid = true
}

func (g *Grid) InverseTransformPoints(pts []Pt) []Pt {
	g.ensureTargetTriangulation()
	axis := g.AxisPoints()
	out := make([]Pt, len(pts))
	for i, p := range pts {
		triIdx, u, v, w, found := g.targetTri.locate(p)
		if found {
			tri := g.targetTri.Triangles[triIdx]
			a, b, c := axis[tri[0]], axis[tri[1]], axis[tri[2]]
			out[i] = Pt{u*a[0] + v*b[0] + w*c[0], u*a[1] + v*b[1] + w*c[1]}
			continue
		}
		out[i] = g.fallbackInverse(p)
	}
	return out
}

func (g *Grid) fallbackForward(p Pt) Pt {
	if g.DisableExtrapolation {
		return nanPt
	}
	if err := g.rbf.ensureFit(g.controlPairs()); err != nil {
		return nanPt
	}
	return g.rbf.forward(p)
}

func (g *Grid) fallbackInverse(p Pt) Pt {
	if g.DisableExtrapolation {
		return nanPt
	}
	if err := g.rbf.ensureFit(g.controlPairs()); err != nil {
		return nanPt
	}
	return g.rbf.inverse(p)
}

func (g *Grid) TranslateTarget(delta Pt) {
	for i := range g.TargetGrid {
		g.TargetGrid[i] = Pt{g.TargetGrid[i][0] + delta[0], g.TargetGrid[i][1] + delta[1]}
	}
	g.invalidateAll()
	g.notify()
}

func (g *Grid) TranslateSource(delta Pt) {
	g.Origin = Pt{g.Origin[0] + delta[0], g.Origin[1] + delta[1]}
	g.invalidateAll()
	g.notify()
}

func (g *Grid) Scale(f float64) {
	g.Origin = Pt{g.Origin[0] * f, g.Origin[1] * f}
	g.Spacing = Pt{g.Spacing[0] * f, g.Spacing[1] * f}
	for i := range g.TargetGrid {
		g.TargetGrid[i] = Pt{g.TargetGrid[i][0] * f, g.TargetGrid[i][1] * f}
	}
	g.invalidateAll()
	g.notify()
}

func (g *Grid) ScaleSource(f float64) {
	g.Origin = Pt{g.Origin[0] * f, g.Origin[1] * f}
	g.Spacing = Pt{g.Spacing[0] * f, g.Spacing[1] * f}
	g.invalidateAll()
	g.notify()
}

func (g *Grid) ScaleTarget(f float64) {
	for i := range g.TargetGrid {
		g.TargetGrid[i] = Pt{g.TargetGrid[i][0] * f, g.TargetGrid[i][1] * f}
	}
	g.invalidateAll()
	g.notify()
}

func (g *Grid) RotateTarget(angleDeg float64, center Pt) {
	for i := range g.TargetGrid {
		g.TargetGrid[i] = rotatePoint(g.TargetGrid[i], angleDeg, center)
	}
	g.invalidateAll()
	g.notify()
}

func (g *Grid) TargetBBox() Rectangle {
	return g.targetBBox.get(func() Rectangle { return boundsOfPoints(g.TargetGrid) })
}

func (g *Grid) SourceBBox() Rectangle {
	return g.sourceBBox.get(func() Rectangle { return boundsOfPoints(g.AxisPoints()) })
}
