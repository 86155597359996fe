package imgreg

import "fmt"

// Mesh is a piecewise-linear transform inside the convex hull of its
// control points, falling back to an RBF-with-linear-correction surface
// outside it (spec §4.C). transform(s) locates s inside the source-space
// triangulation and barycentrically interpolates the corresponding target
// vertices; inverse_transform(t) is the mirror operation over the
// target-space triangulation. The two triangulations are built
// independently (the target points may be arbitrarily warped relative to
// the source lattice) but share the same vertex indices into Pairs.
type Mesh struct {
	changeNotifier
	Pairs []ControlPointPair
	Basis RBFBasis
	// DisableExtrapolation forbids the RBF fallback: out-of-hull points
	// come back as NaN instead of an RBF estimate (spec §3).
	DisableExtrapolation bool

	sourceTri, targetTri triangulation
	triValid             bool
	rbf                  *rbfFallback
	targetBBox, sourceBBox bboxCache
}

// NewMesh builds a Mesh transform from an initial control-point set.
func NewMesh(pairs []ControlPointPair, basis RBFBasis) *Mesh {
	return &Mesh{Pairs: append([]ControlPointPair(nil), pairs...), Basis: basis, rbf: newRBFFallback(basis)}
}

func (m *Mesh) invalidateAll() {
	m.triValid = false
	m.rbf.invalidate()
	m.targetBBox.invalidate()
	m.sourceBBox.invalidate()
}

func (m *Mesh) ensureTriangulations() {
	if m.triValid {
		return
	}
	srcPts := make([]Pt, len(m.Pairs))
	tgtPts := make([]Pt, len(m.Pairs))
	for i, p := range m.Pairs {
		srcPts[i] = p.SourcePoint()
		tgtPts[i] = p.TargetPoint()
	}
	m.sourceTri = buildTriangulation(srcPts)
	m.targetTri = buildTriangulation(tgtPts)
	m.triValid = true
}

func (m *Mesh) TransformPoints(pts []Pt) []Pt {
	m.ensureTriangulations()
	out := make([]Pt, len(pts))
	for i, p := range pts {
		triIdx, u, v, w, found := m.sourceTri.locate(p)
		if found {
			tri := m.sourceTri.Triangles[triIdx]
			a := m.Pairs[tri[0]].TargetPoint()
			b := m.Pairs[tri[1]].TargetPoint()
			c := m.Pairs[tri[2]].TargetPoint()
			out[i] = Pt{u*a[0] + v*b[0] + w*c[0], u*a[1] + v*b[1] + w*c[1]}
			continue
		}
		out[i] = m.fallbackForward(p)
	}
	return out
}

func (m *Mesh) InverseTransformPoints(pts []Pt) []Pt {
	m.ensureTriangulations()
	out := make([]Pt, len(pts))
	for i, p := range pts {
		triIdx, u, v, w, found := m.targetTri.locate(p)
		if found {
			tri := m.targetTri.Triangles[triIdx]
			a := m.Pairs[tri[0]].SourcePoint()
			b := m.Pairs[tri[1]].SourcePoint()
			c := m.Pairs[tri[2]].SourcePoint()
			out[i] = Pt{u*a[0] + v*b[0] + w*c[0], u*a[1] + v*b[1] + w*c[1]}
			continue
		}
		out[i] = m.fallbackInverse(p)
	}
	return out
}

func (m *Mesh) fallbackForward(p Pt) Pt {
	if m.DisableExtrapolation {
		return nanPt
	}
	if err := m.rbf.ensureFit(m.Pairs); err != nil {
		return nanPt
	}
	return m.rbf.forward(p)
}

func (m *Mesh) fallbackInverse(p Pt) Pt {
	if m.DisableExtrapolation {
		return nanPt
	}
	if err := m.rbf.ensureFit(m.Pairs); err != nil {
		return nanPt
	}
	return m.rbf.inverse(p)
}

// AddPoint appends a control-point pair, rejecting it with ErrDuplicatePoint
// if its target coordinate already exists in the set (spec §4.C).
func (m *Mesh) AddPoint(pair ControlPointPair) error {
	for _, existing := range m.Pairs {
		if existing.TargetX == pair.TargetX && existing.TargetY == pair.TargetY {
			return fmt.Errorf("add point: %w", ErrDuplicatePoint)
		}
	}
	m.Pairs = append(m.Pairs, pair)
	m.invalidateAll()
	m.notify()
	return nil
}

// RemovePoint deletes the control-point pair at index.
func (m *Mesh) RemovePoint(index int) error {
	if index < 0 || index >= len(m.Pairs) {
		return fmt.Errorf("remove point: index %d out of range [0,%d)", index, len(m.Pairs))
	}
	m.Pairs = append(m.Pairs[:index], m.Pairs[index+1:]...)
	m.invalidateAll()
	m.notify()
	return nil
}

// SetTargetPoint overwrites the target half of the pair at index, rejecting
// the update with ErrDuplicatePoint if it would collapse two points onto
// the same target coordinate (spec §4.C, "UpdateTargetPointsBy*").
func (m *Mesh) SetTargetPoint(index int, p Pt) error {
	if index < 0 || index >= len(m.Pairs) {
		return fmt.Errorf("set target point: index %d out of range [0,%d)", index, len(m.Pairs))
	}
	for i, existing := range m.Pairs {
		if i != index && existing.TargetX == p[0] && existing.TargetY == p[1] {
			return fmt.Errorf("set target point: %w", ErrDuplicatePoint)
		}
	}
	m.Pairs[index].TargetX, m.Pairs[index].TargetY = p[0], p[1]
	m.invalidateAll()
	m.notify()
	return nil
}

func (m *Mesh) TranslateTarget(delta Pt) {
	for i := range m.Pairs {
		m.Pairs[i].TargetX += delta[0]
		m.Pairs[i].TargetY += delta[1]
	}
	m.invalidateAll()
	m.notify()
}

func (m *Mesh) TranslateSource(delta Pt) {
	for i := range m.Pairs {
		m.Pairs[i].SourceX += delta[0]
		m.Pairs[i].SourceY += delta[1]
	}
	m.invalidateAll()
	m.notify()
}

func (m *Mesh) Scale(f float64) {
	for i := range m.Pairs {
		m.Pairs[i].TargetX *= f
		m.Pairs[i].TargetY *= f
		m.Pairs[i].SourceX *= f
		m.Pairs[i].SourceY *= f
	}
	m.invalidateAll()
	m.notify()
}

func (m *Mesh) ScaleSource(f float64) {
	for i := range m.Pairs {
		m.Pairs[i].SourceX *= f
		m.Pairs[i].SourceY *= f
	}
	m.invalidateAll()
	m.notify()
}

func (m *Mesh) ScaleTarget(f float64) {
	for i := range m.Pairs {
		m.Pairs[i].TargetX *= f
		m.Pairs[i].TargetY *= f
	}
	m.invalidateAll()
	m.notify()
}

func (m *Mesh) RotateTarget(angleDeg float64, center Pt) {
	for i := range m.Pairs {
		rotated := rotatePoint(m.Pairs[i].TargetPoint(), angleDeg, center)
		m.Pairs[i].TargetX, m.Pairs[i].TargetY = rotated[0], rotated[1]
	}
	m.invalidateAll()
	m.notify()
}

func (m *Mesh) TargetBBox() Rectangle {
	return m.targetBBox.get(func() Rectangle {
		pts := make([]Pt, len(m.Pairs))
		for i, p := range m.Pairs {
			pts[i] = p.TargetPoint()
		}
		return boundsOfPoints(pts)
	})
}

func (m *Mesh) SourceBBox() Rectangle {
	return m.sourceBBox.get(func() Rectangle {
		pts := make([]Pt, len(m.Pairs))
		for i, p := range m.Pairs {
			pts[i] = p.SourcePoint()
		}
		return boundsOfPoints(pts)
	})
}
