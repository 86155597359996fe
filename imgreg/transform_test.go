package imgreg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRigidRoundTrip(t *testing.T) {
	r := NewRigid(Pt{10, -5}, Pt{50, 50}, 37)
	pts := []Pt{{0, 0}, {100, 100}, {50, 50}, {12.5, 77.25}}

	forward := r.TransformPoints(pts)
	back := r.InverseTransformPoints(forward)

	for i, p := range pts {
		assert.True(t, PtAlmostEqual(p, back[i], 1e-9), "round trip mismatch at %d: %v -> %v", i, p, back[i])
	}
}

func TestRigidIdentityAtZeroAngle(t *testing.T) {
	r := NewRigid(Pt{0, 0}, Pt{0, 0}, 0)
	out := r.TransformPoints([]Pt{{3, 4}})
	assert.True(t, PtAlmostEqual(out[0], Pt{3, 4}, 1e-12))
}

func TestCenteredSimilarityRoundTrip(t *testing.T) {
	s := NewCenteredSimilarity(Pt{4, -2}, Pt{20, 20}, 15, 1.5)
	pts := []Pt{{0, 0}, {20, 20}, {5, 35}}

	forward := s.TransformPoints(pts)
	back := s.InverseTransformPoints(forward)
	for i, p := range pts {
		assert.True(t, PtAlmostEqual(p, back[i], 1e-9), "round trip mismatch at %d", i)
	}
}

func TestRigidNoRotationTranslateTarget(t *testing.T) {
	r := NewRigidNoRotation(Pt{1, 1})
	r.TranslateTarget(Pt{2, 3})
	out := r.TransformPoints([]Pt{{0, 0}})
	assert.True(t, PtAlmostEqual(out[0], Pt{3, 4}, 1e-12))
}

func TestMeshRoundTripAtControlPoints(t *testing.T) {
	pairs := []ControlPointPair{
		{SourceX: 0, SourceY: 0, TargetX: 1, TargetY: 1},
		{SourceX: 10, SourceY: 0, TargetX: 12, TargetY: 1},
		{SourceX: 0, SourceY: 10, TargetX: 1, TargetY: 13},
		{SourceX: 10, SourceY: 10, TargetX: 13, TargetY: 14},
	}
	m := NewMesh(pairs, RBFThinPlate)

	for _, p := range pairs {
		out := m.TransformPoints([]Pt{p.SourcePoint()})
		assert.True(t, PtAlmostEqual(out[0], p.TargetPoint(), 1e-6), "control point %v not exact", p)
	}
}

func TestMeshAddPointRejectsDuplicateTarget(t *testing.T) {
	pairs := []ControlPointPair{
		{SourceX: 0, SourceY: 0, TargetX: 0, TargetY: 0},
		{SourceX: 10, SourceY: 0, TargetX: 10, TargetY: 0},
		{SourceX: 0, SourceY: 10, TargetX: 0, TargetY: 10},
	}
	m := NewMesh(pairs, RBFThinPlate)
	err := m.AddPoint(ControlPointPair{SourceX: 5, SourceY: 5, TargetX: 10, TargetY: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicatePoint)
}

func TestGridBilinearAtLatticePoints(t *testing.T) {
	targetGrid := []Pt{
		{0, 0}, {10, 1},
		{1, 10}, {11, 11},
	}
	g := NewGrid(2, 2, Pt{0, 0}, Pt{10, 10}, targetGrid, RBFThinPlate)

	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			src := g.AxisPoint(row, col)
			out := g.TransformPoints([]Pt{src})
			want := targetGrid[row*2+col]
			assert.True(t, PtAlmostEqual(out[0], want, 1e-9))
		}
	}
}

func TestGridInterpolatesInterior(t *testing.T) {
	targetGrid := []Pt{
		{0, 0}, {10, 0},
		{0, 10}, {10, 10},
	}
	g := NewGrid(2, 2, Pt{0, 0}, Pt{10, 10}, targetGrid, RBFThinPlate)
	out := g.TransformPoints([]Pt{{5, 5}})
	assert.True(t, PtAlmostEqual(out[0], Pt{5, 5}, 1e-6))
}

func TestComposeIdentityOnIdentity(t *testing.T) {
	pairs := []ControlPointPair{
		{SourceX: 0, SourceY: 0, TargetX: 0, TargetY: 0},
		{SourceX: 10, SourceY: 0, TargetX: 10, TargetY: 0},
		{SourceX: 0, SourceY: 10, TargetX: 0, TargetY: 10},
		{SourceX: 10, SourceY: 10, TargetX: 10, TargetY: 10},
	}
	a := NewMesh(pairs, RBFThinPlate)
	b := NewRigidNoRotation(Pt{5, -5})

	composed, err := Compose(a, b, RBFThinPlate, 0, 0)
	require.NoError(t, err)

	out := composed.TransformPoints([]Pt{{10, 10}})
	assert.True(t, PtAlmostEqual(out[0], Pt{15, 5}, 1e-6))
}

func TestComposeRejectsParametricSource(t *testing.T) {
	a := NewRigidNoRotation(Pt{0, 0})
	b := NewRigidNoRotation(Pt{0, 0})
	_, err := Compose(a, b, RBFThinPlate, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRotatePointNinetyDegrees(t *testing.T) {
	out := rotatePoint(Pt{1, 0}, 90, Pt{0, 0})
	assert.InDelta(t, 0, out[0], 1e-9)
	assert.InDelta(t, 1, out[1], 1e-9)
}

func TestBoundsOfPoints(t *testing.T) {
	box := boundsOfPoints([]Pt{{1, 2}, {-3, 4}, {5, -1}})
	assert.Equal(t, -3.0, box.MinX)
	assert.Equal(t, -1.0, box.MinY)
	assert.InDelta(t, 8.0, box.Width, 1e-9)
	assert.InDelta(t, 5.0, box.Height, 1e-9)
}

func TestNaNPtIsNaN(t *testing.T) {
	assert.True(t, isNaNPt(nanPt))
	assert.False(t, isNaNPt(Pt{0, 0}))
	assert.True(t, math.IsNaN(nanPt[0]))
}
