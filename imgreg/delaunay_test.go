package imgreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTriangulationCoversSquare(t *testing.T) {
	pts := []Pt{{0, 0}, {10, 0}, {0, 10}, {10, 10}}
	tri := buildTriangulation(pts)
	assert.Len(t, tri.Triangles, 2)

	idx, u, v, w, found := tri.locate(Pt{5, 5})
	assert.True(t, found)
	assert.GreaterOrEqual(t, idx, 0)
	assert.InDelta(t, 1.0, u+v+w, 1e-9)
}

func TestLocateOutsideHullNotFound(t *testing.T) {
	pts := []Pt{{0, 0}, {10, 0}, {0, 10}, {10, 10}}
	tri := buildTriangulation(pts)
	_, _, _, _, found := tri.locate(Pt{100, 100})
	assert.False(t, found)
}

func TestBarycentricAtVertexIsUnit(t *testing.T) {
	a, b, c := Pt{0, 0}, Pt{10, 0}, Pt{0, 10}
	u, v, w, ok := barycentric(a, a, b, c)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, u, 1e-9)
	assert.InDelta(t, 0.0, v, 1e-9)
	assert.InDelta(t, 0.0, w, 1e-9)
}

func TestPointInCircumcircle(t *testing.T) {
	a, b, c := Pt{0, 0}, Pt{10, 0}, Pt{5, 10}
	assert.True(t, pointInCircumcircle(Pt{5, 3}, a, b, c))
	assert.False(t, pointInCircumcircle(Pt{500, 500}, a, b, c))
}

func TestFewerThanThreePointsProducesNoTriangles(t *testing.T) {
	tri := buildTriangulation([]Pt{{0, 0}, {1, 1}})
	assert.Empty(t, tri.Triangles)
}
