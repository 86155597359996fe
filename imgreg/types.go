package imgreg

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Pt is a 2-vector, X()=orb.Point[0], Y()=orb.Point[1]. Every (dy, dx) or
// (y, x) pair in this package is carried as a Pt with X holding the column
// component and Y the row component, so that Pt slots directly into
// orb.Point-consuming APIs (orb.Bound, orb/quadtree) without conversion.
type Pt = orb.Point

// XY builds a Pt from (x, y) components.
func XY(x, y float64) Pt { return Pt{x, y} }

// DType is the closed enumeration of raster element types (spec §9).
type DType int

const (
	U8 DType = iota
	U16
	I16
	I32
	F16
	F32
	F64
)

func (d DType) String() string {
	switch d {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case F16:
		return "f16"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// IsFloat reports whether the dtype's natural range is [0, 1] rather than an
// integer dynamic range.
func (d DType) IsFloat() bool {
	return d == F16 || d == F32 || d == F64
}

// MaxIntValue returns the maximum representable value for an integer dtype.
func (d DType) MaxIntValue() float64 {
	switch d {
	case U8:
		return 255
	case U16:
		return 65535
	case I16:
		return 32767
	case I32:
		return 2147483647
	default:
		return 1
	}
}

// Raster is a 2-D row-major array of float32 samples plus a natural element
// dtype used at load/save boundaries (spec §3, §9). Internal math is always
// float32 unless a component documents otherwise.
type Raster struct {
	Height, Width int
	Data          []float32
	Dtype         DType
}

// NewRaster allocates a zeroed raster of the given shape and natural dtype.
func NewRaster(height, width int, dtype DType) *Raster {
	return &Raster{
		Height: height,
		Width:  width,
		Data:   make([]float32, height*width),
		Dtype:  dtype,
	}
}

// Index returns the flat offset for (row, col).
func (r *Raster) Index(row, col int) int { return row*r.Width + col }

// InBounds reports whether (row, col) lies within the raster.
func (r *Raster) InBounds(row, col int) bool {
	return row >= 0 && row < r.Height && col >= 0 && col < r.Width
}

// At returns the sample at (row, col). Callers must check InBounds first;
// At does not bounds-check, matching the hot-path use in warp/correlate.
func (r *Raster) At(row, col int) float32 { return r.Data[r.Index(row, col)] }

// Set stores a sample at (row, col).
func (r *Raster) Set(row, col int, v float32) { r.Data[r.Index(row, col)] = v }

// Clone returns an independent deep copy.
func (r *Raster) Clone() *Raster {
	out := &Raster{Height: r.Height, Width: r.Width, Dtype: r.Dtype, Data: make([]float32, len(r.Data))}
	copy(out.Data, r.Data)
	return out
}

// Shape returns (height, width) for convenience in shape-equality checks.
func (r *Raster) Shape() (int, int) { return r.Height, r.Width }

// SameShape reports whether two rasters share (height, width).
func SameShape(a, b *Raster) bool { return a.Height == b.Height && a.Width == b.Width }

// Mask is a boolean raster of the same shape convention as Raster.
type Mask struct {
	Height, Width int
	Data          []bool
}

// NewMask allocates a mask of the given shape, all true (unmasked).
func NewMask(height, width int) *Mask {
	data := make([]bool, height*width)
	for i := range data {
		data[i] = true
	}
	return &Mask{Height: height, Width: width, Data: data}
}

func (m *Mask) Index(row, col int) int { return row*m.Width + col }
func (m *Mask) At(row, col int) bool   { return m.Data[m.Index(row, col)] }
func (m *Mask) Set(row, col int, v bool) { m.Data[m.Index(row, col)] = v }

// Rectangle is an axis-aligned rectangle with origin (MinY, MinX) and size
// (Height, Width) (spec §3). All bounding boxes in the system are
// Rectangles; Bound and RectangleFromBound convert to and from orb.Bound.
type Rectangle struct {
	MinY, MinX, Height, Width float64
}

// NewRectangle builds a Rectangle from its origin and size.
func NewRectangle(minY, minX, height, width float64) Rectangle {
	return Rectangle{MinY: minY, MinX: minX, Height: height, Width: width}
}

// MaxY returns the far (bottom) Y edge.
func (r Rectangle) MaxY() float64 { return r.MinY + r.Height }

// MaxX returns the far (right) X edge.
func (r Rectangle) MaxX() float64 { return r.MinX + r.Width }

// Area returns Height*Width, zero or negative for a degenerate rectangle.
func (r Rectangle) Area() float64 { return r.Height * r.Width }

// IsEmpty reports a non-positive area.
func (r Rectangle) IsEmpty() bool { return r.Height <= 0 || r.Width <= 0 }

// Bound converts to an orb.Bound with Point{X: col, Y: row} convention.
func (r Rectangle) Bound() orb.Bound {
	return orb.Bound{
		Min: Pt{r.MinX, r.MinY},
		Max: Pt{r.MaxX(), r.MaxY()},
	}
}

// RectangleFromBound is the inverse of Rectangle.Bound.
func RectangleFromBound(b orb.Bound) Rectangle {
	return Rectangle{
		MinY:   b.Min[1],
		MinX:   b.Min[0],
		Height: b.Max[1] - b.Min[1],
		Width:  b.Max[0] - b.Min[0],
	}
}

// Intersect returns the intersection of r and o, and whether it is non-empty.
func (r Rectangle) Intersect(o Rectangle) (Rectangle, bool) {
	minY := math.Max(r.MinY, o.MinY)
	minX := math.Max(r.MinX, o.MinX)
	maxY := math.Min(r.MaxY(), o.MaxY())
	maxX := math.Min(r.MaxX(), o.MaxX())
	out := Rectangle{MinY: minY, MinX: minX, Height: maxY - minY, Width: maxX - minX}
	return out, !out.IsEmpty()
}

// Overlap returns the intersection area as a fraction of the smaller of the
// two rectangles' areas; zero when disjoint.
func (r Rectangle) Overlap(o Rectangle) float64 {
	inter, ok := r.Intersect(o)
	if !ok {
		return 0
	}
	minArea := math.Min(r.Area(), o.Area())
	if minArea <= 0 {
		return 0
	}
	return inter.Area() / minArea
}

// ScaleOnOrigin scales both the rectangle's position and size by f, treating
// the global coordinate origin (0,0) as the scale center — used to move a
// Rectangle between image-to-source-space scales (spec §3, Tile).
func (r Rectangle) ScaleOnOrigin(f float64) Rectangle {
	return Rectangle{MinY: r.MinY * f, MinX: r.MinX * f, Height: r.Height * f, Width: r.Width * f}
}

// SafeRound floors the origin and ceils the far corner so the rounded
// rectangle never shrinks away from the original — used before tiling to
// avoid fractional-pixel seams (spec §4.F).
func (r Rectangle) SafeRound() Rectangle {
	minY := math.Floor(r.MinY)
	minX := math.Floor(r.MinX)
	maxY := math.Ceil(r.MaxY())
	maxX := math.Ceil(r.MaxX())
	return Rectangle{MinY: minY, MinX: minX, Height: maxY - minY, Width: maxX - minX}
}

func (r Rectangle) String() string {
	return fmt.Sprintf("Rectangle{minY:%.3f minX:%.3f h:%.3f w:%.3f}", r.MinY, r.MinX, r.Height, r.Width)
}

// ControlPointPair anchors a transform: a (target, source) coordinate pair
// (spec §3).
type ControlPointPair struct {
	TargetY, TargetX float64
	SourceY, SourceX float64
}

// TargetPoint returns the target half as a Pt.
func (c ControlPointPair) TargetPoint() Pt { return Pt{c.TargetX, c.TargetY} }

// SourcePoint returns the source half as a Pt.
func (c ControlPointPair) SourcePoint() Pt { return Pt{c.SourceX, c.SourceY} }

// AlignmentRecord describes a rigid alignment of a source raster onto a
// target raster (spec §3). Weight >= 0; larger weight means stronger
// registration evidence. Angle is the rotation applied to the source prior
// to translation by Peak.
type AlignmentRecord struct {
	PeakY, PeakX       float64
	Weight             float64
	AngleDegrees       float64
	FlippedVertically  bool
}

// Peak returns the translation offset as a Pt.
func (a AlignmentRecord) Peak() Pt { return Pt{a.PeakX, a.PeakY} }

func (a AlignmentRecord) String() string {
	return fmt.Sprintf("AlignmentRecord{peak:(%.3f,%.3f) weight:%.4f angle:%.2f flip:%v}",
		a.PeakY, a.PeakX, a.Weight, a.AngleDegrees, a.FlippedVertically)
}

// EnhancedAlignmentRecord is the per-cell result produced during grid
// refinement (spec §4.E).
type EnhancedAlignmentRecord struct {
	ID                int
	TargetPoint       Pt
	SourcePoint       Pt
	Peak              Pt
	Weight            float64
	AngleDegrees      float64
	FlippedVertically bool
}

// RefinedTargetPoint returns TargetPoint shifted by the measured sub-pixel
// offset Peak — the point a refit should treat as the true target anchor.
func (e EnhancedAlignmentRecord) RefinedTargetPoint() Pt {
	return Pt{e.TargetPoint[0] + e.Peak[0], e.TargetPoint[1] + e.Peak[1]}
}

// AlmostEqual reports whether a and b differ by no more than eps — the
// numeric-compare helper pervasive in the original Python transform tests
// (controlpointbase.py), exposed here for invariant checks (spec §8).
func AlmostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// PtAlmostEqual reports whether two points are within eps of each other in
// Euclidean distance.
func PtAlmostEqual(a, b Pt, eps float64) bool {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx+dy*dy) <= eps
}
