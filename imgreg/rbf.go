package imgreg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RBFBasis selects the radial basis function used by the RBF-with-linear-
// correction fallback (spec §4.C); default is thin-plate (r^2 log r),
// matching two_way_rbftransform.py's default. Linear and cubic are carried
// as alternates per SPEC_FULL.md's supplemented-feature note.
type RBFBasis int

const (
	RBFThinPlate RBFBasis = iota
	RBFLinear
	RBFCubic
)

func basisFunc(basis RBFBasis, r float64) float64 {
	switch basis {
	case RBFLinear:
		return r
	case RBFCubic:
		return r * r * r
	default:
		if r == 0 {
			return 0
		}
		return r * r * math.Log(r)
	}
}

func ptDist(a, b Pt) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

// rbfModel is a single scalar-valued RBF-with-linear-correction surface:
// f(p) = a0 + a1*p.X + a2*p.Y + sum_i w_i*basis(|p - centers[i]|). Solving
// is O(n^3) in the number of control points (spec §4.C); results are cached
// by the owning rbfFallback until a control point mutates.
type rbfModel struct {
	centers []Pt
	weights []float64
	affine  [3]float64
	basis   RBFBasis
}

// fitRBF solves for the weights and affine correction of a thin-plate (or
// selected basis) RBF surface interpolating values at centers. By
// construction the solved surface reproduces values exactly at every
// center (spec §8 invariant 7).
func fitRBF(centers []Pt, values []float64, basis RBFBasis) (*rbfModel, error) {
	n := len(centers)
	if n == 0 {
		return nil, fmt.Errorf("fit rbf: %w: no control points", ErrInsufficientEvidence)
	}
	size := n + 3
	a := mat.NewDense(size, size, nil)
	b := mat.NewVecDense(size, nil)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, basisFunc(basis, ptDist(centers[i], centers[j])))
		}
		a.Set(i, n, 1)
		a.Set(i, n+1, centers[i][0])
		a.Set(i, n+2, centers[i][1])
		a.Set(n, i, 1)
		a.Set(n+1, i, centers[i][0])
		a.Set(n+2, i, centers[i][1])
		b.SetVec(i, values[i])
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("fit rbf: solving linear system: %w", err)
	}

	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		weights[i] = x.AtVec(i)
	}
	return &rbfModel{
		centers: centers,
		weights: weights,
		affine:  [3]float64{x.AtVec(n), x.AtVec(n + 1), x.AtVec(n + 2)},
		basis:   basis,
	}, nil
}

func (m *rbfModel) eval(p Pt) float64 {
	sum := m.affine[0] + m.affine[1]*p[0] + m.affine[2]*p[1]
	for i, c := range m.centers {
		sum += m.weights[i] * basisFunc(m.basis, ptDist(p, c))
	}
	return sum
}

// rbfFallback holds the four scalar RBF surfaces (target Y, target X,
// source Y, source X) needed to evaluate both transform() and
// inverse_transform() outside a Mesh/Grid's triangulated convex hull (spec
// §4.C). It caches its fit until invalidate is called by a control-point
// mutation.
type rbfFallback struct {
	basis                  RBFBasis
	valid                  bool
	fwdY, fwdX, invY, invX *rbfModel
}

func newRBFFallback(basis RBFBasis) *rbfFallback {
	return &rbfFallback{basis: basis}
}

func (f *rbfFallback) invalidate() { f.valid = false }

func (f *rbfFallback) ensureFit(pairs []ControlPointPair) error {
	if f.valid {
		return nil
	}
	n := len(pairs)
	srcPts := make([]Pt, n)
	tgtPts := make([]Pt, n)
	tgtY := make([]float64, n)
	tgtX := make([]float64, n)
	srcY := make([]float64, n)
	srcX := make([]float64, n)
	for i, p := range pairs {
		srcPts[i] = p.SourcePoint()
		tgtPts[i] = p.TargetPoint()
		tgtY[i] = p.TargetY
		tgtX[i] = p.TargetX
		srcY[i] = p.SourceY
		srcX[i] = p.SourceX
	}

	var err error
	if f.fwdY, err = fitRBF(srcPts, tgtY, f.basis); err != nil {
		return err
	}
	if f.fwdX, err = fitRBF(srcPts, tgtX, f.basis); err != nil {
		return err
	}
	if f.invY, err = fitRBF(tgtPts, srcY, f.basis); err != nil {
		return err
	}
	if f.invX, err = fitRBF(tgtPts, srcX, f.basis); err != nil {
		return err
	}
	f.valid = true
	return nil
}

// forward evaluates the source->target RBF surface at p (a source point).
func (f *rbfFallback) forward(p Pt) Pt { return Pt{f.fwdX.eval(p), f.fwdY.eval(p)} }

// inverse evaluates the target->source RBF surface at p (a target point).
func (f *rbfFallback) inverse(p Pt) Pt { return Pt{f.invX.eval(p), f.invY.eval(p)} }
