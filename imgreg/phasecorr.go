package imgreg

import (
	"fmt"
	"math"
	"sort"

	"github.com/katalvlaran/lvlath/gridgraph"
)

// PhaseCorrelate computes the normalised cross-power-spectrum correlation of
// two equal-shaped rasters (spec §4.B): subtract each image's mean, take the
// 2-D FFT of both, divide the cross-power spectrum by its magnitude
// (skipping zero-magnitude bins), and return the real part of the inverse
// FFT.
func PhaseCorrelate(a, b *Raster) (*Raster, error) {
	if !SameShape(a, b) {
		return nil, fmt.Errorf("phase_correlate: %w", ErrShapeMismatch)
	}
	fa := fft2(rasterToComplexGrid(subtractMean(a)))
	fb := fft2(rasterToComplexGrid(subtractMean(b)))
	return crossPowerCorrelate(fa, fb, a.Height, a.Width), nil
}

// crossPowerCorrelate builds the normalised cross-power spectrum of two
// precomputed 2-D FFTs and inverse-transforms it, returning the real part
// (spec §4.B steps 3-5). Shared by PhaseCorrelate and the brute-force
// aligner, which precomputes the target's FFT once and reuses it across
// every candidate angle (spec §4.D).
func crossPowerCorrelate(fa, fb *complexGrid, h, w int) *Raster {
	x := newComplexGrid(h, w)
	for i := range x.Data {
		prod := cmplxConj(fa.Data[i]) * fb.Data[i]
		mag := cmplxAbs(prod)
		if mag == 0 {
			x.Data[i] = 0
			continue
		}
		x.Data[i] = prod / complex(mag, 0)
	}

	inv := ifft2(x)
	out := NewRaster(h, w, F32)
	for i, v := range inv.Data {
		out.Data[i] = float32(real(v))
	}
	return out
}

// fftOf returns the 2-D FFT of r after mean subtraction, the form both
// PhaseCorrelate and the aligner's precomputed-target path need.
func fftOf(r *Raster) *complexGrid {
	return fft2(rasterToComplexGrid(subtractMean(r)))
}

func subtractMean(r *Raster) *Raster {
	var sum float64
	for _, v := range r.Data {
		sum += float64(v)
	}
	mean := float32(sum / float64(len(r.Data)))
	out := r.Clone()
	for i, v := range out.Data {
		out.Data[i] = v - mean
	}
	return out
}

func cmplxConj(z complex128) complex128 { return complex(real(z), -imag(z)) }
func cmplxAbs(z complex128) float64     { return math.Hypot(real(z), imag(z)) }

// fftshift swaps quadrants so that the zero-lag bin moves to the raster's
// geometric centre, the conventional layout for interpreting a correlation
// peak as a signed (dy, dx) offset.
func fftshift(r *Raster) *Raster {
	out := NewRaster(r.Height, r.Width, r.Dtype)
	hh, hw := r.Height/2, r.Width/2
	for y := 0; y < r.Height; y++ {
		srcY := ((y - hh) % r.Height + r.Height) % r.Height
		for x := 0; x < r.Width; x++ {
			srcX := ((x - hw) % r.Width + r.Width) % r.Width
			out.Set(y, x, r.At(srcY, srcX))
		}
	}
	return out
}

// normalizeUnit rescales r's values linearly into [0, 1].
func normalizeUnit(r *Raster) (*Raster, error) {
	stats, err := r.Stats(nil)
	if err != nil {
		return nil, err
	}
	span := stats.Max - stats.Min
	out := r.Clone()
	if span == 0 {
		for i := range out.Data {
			out.Data[i] = 0
		}
		return out, nil
	}
	for i, v := range out.Data {
		out.Data[i] = (v - stats.Min) / span
	}
	return out, nil
}

// BuildOverlapMask returns the set of integer (dy, dx) offsets — expressed
// in the centred correlation-index space of shape corrShape — for which the
// implied overlap between a moving raster of shape movingShape placed at
// that offset against a fixed raster of shape fixedShape falls within
// [minOverlap, maxOverlap] * min(area(fixed), area(moving)) (spec §4.B).
func BuildOverlapMask(corrShape [2]int, fixedShape, movingShape [2]int, minOverlap, maxOverlap float64) *Mask {
	fixedRect := NewRectangle(0, 0, float64(fixedShape[0]), float64(fixedShape[1]))
	movingArea := float64(movingShape[0]) * float64(movingShape[1])
	fixedArea := float64(fixedShape[0]) * float64(fixedShape[1])
	minArea := math.Min(fixedArea, movingArea)

	mask := NewMask(corrShape[0], corrShape[1])
	hh, hw := corrShape[0]/2, corrShape[1]/2
	for y := 0; y < corrShape[0]; y++ {
		dy := float64(y - hh)
		for x := 0; x < corrShape[1]; x++ {
			dx := float64(x - hw)
			movingRect := NewRectangle(dy, dx, float64(movingShape[0]), float64(movingShape[1]))
			inter, ok := fixedRect.Intersect(movingRect)
			area := 0.0
			if ok {
				area = inter.Area()
			}
			within := area >= minOverlap*minArea && area <= maxOverlap*minArea
			mask.Set(y, x, within)
		}
	}
	return mask
}

// FindPeak locates the strongest correlation peak within overlapMask (or
// the whole raster when overlapMask is nil): threshold at the cutoff
// quantile, label connected components of above-threshold cells via
// gridgraph, and return the offset and summed strength of the component
// with the largest value sum (spec §4.B).
func FindPeak(correlation *Raster, overlapMask *Mask, cutoff float64) (Pt, float64, error) {
	values := make([]float32, 0, len(correlation.Data))
	for row := 0; row < correlation.Height; row++ {
		for col := 0; col < correlation.Width; col++ {
			if overlapMask != nil && !overlapMask.At(row, col) {
				continue
			}
			values = append(values, correlation.At(row, col))
		}
	}
	if len(values) == 0 {
		return Pt{}, 0, fmt.Errorf("find_peak: %w", ErrDegenerateStats)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	idx := int(cutoff * float64(len(values)-1))
	threshold := values[idx]

	grid := make([][]int, correlation.Height)
	any := false
	for row := 0; row < correlation.Height; row++ {
		grid[row] = make([]int, correlation.Width)
		for col := 0; col < correlation.Width; col++ {
			if overlapMask != nil && !overlapMask.At(row, col) {
				continue
			}
			if correlation.At(row, col) >= threshold {
				grid[row][col] = 1
				any = true
			}
		}
	}
	if !any {
		return Pt{}, 0, fmt.Errorf("find_peak: %w", ErrDegenerateStats)
	}

	gg, err := gridgraph.NewGridGraph(grid, gridgraph.GridOptions{LandThreshold: 1, Conn: gridgraph.Conn8})
	if err != nil {
		return Pt{}, 0, fmt.Errorf("find_peak: %w", err)
	}
	components := gg.ConnectedComponents()[1]
	if len(components) == 0 {
		return Pt{}, 0, fmt.Errorf("find_peak: %w", ErrDegenerateStats)
	}

	var bestSum float64
	var bestComY, bestComX float64
	first := true
	for _, comp := range components {
		var sum, comY, comX float64
		for _, cell := range comp {
			v := float64(correlation.At(cell.Y, cell.X))
			sum += v
			comY += v * float64(cell.Y)
			comX += v * float64(cell.X)
		}
		if sum != 0 {
			comY /= sum
			comX /= sum
		}
		if first || sum > bestSum {
			bestSum = sum
			bestComY = comY
			bestComX = comX
			first = false
		}
	}

	offsetY := float64(correlation.Height)/2 - bestComY
	offsetX := float64(correlation.Width)/2 - bestComX
	return Pt{offsetX, offsetY}, bestSum, nil
}

// FindOffset runs phase correlation between a and b, centres and normalises
// the result, restricts the search to offsets implying a physically
// plausible overlap, and returns the resulting translational
// AlignmentRecord with Angle = 0 (spec §4.B).
func FindOffset(a, b *Raster, minOverlap, maxOverlap float64, aShape, bShape [2]int) (AlignmentRecord, error) {
	corr, err := PhaseCorrelate(a, b)
	if err != nil {
		return AlignmentRecord{}, fmt.Errorf("find_offset: %w", err)
	}
	shifted := fftshift(corr)
	normed, err := normalizeUnit(shifted)
	if err != nil {
		return AlignmentRecord{}, fmt.Errorf("find_offset: %w", err)
	}

	mask := BuildOverlapMask([2]int{a.Height, a.Width}, aShape, bShape, minOverlap, maxOverlap)
	offset, strength, err := FindPeak(normed, mask, 0.995)
	if err != nil {
		return AlignmentRecord{}, fmt.Errorf("find_offset: %w", err)
	}

	return AlignmentRecord{
		PeakY:        offset[1],
		PeakX:        offset[0],
		Weight:       strength,
		AngleDegrees: 0,
	}, nil
}
