package imgreg

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// RasterStats bundles the summary statistics used to synthesize matching
// gaussian noise for padded or masked-out regions (spec §4.A).
type RasterStats struct {
	Median, Mean, StdDev, Min, Max float32
}

// Stats computes summary statistics over the raster, restricted to pixels
// where mask is true (or the whole raster when mask is nil). Returns
// ErrDegenerateStats when the selected region is empty.
func (r *Raster) Stats(mask *Mask) (RasterStats, error) {
	vals := make([]float32, 0, len(r.Data))
	if mask == nil {
		vals = append(vals, r.Data...)
	} else {
		for row := 0; row < r.Height; row++ {
			for col := 0; col < r.Width; col++ {
				if mask.At(row, col) {
					vals = append(vals, r.At(row, col))
				}
			}
		}
	}
	if len(vals) == 0 {
		return RasterStats{}, fmt.Errorf("raster stats: %w", ErrDegenerateStats)
	}

	sorted := append([]float32(nil), vals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}

	var sum float64
	for _, v := range vals {
		sum += float64(v)
	}
	mean := sum / float64(len(vals))

	var variance float64
	for _, v := range vals {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(vals))
	stddev := math.Sqrt(variance)

	return RasterStats{
		Median: median,
		Mean:   float32(mean),
		StdDev: float32(stddev),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}, nil
}

// gaussianSampler draws samples from N(mean, stddev) clipped to [min, max].
// Clipping to the source image's own dynamic range keeps synthetic noise
// from ever exceeding the statistics it was modeled on (spec §4.A).
type gaussianSampler struct {
	mean, stddev, min, max float32
	rng                    *rand.Rand
}

func newGaussianSampler(stats RasterStats, rng *rand.Rand) *gaussianSampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &gaussianSampler{mean: stats.Median, stddev: stats.StdDev, min: stats.Min, max: stats.Max, rng: rng}
}

func (g *gaussianSampler) sample() float32 {
	v := float32(g.rng.NormFloat64())*g.stddev + g.mean
	if v < g.min {
		v = g.min
	}
	if v > g.max {
		v = g.max
	}
	return v
}

// RotateRaster rotates r by angleDeg degrees (counter-clockwise) about its
// own centre, bilinearly resampling and filling anything rotated in from
// outside the original frame per fill (spec §4.D, "rotate the unpadded
// source by theta, bilinear").
func RotateRaster(r *Raster, angleDeg float64, fill CropFill) (*Raster, error) {
	if angleDeg == 0 {
		return r.Clone(), nil
	}
	rad := angleDeg * math.Pi / 180
	cosA, sinA := math.Cos(rad), math.Sin(rad)
	cy, cx := float64(r.Height)/2, float64(r.Width)/2

	out := NewRaster(r.Height, r.Width, r.Dtype)
	var sampler *gaussianSampler
	if fill.Random {
		stats, err := r.Stats(nil)
		if err != nil {
			return nil, fmt.Errorf("rotate_raster: %w", err)
		}
		sampler = newGaussianSampler(stats, nil)
	}

	for row := 0; row < r.Height; row++ {
		dy := float64(row) - cy
		for col := 0; col < r.Width; col++ {
			dx := float64(col) - cx
			// Inverse-rotate the destination pixel back into source space.
			srcX := cx + dx*cosA+dy*sinA
			srcY := cy - dx*sinA+dy*cosA
			v, ok := bilinearSample(r, srcY, srcX)
			if !ok {
				if sampler != nil {
					v = sampler.sample()
				} else {
					v = fill.Value
				}
			}
			out.Set(row, col, v)
		}
	}
	return out, nil
}

// bilinearSample samples r at fractional coordinate (y, x), reporting false
// when (y, x) lies outside [0, Height-1] x [0, Width-1].
func bilinearSample(r *Raster, y, x float64) (float32, bool) {
	if y < 0 || x < 0 || y > float64(r.Height-1) || x > float64(r.Width-1) {
		return 0, false
	}
	y0 := int(math.Floor(y))
	x0 := int(math.Floor(x))
	y1, x1 := y0+1, x0+1
	if y1 > r.Height-1 {
		y1 = r.Height - 1
	}
	if x1 > r.Width-1 {
		x1 = r.Width - 1
	}
	ty := float32(y - float64(y0))
	tx := float32(x - float64(x0))

	top := r.At(y0, x0) + (r.At(y0, x1)-r.At(y0, x0))*tx
	bot := r.At(y1, x0) + (r.At(y1, x1)-r.At(y1, x0))*tx
	return top + (bot-top)*ty, true
}

// FlipVertical returns a copy of r flipped top-to-bottom.
func FlipVertical(r *Raster) *Raster {
	out := NewRaster(r.Height, r.Width, r.Dtype)
	for row := 0; row < r.Height; row++ {
		copy(out.Data[out.Index(row, 0):out.Index(row, 0)+r.Width], r.Data[r.Index(r.Height-1-row, 0):r.Index(r.Height-1-row, 0)+r.Width])
	}
	return out
}

// ResizeRaster resamples r to (newH, newW) with the bilinear scaler (spec
// §4.D's source_scale bridging a pixel-size mismatch between captures).
func ResizeRaster(r *Raster, newH, newW int) *Raster {
	return downscale(r, newH, newW)
}
