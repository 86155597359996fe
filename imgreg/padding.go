package imgreg

import (
	"fmt"
	"iter"
	"math"
	"math/rand"
)

// overlapFactor implements spec §4.A's f(o): f(o) = 1 if o >= 0.5 else
// 1 + 2*(1 - (o + 0.5)).
func overlapFactor(minOverlap float64) float64 {
	if minOverlap >= 0.5 {
		return 1
	}
	return 1 + 2*(1-(minOverlap+0.5))
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// paddedDim computes the smallest dimension >= dim * f(minOverlap), rounded
// up to the next power of two when pow2 is set.
func paddedDim(dim int, minOverlap float64, pow2 bool) int {
	target := int(math.Ceil(float64(dim) * overlapFactor(minOverlap)))
	if pow2 {
		target = nextPow2(target)
	}
	if target < dim {
		target = dim
	}
	return target
}

// PadForPhaseCorrelation centres raster in a new, larger raster whose
// dimensions are at least newH/newW (or computed from minOverlap/pow2 when
// newH/newW are zero), filling the border with gaussian noise matched to
// raster's own statistics (median/stddev, clipped to min/max) so that padded
// zeros never create a spurious correlation peak (spec §4.A).
//
// mask, if non-nil, restricts the statistics computation to the unmasked
// region of raster — the random-fill statistics always derive from the
// raster being padded, never a destination raster (see SPEC_FULL.md's Open
// Question decision #1).
func PadForPhaseCorrelation(r *Raster, minOverlap float64, newH, newW int, pow2 bool, mask *Mask, rng *rand.Rand) (*Raster, error) {
	h := newH
	if h <= 0 {
		h = paddedDim(r.Height, minOverlap, pow2)
	}
	w := newW
	if w <= 0 {
		w = paddedDim(r.Width, minOverlap, pow2)
	}
	if h < r.Height {
		h = r.Height
	}
	if w < r.Width {
		w = r.Width
	}

	stats, err := r.Stats(mask)
	if err != nil {
		return nil, fmt.Errorf("pad_for_phase_correlation: %w", err)
	}

	out := NewRaster(h, w, r.Dtype)
	sampler := newGaussianSampler(stats, rng)
	for i := range out.Data {
		out.Data[i] = sampler.sample()
	}

	offY := (h - r.Height) / 2
	offX := (w - r.Width) / 2
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			out.Set(row+offY, col+offX, r.At(row, col))
		}
	}
	return out, nil
}

// RandomNoiseMask returns a copy of r where every pixel with mask false is
// replaced by a sample from N(median, stddev) clipped to [min, max]. When
// stats is nil, the statistics are computed from the pixels where mask is
// true (the unmasked region).
func RandomNoiseMask(r *Raster, mask *Mask, stats *RasterStats, rng *rand.Rand) (*Raster, error) {
	out := r.Clone()
	if mask == nil {
		return out, nil
	}
	var s RasterStats
	if stats != nil {
		s = *stats
	} else {
		computed, err := r.Stats(mask)
		if err != nil {
			return nil, fmt.Errorf("random_noise_mask: %w", err)
		}
		s = computed
	}
	sampler := newGaussianSampler(s, rng)
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			if !mask.At(row, col) {
				out.Set(row, col, sampler.sample())
			}
		}
	}
	return out, nil
}

// ReplaceExtremaWithNoise replaces every pixel equal to the raster's global
// min or max with gaussian noise matched to the statistics of the remaining
// pixels (spec §4.A) — used to scrub flat saturated/clipped regions that
// would otherwise dominate a correlation.
func ReplaceExtremaWithNoise(r *Raster, rng *rand.Rand) (*Raster, error) {
	stats, err := r.Stats(nil)
	if err != nil {
		return nil, fmt.Errorf("replace_extrema_with_noise: %w", err)
	}
	mask := NewMask(r.Height, r.Width)
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			v := r.At(row, col)
			if v == stats.Min || v == stats.Max {
				mask.Set(row, col, false)
			}
		}
	}
	return RandomNoiseMask(r, mask, nil, rng)
}

// CropFill selects the fill behaviour for out-of-bounds crop area: either a
// literal value, or a gaussian sample matched to the source raster's own
// statistics (the 'random' cval in spec §4.A / §9's Open Question decision).
type CropFill struct {
	Random bool
	Value  float32
}

// LiteralFill returns a CropFill that pads with a fixed value.
func LiteralFill(v float32) CropFill { return CropFill{Value: v} }

// RandomFill returns a CropFill that pads with noise matched to the cropped
// raster's own statistics.
func RandomFill() CropFill { return CropFill{Random: true} }

// Crop extracts a sizeH x sizeW region of r with top-left corner at
// (originY, originX), clamping to r's bounds; any area outside r is filled
// per fill (spec §4.A).
func Crop(r *Raster, originY, originX, sizeH, sizeW int, fill CropFill) (*Raster, error) {
	out := NewRaster(sizeH, sizeW, r.Dtype)

	if fill.Random {
		stats, err := r.Stats(nil)
		if err != nil {
			return nil, fmt.Errorf("crop: %w", err)
		}
		sampler := newGaussianSampler(stats, nil)
		for i := range out.Data {
			out.Data[i] = sampler.sample()
		}
	} else {
		for i := range out.Data {
			out.Data[i] = fill.Value
		}
	}

	for dy := 0; dy < sizeH; dy++ {
		srcY := originY + dy
		if srcY < 0 || srcY >= r.Height {
			continue
		}
		for dx := 0; dx < sizeW; dx++ {
			srcX := originX + dx
			if srcX < 0 || srcX >= r.Width {
				continue
			}
			out.Set(dy, dx, r.At(srcY, srcX))
		}
	}
	return out, nil
}

// TilePos is the row/col coordinate of a tile yielded by ImageToTiles.
type TilePos struct {
	Row, Col int
}

// ImageToTiles pads raster right/bottom to a multiple of tileH/tileW (using
// zero fill — the destination of each tile is responsible for any further
// noise treatment) and yields each tile in row-major order along with its
// (row, col) tile-grid coordinate, offset by (offsetY, offsetX) pixels
// before tiling (spec §4.A).
func ImageToTiles(r *Raster, tileH, tileW, offsetY, offsetX int) iter.Seq2[TilePos, *Raster] {
	return func(yield func(TilePos, *Raster) bool) {
		effH := r.Height - offsetY
		effW := r.Width - offsetX
		if effH <= 0 || effW <= 0 {
			return
		}
		rows := (effH + tileH - 1) / tileH
		cols := (effW + tileW - 1) / tileW
		for tr := 0; tr < rows; tr++ {
			for tc := 0; tc < cols; tc++ {
				tile, err := Crop(r, offsetY+tr*tileH, offsetX+tc*tileW, tileH, tileW, LiteralFill(0))
				if err != nil {
					return
				}
				if !yield(TilePos{Row: tr, Col: tc}, tile) {
					return
				}
			}
		}
	}
}
