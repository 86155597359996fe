package imgreg

import (
	"fmt"
	"math/rand"
)

// AlignOptions parameterises SliceToSlice (spec §4.D).
type AlignOptions struct {
	// AngleSearch overrides the automatic coarse+fine sweep with an explicit
	// candidate list, in degrees. Nil selects the automatic sweep.
	AngleSearch []float64
	MinOverlap  float64
	MaxOverlap  float64
	TestFlip    bool
	// SourceScale bridges a pixel-size mismatch between the two captures;
	// 1 (or 0) leaves source at its native resolution.
	SourceScale float64
	// Pool runs each (angle, flip) candidate as an independent task.
	// A nil Pool, or one built with NewPool(1), forces SingleThread
	// sequential evaluation for debuggability (spec §4.D).
	Pool *Pool
	Rand *rand.Rand
}

func (o AlignOptions) withDefaults() AlignOptions {
	if o.MinOverlap <= 0 {
		o.MinOverlap = 0.5
	}
	if o.MaxOverlap <= 0 {
		o.MaxOverlap = 1.0
	}
	if o.SourceScale <= 0 {
		o.SourceScale = 1.0
	}
	if o.Pool == nil {
		o.Pool = NewPool(1)
	}
	return o
}

func coarseAngles() []float64 {
	angles := make([]float64, 0, 120)
	for a := 0.0; a < 360; a += 3 {
		angles = append(angles, a)
	}
	return angles
}

func fineAnglesAround(center float64) []float64 {
	var angles []float64
	for a := -2.5; a <= 2.5+1e-9; a += 0.5 {
		angles = append(angles, center+a)
	}
	return angles
}

// SliceToSlice exhaustively searches rotation, translation, and (optionally)
// vertical flip to produce the best rigid AlignmentRecord of source onto
// target (spec §4.D).
func SliceToSlice(target, source *Raster, targetMask, sourceMask *Mask, opts AlignOptions) (AlignmentRecord, error) {
	opts = opts.withDefaults()

	preparedTarget, err := maskedNoiseFill(target, targetMask, opts.Rand)
	if err != nil {
		return AlignmentRecord{}, fmt.Errorf("slice_to_slice: %w", err)
	}
	preparedSource, err := maskedNoiseFill(source, sourceMask, opts.Rand)
	if err != nil {
		return AlignmentRecord{}, fmt.Errorf("slice_to_slice: %w", err)
	}

	if opts.SourceScale != 1.0 {
		newH := int(float64(preparedSource.Height) * opts.SourceScale)
		newW := int(float64(preparedSource.Width) * opts.SourceScale)
		preparedSource = ResizeRaster(preparedSource, newH, newW)
	}

	padDimH := maxInt(preparedTarget.Height, preparedSource.Height)
	padDimW := maxInt(preparedTarget.Width, preparedSource.Width)
	padH := paddedDim(padDimH, opts.MinOverlap, true)
	padW := paddedDim(padDimW, opts.MinOverlap, true)

	paddedTarget, err := PadForPhaseCorrelation(preparedTarget, opts.MinOverlap, padH, padW, true, nil, opts.Rand)
	if err != nil {
		return AlignmentRecord{}, fmt.Errorf("slice_to_slice: %w", err)
	}
	targetFFT := fftOf(paddedTarget)
	targetShape := [2]int{preparedTarget.Height, preparedTarget.Width}

	type candidate struct {
		angle float64
		flip  bool
	}

	evalOne := func(c candidate) (any, error) {
		return evaluateAlignCandidate(targetFFT, targetShape, preparedSource, c.angle, c.flip, padH, padW, opts)
	}

	runBatch := func(cands []candidate) ([]AlignmentRecord, error) {
		names := make([]string, len(cands))
		thunks := make([]func() (any, error), len(cands))
		for i, c := range cands {
			cc := c
			names[i] = fmt.Sprintf("align-angle-%.1f-flip-%v", cc.angle, cc.flip)
			thunks[i] = func() (any, error) { return evalOne(cc) }
		}
		handles := make([]*TaskHandle, len(thunks))
		for i, fn := range thunks {
			handles[i] = opts.Pool.Submit(names[i], fn)
			opts.Pool.HarvestIfSaturated()
		}
		var out []AlignmentRecord
		var firstErr error
		for _, h := range handles {
			v, err := h.WaitReturn()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			out = append(out, v.(AlignmentRecord))
		}
		if len(out) == 0 {
			if firstErr != nil {
				return nil, firstErr
			}
			return nil, ErrDegenerateStats
		}
		return out, nil
	}

	bestOf := func(records []AlignmentRecord) AlignmentRecord {
		best := records[0]
		for _, r := range records[1:] {
			if r.Weight > best.Weight {
				best = r
			}
		}
		return best
	}

	var all []AlignmentRecord
	flips := []bool{false}
	if opts.TestFlip {
		flips = append(flips, true)
	}

	if opts.AngleSearch != nil {
		var cands []candidate
		for _, flip := range flips {
			for _, a := range opts.AngleSearch {
				cands = append(cands, candidate{angle: a, flip: flip})
			}
		}
		records, err := runBatch(cands)
		if err != nil {
			return AlignmentRecord{}, fmt.Errorf("slice_to_slice: %w", err)
		}
		all = append(all, records...)
	} else {
		for _, flip := range flips {
			var coarse []candidate
			for _, a := range coarseAngles() {
				coarse = append(coarse, candidate{angle: a, flip: flip})
			}
			coarseRecords, err := runBatch(coarse)
			if err != nil {
				return AlignmentRecord{}, fmt.Errorf("slice_to_slice: %w", err)
			}
			all = append(all, coarseRecords...)
			bestCoarse := bestOf(coarseRecords)

			var fine []candidate
			for _, a := range fineAnglesAround(bestCoarse.AngleDegrees) {
				fine = append(fine, candidate{angle: a, flip: flip})
			}
			fineRecords, err := runBatch(fine)
			if err != nil {
				return AlignmentRecord{}, fmt.Errorf("slice_to_slice: %w", err)
			}
			all = append(all, fineRecords...)
		}
	}

	return bestOf(all), nil
}

func evaluateAlignCandidate(targetFFT *complexGrid, targetShape [2]int, source *Raster, angle float64, flip bool, padH, padW int, opts AlignOptions) (AlignmentRecord, error) {
	s := source
	if flip {
		s = FlipVertical(s)
	}
	rotated, err := RotateRaster(s, angle, RandomFill())
	if err != nil {
		return AlignmentRecord{}, err
	}
	padded, err := PadForPhaseCorrelation(rotated, opts.MinOverlap, padH, padW, false, nil, opts.Rand)
	if err != nil {
		return AlignmentRecord{}, err
	}
	fb := fftOf(padded)
	corr := crossPowerCorrelate(targetFFT, fb, padH, padW)
	shifted := fftshift(corr)
	normed, err := normalizeUnit(shifted)
	if err != nil {
		return AlignmentRecord{}, err
	}

	mask := BuildOverlapMask([2]int{padH, padW}, targetShape, [2]int{s.Height, s.Width}, opts.MinOverlap, opts.MaxOverlap)
	offset, strength, err := FindPeak(normed, mask, 0.995)
	if err != nil {
		return AlignmentRecord{}, err
	}

	return AlignmentRecord{
		PeakY:             offset[1],
		PeakX:             offset[0],
		Weight:            strength,
		AngleDegrees:      angle,
		FlippedVertically: flip,
	}, nil
}

func maskedNoiseFill(r *Raster, mask *Mask, rng *rand.Rand) (*Raster, error) {
	if mask == nil {
		return r, nil
	}
	return RandomNoiseMask(r, mask, nil, rng)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
