package imgreg

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// RefineOptions parameterises RefineGrid (spec §4.E).
type RefineOptions struct {
	CellSize                 int
	GridSpacing              float64
	NumIterations            int
	AnglesToSearch           []float64
	MinTravelForFinalization float64
	MinAlignmentOverlap      float64
	Basis                    RBFBasis
	Pool                     *Pool
	Rand                     *rand.Rand
}

func (o RefineOptions) withDefaults() RefineOptions {
	if o.CellSize <= 0 {
		o.CellSize = 64
	}
	if o.GridSpacing <= 0 {
		o.GridSpacing = float64(o.CellSize)
	}
	if o.NumIterations <= 0 {
		o.NumIterations = 1
	}
	if o.MinAlignmentOverlap <= 0 {
		o.MinAlignmentOverlap = 0.5
	}
	if o.Pool == nil {
		o.Pool = NewPool(1)
	}
	return o
}

// RefineResult is RefineGrid's output: the refined Grid transform plus the
// set of alignment records that were frozen (finalised) across iterations.
type RefineResult struct {
	Grid      *Grid
	Finalized []EnhancedAlignmentRecord
}

func gridLatticePoints(height, width int, spacing float64) []Pt {
	var pts []Pt
	for y := 0.0; y < float64(height); y += spacing {
		for x := 0.0; x < float64(width); x += spacing {
			pts = append(pts, Pt{x, y})
		}
	}
	return pts
}

func gridLatticeDims(height, width int, spacing float64) (rows, cols int) {
	rows = int(math.Ceil(float64(height)/spacing - 1e-9))
	cols = int(math.Ceil(float64(width)/spacing - 1e-9))
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return
}

func cropCentered(r *Raster, center Pt, size int, rng *rand.Rand) (*Raster, error) {
	originY := int(math.Round(center[1])) - size/2
	originX := int(math.Round(center[0])) - size/2
	return Crop(r, originY, originX, size, size, RandomFill())
}

// percentileWeight returns the weight at percentile pct (0-100) among
// records: the sorted weight at index floor(pct/100 * (len-1)).
func percentileWeight(records []EnhancedAlignmentRecord, pct float64) float64 {
	if len(records) == 0 {
		return 0
	}
	weights := make([]float64, len(records))
	for i, r := range records {
		weights[i] = r.Weight
	}
	sort.Float64s(weights)
	idx := int(pct / 100 * float64(len(weights)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(weights) {
		idx = len(weights) - 1
	}
	return weights[idx]
}

// measureCellOffset phase-correlates a cellSize ROI of source centred at s
// against the corresponding ROI of target centred at t = currentTransform(s),
// optionally rotating the source ROI by angleDeg first (spec §4.E step 2,
// the final-pass per-cell angle search of step 7).
func measureCellOffset(target, source *Raster, t, s Pt, cellSize int, angleDeg float64, rng *rand.Rand) (EnhancedAlignmentRecord, error) {
	targetROI, err := cropCentered(target, t, cellSize, rng)
	if err != nil {
		return EnhancedAlignmentRecord{}, err
	}
	sourceROI, err := cropCentered(source, s, cellSize, rng)
	if err != nil {
		return EnhancedAlignmentRecord{}, err
	}
	if angleDeg != 0 {
		sourceROI, err = RotateRaster(sourceROI, angleDeg, RandomFill())
		if err != nil {
			return EnhancedAlignmentRecord{}, err
		}
	}

	corr, err := PhaseCorrelate(targetROI, sourceROI)
	if err != nil {
		return EnhancedAlignmentRecord{}, err
	}
	shifted := fftshift(corr)
	normed, err := normalizeUnit(shifted)
	if err != nil {
		return EnhancedAlignmentRecord{}, err
	}
	offset, strength, err := FindPeak(normed, nil, 0.995)
	if err != nil {
		return EnhancedAlignmentRecord{}, err
	}

	return EnhancedAlignmentRecord{
		TargetPoint:  t,
		SourcePoint:  s,
		Peak:         offset,
		Weight:       strength,
		AngleDegrees: angleDeg,
	}, nil
}

// RefineGrid lifts an initial (typically rigid) Transform to a dense Grid
// transform by iteratively phase-correlating cells on a regular source-space
// lattice and freezing high-confidence matches (spec §4.E).
func RefineGrid(initial Transform, target, source *Raster, sourceMask *Mask, opts RefineOptions) (*RefineResult, error) {
	opts = opts.withDefaults()

	lattice := gridLatticePoints(source.Height, source.Width, opts.GridSpacing)
	if sourceMask != nil {
		filtered := lattice[:0]
		for _, p := range lattice {
			row, col := int(math.Round(p[1])), int(math.Round(p[0]))
			inBounds := row >= 0 && row < sourceMask.Height && col >= 0 && col < sourceMask.Width
			if !inBounds || sourceMask.At(row, col) {
				filtered = append(filtered, p)
			}
		}
		lattice = filtered
	}
	if len(lattice) < 3 {
		return nil, fmt.Errorf("refine_grid: %w", ErrInsufficientEvidence)
	}

	finalizedSet := make(map[Pt]bool)
	var finalized []EnhancedAlignmentRecord
	currentTransform := initial
	nextID := 0
	newFinalizationsLastIter := -1 // unknown before the first iteration has run

	for iter := 0; iter < opts.NumIterations; iter++ {
		finalizedBefore := len(finalized)
		fractionFinalized := 0.0
		if len(lattice) > 0 {
			fractionFinalized = float64(finalizedBefore) / float64(len(lattice))
		}
		// Spec §4.E step 7: the full angles_to_search sweep also runs when
		// finalisation has stagnated (no new finalizations last pass, with
		// more than 10% already finalized) or once >90% of points are
		// finalized, not only on the last configured iteration.
		stagnated := newFinalizationsLastIter == 0 && fractionFinalized > 0.1
		mostlyFinalized := fractionFinalized > 0.9
		isFinalPass := iter == opts.NumIterations-1 || stagnated || mostlyFinalized
		angles := []float64{0}
		if isFinalPass && len(opts.AnglesToSearch) > 0 {
			angles = opts.AnglesToSearch
		}

		var records []EnhancedAlignmentRecord
		for _, s := range lattice {
			if finalizedSet[s] {
				continue
			}
			t := currentTransform.TransformPoints([]Pt{s})[0]
			if isNaNPt(t) {
				continue
			}

			var best EnhancedAlignmentRecord
			haveBest := false
			for _, angle := range angles {
				rec, err := measureCellOffset(target, source, t, s, opts.CellSize, angle, opts.Rand)
				if err != nil {
					continue
				}
				if !haveBest || rec.Weight > best.Weight {
					best = rec
					haveBest = true
				}
			}
			if !haveBest {
				continue
			}
			best.ID = nextID
			nextID++
			records = append(records, best)
		}

		if len(records) == 0 {
			return nil, fmt.Errorf("refine_grid: iteration %d: %w", iter, ErrInsufficientEvidence)
		}

		cutoffPct := math.Max(10, 50-10*float64(iter))
		cutoffWeight := percentileWeight(records, cutoffPct)
		medianWeight := percentileWeight(records, 50)

		var survivors []EnhancedAlignmentRecord
		for _, r := range records {
			if r.Weight >= cutoffWeight {
				survivors = append(survivors, r)
			}
		}

		combined := append(append([]EnhancedAlignmentRecord(nil), finalized...), survivors...)
		if len(combined) < 3 {
			return nil, fmt.Errorf("refine_grid: iteration %d: %w", iter, ErrInsufficientEvidence)
		}

		pairs := make([]ControlPointPair, len(combined))
		for i, r := range combined {
			refined := r.RefinedTargetPoint()
			pairs[i] = ControlPointPair{TargetX: refined[0], TargetY: refined[1], SourceX: r.SourcePoint[0], SourceY: r.SourcePoint[1]}
		}
		currentTransform = NewMesh(pairs, opts.Basis)

		for _, r := range survivors {
			travel := math.Hypot(r.Peak[0], r.Peak[1])
			if travel < opts.MinTravelForFinalization && r.Weight > medianWeight {
				finalized = append(finalized, r)
				finalizedSet[r.SourcePoint] = true
			}
		}

		newFinalizationsLastIter = len(finalized) - finalizedBefore
		if isFinalPass {
			break
		}
	}

	rows, cols := gridLatticeDims(source.Height, source.Width, opts.GridSpacing)
	origin := Pt{0, 0}
	spacing := Pt{opts.GridSpacing, opts.GridSpacing}
	grid := NewGrid(rows, cols, origin, spacing, nil, opts.Basis)
	axis := grid.AxisPoints()
	grid.TargetGrid = currentTransform.TransformPoints(axis)

	return &RefineResult{Grid: grid, Finalized: finalized}, nil
}
