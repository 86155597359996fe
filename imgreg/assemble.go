package imgreg

import (
	"fmt"
	"log"
	"math"
)

// Tile anchors one source image into the mosaic: a transform from the
// raster's own pixel grid into the shared source space, plus the scale
// factor connecting the two when the raster was loaded at a different
// resolution than the transform was fit at (spec §3).
type Tile struct {
	ImagePath               string
	Transform               Transform
	ImageToSourceSpaceScale float64
}

// MosaicTileset is an ordered collection of Tiles sharing an
// image-to-source-space scale (spec §3).
type MosaicTileset struct {
	Tiles                   []Tile
	ImageToSourceSpaceScale float64
}

// TargetBBox returns the union of every tile's target-space bounding box.
func (ts *MosaicTileset) TargetBBox() (Rectangle, bool) {
	var out Rectangle
	first := true
	for _, t := range ts.Tiles {
		box := t.Transform.TargetBBox()
		if box.IsEmpty() {
			continue
		}
		if first {
			out = box
			first = false
			continue
		}
		out = unionRectangle(out, box)
	}
	return out, !first
}

func unionRectangle(a, b Rectangle) Rectangle {
	minY := math.Min(a.MinY, b.MinY)
	minX := math.Min(a.MinX, b.MinX)
	maxY := math.Max(a.MaxY(), b.MaxY())
	maxX := math.Max(a.MaxX(), b.MaxX())
	return Rectangle{MinY: minY, MinX: minX, Height: maxY - minY, Width: maxX - minX}
}

// warpPair applies invert to the integer pixel grid of a (origin, areaH,
// areaW) target-space region, then bilinearly samples image and (if
// non-nil) distance at the resulting source coordinates in one pass — the
// warp kernel behind both warped_to_fixed and transform_tile (spec §4.F).
// Rows invalid or outside image's bounds are filled per fill; the matching
// distance-buffer pixel is left at math.MaxFloat32, the Z-buffer's initial
// value, so it never wins the strict less-than compare.
func warpPair(invert func([]Pt) []Pt, image, distance *Raster, origin Pt, areaH, areaW int, fill CropFill) (*Raster, *Raster, error) {
	outImage := NewRaster(areaH, areaW, image.Dtype)
	var outDistance *Raster
	if distance != nil {
		outDistance = NewRaster(areaH, areaW, F32)
		for i := range outDistance.Data {
			outDistance.Data[i] = float32(math.MaxFloat32)
		}
	}

	var sampler *gaussianSampler
	if fill.Random {
		stats, err := image.Stats(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("warped_to_fixed: %w", err)
		}
		sampler = newGaussianSampler(stats, nil)
	}

	targetPts := make([]Pt, 0, areaH*areaW)
	for row := 0; row < areaH; row++ {
		for col := 0; col < areaW; col++ {
			targetPts = append(targetPts, Pt{origin[0] + float64(col), origin[1] + float64(row)})
		}
	}
	srcPts := invert(targetPts)

	idx := 0
	for row := 0; row < areaH; row++ {
		for col := 0; col < areaW; col++ {
			p := srcPts[idx]
			idx++
			if isNaNPt(p) {
				outImage.Set(row, col, fillValue(fill, sampler))
				continue
			}
			v, ok := bilinearSample(image, p[1], p[0])
			if !ok {
				outImage.Set(row, col, fillValue(fill, sampler))
				continue
			}
			outImage.Set(row, col, v)
			if outDistance != nil {
				if dv, dok := bilinearSample(distance, p[1], p[0]); dok {
					outDistance.Set(row, col, dv)
				}
			}
		}
	}
	return outImage, outDistance, nil
}

func fillValue(fill CropFill, sampler *gaussianSampler) float32 {
	if sampler != nil {
		return sampler.sample()
	}
	return fill.Value
}

// WarpedToFixed forward-warps warped through transform's inverse map into a
// fixed-shape target-space region (spec §4.F's warp kernel).
func WarpedToFixed(transform Transform, warped *Raster, origin Pt, areaH, areaW int, fill CropFill) (*Raster, error) {
	image, _, err := warpPair(transform.InverseTransformPoints, warped, nil, origin, areaH, areaW, fill)
	return image, err
}

// TransformedImageData is the result of rendering a single tile into target
// space (spec §4.F).
type TransformedImageData struct {
	Image               *Raster
	CenterDistanceImage *Raster
	Transform           Transform
	SourceScale         float64
	TargetScale         float64
	// ErrMsg carries a non-fatal warning (e.g. a degraded but recoverable
	// warp) without failing the tile outright; empty on a clean render.
	ErrMsg string
}

// TransformTile renders tile into targetRegion (or its transform's own
// TargetBBox when nil), adjusting for a target-space scale different from
// the tile's native image-to-source-space scale by composing a target-side
// scale adjustment rather than mutating the tile's shared Transform (spec
// §4.F).
func TransformTile(tile Tile, distances *DistanceCache, targetSpaceScale float64, targetRegion *Rectangle) (*TransformedImageData, error) {
	img, err := Load(tile.ImagePath, 0, F32)
	if err != nil {
		return nil, fmt.Errorf("transform_tile: %w", err)
	}

	sourceScale := tile.ImageToSourceSpaceScale
	if sourceScale <= 0 {
		sourceScale = 1
	}
	targetScale := targetSpaceScale
	if targetScale <= 0 {
		targetScale = sourceScale
	}
	ratio := targetScale / sourceScale

	invert := tile.Transform.InverseTransformPoints
	targetBBox := tile.Transform.TargetBBox()
	if ratio != 1 {
		invert = func(pts []Pt) []Pt {
			unscaled := make([]Pt, len(pts))
			for i, p := range pts {
				unscaled[i] = Pt{p[0] / ratio, p[1] / ratio}
			}
			return tile.Transform.InverseTransformPoints(unscaled)
		}
		targetBBox = targetBBox.ScaleOnOrigin(ratio)
	}

	region := targetBBox
	if targetRegion != nil {
		region = *targetRegion
	}
	region = region.SafeRound()
	if region.IsEmpty() {
		return nil, fmt.Errorf("transform_tile: %w", ErrCompositeOutOfBounds)
	}

	var distImg *Raster
	if distances != nil {
		distImg, err = distances.Get(img.Height, img.Width)
		if err != nil {
			return nil, fmt.Errorf("transform_tile: %w", err)
		}
	}

	origin := Pt{region.MinX, region.MinY}
	image, centerDist, err := warpPair(invert, img, distImg, origin, int(region.Height), int(region.Width), LiteralFill(0))
	if err != nil {
		return nil, fmt.Errorf("transform_tile: %w", err)
	}

	return &TransformedImageData{
		Image:               image,
		CenterDistanceImage: centerDist,
		Transform:           tile.Transform,
		SourceScale:         sourceScale,
		TargetScale:         targetScale,
	}, nil
}

// TileError records a single tile's render failure during composite; the
// tile is skipped and composite continues (spec §4.F, §7's partial-mask
// policy).
type TileError struct {
	TileIndex int
	ImagePath string
	Err       error
}

func (e TileError) Error() string {
	return fmt.Sprintf("tile %d (%s): %v", e.TileIndex, e.ImagePath, e.Err)
}

// TilesetToImage composites every tile of ts into one target-space image
// via a distance-keyed Z-buffer: at each pixel, the tile whose
// center_distance_image is smallest wins, so tile interiors are preferred
// over their edges and seams disappear (spec §4.F).
//
// Per-tile render errors are logged and the tile skipped; composite still
// succeeds with a partial mask, returning the list of skipped tiles as
// TileErrors rather than aborting.
func TilesetToImage(ts *MosaicTileset, targetRegion *Rectangle, targetScale float64, pool *Pool) (*Raster, *Mask, []TileError) {
	if pool == nil {
		pool = NewPool(1)
	}

	region, ok := ts.TargetBBox()
	if targetRegion != nil {
		region = *targetRegion
		ok = true
	}
	if !ok {
		return NewRaster(0, 0, F32), NewMask(0, 0), nil
	}
	region = region.SafeRound()
	h, w := int(region.Height), int(region.Width)

	outImage := NewRaster(h, w, F32)
	zBuffer := NewRaster(h, w, F32)
	for i := range zBuffer.Data {
		zBuffer.Data[i] = float32(math.MaxFloat32)
	}

	distances := NewDistanceCache("")
	var tileErrs []TileError

	type tileTask struct {
		index  int
		region Rectangle
	}
	var tasks []tileTask
	for i, t := range ts.Tiles {
		tileBox := t.Transform.TargetBBox()
		inter, ok := region.Intersect(tileBox)
		if !ok || inter.IsEmpty() {
			continue
		}
		tasks = append(tasks, tileTask{index: i, region: inter})
	}

	// Submission and integration interleave: once more than Parallelism
	// tiles are in flight, the oldest is drained and composited into
	// outImage/zBuffer before the next is submitted, so a TransformedImageData
	// is never held in memory longer than it takes its slot in the window to
	// come free (spec §4.G). outImage/zBuffer are only ever touched from this
	// goroutine — compositeInto never runs inside a pool worker.
	type inFlight struct {
		task   tileTask
		handle *TaskHandle
	}
	integrate := func(f inFlight) {
		v, err := f.handle.WaitReturn()
		if err != nil {
			tileErr := TileError{TileIndex: f.task.index, ImagePath: ts.Tiles[f.task.index].ImagePath, Err: err}
			tileErrs = append(tileErrs, tileErr)
			log.Printf("[ASSEMBLE] %v", tileErr)
			return
		}
		data := v.(*TransformedImageData)
		compositeInto(outImage, zBuffer, data, f.task.region, region)
	}

	var window []inFlight
	for _, task := range tasks {
		tile := ts.Tiles[task.index]
		reg := task.region
		handle := pool.Submit(fmt.Sprintf("assemble-tile-%d", task.index), func() (any, error) {
			return TransformTile(tile, distances, targetScale, &reg)
		})
		window = append(window, inFlight{task: task, handle: handle})
		if len(window) > pool.Parallelism {
			integrate(window[0])
			window = window[1:]
		}
	}
	for _, f := range window {
		integrate(f)
	}

	mask := NewMask(h, w)
	for i, v := range zBuffer.Data {
		mask.Data[i] = v < float32(math.MaxFloat32)
	}
	return outImage, mask, tileErrs
}

// compositeInto writes tile's rendered pixels into outImage/zBuffer wherever
// its center-distance beats the current buffer value, the distance-keyed
// Z-buffer rule (spec §4.F). Integration happens entirely on the caller's
// goroutine, the single owner of outImage/zBuffer.
func compositeInto(outImage, zBuffer *Raster, data *TransformedImageData, tileRegion, fullRegion Rectangle) {
	offY := int(tileRegion.MinY - fullRegion.MinY)
	offX := int(tileRegion.MinX - fullRegion.MinX)

	for row := 0; row < data.Image.Height; row++ {
		dy := row + offY
		if dy < 0 || dy >= outImage.Height {
			continue
		}
		for col := 0; col < data.Image.Width; col++ {
			dx := col + offX
			if dx < 0 || dx >= outImage.Width {
				continue
			}
			var dist float32 = float32(math.MaxFloat32)
			if data.CenterDistanceImage != nil {
				dist = data.CenterDistanceImage.At(row, col)
			}
			if dist < zBuffer.At(dy, dx) {
				zBuffer.Set(dy, dx, dist)
				outImage.Set(dy, dx, data.Image.At(row, col))
			}
		}
	}
}
