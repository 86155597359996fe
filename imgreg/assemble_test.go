package imgreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarpPairIdentityPreservesPixels(t *testing.T) {
	img := NewRaster(4, 4, F32)
	for i := range img.Data {
		img.Data[i] = float32(i)
	}
	identity := func(pts []Pt) []Pt { return pts }
	out, _, err := warpPair(identity, img, nil, Pt{0, 0}, 4, 4, LiteralFill(0))
	require.NoError(t, err)
	for i := range img.Data {
		assert.Equal(t, img.Data[i], out.Data[i])
	}
}

func TestWarpPairOutOfBoundsUsesFill(t *testing.T) {
	img := NewRaster(2, 2, F32)
	invertToOutside := func(pts []Pt) []Pt {
		out := make([]Pt, len(pts))
		for i := range pts {
			out[i] = Pt{-100, -100}
		}
		return out
	}
	out, _, err := warpPair(invertToOutside, img, nil, Pt{0, 0}, 2, 2, LiteralFill(42))
	require.NoError(t, err)
	for _, v := range out.Data {
		assert.Equal(t, float32(42), v)
	}
}

func TestCompositeIntoPrefersSmallerDistance(t *testing.T) {
	h, w := 2, 2
	outImage := NewRaster(h, w, F32)
	zBuffer := NewRaster(h, w, F32)
	for i := range zBuffer.Data {
		zBuffer.Data[i] = 1000
	}

	far := &TransformedImageData{
		Image:               flatRaster(h, w, 1),
		CenterDistanceImage: flatRaster(h, w, 5),
	}
	near := &TransformedImageData{
		Image:               flatRaster(h, w, 2),
		CenterDistanceImage: flatRaster(h, w, 1),
	}
	region := Rectangle{MinY: 0, MinX: 0, Height: float64(h), Width: float64(w)}

	compositeInto(outImage, zBuffer, far, region, region)
	compositeInto(outImage, zBuffer, near, region, region)
	for _, v := range outImage.Data {
		assert.Equal(t, float32(2), v)
	}

	// Applying the farther tile again after the nearer one must not win.
	compositeInto(outImage, zBuffer, far, region, region)
	for _, v := range outImage.Data {
		assert.Equal(t, float32(2), v)
	}
}

func TestTilesetToImageEmptyTilesetReturnsEmptyRaster(t *testing.T) {
	ts := &MosaicTileset{ImageToSourceSpaceScale: 1}
	img, mask, errs := TilesetToImage(ts, nil, 1, nil)
	assert.Equal(t, 0, img.Height)
	assert.Equal(t, 0, mask.Height)
	assert.Nil(t, errs)
}

func TestUnionRectangleCoversBoth(t *testing.T) {
	a := Rectangle{MinY: 0, MinX: 0, Height: 10, Width: 10}
	b := Rectangle{MinY: 5, MinX: 5, Height: 10, Width: 10}
	u := unionRectangle(a, b)
	assert.Equal(t, 0.0, u.MinY)
	assert.Equal(t, 0.0, u.MinX)
	assert.Equal(t, 15.0, u.MaxY())
	assert.Equal(t, 15.0, u.MaxX())
}
