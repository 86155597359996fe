package imgreg

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// Load decodes a raster from path (PNG or NPY), reduces it to grayscale,
// optionally downscales so max(shape) <= maxDim (0 disables), and normalises
// PNG integer samples to [0, 1] when dtype is a float dtype (spec §4.A).
// NPY arrays are loaded with their stored values as-is: integer NPY data is
// not rescaled to [0, 1].
func Load(path string, maxDim int, dtype DType) (*Raster, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var r *Raster
	var err error
	switch ext {
	case ".png":
		r, err = loadPNG(path, dtype)
	case ".npy":
		r, err = loadNPY(path, dtype)
	case ".jp2":
		return nil, fmt.Errorf("load %s: %w", path, ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("load %s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}

	if maxDim > 0 {
		longest := r.Height
		if r.Width > longest {
			longest = r.Width
		}
		if longest > maxDim {
			scale := float64(maxDim) / float64(longest)
			newH := int(math.Round(float64(r.Height) * scale))
			newW := int(math.Round(float64(r.Width) * scale))
			r = downscale(r, newH, newW)
		}
	}
	return r, nil
}

// downscale resizes r to (newH, newW) using golang.org/x/image/draw's
// bilinear scaler, operating through the standard image.Gray interface so
// the ecosystem resampler — not a hand-rolled one — performs the averaging.
func downscale(r *Raster, newH, newW int) *Raster {
	src := rasterToGray16(r)
	dst := image.NewGray16(image.Rect(0, 0, newW, newH))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return gray16ToRaster(dst, r.Dtype)
}

func rasterToGray16(r *Raster) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, r.Width, r.Height))
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			v := r.At(row, col)
			var u16 uint16
			if r.Dtype.IsFloat() {
				u16 = uint16(clamp01(v) * 65535)
			} else {
				u16 = uint16(clamp(v, 0, float32(r.Dtype.MaxIntValue())) / float32(r.Dtype.MaxIntValue()) * 65535)
			}
			img.SetGray16(col, row, color.Gray16{Y: u16})
		}
	}
	return img
}

func gray16ToRaster(img *image.Gray16, dtype DType) *Raster {
	b := img.Bounds()
	out := NewRaster(b.Dy(), b.Dx(), dtype)
	for row := 0; row < b.Dy(); row++ {
		for col := 0; col < b.Dx(); col++ {
			u16 := img.Gray16At(col, row).Y
			if dtype.IsFloat() {
				out.Set(row, col, float32(u16)/65535)
			} else {
				out.Set(row, col, float32(u16)/65535*float32(dtype.MaxIntValue()))
			}
		}
	}
	return out
}

func clamp01(v float32) float32 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func loadPNG(path string, dtype DType) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, errWrap(ErrIO, err))
	}
	defer f.Close()

	img, err := png.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, errWrap(ErrIO, err))
	}

	b := img.Bounds()
	r := NewRaster(b.Dy(), b.Dx(), dtype)
	for row := 0; row < b.Dy(); row++ {
		for col := 0; col < b.Dx(); col++ {
			gray := color.Gray16Model.Convert(img.At(b.Min.X+col, b.Min.Y+row)).(color.Gray16)
			if dtype.IsFloat() {
				r.Set(row, col, float32(gray.Y)/65535)
			} else {
				r.Set(row, col, float32(gray.Y)/65535*float32(dtype.MaxIntValue()))
			}
		}
	}
	return r, nil
}

// Save encodes raster to path, choosing PNG or NPY by extension. For PNG,
// bpp == 1 writes a 1-bit image, thresholding each sample to black/white and
// packing the rows into byte-aligned bytes (spec §4.A); any other bpp writes
// 16-bit grayscale. NPY output is always float32.
func Save(path string, r *Raster, bpp int) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png":
		return savePNG(path, r, bpp)
	case ".npy":
		return saveNPY(path, r)
	case ".jp2":
		return fmt.Errorf("save %s: %w", path, ErrUnsupportedFormat)
	default:
		return fmt.Errorf("save %s: %w", path, ErrUnsupportedFormat)
	}
}

func savePNG(path string, r *Raster, bpp int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, errWrap(ErrIO, err))
	}
	defer f.Close()

	if bpp == 1 {
		// A two-entry palette makes image/png write bit depth 1.
		img := image.NewPaletted(image.Rect(0, 0, r.Width, r.Height), color.Palette{color.Gray{Y: 0}, color.Gray{Y: 255}})
		for row := 0; row < r.Height; row++ {
			for col := 0; col < r.Width; col++ {
				v := r.At(row, col)
				if rasterSampleBool(v, r.Dtype) {
					img.SetColorIndex(col, row, 1)
				}
			}
		}
		return png.Encode(f, img)
	}

	img := image.NewGray16(image.Rect(0, 0, r.Width, r.Height))
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			v := r.At(row, col)
			var u16 uint16
			if r.Dtype.IsFloat() {
				u16 = uint16(clamp01(v) * 65535)
			} else {
				u16 = uint16(clamp(v, 0, float32(r.Dtype.MaxIntValue())) / float32(r.Dtype.MaxIntValue()) * 65535)
			}
			img.SetGray16(col, row, color.Gray16{Y: u16})
		}
	}
	return png.Encode(f, img)
}

func rasterSampleBool(v float32, dtype DType) bool {
	if dtype.IsFloat() {
		return v >= 0.5
	}
	return v >= float32(dtype.MaxIntValue())/2
}

func errWrap(kind, cause error) error {
	return fmt.Errorf("%w: %v", kind, cause)
}

// --- NPY (NumPy .npy format, version 1.0, C order, no fortran order) ---

var npyHeaderRe = regexp.MustCompile(`'descr':\s*'([^']+)',\s*'fortran_order':\s*(True|False),\s*'shape':\s*\(([^)]*)\)`)

func loadNPY(path string, dtype DType) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, errWrap(ErrIO, err))
	}
	if len(data) < 10 || string(data[0:6]) != "\x93NUMPY" {
		return nil, fmt.Errorf("load %s: not an npy file: %w", path, ErrUnsupportedFormat)
	}
	major := data[6]
	var headerLen int
	var headerStart int
	if major == 1 {
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		headerStart = 10
	} else {
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		headerStart = 12
	}
	header := string(data[headerStart : headerStart+headerLen])
	m := npyHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("load %s: unparsable npy header: %w", path, ErrUnsupportedFormat)
	}
	descr := m[1]
	if m[2] == "True" {
		return nil, fmt.Errorf("load %s: fortran-order npy arrays unsupported: %w", path, ErrUnsupportedFormat)
	}
	dims := strings.Split(strings.TrimSpace(m[3]), ",")
	var shape []int
	for _, d := range dims {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		n, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("load %s: bad npy shape: %w", path, ErrUnsupportedFormat)
		}
		shape = append(shape, n)
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("load %s: npy array must be 2-D, got shape %v: %w", path, shape, ErrUnsupportedFormat)
	}

	body := data[headerStart+headerLen:]
	r := NewRaster(shape[0], shape[1], dtype)
	if err := decodeNPYBody(r, body, descr); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return r, nil
}

func decodeNPYBody(r *Raster, body []byte, descr string) error {
	n := r.Height * r.Width
	switch descr {
	case "<f4":
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(body[i*4:])
			r.Data[i] = math.Float32frombits(bits)
		}
	case "<f8":
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint64(body[i*8:])
			r.Data[i] = float32(math.Float64frombits(bits))
		}
	case "|u1":
		for i := 0; i < n; i++ {
			r.Data[i] = float32(body[i])
		}
	case "<u2":
		for i := 0; i < n; i++ {
			r.Data[i] = float32(binary.LittleEndian.Uint16(body[i*2:]))
		}
	case "<i2":
		for i := 0; i < n; i++ {
			r.Data[i] = float32(int16(binary.LittleEndian.Uint16(body[i*2:])))
		}
	case "<i4":
		for i := 0; i < n; i++ {
			r.Data[i] = float32(int32(binary.LittleEndian.Uint32(body[i*4:])))
		}
	default:
		return fmt.Errorf("unsupported npy dtype %q: %w", descr, ErrUnsupportedFormat)
	}
	return nil
}

func saveNPY(path string, r *Raster) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, errWrap(ErrIO, err))
	}
	defer f.Close()

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", r.Height, r.Width)
	// Pad header so (10 + len(header) + 1) is a multiple of 64, per the npy spec.
	total := 10 + len(header) + 1
	pad := (64 - total%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	if _, err := f.Write([]byte("\x93NUMPY\x01\x00")); err != nil {
		return err
	}
	hl := uint16(len(header))
	if err := binary.Write(f, binary.LittleEndian, hl); err != nil {
		return err
	}
	if _, err := f.WriteString(header); err != nil {
		return err
	}
	buf := make([]byte, 4)
	w := bufio.NewWriter(f)
	for _, v := range r.Data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}
