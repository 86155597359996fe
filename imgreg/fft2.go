package imgreg

import "gonum.org/v1/gonum/dsp/fourier"

// complexGrid is a dense row-major grid of complex128, the working type for
// the 2-D FFT used by phase correlation (spec §4.B).
type complexGrid struct {
	Height, Width int
	Data          []complex128
}

func newComplexGrid(h, w int) *complexGrid {
	return &complexGrid{Height: h, Width: w, Data: make([]complex128, h*w)}
}

func (g *complexGrid) at(row, col int) complex128  { return g.Data[row*g.Width+col] }
func (g *complexGrid) set(row, col int, v complex128) { g.Data[row*g.Width+col] = v }

func rasterToComplexGrid(r *Raster) *complexGrid {
	g := newComplexGrid(r.Height, r.Width)
	for i, v := range r.Data {
		g.Data[i] = complex(float64(v), 0)
	}
	return g
}

// fft2 returns the 2-D DFT of g as a new grid, computed by rows then columns, using
// gonum's 1-D complex FFT for each pass — the standard separable
// decomposition of a 2-D transform.
func fft2(g *complexGrid) *complexGrid {
	out := newComplexGrid(g.Height, g.Width)
	copy(out.Data, g.Data)

	rowFFT := fourier.NewCmplxFFT(out.Width)
	row := make([]complex128, out.Width)
	for y := 0; y < out.Height; y++ {
		copy(row, out.Data[y*out.Width:(y+1)*out.Width])
		coeff := rowFFT.Coefficients(nil, row)
		copy(out.Data[y*out.Width:(y+1)*out.Width], coeff)
	}

	colFFT := fourier.NewCmplxFFT(out.Height)
	col := make([]complex128, out.Height)
	for x := 0; x < out.Width; x++ {
		for y := 0; y < out.Height; y++ {
			col[y] = out.at(y, x)
		}
		coeff := colFFT.Coefficients(nil, col)
		for y := 0; y < out.Height; y++ {
			out.set(y, x, coeff[y])
		}
	}
	return out
}

// ifft2 computes the inverse 2-D DFT, normalised so that ifft2(fft2(g)) == g.
func ifft2(g *complexGrid) *complexGrid {
	out := newComplexGrid(g.Height, g.Width)
	copy(out.Data, g.Data)

	colFFT := fourier.NewCmplxFFT(out.Height)
	col := make([]complex128, out.Height)
	for x := 0; x < out.Width; x++ {
		for y := 0; y < out.Height; y++ {
			col[y] = out.at(y, x)
		}
		seq := colFFT.Sequence(nil, col)
		for y := 0; y < out.Height; y++ {
			out.set(y, x, seq[y])
		}
	}

	rowFFT := fourier.NewCmplxFFT(out.Width)
	row := make([]complex128, out.Width)
	for y := 0; y < out.Height; y++ {
		copy(row, out.Data[y*out.Width:(y+1)*out.Width])
		seq := rowFFT.Sequence(nil, row)
		copy(out.Data[y*out.Width:(y+1)*out.Width], seq)
	}
	// gonum's Sequence is unnormalised; scale by 1/(h*w).
	n := complex(float64(out.Height*out.Width), 0)
	for i := range out.Data {
		out.Data[i] /= n
	}
	return out
}
