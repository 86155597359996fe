package imgreg

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// sentinelThreshold is the >1.79e308 marker upstream ir-tools solvers emit
// on a failed solve; any transform literal containing such a value is
// rejected rather than silently accepted (spec §6, factory.py's
// ParseTransformData).
const sentinelThreshold = 1.79e308

// StosPair is the persisted record of one aligned image pair (spec §3, §6).
type StosPair struct {
	TargetImagePath, SourceImagePath string
	TargetMaskPath, SourceMaskPath   string
	Downsample                      int
	TargetWidth, TargetHeight        int
	SourceWidth, SourceHeight        int
	Transform                        Transform
}

func formatShortest(v float64, precision int) string {
	s := strconv.FormatFloat(v, 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-" {
		s = "0"
	}
	return s
}

// WriteStos serialises p in the line-based STOS text format (spec §6).
func WriteStos(w io.Writer, p StosPair) error {
	mode := 0
	if p.TargetMaskPath != "" || p.SourceMaskPath != "" {
		mode = 1
	}

	line, err := transformLine(p.Transform)
	if err != nil {
		return fmt.Errorf("write_stos: %w", err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", mode)
	fmt.Fprintf(bw, "%s\n", p.SourceImagePath)
	fmt.Fprintf(bw, "%s\n", p.TargetImagePath)
	if mode == 1 {
		fmt.Fprintf(bw, "%s\n", p.TargetMaskPath)
		fmt.Fprintf(bw, "%s\n", p.SourceMaskPath)
	}
	fmt.Fprintf(bw, "%d\n", p.Downsample)
	fmt.Fprintf(bw, "%d %d\n", p.TargetWidth, p.TargetHeight)
	fmt.Fprintf(bw, "%d %d\n", p.SourceWidth, p.SourceHeight)
	fmt.Fprintf(bw, "%s\n", line)
	return bw.Flush()
}

// ReadStos parses a line-based STOS text record (spec §6).
func ReadStos(r io.Reader) (StosPair, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	nextLine := func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("unexpected end of stos file")
		}
		return scanner.Text(), nil
	}

	var p StosPair
	modeLine, err := nextLine()
	if err != nil {
		return p, fmt.Errorf("read_stos: %w", errWrap(ErrIO, err))
	}
	mode, err := strconv.Atoi(strings.TrimSpace(modeLine))
	if err != nil {
		return p, fmt.Errorf("read_stos: bad mode line: %w", ErrUnsupportedFormat)
	}

	if p.SourceImagePath, err = nextLine(); err != nil {
		return p, fmt.Errorf("read_stos: %w", errWrap(ErrIO, err))
	}
	if p.TargetImagePath, err = nextLine(); err != nil {
		return p, fmt.Errorf("read_stos: %w", errWrap(ErrIO, err))
	}
	if mode == 1 {
		if p.TargetMaskPath, err = nextLine(); err != nil {
			return p, fmt.Errorf("read_stos: %w", errWrap(ErrIO, err))
		}
		if p.SourceMaskPath, err = nextLine(); err != nil {
			return p, fmt.Errorf("read_stos: %w", errWrap(ErrIO, err))
		}
	}

	downsampleLine, err := nextLine()
	if err != nil {
		return p, fmt.Errorf("read_stos: %w", errWrap(ErrIO, err))
	}
	if p.Downsample, err = strconv.Atoi(strings.TrimSpace(downsampleLine)); err != nil {
		return p, fmt.Errorf("read_stos: bad downsample: %w", ErrUnsupportedFormat)
	}

	targetDimsLine, err := nextLine()
	if err != nil {
		return p, fmt.Errorf("read_stos: %w", errWrap(ErrIO, err))
	}
	if _, err := fmt.Sscanf(targetDimsLine, "%d %d", &p.TargetWidth, &p.TargetHeight); err != nil {
		return p, fmt.Errorf("read_stos: bad target dims: %w", ErrUnsupportedFormat)
	}

	sourceDimsLine, err := nextLine()
	if err != nil {
		return p, fmt.Errorf("read_stos: %w", errWrap(ErrIO, err))
	}
	if _, err := fmt.Sscanf(sourceDimsLine, "%d %d", &p.SourceWidth, &p.SourceHeight); err != nil {
		return p, fmt.Errorf("read_stos: bad source dims: %w", ErrUnsupportedFormat)
	}

	transformLineText, err := nextLine()
	if err != nil {
		return p, fmt.Errorf("read_stos: %w", errWrap(ErrIO, err))
	}
	p.Transform, err = parseTransformLine(transformLineText)
	if err != nil {
		return p, fmt.Errorf("read_stos: %w", err)
	}
	return p, nil
}

func transformLine(t Transform) (string, error) {
	switch v := t.(type) {
	case *Rigid:
		angleRad := v.AngleDegrees * math.Pi / 180
		return fmt.Sprintf("Rigid2DTransform_double_2_2 vp 3 %s %s %s fp 2 %s %s",
			formatShortest(angleRad, 10),
			formatShortest(v.Translation[0], 3),
			formatShortest(v.Translation[1], 3),
			formatShortest(v.SourceRotationCenter[0], 3),
			formatShortest(v.SourceRotationCenter[1], 3),
		), nil
	case *CenteredSimilarity:
		angleRad := v.AngleDegrees * math.Pi / 180
		return fmt.Sprintf("CenteredSimilarity2DTransform_double_2_2 vp 6 %s %s %s %s %s %s fp 2 %s %s",
			formatShortest(v.Scalar, 10),
			formatShortest(angleRad, 10),
			formatShortest(v.SourceRotationCenter[0], 3),
			formatShortest(v.SourceRotationCenter[1], 3),
			formatShortest(v.Translation[0], 3),
			formatShortest(v.Translation[1], 3),
			formatShortest(v.SourceRotationCenter[0], 3),
			formatShortest(v.SourceRotationCenter[1], 3),
		), nil
	case *Mesh:
		return meshTransformLine(v)
	case *Grid:
		return gridTransformLine(v)
	default:
		return "", fmt.Errorf("transform_line: %w", ErrUnsupportedFormat)
	}
}

// meshTransformLine writes a MeshTransform_double_2_2 line: each control
// pair contributes a target coordinate normalised into [0,1] against the
// transform's target bbox (10 decimal digits) followed by its absolute
// source coordinate (3 decimal digits) (spec §6; grounded on
// factory.py's _TransformToIRToolsString).
func meshTransformLine(m *Mesh) (string, error) {
	bbox := m.TargetBBox()
	if bbox.Width == 0 || bbox.Height == 0 {
		return "", fmt.Errorf("mesh_transform_line: %w: degenerate target bbox", ErrDegenerateStats)
	}

	var vp []string
	for _, pair := range m.Pairs {
		mx := (pair.TargetX - bbox.MinX) / bbox.Width
		my := (pair.TargetY - bbox.MinY) / bbox.Height
		vp = append(vp,
			formatShortest(mx, 10), formatShortest(my, 10),
			formatShortest(pair.SourceX, 3), formatShortest(pair.SourceY, 3),
		)
	}

	return fmt.Sprintf("MeshTransform_double_2_2 vp %d %s fp 8 0 16 16 %s %s %s %s %d",
		len(m.Pairs)*4, strings.Join(vp, " "),
		formatShortest(bbox.MinX, 3), formatShortest(bbox.MinY, 3),
		formatShortest(bbox.Width, 3), formatShortest(bbox.Height, 3),
		len(m.Pairs),
	), nil
}

// gridTransformLine writes a GridTransform_double_2_2 line. vp carries the
// warped target-space grid images (this module's Grid keeps its regular
// lattice in source space — see DESIGN.md's Open Question note on why this
// mirrors the vp/fp roles of the original ir-tools GridTransform, which puts
// the regular lattice on the mapped/target side instead).
func gridTransformLine(g *Grid) (string, error) {
	var vp []string
	for _, t := range g.TargetGrid {
		vp = append(vp, formatShortest(t[0], 3), formatShortest(t[1], 3))
	}

	width := g.Spacing[0] * float64(g.Cols-1)
	height := g.Spacing[1] * float64(g.Rows-1)

	return fmt.Sprintf("GridTransform_double_2_2 vp %d %s fp 7 0 %d %d %s %s %s %s",
		len(g.TargetGrid)*2, strings.Join(vp, " "),
		g.Rows-1, g.Cols-1,
		formatShortest(g.Origin[0], 3), formatShortest(g.Origin[1], 3),
		formatShortest(width, 3), formatShortest(height, 3),
	), nil
}

func parseVpFp(parts []string) (vp, fp []float64, err error) {
	iVP, iFP := -1, -1
	for i, tok := range parts {
		switch tok {
		case "vp":
			iVP = i
		case "fp":
			iFP = i
		}
	}
	if iVP < 0 || iFP < 0 || iFP < iVP {
		return nil, nil, fmt.Errorf("parse transform: %w: missing vp/fp markers", ErrInvalidTransformLiteral)
	}

	parseRange := func(lo, hi int) ([]float64, error) {
		out := make([]float64, 0, hi-lo)
		for _, tok := range parts[lo:hi] {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("parse transform: %w", ErrInvalidTransformLiteral)
			}
			if math.IsNaN(v) || math.Abs(v) > sentinelThreshold {
				return nil, fmt.Errorf("parse transform: %w", ErrInvalidTransformLiteral)
			}
			out = append(out, v)
		}
		return out, nil
	}

	// parts[iVP+1] is the vp count, parts[iVP+2:iFP] the vp values.
	// parts[iFP+1] is the fp count, parts[iFP+2:] the fp values.
	vp, err = parseRange(iVP+2, iFP)
	if err != nil {
		return nil, nil, err
	}
	fp, err = parseRange(iFP+2, len(parts))
	if err != nil {
		return nil, nil, err
	}
	return vp, fp, nil
}

func parseTransformLine(line string) (Transform, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil, fmt.Errorf("parse_transform_line: %w: empty line", ErrInvalidTransformLiteral)
	}
	tag := parts[0]

	vp, fp, err := parseVpFp(parts)
	if err != nil {
		return nil, err
	}

	switch tag {
	case "Rigid2DTransform_double_2_2":
		if len(vp) < 3 || len(fp) < 2 {
			return nil, fmt.Errorf("parse_transform_line: %w: short Rigid2DTransform", ErrInvalidTransformLiteral)
		}
		angleDeg := vp[0] * 180 / math.Pi
		return NewRigid(Pt{vp[1], vp[2]}, Pt{fp[0], fp[1]}, angleDeg), nil

	case "CenteredSimilarity2DTransform_double_2_2":
		if len(vp) < 6 || len(fp) < 2 {
			return nil, fmt.Errorf("parse_transform_line: %w: short CenteredSimilarity2DTransform", ErrInvalidTransformLiteral)
		}
		angleDeg := vp[1] * 180 / math.Pi
		return NewCenteredSimilarity(Pt{vp[4], vp[5]}, Pt{vp[2], vp[3]}, angleDeg, vp[0]), nil

	case "MeshTransform_double_2_2":
		return parseMeshTransform(vp, fp)

	case "GridTransform_double_2_2":
		return parseGridTransform(vp, fp)

	default:
		return nil, fmt.Errorf("parse_transform_line: %w: unknown tag %q", ErrUnsupportedFormat, tag)
	}
}

func parseMeshTransform(vp, fp []float64) (Transform, error) {
	if len(fp) < 7 {
		return nil, fmt.Errorf("parse_mesh_transform: %w: short fixed params", ErrInvalidTransformLiteral)
	}
	left, bottom, width, height := fp[3], fp[4], fp[5], fp[6]

	var pairs []ControlPointPair
	for i := 0; i+3 < len(vp); i += 4 {
		mx, my, cx, cy := vp[i], vp[i+1], vp[i+2], vp[i+3]
		pairs = append(pairs, ControlPointPair{
			TargetX: mx*width + left,
			TargetY: my*height + bottom,
			SourceX: cx,
			SourceY: cy,
		})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("parse_mesh_transform: %w: no control points", ErrInsufficientEvidence)
	}
	return NewMesh(pairs, RBFThinPlate), nil
}

func parseGridTransform(vp, fp []float64) (Transform, error) {
	if len(fp) < 7 {
		return nil, fmt.Errorf("parse_grid_transform: %w: short fixed params", ErrInvalidTransformLiteral)
	}
	rows := int(fp[1]) + 1
	cols := int(fp[2]) + 1
	left, bottom, width, height := fp[3], fp[4], fp[5], fp[6]

	spacingX, spacingY := 0.0, 0.0
	if cols > 1 {
		spacingX = width / float64(cols-1)
	}
	if rows > 1 {
		spacingY = height / float64(rows-1)
	}

	n := rows * cols
	if len(vp) < n*2 {
		return nil, fmt.Errorf("parse_grid_transform: %w: variable-parameter count mismatch", ErrInvalidTransformLiteral)
	}
	targetGrid := make([]Pt, n)
	for i := 0; i < n; i++ {
		targetGrid[i] = Pt{vp[i*2], vp[i*2+1]}
	}

	return NewGrid(rows, cols, Pt{left, bottom}, Pt{spacingX, spacingY}, targetGrid, RBFThinPlate), nil
}
