package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kwv/goimgreg/imgreg"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const (
	exitSuccess         = 0
	exitInvalidArgs     = 2
	exitMissingInput    = 3
	exitDegenerateAlign = 4
)

func main() {
	flag.Usage = printUsage
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitInvalidArgs)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var code int
	switch cmd {
	case "align":
		code = runAlign(args)
	case "refine":
		code = runRefine(args)
	case "assemble":
		code = runAssemble(args)
	case "stos-dump":
		code = runStosDump(args)
	case "-h", "--help", "help":
		printUsage()
		code = exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "goimgreg: unknown subcommand %q\n", cmd)
		printUsage()
		code = exitInvalidArgs
	}
	os.Exit(code)
}

func printUsage() {
	fmt.Println("goimgreg version:", Version)
	fmt.Println("Usage: goimgreg <subcommand> [flags]")
	fmt.Println()
	fmt.Println("Subcommands:")
	fmt.Println("  align      rigid-align a source raster onto a target raster")
	fmt.Println("  refine     lift a rigid alignment to a dense grid transform")
	fmt.Println("  assemble   composite a STOS tileset into one target-space image")
	fmt.Println("  stos-dump  parse a .stos file and print its fields")
}

func runAlign(args []string) int {
	fs := flag.NewFlagSet("align", flag.ContinueOnError)
	target := fs.String("target", "", "path to the target raster")
	source := fs.String("source", "", "path to the source raster")
	config := fs.String("config", "", "path to a RuntimeContext YAML file (optional)")
	testFlip := fs.Bool("test-flip", false, "also search vertically-flipped candidates")
	out := fs.String("out", "", "path to write the resulting .stos file (optional)")
	if err := fs.Parse(args); err != nil {
		return exitInvalidArgs
	}
	if *target == "" || *source == "" {
		fmt.Fprintln(os.Stderr, "align: -target and -source are required")
		return exitInvalidArgs
	}

	ctx, err := loadOrDefaultContext(*config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "align:", err)
		return exitInvalidArgs
	}

	targetRaster, err := imgreg.Load(*target, 0, imgreg.F32)
	if err != nil {
		fmt.Fprintln(os.Stderr, "align: loading target:", err)
		return exitMissingInput
	}
	sourceRaster, err := imgreg.Load(*source, 0, imgreg.F32)
	if err != nil {
		fmt.Fprintln(os.Stderr, "align: loading source:", err)
		return exitMissingInput
	}

	opts := ctx.AlignOptions(ctx.NewPoolFromConfig())
	opts.TestFlip = *testFlip || opts.TestFlip

	rec, err := imgreg.SliceToSlice(targetRaster, sourceRaster, nil, nil, opts)
	if err != nil {
		log.Printf("[ALIGN] %v", err)
		return exitDegenerateAlign
	}
	log.Printf("[ALIGN] best candidate: angle=%.2f flip=%v peak=(%.2f,%.2f) weight=%.4f",
		rec.AngleDegrees, rec.FlippedVertically, rec.PeakX, rec.PeakY, rec.Weight)

	if *out != "" {
		transform := imgreg.NewRigid(imgreg.Pt{rec.PeakX, rec.PeakY}, imgreg.Pt{0, 0}, rec.AngleDegrees)
		pair := imgreg.StosPair{
			SourceImagePath: *source,
			TargetImagePath: *target,
			Downsample:      1,
			TargetWidth:     targetRaster.Width,
			TargetHeight:    targetRaster.Height,
			SourceWidth:     sourceRaster.Width,
			SourceHeight:    sourceRaster.Height,
			Transform:       transform,
		}
		if err := writeStosFile(*out, pair); err != nil {
			fmt.Fprintln(os.Stderr, "align: writing stos:", err)
			return exitInvalidArgs
		}
	}
	return exitSuccess
}

func runRefine(args []string) int {
	fs := flag.NewFlagSet("refine", flag.ContinueOnError)
	target := fs.String("target", "", "path to the target raster")
	source := fs.String("source", "", "path to the source raster")
	stosIn := fs.String("stos", "", "path to a .stos file holding the initial rigid alignment")
	config := fs.String("config", "", "path to a RuntimeContext YAML file (optional)")
	out := fs.String("out", "", "path to write the refined .stos file (optional)")
	if err := fs.Parse(args); err != nil {
		return exitInvalidArgs
	}
	if *target == "" || *source == "" || *stosIn == "" {
		fmt.Fprintln(os.Stderr, "refine: -target, -source, and -stos are required")
		return exitInvalidArgs
	}

	ctx, err := loadOrDefaultContext(*config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "refine:", err)
		return exitInvalidArgs
	}

	pair, err := readStosFile(*stosIn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "refine: reading stos:", err)
		return exitMissingInput
	}

	targetRaster, err := imgreg.Load(*target, 0, imgreg.F32)
	if err != nil {
		fmt.Fprintln(os.Stderr, "refine: loading target:", err)
		return exitMissingInput
	}
	sourceRaster, err := imgreg.Load(*source, 0, imgreg.F32)
	if err != nil {
		fmt.Fprintln(os.Stderr, "refine: loading source:", err)
		return exitMissingInput
	}

	opts := ctx.RefineOptions(ctx.NewPoolFromConfig(), imgreg.RBFThinPlate)
	result, err := imgreg.RefineGrid(pair.Transform, targetRaster, sourceRaster, nil, opts)
	if err != nil {
		log.Printf("[GRID] %v", err)
		return exitDegenerateAlign
	}
	log.Printf("[GRID] refined grid %dx%d, %d points finalized", result.Grid.Rows, result.Grid.Cols, len(result.Finalized))

	if *out != "" {
		pair.Transform = result.Grid
		if err := writeStosFile(*out, pair); err != nil {
			fmt.Fprintln(os.Stderr, "refine: writing stos:", err)
			return exitInvalidArgs
		}
	}
	return exitSuccess
}

func runAssemble(args []string) int {
	fs := flag.NewFlagSet("assemble", flag.ContinueOnError)
	stosList := fs.String("stos-list", "", "path to a newline-delimited list of .stos tile files")
	out := fs.String("out", "mosaic.png", "output path for the assembled image")
	scale := fs.Float64("target-scale", 1.0, "target-space scale factor")
	workers := fs.Int("workers", 1, "tile-assembly worker count")
	if err := fs.Parse(args); err != nil {
		return exitInvalidArgs
	}
	if *stosList == "" {
		fmt.Fprintln(os.Stderr, "assemble: -stos-list is required")
		return exitInvalidArgs
	}

	paths, err := readLines(*stosList)
	if err != nil {
		fmt.Fprintln(os.Stderr, "assemble: reading stos list:", err)
		return exitMissingInput
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "assemble: stos list is empty")
		return exitMissingInput
	}

	tileset := &imgreg.MosaicTileset{ImageToSourceSpaceScale: 1}
	for _, p := range paths {
		pair, err := readStosFile(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, "assemble: reading", p, ":", err)
			return exitMissingInput
		}
		tileset.Tiles = append(tileset.Tiles, imgreg.Tile{
			ImagePath:               pair.SourceImagePath,
			Transform:               pair.Transform,
			ImageToSourceSpaceScale: 1,
		})
	}

	pool := imgreg.NewPool(*workers)
	image, mask, tileErrs := imgreg.TilesetToImage(tileset, nil, *scale, pool)
	for _, e := range tileErrs {
		log.Printf("[ASSEMBLE] %v", e)
	}
	if image.Height == 0 || image.Width == 0 {
		fmt.Fprintln(os.Stderr, "assemble: empty mosaic bounds")
		return exitDegenerateAlign
	}

	if err := imgreg.Save(*out, image, 0); err != nil {
		fmt.Fprintln(os.Stderr, "assemble: saving output:", err)
		return exitInvalidArgs
	}
	covered := 0
	for _, v := range mask.Data {
		if v {
			covered++
		}
	}
	log.Printf("[ASSEMBLE] wrote %s (%dx%d, %d/%d pixels covered)", *out, image.Height, image.Width, covered, len(mask.Data))
	return exitSuccess
}

func runStosDump(args []string) int {
	fs := flag.NewFlagSet("stos-dump", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "stos-dump: expects exactly one .stos path")
		return exitInvalidArgs
	}

	pair, err := readStosFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "stos-dump:", err)
		return exitMissingInput
	}

	fmt.Printf("source:      %s\n", pair.SourceImagePath)
	fmt.Printf("target:      %s\n", pair.TargetImagePath)
	if pair.SourceMaskPath != "" || pair.TargetMaskPath != "" {
		fmt.Printf("source mask: %s\n", pair.SourceMaskPath)
		fmt.Printf("target mask: %s\n", pair.TargetMaskPath)
	}
	fmt.Printf("downsample:  %d\n", pair.Downsample)
	fmt.Printf("target dims: %dx%d\n", pair.TargetWidth, pair.TargetHeight)
	fmt.Printf("source dims: %dx%d\n", pair.SourceWidth, pair.SourceHeight)
	fmt.Printf("transform:   %T\n", pair.Transform)
	return exitSuccess
}

func loadOrDefaultContext(path string) (imgreg.RuntimeContext, error) {
	if path == "" {
		return imgreg.DefaultRuntimeContext(), nil
	}
	return imgreg.LoadRuntimeContext(path)
}

func readStosFile(path string) (imgreg.StosPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return imgreg.StosPair{}, err
	}
	defer f.Close()
	return imgreg.ReadStos(f)
}

func writeStosFile(path string, pair imgreg.StosPair) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return imgreg.WriteStos(f, pair)
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			line := string(data[start:i])
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			if line != "" {
				out = append(out, line)
			}
			start = i + 1
		}
	}
	if start < len(data) {
		line := string(data[start:])
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
