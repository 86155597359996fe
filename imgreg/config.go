package imgreg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeContext bundles algorithm defaults and pool sizing passed
// explicitly into each operation rather than read from a package-level
// global (spec §9).
type RuntimeContext struct {
	Align    AlignConfig `yaml:"align"`
	Refine   RefineConfig `yaml:"refine"`
	Assemble AssembleConfig `yaml:"assemble"`
	Workers  int `yaml:"workers"`
}

// AlignConfig mirrors AlignOptions' tunables for YAML loading.
type AlignConfig struct {
	MinOverlap  float64 `yaml:"min_overlap"`
	MaxOverlap  float64 `yaml:"max_overlap"`
	TestFlip    bool    `yaml:"test_flip"`
	SourceScale float64 `yaml:"source_scale"`
}

// RefineConfig mirrors RefineOptions' tunables for YAML loading.
type RefineConfig struct {
	CellSize                 int       `yaml:"cell_size"`
	GridSpacing              float64   `yaml:"grid_spacing"`
	NumIterations            int       `yaml:"num_iterations"`
	AnglesToSearch           []float64 `yaml:"angles_to_search"`
	MinTravelForFinalization float64   `yaml:"min_travel_for_finalization"`
	MinAlignmentOverlap      float64   `yaml:"min_alignment_overlap"`
}

// AssembleConfig mirrors tile-assembly tunables for YAML loading.
type AssembleConfig struct {
	TargetSpaceScale float64 `yaml:"target_space_scale"`
	DistanceCacheDir string  `yaml:"distance_cache_dir"`
}

// DefaultRuntimeContext returns the algorithm defaults spec §4 describes
// when no override is supplied.
func DefaultRuntimeContext() RuntimeContext {
	return RuntimeContext{
		Align: AlignConfig{
			MinOverlap:  0.5,
			MaxOverlap:  1.0,
			TestFlip:    false,
			SourceScale: 1.0,
		},
		Refine: RefineConfig{
			CellSize:                 64,
			GridSpacing:              64,
			NumIterations:            4,
			MinTravelForFinalization: 0.75,
			MinAlignmentOverlap:      0.5,
		},
		Assemble: AssembleConfig{
			TargetSpaceScale: 1.0,
		},
		Workers: 1,
	}
}

// LoadRuntimeContext reads a RuntimeContext from a YAML file, layering it
// over DefaultRuntimeContext so a config may override only the fields it
// cares about.
func LoadRuntimeContext(path string) (RuntimeContext, error) {
	ctx := DefaultRuntimeContext()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, fmt.Errorf("config file not found: %s", path)
		}
		return ctx, fmt.Errorf("reading config file: %w", errWrap(ErrIO, err))
	}
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return ctx, fmt.Errorf("parsing config YAML: %w", errWrap(ErrUnsupportedFormat, err))
	}
	return ctx, nil
}

// SaveRuntimeContext writes ctx to path as YAML.
func SaveRuntimeContext(path string, ctx RuntimeContext) error {
	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", errWrap(ErrIO, err))
	}
	return nil
}

// AlignOptions builds an AlignOptions from ctx's align section, wiring the
// pool passed by the caller. Rand is left nil.
func (ctx RuntimeContext) AlignOptions(pool *Pool) AlignOptions {
	return AlignOptions{
		MinOverlap:  ctx.Align.MinOverlap,
		MaxOverlap:  ctx.Align.MaxOverlap,
		TestFlip:    ctx.Align.TestFlip,
		SourceScale: ctx.Align.SourceScale,
		Pool:        pool,
	}
}

// RefineOptions builds a RefineOptions from ctx's refine section.
func (ctx RuntimeContext) RefineOptions(pool *Pool, basis RBFBasis) RefineOptions {
	return RefineOptions{
		CellSize:                 ctx.Refine.CellSize,
		GridSpacing:              ctx.Refine.GridSpacing,
		NumIterations:            ctx.Refine.NumIterations,
		AnglesToSearch:           ctx.Refine.AnglesToSearch,
		MinTravelForFinalization: ctx.Refine.MinTravelForFinalization,
		MinAlignmentOverlap:      ctx.Refine.MinAlignmentOverlap,
		Basis:                    basis,
		Pool:                     pool,
	}
}

// NewPoolFromConfig builds a Pool sized by ctx.Workers (spec §9).
func (ctx RuntimeContext) NewPoolFromConfig() *Pool {
	return NewPool(ctx.Workers)
}
