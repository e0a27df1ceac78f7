// Package xconfig loads and validates the configuration for an xmatch
// run: catalogue paths, matching radii, magnitude prior settings, and
// output options, as spec.md §6 enumerates them.
package xconfig

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// MagnitudeEntry configures one magnitude-prior column for one
// catalogue: which catalogue, which column, and (optionally) a
// precomputed histogram file to use instead of estimating one from this
// run's own data.
type MagnitudeEntry struct {
	Catalogue     string `yaml:"catalogue" validate:"required"`
	Column        string `yaml:"column" validate:"required"`
	HistogramFile string `yaml:"histogram_file,omitempty"`
}

// CatalogueEntry configures one input catalogue.
type CatalogueEntry struct {
	Name        string  `yaml:"name" validate:"required"`
	Path        string  `yaml:"path" validate:"required"`
	PositionErr float64 `yaml:"position_error_arcsec" validate:"gt=0"`
	RhoPlus     float64 `yaml:"rho_plus,omitempty"`
}

// Config is the full, validated configuration for one xmatch run.
type Config struct {
	Catalogues        []CatalogueEntry `yaml:"catalogues" validate:"required,min=2,dive"`
	RadiusArcsec      float64          `yaml:"radius_arcsec" validate:"gt=0"`
	MagRadiusArcsec   float64          `yaml:"mag_radius_arcsec,omitempty"`
	PriorCompleteness float64          `yaml:"prior_completeness" validate:"gte=0,lte=1"`
	Magnitudes        []MagnitudeEntry `yaml:"magnitudes,omitempty" validate:"dive"`
	AcceptableProb    float64          `yaml:"acceptable_prob"`
	MinProb           float64          `yaml:"min_prob"`
	Out               string           `yaml:"out" validate:"required"`
	WrapRA            bool             `yaml:"wrap_ra,omitempty"`
}

// DefaultAcceptableProb and DefaultMinProb mirror the command-line
// defaults spec.md §6 documents (0.005 and 0, respectively).
const (
	DefaultAcceptableProb = 0.005
	DefaultMinProb        = 0.0
)

var validate = validator.New()

// Default returns a Config with every spec-documented default applied;
// callers overlay file/CLI values on top of it.
func Default() Config {
	return Config{
		AcceptableProb: DefaultAcceptableProb,
		MinProb:        DefaultMinProb,
	}
}

// Load reads and validates a YAML configuration file, starting from
// Default() so omitted keys keep their spec-documented defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("xconfig: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("xconfig: parse %q: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("xconfig: invalid configuration %q: %w", path, err)
	}
	return cfg, nil
}

// Override is a single CLI-flag override applied on top of a loaded
// Config. A nil field is "not set" and leaves the loaded value
// untouched; a non-nil field replaces it, even when it points at zero.
type Override struct {
	RadiusArcsec   *float64
	AcceptableProb *float64
	MinProb        *float64
	Out            *string
}

// Apply layers CLI-flag overrides onto cfg, following the spec's
// "CLI flags win over file values" rule.
func (o Override) Apply(cfg Config) Config {
	if o.RadiusArcsec != nil {
		cfg.RadiusArcsec = *o.RadiusArcsec
	}
	if o.AcceptableProb != nil {
		cfg.AcceptableProb = *o.AcceptableProb
	}
	if o.MinProb != nil {
		cfg.MinProb = *o.MinProb
	}
	if o.Out != nil {
		cfg.Out = *o.Out
	}
	return cfg
}

// Validate re-runs struct validation; useful after applying overrides
// that might have introduced an invalid combination.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("xconfig: invalid configuration: %w", err)
	}
	return nil
}
