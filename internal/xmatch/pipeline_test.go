package xmatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/astrocross/nway/internal/catalogio"
	"github.com/astrocross/nway/internal/eventbus"
	"github.com/astrocross/nway/internal/fixtures"
	"github.com/astrocross/nway/internal/xconfig"
)

func baseConfig() xconfig.Config {
	cfg := xconfig.Default()
	cfg.RadiusArcsec = 5.0
	cfg.PriorCompleteness = 0.9
	cfg.Out = "result.csv"
	cfg.Catalogues = []xconfig.CatalogueEntry{
		{Name: "messier", Path: "messier.csv", PositionErr: 0.3},
		{Name: "ngc", Path: "ngc.csv", PositionErr: 0.3},
	}
	return cfg
}

func TestPipelineRunEndToEndFindsKnownMatches(t *testing.T) {
	messier := fixtures.ToTable(41253.0)
	ngc := fixtures.ToNGCTable(41253.0)

	bus := eventbus.NewInMemoryBus()
	pipe := NewPipeline(baseConfig(), bus, nil)

	res, err := pipe.Run(context.Background(), "job-1", []catalogio.Table{messier, ngc})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Joined.Len() == 0 {
		t.Fatalf("expected at least one surviving candidate row")
	}

	bestFlags := 0
	for _, f := range res.Group.MatchFlag {
		if f == 1 {
			bestFlags++
		}
	}
	if bestFlags == 0 {
		t.Errorf("expected at least one FlagBest row among the known Messier/NGC aliases")
	}
}

func TestPipelineRunNoMatchesIsFatal(t *testing.T) {
	messier := fixtures.ToTable(41253.0)
	ngc := fixtures.ToNGCTable(41253.0)

	cfg := baseConfig()
	cfg.RadiusArcsec = 0.001 // tighter than every synthetic offset

	pipe := NewPipeline(cfg, nil, nil)
	_, err := pipe.Run(context.Background(), "job-2", []catalogio.Table{messier, ngc})
	if !errors.Is(err, ErrNoMatches) {
		t.Errorf("err = %v, want ErrNoMatches", err)
	}
}

func TestPipelineRunRejectsTooFewCatalogues(t *testing.T) {
	messier := fixtures.ToTable(41253.0)
	pipe := NewPipeline(baseConfig(), nil, nil)
	_, err := pipe.Run(context.Background(), "job-3", []catalogio.Table{messier})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestPipelineRunWithMagnitudeWeightBootstrap(t *testing.T) {
	messier := fixtures.ToTable(41253.0)
	ngc := fixtures.ToNGCTable(41253.0)

	cfg := baseConfig()
	cfg.Magnitudes = []xconfig.MagnitudeEntry{{Catalogue: "ngc", Column: "VMAG"}}
	pipe := NewPipeline(cfg, nil, nil)

	res, err := pipe.Run(context.Background(), "job-5", []catalogio.Table{messier, ngc})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bias, ok := res.MagBias["ngc_VMAG"]
	if !ok {
		t.Fatalf("MagBias missing key %q, got %v", "ngc_VMAG", res.MagBias)
	}
	if len(bias) != res.Joined.Len() {
		t.Fatalf("MagBias[%q] length = %d, want %d", "ngc_VMAG", len(bias), res.Joined.Len())
	}
}

func TestPipelineRunWithMagnitudeHistogramFile(t *testing.T) {
	messier := fixtures.ToTable(41253.0)
	ngc := fixtures.ToNGCTable(41253.0)

	dir := t.TempDir()
	histPath := filepath.Join(dir, "vmag_hist.csv")
	hist := catalogio.NewInMemoryTable("vmag_hist", []catalogio.Column{
		{Name: "low_edge", Type: catalogio.Float64Column, Floats: []float64{0, 5, 10}},
		{Name: "high_edge", Type: catalogio.Float64Column, Floats: []float64{5, 10, 26}},
		{Name: "selected_density", Type: catalogio.Float64Column, Floats: []float64{0.05, 0.15, 0.01}},
		{Name: "others_density", Type: catalogio.Float64Column, Floats: []float64{0.02, 0.03, 0.04}},
	}, map[string]string{})
	if err := catalogio.WriteCSV(histPath, hist); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	cfg := baseConfig()
	cfg.Magnitudes = []xconfig.MagnitudeEntry{{Catalogue: "ngc", Column: "VMAG", HistogramFile: histPath}}
	pipe := NewPipeline(cfg, nil, nil)

	res, err := pipe.Run(context.Background(), "job-6", []catalogio.Table{messier, ngc})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	allZero := true
	for _, w := range res.MagBias["ngc_VMAG"] {
		if w != 1 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Errorf("expected at least one non-neutral magnitude bias from the loaded histogram")
	}
}

func TestWriteResultCSVProducesReadableOutput(t *testing.T) {
	messier := fixtures.ToTable(41253.0)
	ngc := fixtures.ToNGCTable(41253.0)

	pipe := NewPipeline(baseConfig(), nil, nil)
	res, err := pipe.Run(context.Background(), "job-4", []catalogio.Table{messier, ngc})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	if err := WriteResultCSV(path, res, 0.0); err != nil {
		t.Fatalf("WriteResultCSV: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	got, err := catalogio.ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if got.Len() == 0 {
		t.Errorf("output table has no rows")
	}
	if _, err := got.Column("match_flag"); err != nil {
		t.Errorf("output table missing match_flag column: %v", err)
	}
}
