package magnitude

import (
	"math"
	"testing"
)

// TestBuildHistogramScenarioS6 covers spec.md scenario S6: a selected
// sample of [18,18,19,19,20] has its repeated quantile edges removed,
// leaving strictly increasing edges with DefaultFaintLimit appended.
func TestBuildHistogramScenarioS6(t *testing.T) {
	sel := []float64{18, 18, 19, 19, 20}
	others := []float64{18, 19, 20, 21, 22}

	h, err := BuildHistogram(sel, others)
	if err != nil {
		t.Fatalf("BuildHistogram: %v", err)
	}

	if h.Edges[len(h.Edges)-1] != DefaultFaintLimit {
		t.Errorf("last edge = %v, want %v", h.Edges[len(h.Edges)-1], DefaultFaintLimit)
	}
	for i := 1; i < len(h.Edges); i++ {
		if h.Edges[i] <= h.Edges[i-1] {
			t.Fatalf("edges not strictly increasing: %v", h.Edges)
		}
	}
	if len(h.Selected) != len(h.Edges)-1 {
		t.Errorf("len(Selected) = %d, want %d", len(h.Selected), len(h.Edges)-1)
	}
}

func TestBuildHistogramEmptySample(t *testing.T) {
	if _, err := BuildHistogram(nil, []float64{1, 2}); err == nil {
		t.Errorf("expected error for empty selected sample")
	}
	if _, err := BuildHistogram([]float64{math.NaN()}, nil); err == nil {
		t.Errorf("expected error for all-NaN selected sample")
	}
}

func TestWeightNeutralOnMissingMagnitude(t *testing.T) {
	h, err := BuildHistogram([]float64{18, 19, 20}, []float64{18, 19, 20})
	if err != nil {
		t.Fatalf("BuildHistogram: %v", err)
	}
	if w := h.Weight(math.NaN()); w != 0 {
		t.Errorf("Weight(NaN) = %v, want 0", w)
	}
}

func TestWeightHigherForBrighterInSkewedSample(t *testing.T) {
	// selected sources cluster bright; background is uniform across the
	// full magnitude range, so a bright magnitude should score a higher
	// weight than a faint one.
	sel := []float64{15, 15, 15, 16, 16}
	others := []float64{15, 17, 19, 21, 23}

	h, err := BuildHistogram(sel, others)
	if err != nil {
		t.Fatalf("BuildHistogram: %v", err)
	}
	bright := h.Weight(15)
	faint := h.Weight(23)
	if !(bright > faint) {
		t.Errorf("Weight(bright)=%v, Weight(faint)=%v; want bright > faint", bright, faint)
	}
}

func TestDensityIntegratesToOne(t *testing.T) {
	sel := []float64{18, 18, 19, 19, 20}
	h, err := BuildHistogram(sel, sel)
	if err != nil {
		t.Fatalf("BuildHistogram: %v", err)
	}
	total := 0.0
	for i, d := range h.Selected {
		width := h.Edges[i+1] - h.Edges[i]
		total += d * width
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("Selected density integral = %v, want 1.0", total)
	}
}

func TestBucketOfClampsOutOfRange(t *testing.T) {
	edges := []float64{10, 20, 30}
	if b := bucketOf(5, edges); b != 0 {
		t.Errorf("bucketOf(below range) = %d, want 0", b)
	}
	if b := bucketOf(35, edges); b != 1 {
		t.Errorf("bucketOf(above range) = %d, want 1 (last bin)", b)
	}
}

func TestLoadHistogramTable(t *testing.T) {
	h, err := LoadHistogramTable(
		[]float64{10, 15, 20},
		[]float64{15, 20, 25},
		[]float64{0.1, 0.2, 0.05},
		[]float64{0.05, 0.1, 0.1},
	)
	if err != nil {
		t.Fatalf("LoadHistogramTable: %v", err)
	}
	if len(h.Edges) != 4 {
		t.Fatalf("len(Edges) = %d, want 4", len(h.Edges))
	}
	if h.Ratio(12) != 2.0 {
		t.Errorf("Ratio(12) = %v, want 2.0", h.Ratio(12))
	}
}

func TestLoadHistogramTableMismatchedLengths(t *testing.T) {
	_, err := LoadHistogramTable([]float64{1, 2}, []float64{2}, []float64{1}, []float64{1})
	if err == nil {
		t.Errorf("expected error for mismatched column lengths")
	}
}
