package bayes

import (
	"context"
	"math"
	"testing"

	"github.com/astrocross/nway/internal/candidate"
	"github.com/astrocross/nway/internal/catalogio"
	"github.com/astrocross/nway/internal/jointable"
)

func mkTable(t *testing.T, name string, ra, dec []float64) *jointable.CatalogueView {
	t.Helper()
	cols := []catalogio.Column{
		{Name: "RA", Type: catalogio.Float64Column, Floats: ra},
		{Name: "DEC", Type: catalogio.Float64Column, Floats: dec},
	}
	tbl := catalogio.NewInMemoryTable(name, cols, map[string]string{"SKYAREA": "1.0"})
	view, err := jointable.NewCatalogueView(tbl)
	if err != nil {
		t.Fatalf("NewCatalogueView: %v", err)
	}
	return view
}

// TestScoreSinglePairCloseMatch covers spec.md scenario S2: a close
// primary/secondary pair should score ncat=2 with a posterior near 1
// given a sensible prior.
func TestScoreSinglePairCloseMatch(t *testing.T) {
	primary := mkTable(t, "primary", []float64{10.0}, []float64{0.0})
	secondary := mkTable(t, "secondary", []float64{10.0 + 0.3/3600.0}, []float64{0.0})

	jt, err := jointable.Assemble([]*jointable.CatalogueView{primary, secondary},
		[]candidate.Tuple{{0, 0}}, 10.0/3600.0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if jt.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", jt.Len())
	}

	params := CatalogueParams{
		SigmaArcsec: []float64{1.0, 1.0},
		Rho0:        0.9,
		Rho:         []float64{0.05},
		RhoPlus:     []float64{0.1},
	}
	res, err := Score(context.Background(), jt, params)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.BFPost[0] < 0.9 {
		t.Errorf("BFPost = %v, want >= 0.9 for a close, well-evidenced pair", res.BFPost[0])
	}
}

// TestScoreMixedPatternsDisjointRows exercises two simultaneous
// presence patterns (one row with both secondaries present, one with
// only the first) to confirm per-stratum parallel scoring writes land
// in the right row slots.
func TestScoreMixedPatternsDisjointRows(t *testing.T) {
	primary := mkTable(t, "primary", []float64{10.0, 20.0}, []float64{0.0, 0.0})
	secA := mkTable(t, "secA", []float64{10.0 + 0.3/3600.0, 20.0 + 0.3/3600.0}, []float64{0.0, 0.0})
	secB := mkTable(t, "secB", []float64{10.0 + 0.3/3600.0}, []float64{0.0})

	tuples := []candidate.Tuple{{0, 0, 0}, {1, 1, -1}}
	jt, err := jointable.Assemble([]*jointable.CatalogueView{primary, secA, secB}, tuples, 10.0/3600.0)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if jt.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", jt.Len())
	}

	params := CatalogueParams{
		SigmaArcsec: []float64{1.0, 1.0, 1.0},
		Rho0:        0.9,
		Rho:         []float64{0.05, 0.05},
		RhoPlus:     []float64{0.1, 0.1},
	}
	res, err := Score(context.Background(), jt, params)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for i, p := range res.BFPost {
		if math.IsNaN(p) {
			t.Errorf("row %d BFPost is NaN", i)
		}
	}
	if res.Prior[0] == res.Prior[1] {
		t.Errorf("expected different priors for different presence patterns, got %v and %v", res.Prior[0], res.Prior[1])
	}
}
