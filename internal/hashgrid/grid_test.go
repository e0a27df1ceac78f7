package hashgrid

import (
	"math/rand"
	"testing"

	"github.com/astrocross/nway/internal/geodesic"
)

func TestIndexCompleteness(t *testing.T) {
	// Testable property 3: any pair (cat 0, cat i>0) within < epsilon must
	// co-occur in at least one bucket.
	rng := rand.New(rand.NewSource(1))
	const eps = 0.01 // degrees
	idx := New(eps, 2, false)

	type src struct {
		ra, dec float64
		row     int
	}
	var a, b []src
	for i := 0; i < 200; i++ {
		ra := rng.Float64() * 10
		dec := rng.Float64()*10 - 5
		a = append(a, src{ra, dec, i})
		idx.Add(0, ra, dec, i)
	}
	for i := 0; i < 200; i++ {
		// place near an `a` source with a small random offset, sometimes
		// within epsilon, sometimes not.
		base := a[rng.Intn(len(a))]
		ra := base.ra + (rng.Float64()-0.5)*eps*3
		dec := base.dec + (rng.Float64()-0.5)*eps*3
		b = append(b, src{ra, dec, i})
		idx.Add(1, ra, dec, i)
	}

	// Build a bucket -> (cat0 rows, cat1 rows) membership map by draining
	// the index, then check every close pair shares a bucket.
	buckets := map[CellKey][][]int{}
	for {
		k, v, ok := idx.Pop()
		if !ok {
			break
		}
		buckets[k] = v
	}

	coOccur := func(r0, r1 int) bool {
		for _, v := range buckets {
			has0, has1 := false, false
			for _, x := range v[0] {
				if x == r0 {
					has0 = true
					break
				}
			}
			for _, x := range v[1] {
				if x == r1 {
					has1 = true
					break
				}
			}
			if has0 && has1 {
				return true
			}
		}
		return false
	}

	for _, s0 := range a {
		for _, s1 := range b {
			d := geodesic.AngularDistance(geodesic.Point{RA: s0.ra, Dec: s0.dec}, geodesic.Point{RA: s1.ra, Dec: s1.dec})
			if d < eps {
				if !coOccur(s0.row, s1.row) {
					t.Fatalf("pair (%v,%v) separated by %v < eps=%v does not co-occur in any bucket", s0, s1, d, eps)
				}
			}
		}
	}
}

func TestIndexPopDrainsAll(t *testing.T) {
	idx := New(1.0, 1, false)
	idx.Add(0, 1.5, 1.5, 0)
	idx.Add(0, 90, 90, 1)

	count := 0
	for {
		_, _, ok := idx.Pop()
		if !ok {
			break
		}
		count++
	}
	if idx.Len() != 0 {
		t.Errorf("Len() after drain = %d, want 0", idx.Len())
	}
	if count == 0 {
		t.Errorf("expected at least one bucket popped")
	}
}

func TestWrapRAPadding(t *testing.T) {
	idx := New(1.0, 2, true)
	idx.Add(0, 0.2, 0, 0)
	idx.Add(1, 359.8, 0, 0)

	found := false
	for {
		_, v, ok := idx.Pop()
		if !ok {
			break
		}
		if len(v[0]) > 0 && len(v[1]) > 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected sources near the RA=0/360 seam to share a bucket with wrapRA enabled")
	}
}

func TestExpectedCandidateCount(t *testing.T) {
	idx := New(1.0, 2, false)
	idx.Add(0, 0.5, 0.5, 0)
	idx.Add(1, 0.5, 0.5, 0)
	if got := idx.ExpectedCandidateCount(); got <= 0 {
		t.Errorf("ExpectedCandidateCount() = %v, want > 0", got)
	}
}
