package geodesic

import (
	"math"
	"testing"
)

func TestAngularDistanceKnownPair(t *testing.T) {
	a := Point{RA: 53.15964508, Dec: -27.92927742}
	b := Point{RA: 53.15953445, Dec: -27.9313736}

	d := AngularDistance(a, b)
	if math.IsNaN(d) {
		t.Fatalf("AngularDistance returned NaN")
	}

	want := 0.0020985
	if math.Abs(d-want) > 5e-6 {
		t.Errorf("AngularDistance = %v, want ~%v", d, want)
	}
}

func TestAngularDistanceSymmetric(t *testing.T) {
	a := Point{RA: 10, Dec: 20}
	b := Point{RA: 15, Dec: -5}

	if AngularDistance(a, b) != AngularDistance(b, a) {
		t.Errorf("AngularDistance not symmetric: %v != %v", AngularDistance(a, b), AngularDistance(b, a))
	}
}

func TestAngularDistanceRange(t *testing.T) {
	cases := []struct{ a, b Point }{
		{Point{0, 0}, Point{0, 0}},
		{Point{0, 0}, Point{180, 0}},
		{Point{0, 90}, Point{180, -90}},
		{Point{359, 45}, Point{1, -45}},
	}
	for _, c := range cases {
		d := AngularDistance(c.a, c.b)
		if math.IsNaN(d) {
			t.Fatalf("AngularDistance(%v, %v) is NaN", c.a, c.b)
		}
		if d < 0 || d > 180 {
			t.Errorf("AngularDistance(%v, %v) = %v, want in [0,180]", c.a, c.b, d)
		}
	}
}

func TestAngularDistanceNeverNaN(t *testing.T) {
	// antipodal points push the haversine argument to exactly 1.
	d := AngularDistance(Point{0, 90}, Point{0, -90})
	if math.IsNaN(d) {
		t.Fatalf("AngularDistance at antipode is NaN")
	}
	if math.Abs(d-180) > 1e-9 {
		t.Errorf("AngularDistance at antipode = %v, want 180", d)
	}
}

func TestNormalizeRA(t *testing.T) {
	cases := map[float64]float64{
		0:     0,
		359.9: 359.9,
		360:   0,
		361:   1,
		-1:    359,
		-360:  0,
	}
	for in, want := range cases {
		if got := NormalizeRA(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("NormalizeRA(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestClampDec(t *testing.T) {
	if ClampDec(95) != 90 {
		t.Errorf("ClampDec(95) should clamp to 90")
	}
	if ClampDec(-95) != -90 {
		t.Errorf("ClampDec(-95) should clamp to -90")
	}
	if ClampDec(45) != 45 {
		t.Errorf("ClampDec(45) should be unchanged")
	}
}

func TestBatch(t *testing.T) {
	a := []Point{{0, 0}, {10, 10}}
	b := []Point{{0, 0}, {10, 20}}
	got := Batch(a, b)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0] != 0 {
		t.Errorf("Batch()[0] = %v, want 0", got[0])
	}
}
