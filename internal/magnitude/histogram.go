// Package magnitude builds adaptive-bin magnitude histograms and turns
// them into a piecewise-constant likelihood-ratio weight, the magnitude
// prior correction layered on top of the purely positional Bayes factor.
package magnitude

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultFaintLimit is the final histogram edge appended beyond the
// brightest-to-faintest quantile spread, guaranteeing every finite
// magnitude (including ones fainter than anything seen while building
// the histogram) falls inside some bin.
const DefaultFaintLimit = 26.0

// NumQuantiles is the number of quantile-based interior edges requested
// before deduplication and the final DefaultFaintLimit edge are applied.
const NumQuantiles = 15

// ErrEmptySample is returned when a histogram is requested from a
// sample with no finite magnitudes.
var ErrEmptySample = errors.New("magnitude: empty or all-NaN magnitude sample")

// Histogram is a piecewise-constant density ratio over magnitude bins:
// Selected[i]/Others[i] is the likelihood ratio for bin i, covering
// [Edges[i], Edges[i+1]).
type Histogram struct {
	Edges    []float64
	Selected []float64 // density-normalised histogram of matched-source magnitudes
	Others   []float64 // density-normalised histogram of field/random-source magnitudes
}

// BuildHistogram constructs a Histogram from two magnitude samples:
// magSelected, the magnitudes of sources known to be true matches, and
// magOthers, a background/field sample. Bin edges are the quantiles of
// magSelected (spec's adaptive binning: bins concentrate where the
// matched sample has mass), deduplicated, with DefaultFaintLimit
// appended as the final edge.
func BuildHistogram(magSelected, magOthers []float64) (*Histogram, error) {
	sel := finite(magSelected)
	if len(sel) == 0 {
		return nil, ErrEmptySample
	}
	sort.Float64s(sel)

	edges := quantileEdges(sel, NumQuantiles)
	edges = appendFaintLimit(edges, DefaultFaintLimit)

	selDensity := density(sel, edges)
	othDensity := density(finite(magOthers), edges)

	return &Histogram{Edges: edges, Selected: selDensity, Others: othDensity}, nil
}

// quantileEdges returns numQuantiles edges at evenly spaced percentiles
// of sorted (ascending), deduplicating consecutive equal values so a
// sample with few distinct magnitudes collapses to as many bins as it
// actually has structure for.
func quantileEdges(sorted []float64, numQuantiles int) []float64 {
	if numQuantiles < 2 {
		numQuantiles = 2
	}
	raw := make([]float64, numQuantiles)
	for i := 0; i < numQuantiles; i++ {
		q := float64(i) / float64(numQuantiles-1)
		raw[i] = percentile(sorted, q)
	}
	return dedupe(raw)
}

// percentile returns the q-quantile (q in [0,1]) of sorted ascending
// values using linear interpolation between closest ranks.
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func dedupe(xs []float64) []float64 {
	if len(xs) == 0 {
		return xs
	}
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

func appendFaintLimit(edges []float64, faintLimit float64) []float64 {
	if len(edges) > 0 && edges[len(edges)-1] >= faintLimit {
		return edges
	}
	return append(edges, faintLimit)
}

// density returns, for each of len(edges)-1 bins, the fraction of vals
// falling in that bin divided by the bin width (a probability density,
// integrating to 1 over the full edge range). An empty vals sample
// yields all zeros.
func density(vals []float64, edges []float64) []float64 {
	nbins := len(edges) - 1
	out := make([]float64, nbins)
	if nbins <= 0 || len(vals) == 0 {
		return out
	}
	for _, v := range vals {
		b := bucketOf(v, edges)
		out[b]++
	}
	total := float64(len(vals))
	for i := range out {
		width := edges[i+1] - edges[i]
		if width <= 0 {
			out[i] = 0
			continue
		}
		out[i] = out[i] / total / width
	}
	return out
}

// bucketOf returns the bin index containing v, clamped to [0,
// len(edges)-2]: values below the first edge fall in bin 0, values at
// or above the last edge fall in the last bin.
func bucketOf(v float64, edges []float64) int {
	i := sort.Search(len(edges), func(k int) bool { return edges[k] > v })
	// i is the first edge strictly above v, so edges[i-1] <= v < edges[i]
	// and a value lying exactly on an edge falls in the bin that edge opens.
	if i > 0 {
		i--
	}
	if i > len(edges)-2 {
		i = len(edges) - 2
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Ratio returns the piecewise-constant likelihood ratio
// Selected[bin]/Others[bin] for magnitude v. A bin with zero Others
// density (no background coverage) yields +Inf, signalling the
// magnitude is diagnostic with no floor to weigh it against; a bin with
// both densities zero yields 1 (neutral).
func (h *Histogram) Ratio(v float64) float64 {
	b := bucketOf(v, h.Edges)
	if h.Others[b] == 0 {
		if h.Selected[b] == 0 {
			return 1
		}
		return math.Inf(1)
	}
	return h.Selected[b] / h.Others[b]
}

// Weight returns the log10 magnitude likelihood-ratio weight for a
// single row's magnitude value, per spec: 0 (neutral) when mag is
// missing (NaN), log10(ratio) otherwise.
func (h *Histogram) Weight(mag float64) float64 {
	if math.IsNaN(mag) {
		return 0
	}
	r := h.Ratio(mag)
	if math.IsInf(r, 1) {
		return math.Inf(1)
	}
	if r <= 0 {
		return math.Inf(-1)
	}
	return math.Log10(r)
}

func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// WeightColumn applies Weight across a full magnitude column, convenient
// for wiring a histogram directly onto a jointable column.
func WeightColumn(h *Histogram, mags []float64) []float64 {
	out := make([]float64, len(mags))
	for i, m := range mags {
		out[i] = h.Weight(m)
	}
	return out
}

// LoadHistogramTable builds a Histogram directly from an externally
// supplied 4-column table (bin low edge, bin high edge, selected
// density, others density), for the case where a magnitude likelihood
// ratio was computed offline rather than estimated from this run's own
// samples.
func LoadHistogramTable(lowEdge, highEdge, selectedDensity, othersDensity []float64) (*Histogram, error) {
	n := len(lowEdge)
	if len(highEdge) != n || len(selectedDensity) != n || len(othersDensity) != n {
		return nil, fmt.Errorf("magnitude: histogram table columns have mismatched length")
	}
	if n == 0 {
		return nil, ErrEmptySample
	}
	edges := make([]float64, n+1)
	for i := 0; i < n; i++ {
		edges[i] = lowEdge[i]
	}
	edges[n] = highEdge[n-1]
	return &Histogram{Edges: edges, Selected: append([]float64(nil), selectedDensity...), Others: append([]float64(nil), othersDensity...)}, nil
}
