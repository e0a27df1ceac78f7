package bayes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/astrocross/nway/internal/jointable"
)

// CatalogueParams carries the per-catalogue constants the scorer needs.
// SigmaArcsec has one entry per catalogue, including the primary
// (index 0). Rho and RhoPlus have one entry per secondary catalogue
// (index 0 is catalogue 1, the first secondary).
type CatalogueParams struct {
	SigmaArcsec []float64
	Rho0        float64
	Rho         []float64
	RhoPlus     []float64
}

// Result holds the per-row astrometric evidence computed by Score,
// column-aligned with jt.Tuples. BFPost is the posterior from
// astrometry alone (spec.md §6's `bfpost`); callers that fold in
// magnitude weighting compute the final `post` separately rather than
// overwriting BFPost, so both survive (testable property 10).
type Result struct {
	LogBF  []float64
	Prior  []float64
	BFPost []float64
}

// Score computes LogBayesFactor, Prior and Posterior for every row of
// jt. Rows are grouped by their secondary-catalogue presence pattern
// (spec.md's stratification over 2^(n-1) patterns) and each pattern's
// rows are scored in its own goroutine: the prior is identical for all
// rows sharing a pattern and is computed once, while every row still
// gets its own log Bayes factor from its own pairwise separations. Row
// slots are disjoint across goroutines, so results land in
// jt.Tuples row order with no further synchronisation needed.
func Score(ctx context.Context, jt *jointable.Table, params CatalogueParams) (*Result, error) {
	n := len(params.SigmaArcsec)
	if len(params.Rho) != n-1 || len(params.RhoPlus) != n-1 {
		return nil, fmt.Errorf("bayes: expected %d secondary catalogues of Rho/RhoPlus, got %d/%d",
			n-1, len(params.Rho), len(params.RhoPlus))
	}

	strata := make(map[string][]int)
	for r, tup := range jt.Tuples {
		strata[patternKey(tup)] = append(strata[patternKey(tup)], r)
	}

	res := &Result{
		LogBF:  make([]float64, jt.Len()),
		Prior:  make([]float64, jt.Len()),
		BFPost: make([]float64, jt.Len()),
	}

	g, ctx := errgroup.WithContext(ctx)
	for key, rows := range strata {
		key, rows := key, rows
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			present := decodePattern(key, n)
			prior, err := Prior(params.Rho0, params.Rho, params.RhoPlus, present[1:])
			if err != nil {
				return err
			}
			presentIdx := presentIndices(present)

			sigma := make([]float64, len(presentIdx))
			for k, ci := range presentIdx {
				sigma[k] = params.SigmaArcsec[ci]
			}

			for _, r := range rows {
				sep := make([][]float64, len(presentIdx))
				for a := range sep {
					sep[a] = make([]float64, len(presentIdx))
				}
				for a, ci := range presentIdx {
					for b, cj := range presentIdx {
						if a == b {
							continue
						}
						lo, hi := ci, cj
						if lo > hi {
							lo, hi = hi, lo
						}
						sep[a][b] = jt.Separations[[2]int{lo, hi}][r]
					}
				}
				bf, err := LogBayesFactor(sigma, sep)
				if err != nil {
					return err
				}
				res.LogBF[r] = bf
				res.Prior[r] = prior
				res.BFPost[r] = Posterior(prior, bf)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// NoMatchPrior returns the prior probability of the implicit
// all-secondaries-absent pattern: the baseline every primary-catalogue
// row is normalised against in internal/grouping, with log Bayes factor
// 0 (a lone source trivially "matches" itself).
func NoMatchPrior(params CatalogueParams) (float64, error) {
	absent := make([]bool, len(params.Rho))
	return Prior(params.Rho0, params.Rho, params.RhoPlus, absent)
}

func patternKey(tup []int) string {
	var b strings.Builder
	for i, v := range tup {
		if i > 0 {
			b.WriteByte(',')
		}
		if v == -1 {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	}
	return b.String()
}

func decodePattern(key string, n int) []bool {
	parts := strings.Split(key, ",")
	present := make([]bool, n)
	for i, p := range parts {
		v, _ := strconv.Atoi(p)
		present[i] = v == 1
	}
	return present
}

func presentIndices(present []bool) []int {
	var out []int
	for i, p := range present {
		if p {
			out = append(out, i)
		}
	}
	return out
}
