// Package grouping normalises candidate association evidence within
// each primary source's group of candidates and assigns match flags.
package grouping

import (
	"math"
	"sort"

	"github.com/astrocross/nway/internal/bayes"
)

// MatchFlag distinguishes a group's best candidate from runners-up.
type MatchFlag int

const (
	// FlagNotBest marks a candidate that is neither the best match in
	// its group nor close enough to it to be ambiguous.
	FlagNotBest MatchFlag = 0
	// FlagBest marks the single highest-posterior candidate in a group.
	FlagBest MatchFlag = 1
	// FlagAmbiguous marks a candidate within AcceptableProb of the
	// group's best posterior, including the best candidate's runners-up.
	FlagAmbiguous MatchFlag = 2
)

// Row is one scored candidate row as grouping needs to see it: its
// primary-catalogue row index (the group key), the total evidence (log
// Bayes factor plus any magnitude weights, spec.md §4.6's "total"
// column) used to normalise this-match shares within the group, and the
// final posterior (spec.md's "post") used to pick the best candidate.
type Row struct {
	PrimaryRow int
	Total      float64
	Post       float64
}

// GroupResult holds, per input row (same order as the Rows slice given
// to Group), the assigned match flag and the two group-level
// quantities spec.md §4.7 defines.
type GroupResult struct {
	MatchFlag []MatchFlag
	// PostGroupThisMatch is the row's share of its group's total
	// evidence (exp(total-bfsum)): it sums to exactly 1 across every
	// candidate sharing a primary row (testable property 8).
	PostGroupThisMatch []float64
	// PostGroupNoMatch is the group-wide probability that none of its
	// candidates is the true match (1 - posterior(noMatchPrior, bfsum));
	// every row in a group carries the same value.
	PostGroupNoMatch []float64
}

// Group assigns match flags and group-normalised posteriors.
// noMatchPrior is the prior probability of the implicit
// all-secondaries-absent pattern (bayes.NoMatchPrior), shared across
// every group since it depends only on catalogue-wide densities.
// acceptableProb is the delta (spec.md's acceptable-prob, default 0.005)
// within which a runner-up is flagged ambiguous (FlagAmbiguous) rather
// than dismissed (FlagNotBest).
func Group(rows []Row, noMatchPrior, acceptableProb float64) *GroupResult {
	byPrimary := make(map[int][]int) // primary row -> indices into rows
	for i, r := range rows {
		byPrimary[r.PrimaryRow] = append(byPrimary[r.PrimaryRow], i)
	}

	primaries := make([]int, 0, len(byPrimary))
	for p := range byPrimary {
		primaries = append(primaries, p)
	}
	sort.Ints(primaries)

	res := &GroupResult{
		MatchFlag:          make([]MatchFlag, len(rows)),
		PostGroupThisMatch: make([]float64, len(rows)),
		PostGroupNoMatch:   make([]float64, len(rows)),
	}

	for _, primary := range primaries {
		idxs := byPrimary[primary]
		totals := make([]float64, len(idxs))
		posts := make([]float64, len(idxs))
		for k, i := range idxs {
			totals[k] = rows[i].Total
			posts[k] = rows[i].Post
		}

		bfsum := bayes.LogSumExp(totals)
		noMatch := 1 - bayes.Posterior(noMatchPrior, bfsum)

		for k, i := range idxs {
			res.PostGroupThisMatch[i] = math.Exp(totals[k] - bfsum)
			res.PostGroupNoMatch[i] = noMatch
		}

		assignFlags(res.MatchFlag, idxs, posts, acceptableProb)
	}

	return res
}

// assignFlags implements spec.md §4.7 steps 1-2, in Open Question 3's
// resolution order: every candidate within acceptableProb of the
// group's best post AND with post > 0.1 is first marked FlagAmbiguous,
// then the single best candidate's flag is overwritten to FlagBest —
// ties for "best" still leave exactly one FlagBest per group (the
// first candidate reaching the max, in idxs order).
func assignFlags(flags []MatchFlag, idxs []int, post []float64, acceptableProb float64) {
	if len(idxs) == 0 {
		return
	}

	bestK := 0
	for k := 1; k < len(post); k++ {
		if post[k] > post[bestK] {
			bestK = k
		}
	}
	best := post[bestK]

	for k, i := range idxs {
		if best-post[k] < acceptableProb && post[k] > 0.1 {
			flags[i] = FlagAmbiguous
		} else {
			flags[i] = FlagNotBest
		}
	}
	flags[idxs[bestK]] = FlagBest
}
