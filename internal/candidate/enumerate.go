// Package candidate enumerates candidate association tuples from a
// hash-grid index: the Cartesian product of per-catalogue row indices
// within each bucket, deduplicated and filtered.
package candidate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/astrocross/nway/internal/hashgrid"
)

// Tuple is a length-N vector of row indices, one per catalogue. Index 0
// (the primary) is always >= 0; entries for i > 0 are -1 when that
// catalogue has no counterpart in this tuple.
type Tuple []int

// Enumerate drains idx (consuming its buckets) and returns every
// deduplicated candidate tuple, sorted lexicographically, with
// primary-only tuples dropped per spec's "onlyfirst" rule.
func Enumerate(idx *hashgrid.Index, numCats int) []Tuple {
	seen := make(map[string]struct{})
	var tuples []Tuple

	for {
		_, bucket, ok := idx.Pop()
		if !ok {
			break
		}
		if len(bucket[0]) == 0 {
			continue
		}

		lists := make([][]int, numCats)
		lists[0] = bucket[0]
		for i := 1; i < numCats; i++ {
			lists[i] = make([]int, 0, len(bucket[i])+1)
			lists[i] = append(lists[i], bucket[i]...)
			lists[i] = append(lists[i], -1) // "no counterpart" sentinel
		}

		for _, tup := range cartesianProduct(lists) {
			key := tupleKey(tup)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tuples = append(tuples, tup)
		}
	}

	tuples = dropPrimaryOnly(tuples)
	sort.Slice(tuples, func(i, j int) bool { return lexLess(tuples[i], tuples[j]) })
	return tuples
}

// cartesianProduct emits every combination of lists[0] x lists[1] x ... x
// lists[n-1] using an explicit index stack (an odometer), not recursion,
// so the iteration state is one position per list (design note §9). The
// returned slice holds every combination, Π len(lists[i]) tuples.
func cartesianProduct(lists [][]int) []Tuple {
	n := len(lists)
	for _, l := range lists {
		if len(l) == 0 {
			return nil
		}
	}

	positions := make([]int, n)
	var out []Tuple
	for {
		tup := make(Tuple, n)
		for i, p := range positions {
			tup[i] = lists[i][p]
		}
		out = append(out, tup)

		pos := n - 1
		for pos >= 0 {
			positions[pos]++
			if positions[pos] < len(lists[pos]) {
				break
			}
			positions[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out
}

// dropPrimaryOnly removes tuples whose only present slot is the primary
// catalogue (design note §9, Open Question 4): these carry no
// cross-identification information; the "no counterpart" case enters
// scoring only through bayes.NoMatchPrior in the grouping step.
func dropPrimaryOnly(tuples []Tuple) []Tuple {
	out := tuples[:0]
	for _, t := range tuples {
		hasSecondary := false
		for i := 1; i < len(t); i++ {
			if t[i] != -1 {
				hasSecondary = true
				break
			}
		}
		if hasSecondary {
			out = append(out, t)
		}
	}
	return out
}

func tupleKey(t Tuple) string {
	var b strings.Builder
	for i, v := range t {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func lexLess(a, b Tuple) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
