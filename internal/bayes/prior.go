package bayes

import (
	"errors"
	"fmt"
)

// ErrInvalidPrior is returned when prior parameters are inconsistent
// (mismatched lengths, or a density ratio outside [0, 1]).
var ErrInvalidPrior = errors.New("bayes: invalid prior parameters")

// Prior computes the prior probability that a tuple with the given
// secondary-catalogue presence pattern is a true match: rho0 is the
// overall prior completeness, and for every secondary catalogue i,
// r_i = rho[i]/rhoPlus[i] is the probability that a true counterpart in
// that catalogue would have been detected at all (rho[i] the density of
// matchable sources, rhoPlus[i] the catalogue's total source density).
// The result is rho0 times r_i for each present catalogue and times
// (1 - r_i) for each absent one, so it stays in [0, rho0] and is
// well-defined for the all-secondaries-absent pattern. The densities
// enter only through these ratios; rho0 is not divided by rhoPlus[i]
// itself, and no primary-catalogue density enters the product.
//
// present must have one entry per secondary catalogue (index 0
// corresponds to catalogue 1, the first secondary; the primary is
// always present and carries no entry here).
func Prior(rho0 float64, rho, rhoPlus []float64, present []bool) (float64, error) {
	if len(rho) != len(rhoPlus) || len(rho) != len(present) {
		return 0, fmt.Errorf("%w: rho (%d), rhoPlus (%d), present (%d) length mismatch",
			ErrInvalidPrior, len(rho), len(rhoPlus), len(present))
	}

	p := rho0
	for i := range rho {
		if rhoPlus[i] <= 0 {
			return 0, fmt.Errorf("%w: catalogue %d has non-positive rhoPlus %v", ErrInvalidPrior, i, rhoPlus[i])
		}
		ratio := rho[i] / rhoPlus[i]
		if ratio < 0 || ratio > 1 {
			return 0, fmt.Errorf("%w: catalogue %d density ratio %v outside [0,1]", ErrInvalidPrior, i, ratio)
		}
		if present[i] {
			p *= ratio
		} else {
			p *= 1 - ratio
		}
	}
	return p, nil
}
