package data

import (
	"math"

	"github.com/YuminosukeSato/gofa/config"
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// CheckLikelihood compares a view's observed values against its declared
// likelihood and raises a LikelihoodMismatchWarning when they look
// inconsistent. A mismatch degrades fit quality but never fails the run.
func CheckLikelihood(v *View, lik config.Likelihood) {
	d, n := v.Dims()

	switch lik {
	case config.Bernoulli:
		for i := 0; i < d; i++ {
			for j := 0; j < n; j++ {
				if !v.Obs[i*n+j] {
					continue
				}
				x := v.Data.At(i, j)
				if x != 0 && x != 1 {
					errors.Warn(errors.NewLikelihoodMismatchWarning(
						v.Name, lik.String(), "values outside {0, 1}"))
					return
				}
			}
		}
	case config.Poisson:
		for i := 0; i < d; i++ {
			for j := 0; j < n; j++ {
				if !v.Obs[i*n+j] {
					continue
				}
				x := v.Data.At(i, j)
				if x < 0 || x != math.Trunc(x) {
					errors.Warn(errors.NewLikelihoodMismatchWarning(
						v.Name, lik.String(), "values are not non-negative integers"))
					return
				}
			}
		}
	case config.Gaussian:
		// Integer-only data under a gaussian likelihood usually means a
		// count view was left on the default.
		integral := true
	scan:
		for i := 0; i < d; i++ {
			for j := 0; j < n; j++ {
				if !v.Obs[i*n+j] {
					continue
				}
				x := v.Data.At(i, j)
				if x != math.Trunc(x) {
					integral = false
					break scan
				}
			}
		}
		if integral && v.NObs > 0 {
			errors.Warn(errors.NewLikelihoodMismatchWarning(
				v.Name, lik.String(), "all observed values are integers; consider a count likelihood"))
		}
	}
}
