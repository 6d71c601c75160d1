package data

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/pkg/log"
)

// Scaling normalizes views so that views (or groups within views) with very
// different dynamic ranges contribute comparably to the shared factors. All
// statistics run over observed entries only.

const minScale = 1e-8

// scaleViews divides each view by its standard deviation over observed
// entries.
func (c *Container) scaleViews() {
	logger := log.Logger().With().Str(log.ComponentKey, "gofa.data").Logger()
	for _, v := range c.Views {
		sd := v.observedStd(nil)
		if sd < minScale {
			continue
		}
		v.scaleColumns(nil, 1/sd)
		logger.Debug().
			Str(log.OperationKey, "scale").
			Str(log.ViewKey, v.Name).
			Float64("std", sd).
			Msg("view scaled to unit variance")
	}
}

// scaleGroups divides, within each view, each group's columns by that
// group's standard deviation.
func (c *Container) scaleGroups() {
	logger := log.Logger().With().Str(log.ComponentKey, "gofa.data").Logger()
	for _, v := range c.Views {
		for g, idx := range c.GroupIdx {
			sd := v.observedStd(idx)
			if sd < minScale {
				continue
			}
			v.scaleColumns(idx, 1/sd)
			logger.Debug().
				Str(log.OperationKey, "scale").
				Str(log.ViewKey, v.Name).
				Str(log.GroupKey, c.GroupNames[g]).
				Float64("std", sd).
				Msg("group scaled to unit variance")
		}
	}
}

// observedStd computes the standard deviation of observed entries, restricted
// to the given sample indices (nil means all samples).
func (v *View) observedStd(samples []int) float64 {
	d, n := v.Dims()
	cols := samples
	if cols == nil {
		cols = make([]int, n)
		for j := range cols {
			cols[j] = j
		}
	}

	var sum, sumSq float64
	var count int
	for i := 0; i < d; i++ {
		for _, j := range cols {
			if !v.Obs[i*n+j] {
				continue
			}
			x := v.Data.At(i, j)
			sum += x
			sumSq += x * x
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func (v *View) scaleColumns(samples []int, factor float64) {
	d, n := v.Dims()
	cols := samples
	if cols == nil {
		cols = make([]int, n)
		for j := range cols {
			cols[j] = j
		}
	}
	for i := 0; i < d; i++ {
		for _, j := range cols {
			if v.Obs[i*n+j] {
				v.Data.Set(i, j, v.Data.At(i, j)*factor)
			}
		}
	}
}

// CenterFeaturesObserved subtracts each row's mean over observed entries from
// the observed entries of m, in place, and returns the per-row means. The
// engine applies it to its working copy of gaussian views so the model fits
// centered residuals; the means act as per-feature intercepts.
func CenterFeaturesObserved(m *mat.Dense, obs []bool) []float64 {
	d, n := m.Dims()
	means := make([]float64, d)
	for i := 0; i < d; i++ {
		var sum float64
		var count int
		for j := 0; j < n; j++ {
			if obs[i*n+j] {
				sum += m.At(i, j)
				count++
			}
		}
		if count == 0 {
			continue
		}
		means[i] = sum / float64(count)
		for j := 0; j < n; j++ {
			if obs[i*n+j] {
				m.Set(i, j, m.At(i, j)-means[i])
			}
		}
	}
	return means
}
