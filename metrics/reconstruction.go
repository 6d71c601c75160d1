// Package metrics provides masked reconstruction metrics. All sums run over
// observed entries only; missing entries contribute nothing.
package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// MaskedSumSquares returns the sum of squared observed entries of y.
// obs is row-major with the same shape as y.
func MaskedSumSquares(y *mat.Dense, obs []bool) (float64, error) {
	r, c := y.Dims()
	if r == 0 || c == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "MaskedSumSquares")
	}
	if len(obs) != r*c {
		return 0, errors.Newf("MaskedSumSquares: mask length %d does not match %dx%d matrix", len(obs), r, c)
	}
	var total float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if obs[i*c+j] {
				v := y.At(i, j)
				total += v * v
			}
		}
	}
	return total, nil
}

// MaskedResidualSumSquares returns the sum of squared residuals between y and
// yhat over observed entries.
func MaskedResidualSumSquares(y, yhat *mat.Dense, obs []bool) (float64, error) {
	r, c := y.Dims()
	rh, ch := yhat.Dims()
	if r != rh || c != ch {
		return 0, errors.Newf("MaskedResidualSumSquares: shape mismatch (%d,%d) vs (%d,%d)", r, c, rh, ch)
	}
	if len(obs) != r*c {
		return 0, errors.Newf("MaskedResidualSumSquares: mask length %d does not match %dx%d matrix", len(obs), r, c)
	}
	var total float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if obs[i*c+j] {
				d := y.At(i, j) - yhat.At(i, j)
				total += d * d
			}
		}
	}
	return total, nil
}

// MaskedMSE returns the mean squared residual over observed entries.
func MaskedMSE(y, yhat *mat.Dense, obs []bool) (float64, error) {
	rss, err := MaskedResidualSumSquares(y, yhat, obs)
	if err != nil {
		return 0, err
	}
	var count int
	for _, o := range obs {
		if o {
			count++
		}
	}
	if count == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "MaskedMSE: no observed entries")
	}
	return rss / float64(count), nil
}

// MaskedR2 returns 1 - RSS/TSS over observed entries, where TSS is the sum of
// squares of y (y is expected to be centered). The result is clipped to
// [0, 1]; a reconstruction worse than the zero prediction scores 0.
func MaskedR2(y, yhat *mat.Dense, obs []bool) (float64, error) {
	tss, err := MaskedSumSquares(y, obs)
	if err != nil {
		return 0, err
	}
	if tss == 0 {
		return 0, errors.Newf("MaskedR2: total sum of squares is zero")
	}
	rss, err := MaskedResidualSumSquares(y, yhat, obs)
	if err != nil {
		return 0, err
	}
	r2 := 1 - rss/tss
	return errors.ClipValue(r2, 0, 1), nil
}

// MaskedColumnsR2 is MaskedR2 restricted to the given sample columns.
func MaskedColumnsR2(y, yhat *mat.Dense, obs []bool, cols []int) (float64, error) {
	r, c := y.Dims()
	var tss, rss float64
	for i := 0; i < r; i++ {
		for _, j := range cols {
			if j < 0 || j >= c {
				return 0, errors.Newf("MaskedColumnsR2: column %d out of range", j)
			}
			if !obs[i*c+j] {
				continue
			}
			v := y.At(i, j)
			d := v - yhat.At(i, j)
			tss += v * v
			rss += d * d
		}
	}
	if tss == 0 {
		return 0, errors.Newf("MaskedR2: total sum of squares is zero")
	}
	return errors.ClipValue(1-rss/tss, 0, 1), nil
}
