package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/config"
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
	return &got
}

func viewWith(values []float64, rows, cols int) *View {
	obs := make([]bool, rows*cols)
	for i := range obs {
		obs[i] = true
	}
	return &View{
		Name: "v",
		Data: mat.NewDense(rows, cols, values),
		Obs:  obs,
		NObs: rows * cols,
	}
}

func TestCheckLikelihoodMismatches(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		lik    config.Likelihood
		warn   bool
	}{
		{"binary under bernoulli", []float64{0, 1, 1, 0}, config.Bernoulli, false},
		{"continuous under bernoulli", []float64{0, 0.5, 1, 0}, config.Bernoulli, true},
		{"counts under poisson", []float64{0, 3, 7, 2}, config.Poisson, false},
		{"negative under poisson", []float64{0, -3, 7, 2}, config.Poisson, true},
		{"fractional under poisson", []float64{0, 1.5, 7, 2}, config.Poisson, true},
		{"continuous under gaussian", []float64{0.1, -2.3, 7, 2}, config.Gaussian, false},
		{"integers under gaussian", []float64{0, 3, 7, 2}, config.Gaussian, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := captureWarnings(t)
			CheckLikelihood(viewWith(tt.values, 2, 2), tt.lik)

			if !tt.warn {
				assert.Empty(t, *warnings)
				return
			}
			assert.Len(t, *warnings, 1)
			var w *errors.LikelihoodMismatchWarning
			assert.True(t, errors.As((*warnings)[0], &w))
			assert.Equal(t, "v", w.View)
		})
	}
}

func TestCheckLikelihoodIgnoresMissing(t *testing.T) {
	warnings := captureWarnings(t)

	// The offending value is masked out.
	v := viewWith([]float64{0, 1, 0.5, 1}, 2, 2)
	v.Obs[2] = false
	v.NObs = 3
	CheckLikelihood(v, config.Bernoulli)
	assert.Empty(t, *warnings)
}
