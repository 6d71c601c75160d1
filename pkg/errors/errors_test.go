package errors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomyUnwrapsThroughAs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		as   func(error) bool
	}{
		{
			"configuration",
			NewConfigurationError("NumFactors", "must be positive", -1),
			func(err error) bool { var e *ConfigurationError; return As(err, &e) },
		},
		{
			"data shape",
			NewDataShapeError("rna", "duplicate feature"),
			func(err error) bool { var e *DataShapeError; return As(err, &e) },
		},
		{
			"sample alignment",
			NewSampleAlignmentError("intersection", []string{"a", "b"}),
			func(err error) bool { var e *SampleAlignmentError; return As(err, &e) },
		},
		{
			"numeric instability",
			NewNumericInstabilityError("factors", 12, []float64{math.NaN()}),
			func(err error) bool { var e *NumericInstabilityError; return As(err, &e) },
		},
		{
			"persistence",
			NewPersistenceError("load", "corrupt stream", nil),
			func(err error) bool { var e *PersistenceError; return As(err, &e) },
		},
		{
			"not fitted",
			NewNotFittedError("Factors"),
			func(err error) bool { var e *NotFittedError; return As(err, &e) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			// The constructors attach stack traces; As must still find the
			// typed error through the wrapping.
			assert.True(t, tt.as(tt.err))
			assert.True(t, tt.as(Wrap(tt.err, "outer context")))
		})
	}
}

func TestNumericInstabilityErrorMessage(t *testing.T) {
	err := NewNumericInstabilityError("weights/rna", 7, []float64{math.Inf(1)})
	assert.Contains(t, err.Error(), "weights/rna")
	assert.Contains(t, err.Error(), "iteration 7")
}

func TestWarningHandler(t *testing.T) {
	var got error
	prev := func(w error) {} // silence during the test
	SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(prev)

	w := NewConvergenceWarning(100, 1e-2, 3e-2)
	Warn(w)
	require.NotNil(t, got)

	var cw *ConvergenceWarning
	require.True(t, As(got, &cw))
	assert.Equal(t, 100, cw.Iterations)
	assert.InDelta(t, 3e-2, cw.DeltaELBO, 0)
}

func TestCheckFinite(t *testing.T) {
	assert.NoError(t, CheckFinite("factors", []float64{0, -1, 2.5}, 1))

	err := CheckFinite("factors", []float64{1, math.NaN()}, 3)
	require.Error(t, err)
	var nie *NumericInstabilityError
	require.True(t, As(err, &nie))
	assert.Equal(t, "factors", nie.ParameterClass)
	assert.Equal(t, 3, nie.Iteration)
}

func TestCheckPositive(t *testing.T) {
	assert.NoError(t, CheckPositive("noise", []float64{1e-10, 2}, 1))
	assert.Error(t, CheckPositive("noise", []float64{1, 0}, 1))
	assert.Error(t, CheckPositive("noise", []float64{-1}, 1))
	assert.Error(t, CheckPositive("noise", []float64{math.Inf(1)}, 1))
}

type gridMatrix [][]float64

func (g gridMatrix) At(i, j int) float64 { return g[i][j] }

func TestCheckMatrix(t *testing.T) {
	ok := gridMatrix{{1, 2}, {3, 4}}
	assert.NoError(t, CheckMatrix("factors", ok, 2, 2, 1))

	bad := gridMatrix{{1, 2}, {math.NaN(), 4}}
	err := CheckMatrix("factors", bad, 2, 2, 9)
	require.Error(t, err)
	var nie *NumericInstabilityError
	require.True(t, As(err, &nie))
	assert.Equal(t, 9, nie.Iteration)
}

func TestMarkAttachesSentinel(t *testing.T) {
	err := Mark(NewNumericInstabilityError("factors", 3, []float64{0}), ErrSingularMatrix)

	assert.True(t, Is(err, ErrSingularMatrix))
	var nie *NumericInstabilityError
	assert.True(t, As(err, &nie), "the typed error stays visible through the mark")
}

func TestCheckScalar(t *testing.T) {
	assert.NoError(t, CheckScalar("elbo", -1234.5, 1))
	assert.Error(t, CheckScalar("elbo", math.NaN(), 1))
	assert.Error(t, CheckScalar("elbo", math.Inf(-1), 1))
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)
	assert.InDelta(t, 1.0, Sigmoid(50), 1e-12)
	assert.InDelta(t, 0.0, Sigmoid(-50), 1e-12)
	// Symmetry.
	assert.InDelta(t, 1.0, Sigmoid(3)+Sigmoid(-3), 1e-12)
}

func TestLog1pExp(t *testing.T) {
	assert.InDelta(t, math.Log(2), Log1pExp(0), 1e-12)
	// Large arguments fall back to the identity.
	assert.InDelta(t, 100.0, Log1pExp(100), 1e-9)
	assert.InDelta(t, 0.0, Log1pExp(-100), 1e-12)
}

func TestStabilizeLog(t *testing.T) {
	assert.InDelta(t, math.Log(2), StabilizeLog(2), 1e-12)
	// Values at or below the floor clamp to log(epsilon) instead of -Inf.
	assert.False(t, math.IsInf(StabilizeLog(0), -1))
	assert.InDelta(t, math.Log(1e-10), StabilizeLog(0), 1e-12)
}

func TestClipValue(t *testing.T) {
	assert.Equal(t, 0.0, ClipValue(-0.5, 0, 1))
	assert.Equal(t, 1.0, ClipValue(1.5, 0, 1))
	assert.Equal(t, 0.25, ClipValue(0.25, 0, 1))
}
