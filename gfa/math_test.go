package gfa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/config"
)

func TestGammaELBOTermZeroAtPrior(t *testing.T) {
	// KL(q||p) vanishes when the posterior equals the prior.
	assert.InDelta(t, 0.0, gammaELBOTerm(1e-3, 1e-3, 1e-3, 1e-3), 1e-12)
	assert.InDelta(t, 0.0, gammaELBOTerm(2.5, 0.7, 2.5, 0.7), 1e-12)
	// And is negative away from it.
	assert.Less(t, gammaELBOTerm(1.0, 1.0, 5.0, 2.0), 0.0)
}

func TestBetaELBOTermZeroAtPrior(t *testing.T) {
	assert.InDelta(t, 0.0, betaELBOTerm(1, 1, 1, 1), 1e-12)
	assert.Less(t, betaELBOTerm(1, 1, 10, 3), 0.0)
}

func TestBernoulliEntropy(t *testing.T) {
	assert.Equal(t, 0.0, bernoulliEntropy(0))
	assert.Equal(t, 0.0, bernoulliEntropy(1))
	assert.InDelta(t, math.Ln2, bernoulliEntropy(0.5), 1e-12)
	assert.Greater(t, bernoulliEntropy(0.3), 0.0)
}

func TestJJLambdaLimit(t *testing.T) {
	// lambda(xi) -> 1/8 as xi -> 0, and decreases monotonically.
	assert.InDelta(t, 0.125, jjLambda(0), 1e-12)
	assert.InDelta(t, 0.125, jjLambda(1e-9), 1e-9)
	assert.Less(t, jjLambda(2.0), jjLambda(1.0))
	assert.Less(t, jjLambda(1.0), 0.125)
}

// TestBackendsSecondMomentAgree cross-checks the loop and BLAS second-moment
// kernels on a live view state.
func TestBackendsSecondMomentAgree(t *testing.T) {
	c := gaussianContainer(t, 9, []int{7})

	cfg := config.Default()
	cfg.Model.NumFactors = 4
	e, err := NewEngine(c, cfg)
	require.NoError(t, err)
	e.initState()
	e.refreshPseudoData()

	v := e.views[0]
	recon := mat.NewDense(v.D, v.N, nil)
	loopBackend{}.recon(recon, v.EW, e.factors.EZ)

	blasRecon := mat.NewDense(v.D, v.N, nil)
	blasBackend{}.recon(blasRecon, v.EW, e.factors.EZ)

	loopSq := mat.NewDense(v.D, v.N, nil)
	loopBackend{}.reconSecondMoment(loopSq, recon, v, e.factors)

	blasSq := mat.NewDense(v.D, v.N, nil)
	blasBackend{}.reconSecondMoment(blasSq, blasRecon, v, e.factors)

	for d := 0; d < v.D; d++ {
		for n := 0; n < v.N; n++ {
			assert.InDelta(t, recon.At(d, n), blasRecon.At(d, n), 1e-10, "mean at (%d,%d)", d, n)
			assert.InDelta(t, loopSq.At(d, n), blasSq.At(d, n), 1e-8, "second moment at (%d,%d)", d, n)
			// E[x^2] >= E[x]^2 always.
			assert.GreaterOrEqual(t, loopSq.At(d, n)+1e-10, recon.At(d, n)*recon.At(d, n))
		}
	}
}
