package gfa

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/config"
	"github.com/YuminosukeSato/gofa/data"
)

// Gamma and Beta prior hyperparameters shared by the noise, ARD and
// inclusion-probability priors.
const (
	priorGammaA = 1e-3
	priorGammaB = 1e-3
	priorBetaA  = 1.0
	priorBetaB  = 1.0
)

// viewState is the per-view slice of the training state: data, masks,
// pseudo-data, weight posterior, noise posterior and sparsity posteriors.
type viewState struct {
	name     string
	obsModel observationModel
	D, N     int
	K        int

	Y          *mat.Dense // aligned data, centered for gaussian views, missing = 0
	obs        []bool     // row-major D x N
	nObs       []int      // observed entries per feature
	intercepts []float64  // per-feature means removed from gaussian views

	Yhat  *mat.Dense // pseudo-data (== Y for gaussian views)
	Tau   *mat.Dense // per-entry precision, 0 at missing entries
	Xi    *mat.Dense // bernoulli variational parameters, nil otherwise
	Kappa []float64  // poisson per-feature curvature, nil otherwise

	// Scratch buffers for the reconstruction kernels.
	reconBuf   *mat.Dense
	reconSqBuf *mat.Dense

	// Weight posterior. WMean/WVarSlab are the slab parameters; S holds the
	// inclusion probabilities under spike-and-slab (nil otherwise). EW and
	// EW2 cache the first and second moments actually used by the updates.
	WMean    *mat.Dense // D x K
	WVarSlab *mat.Dense // D x K
	S        *mat.Dense // D x K, nil unless spike-and-slab
	EW       *mat.Dense // D x K
	EW2      *mat.Dense // D x K

	// Noise precision Gamma posterior per feature (gaussian views only).
	TauA, TauB []float64

	// ARD Gamma posterior per factor (nil when ARD weights are off).
	AlphaA, AlphaB []float64

	// Spike-and-slab inclusion prior Beta posterior per factor.
	ThetaA, ThetaB []float64

	ssWeights  bool
	ardWeights bool
}

// factorState is the shared-factor slice of the training state.
type factorState struct {
	N, K int

	EZ  *mat.Dense // N x K first moments
	EZ2 *mat.Dense // N x K second moments (diagonal)

	// Cov holds the per-sample K x K posterior covariance; it is diagonal
	// when spike-and-slab factors are enabled.
	Cov []*mat.SymDense

	// EZZ caches the per-sample K x K second-moment matrix EZ EZ^T + Cov.
	EZZ []*mat.SymDense

	// logDetCov records ln|Cov_n| from the factor update (dense path) for
	// the entropy term of the ELBO.
	logDetCov []float64

	// Spike-and-slab factor posterior (nil when disabled).
	ZMean    *mat.Dense
	ZVarSlab *mat.Dense
	SZ       *mat.Dense

	// ARD Gamma posterior per (group, factor); nil when ARD factors are off.
	AlphaA, AlphaB [][]float64

	// Inclusion prior Beta posterior per (group, factor).
	ThetaA, ThetaB [][]float64

	ssFactors  bool
	ardFactors bool
}

// alphaMean returns E[alpha] of the weight ARD posterior, or the unit slab
// precision when ARD is off.
func (v *viewState) alphaMean(k int) float64 {
	if !v.ardWeights {
		return 1.0
	}
	return v.AlphaA[k] / v.AlphaB[k]
}

// alphaLogMean returns E[ln alpha] of the weight ARD posterior.
func (v *viewState) alphaLogMean(k int) float64 {
	if !v.ardWeights {
		return 0.0
	}
	return digamma(v.AlphaA[k]) - math.Log(v.AlphaB[k])
}

func (f *factorState) alphaMean(g, k int) float64 {
	if !f.ardFactors {
		return 1.0
	}
	return f.AlphaA[g][k] / f.AlphaB[g][k]
}

func (f *factorState) alphaLogMean(g, k int) float64 {
	if !f.ardFactors {
		return 0.0
	}
	return digamma(f.AlphaA[g][k]) - math.Log(f.AlphaB[g][k])
}

// refreshWeightMoments recomputes the EW/EW2 caches from the slab parameters
// and inclusion probabilities.
func (v *viewState) refreshWeightMoments(d int) {
	for k := 0; k < v.K; k++ {
		mu := v.WMean.At(d, k)
		va := v.WVarSlab.At(d, k)
		if v.ssWeights {
			s := v.S.At(d, k)
			v.EW.Set(d, k, s*mu)
			v.EW2.Set(d, k, s*(mu*mu+va))
		} else {
			v.EW.Set(d, k, mu)
			v.EW2.Set(d, k, mu*mu+va)
		}
	}
}

// refreshFactorMoments recomputes EZ2 and EZZ for sample n from the current
// mean and covariance (dense path) or slab parameters (spike-and-slab path).
func (f *factorState) refreshFactorMoments(n int) {
	if f.ssFactors {
		for k := 0; k < f.K; k++ {
			mu := f.ZMean.At(n, k)
			va := f.ZVarSlab.At(n, k)
			s := f.SZ.At(n, k)
			f.EZ.Set(n, k, s*mu)
			f.EZ2.Set(n, k, s*(mu*mu+va))
			f.Cov[n].SetSym(k, k, f.EZ2.At(n, k)-f.EZ.At(n, k)*f.EZ.At(n, k))
		}
	} else {
		for k := 0; k < f.K; k++ {
			f.EZ2.Set(n, k, f.EZ.At(n, k)*f.EZ.At(n, k)+f.Cov[n].At(k, k))
		}
	}
	for j := 0; j < f.K; j++ {
		for k := j; k < f.K; k++ {
			v := f.EZ.At(n, j)*f.EZ.At(n, k) + f.Cov[n].At(j, k)
			f.EZZ[n].SetSym(j, k, v)
		}
	}
}

// initState builds the initial training state from the aligned container.
func (e *Engine) initState() {
	rng := rand.New(rand.NewSource(e.cfg.Training.Seed))
	K := e.cfg.Model.NumFactors
	N := e.container.NumSamples()
	G := e.container.NumGroups()

	// Factors: standard normal means, unit covariance.
	f := &factorState{
		N: N, K: K,
		EZ:         mat.NewDense(N, K, nil),
		EZ2:        mat.NewDense(N, K, nil),
		Cov:        make([]*mat.SymDense, N),
		EZZ:        make([]*mat.SymDense, N),
		logDetCov:  make([]float64, N),
		ssFactors:  e.ssFactors,
		ardFactors: e.ardFactors,
	}
	for n := 0; n < N; n++ {
		f.Cov[n] = mat.NewSymDense(K, nil)
		f.EZZ[n] = mat.NewSymDense(K, nil)
		for k := 0; k < K; k++ {
			f.EZ.Set(n, k, rng.NormFloat64())
			f.Cov[n].SetSym(k, k, 1.0)
		}
	}
	if e.ssFactors {
		f.ZMean = mat.NewDense(N, K, nil)
		f.ZVarSlab = mat.NewDense(N, K, nil)
		f.SZ = mat.NewDense(N, K, nil)
		for n := 0; n < N; n++ {
			for k := 0; k < K; k++ {
				f.ZMean.Set(n, k, f.EZ.At(n, k))
				f.ZVarSlab.Set(n, k, 1.0)
				f.SZ.Set(n, k, 1.0)
			}
		}
		f.ThetaA = make([][]float64, G)
		f.ThetaB = make([][]float64, G)
		for g := 0; g < G; g++ {
			f.ThetaA[g] = filled(K, priorBetaA)
			f.ThetaB[g] = filled(K, priorBetaB)
		}
	}
	if e.ardFactors {
		f.AlphaA = make([][]float64, G)
		f.AlphaB = make([][]float64, G)
		for g := 0; g < G; g++ {
			f.AlphaA[g] = filled(K, 1.0)
			f.AlphaB[g] = filled(K, 1.0)
		}
	}
	for n := 0; n < N; n++ {
		f.refreshFactorMoments(n)
	}
	e.factors = f

	// Views.
	e.views = make([]*viewState, 0, e.container.NumViews())
	for _, cv := range e.container.Views {
		lik := e.cfg.Model.LikelihoodFor(cv.Name)
		v := e.initViewState(cv, lik, rng, K)
		e.views = append(e.views, v)
	}
}

func (e *Engine) initViewState(cv *data.View, lik config.Likelihood, rng *rand.Rand, K int) *viewState {
	D, N := cv.Dims()
	v := &viewState{
		name:       cv.Name,
		obsModel:   newObservationModel(lik),
		D:          D,
		N:          N,
		K:          K,
		Y:          mat.DenseCopyOf(cv.Data),
		obs:        cv.Obs,
		nObs:       make([]int, D),
		Yhat:       mat.NewDense(D, N, nil),
		Tau:        mat.NewDense(D, N, nil),
		reconBuf:   mat.NewDense(D, N, nil),
		reconSqBuf: mat.NewDense(D, N, nil),
		WMean:      mat.NewDense(D, K, nil),
		WVarSlab:   mat.NewDense(D, K, nil),
		EW:         mat.NewDense(D, K, nil),
		EW2:        mat.NewDense(D, K, nil),
		ssWeights:  e.ssWeights,
		ardWeights: e.ardWeights,
	}
	for d := 0; d < D; d++ {
		for n := 0; n < N; n++ {
			if v.obs[d*N+n] {
				v.nObs[d]++
			}
		}
	}

	if lik == config.Gaussian {
		v.intercepts = data.CenterFeaturesObserved(v.Y, v.obs)
		v.Yhat.Copy(v.Y)
		v.TauA = make([]float64, D)
		v.TauB = make([]float64, D)
		for d := 0; d < D; d++ {
			// Initialize E[tau] at the empirical precision of the feature.
			variance := featureVariance(v.Y, v.obs, d, N)
			v.TauA[d] = 1.0
			v.TauB[d] = math.Max(variance, 1e-8)
		}
	}
	if lik == config.Bernoulli {
		v.Xi = mat.NewDense(D, N, nil)
	}
	if lik == config.Poisson {
		v.Kappa = make([]float64, D)
		for d := 0; d < D; d++ {
			v.Kappa[d] = poissonCurvature(v.Y, v.obs, d, N)
		}
	}

	if v.ssWeights {
		v.S = mat.NewDense(D, K, nil)
	}
	for d := 0; d < D; d++ {
		for k := 0; k < K; k++ {
			v.WMean.Set(d, k, 0.1*rng.NormFloat64())
			v.WVarSlab.Set(d, k, 1.0)
			if v.ssWeights {
				v.S.Set(d, k, 1.0)
			}
		}
		v.refreshWeightMoments(d)
	}

	if v.ardWeights {
		v.AlphaA = filled(K, 1.0)
		v.AlphaB = filled(K, 1.0)
	}
	if v.ssWeights {
		v.ThetaA = filled(K, priorBetaA)
		v.ThetaB = filled(K, priorBetaB)
	}
	return v
}

func featureVariance(y *mat.Dense, obs []bool, d, n int) float64 {
	var sum, sumSq float64
	var count int
	for j := 0; j < n; j++ {
		if obs[d*n+j] {
			x := y.At(d, j)
			sum += x
			sumSq += x * x
			count++
		}
	}
	if count == 0 {
		return 1.0
	}
	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}
