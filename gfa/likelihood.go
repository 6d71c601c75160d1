package gfa

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/config"
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// observationModel is the per-view update strategy for one likelihood family,
// resolved once when the engine is built. Non-Gaussian families linearize
// their log-likelihood around the current posterior mean into pseudo-data
// with per-entry precisions, after which every update reuses the Gaussian
// closed form.
type observationModel interface {
	kind() config.Likelihood

	// updatesNoise reports whether the Gamma noise-precision update applies.
	updatesNoise() bool

	// refresh recomputes the view's pseudo-data and per-entry precisions
	// from the current reconstruction mean and second moment. For the
	// Gaussian family this only propagates the noise posterior into the
	// precision matrix.
	refresh(v *viewState, recon, reconSq *mat.Dense)

	// logLik accumulates the expected log-likelihood (or its variational
	// bound) over observed entries.
	logLik(v *viewState, recon, reconSq *mat.Dense) float64
}

func newObservationModel(lik config.Likelihood) observationModel {
	switch lik {
	case config.Bernoulli:
		return &bernoulliModel{}
	case config.Poisson:
		return &poissonModel{}
	default:
		return &gaussianModel{}
	}
}

// ---------------------------------------------------------------------------
// Gaussian
// ---------------------------------------------------------------------------

type gaussianModel struct{}

func (gaussianModel) kind() config.Likelihood { return config.Gaussian }
func (gaussianModel) updatesNoise() bool      { return true }

func (gaussianModel) refresh(v *viewState, _, _ *mat.Dense) {
	// Pseudo-data is the (centered) data itself; only the precision rows
	// track the Gamma noise posterior.
	for d := 0; d < v.D; d++ {
		et := v.TauA[d] / v.TauB[d]
		for n := 0; n < v.N; n++ {
			if v.obs[d*v.N+n] {
				v.Tau.Set(d, n, et)
			}
		}
	}
}

func (gaussianModel) logLik(v *viewState, recon, reconSq *mat.Dense) float64 {
	const ln2pi = 1.8378770664093453
	var ll float64
	for d := 0; d < v.D; d++ {
		et := v.TauA[d] / v.TauB[d]
		elt := digamma(v.TauA[d]) - math.Log(v.TauB[d])
		for n := 0; n < v.N; n++ {
			if !v.obs[d*v.N+n] {
				continue
			}
			y := v.Y.At(d, n)
			m := recon.At(d, n)
			// E[(y - w.z)^2] = (y - E[w.z])^2 + Var[w.z]
			sq := (y-m)*(y-m) + (reconSq.At(d, n) - m*m)
			ll += 0.5*(elt-ln2pi) - 0.5*et*sq
		}
	}
	return ll
}

// ---------------------------------------------------------------------------
// Bernoulli (Jaakkola-Jordan bound)
// ---------------------------------------------------------------------------

// bernoulliModel bounds log sigma(x) by a quadratic around a per-entry
// variational parameter xi, giving pseudo-precision 2*lambda(xi) and
// pseudo-data (y - 1/2) / (2*lambda(xi)).
type bernoulliModel struct{}

func (bernoulliModel) kind() config.Likelihood { return config.Bernoulli }
func (bernoulliModel) updatesNoise() bool      { return false }

// jjLambda is lambda(xi) = tanh(xi/2) / (4*xi), with its xi->0 limit 1/8.
func jjLambda(xi float64) float64 {
	if xi < 1e-6 {
		return 0.125
	}
	return math.Tanh(xi/2) / (4 * xi)
}

func (bernoulliModel) refresh(v *viewState, recon, reconSq *mat.Dense) {
	for d := 0; d < v.D; d++ {
		for n := 0; n < v.N; n++ {
			if !v.obs[d*v.N+n] {
				continue
			}
			// The optimal xi^2 is E[(w.z)^2].
			xi := math.Sqrt(math.Max(reconSq.At(d, n), 0))
			tau := 2 * jjLambda(xi)
			v.Xi.Set(d, n, xi)
			v.Tau.Set(d, n, tau)
			v.Yhat.Set(d, n, (v.Y.At(d, n)-0.5)/tau)
		}
	}
}

func (bernoulliModel) logLik(v *viewState, recon, reconSq *mat.Dense) float64 {
	var ll float64
	for d := 0; d < v.D; d++ {
		for n := 0; n < v.N; n++ {
			if !v.obs[d*v.N+n] {
				continue
			}
			y := v.Y.At(d, n)
			m := recon.At(d, n)
			xi := v.Xi.At(d, n)
			lam := jjLambda(xi)
			// log sigma(xi) + (y - 1/2) m - xi/2 - lambda(xi) (E[x^2] - xi^2)
			ll += -errors.Log1pExp(-xi) + (y-0.5)*m - xi/2 - lam*(reconSq.At(d, n)-xi*xi)
		}
	}
	return ll
}

// ---------------------------------------------------------------------------
// Poisson (second-order bound on the softplus rate)
// ---------------------------------------------------------------------------

// poissonModel uses rate(x) = log(1+e^x) and a quadratic upper bound on the
// negative log-likelihood with per-feature curvature kappa_d, linearized
// around the current reconstruction mean.
type poissonModel struct{}

func (poissonModel) kind() config.Likelihood { return config.Poisson }
func (poissonModel) updatesNoise() bool      { return false }

func (poissonModel) refresh(v *viewState, recon, _ *mat.Dense) {
	for d := 0; d < v.D; d++ {
		kappa := v.Kappa[d]
		for n := 0; n < v.N; n++ {
			if !v.obs[d*v.N+n] {
				continue
			}
			y := v.Y.At(d, n)
			zeta := recon.At(d, n)
			rate := math.Max(errors.Log1pExp(zeta), 1e-10)
			// d/dx [rate(x) - y log rate(x)] = sigma(x) (1 - y/rate(x))
			grad := errors.Sigmoid(zeta) * (1 - y/rate)
			v.Tau.Set(d, n, kappa)
			v.Yhat.Set(d, n, zeta-grad/kappa)
		}
	}
}

func (poissonModel) logLik(v *viewState, recon, reconSq *mat.Dense) float64 {
	var ll float64
	for d := 0; d < v.D; d++ {
		kappa := v.Kappa[d]
		for n := 0; n < v.N; n++ {
			if !v.obs[d*v.N+n] {
				continue
			}
			y := v.Y.At(d, n)
			m := recon.At(d, n)
			rate := errors.Log1pExp(m)
			lg, _ := math.Lgamma(y + 1)
			// Poisson log-likelihood at the posterior mean, corrected by the
			// bound's curvature applied to the reconstruction variance.
			ll += y*errors.StabilizeLog(rate) - rate - lg - 0.5*kappa*(reconSq.At(d, n)-m*m)
		}
	}
	return ll
}

// poissonCurvature bounds the second derivative of the negative Poisson
// log-likelihood under the softplus rate: 1/4 + 0.17 * max(y).
func poissonCurvature(y *mat.Dense, obs []bool, d, n int) float64 {
	maxY := 0.0
	for j := 0; j < n; j++ {
		if obs[d*n+j] && y.At(d, j) > maxY {
			maxY = y.At(d, j)
		}
	}
	return 0.25 + 0.17*maxY
}
