package gfa

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/config"
)

// backend is the execution strategy for the dense reconstruction kernels.
// Both implementations compute the same quantities; they differ only in
// whether the bulk products go through BLAS-backed gonum multiplication or
// straight per-entry loops. Update formulas never depend on the backend.
type backend interface {
	// recon computes E[W] E[Z]^T into dst (D x N).
	recon(dst *mat.Dense, EW, EZ *mat.Dense)

	// reconSecondMoment computes E[(w_d . z_n)^2] per entry into dst,
	// given the reconstruction mean already in recon.
	reconSecondMoment(dst, recon *mat.Dense, v *viewState, f *factorState)
}

func newBackend(b config.Backend) backend {
	if b == config.Accelerated {
		return &blasBackend{}
	}
	return &loopBackend{}
}

// ---------------------------------------------------------------------------
// cpu: straight loops
// ---------------------------------------------------------------------------

type loopBackend struct{}

func (loopBackend) recon(dst *mat.Dense, EW, EZ *mat.Dense) {
	D, K := EW.Dims()
	N, _ := EZ.Dims()
	for d := 0; d < D; d++ {
		for n := 0; n < N; n++ {
			var s float64
			for k := 0; k < K; k++ {
				s += EW.At(d, k) * EZ.At(n, k)
			}
			dst.Set(d, n, s)
		}
	}
}

func (loopBackend) reconSecondMoment(dst, recon *mat.Dense, v *viewState, f *factorState) {
	for d := 0; d < v.D; d++ {
		for n := 0; n < v.N; n++ {
			dst.Set(d, n, secondMomentAt(recon, v, f, d, n))
		}
	}
}

// ---------------------------------------------------------------------------
// accelerated: bulk gonum products where the shapes allow
// ---------------------------------------------------------------------------

type blasBackend struct{}

func (blasBackend) recon(dst *mat.Dense, EW, EZ *mat.Dense) {
	dst.Mul(EW, EZ.T())
}

func (blasBackend) reconSecondMoment(dst, recon *mat.Dense, v *viewState, f *factorState) {
	// Diagonal moment term: sum_k EW2_k EZ2_k as one bulk product.
	var momentPart mat.Dense
	momentPart.Mul(v.EW2, f.EZ2.T())

	// Mean-square part sum_k EW_k^2 EZ_k^2, subtracted exactly once.
	var ewSq mat.Dense
	ewSq.Apply(func(_, _ int, x float64) float64 { return x * x }, v.EW)
	var ezSq mat.Dense
	ezSq.Apply(func(_, _ int, x float64) float64 { return x * x }, f.EZ)
	var meanSqPart mat.Dense
	meanSqPart.Mul(&ewSq, ezSq.T())

	for d := 0; d < v.D; d++ {
		for n := 0; n < v.N; n++ {
			m := recon.At(d, n)
			val := m*m + momentPart.At(d, n) - meanSqPart.At(d, n)
			val += covQuadOffDiag(v, f, d, n)
			dst.Set(d, n, val)
		}
	}
}

// secondMomentAt computes E[(w_d . z_n)^2] given the reconstruction mean
// already in recon.
func secondMomentAt(recon *mat.Dense, v *viewState, f *factorState, d, n int) float64 {
	return expectedSquare(v, f, d, n, recon.At(d, n))
}

// expectedSquare computes E[(w_d . z_n)^2] under the factorized weight
// posterior and the (possibly full-covariance) factor posterior:
//
//	mean^2 + sum_{j!=k} EW_j EW_k Cov_n[j,k]
//	       - sum_k EW_k^2 EZ_k^2 + sum_k EW2_k EZ2_k
func expectedSquare(v *viewState, f *factorState, d, n int, mean float64) float64 {
	val := mean * mean
	for k := 0; k < v.K; k++ {
		ew := v.EW.At(d, k)
		ez := f.EZ.At(n, k)
		val += v.EW2.At(d, k)*f.EZ2.At(n, k) - ew*ew*ez*ez
	}
	return val + covQuadOffDiag(v, f, d, n)
}

func covQuadOffDiag(v *viewState, f *factorState, d, n int) float64 {
	if f.ssFactors {
		return 0 // diagonal covariance
	}
	var s float64
	for j := 0; j < v.K; j++ {
		for k := j + 1; k < v.K; k++ {
			s += 2 * v.EW.At(d, j) * v.EW.At(d, k) * f.Cov[n].At(j, k)
		}
	}
	return s
}
