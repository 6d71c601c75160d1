package gfa

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/core/parallel"
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// parallelThreshold is the per-class index count below which updates run
// sequentially instead of fanning out to workers.
const parallelThreshold = 64

// updateFactors recomputes every sample's factor posterior from the
// missingness-masked residuals across all views, combining view
// contributions additively. Samples are independent given the weight and
// noise snapshot, so the loop parallelizes over samples; results for one
// sample are written only to that sample's rows.
func (e *Engine) updateFactors(iteration int) error {
	f := e.factors
	errs := make([]error, f.N)

	if f.ssFactors {
		parallel.For(f.N, parallelThreshold, func(n int) {
			e.updateFactorSampleSpikeSlab(n)
		})
	} else {
		parallel.For(f.N, parallelThreshold, func(n int) {
			errs[n] = e.updateFactorSampleDense(n, iteration)
		})
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return errors.CheckMatrix("factors", f.EZ, f.N, f.K, iteration)
}

// updateFactorSampleDense solves the K x K Gaussian posterior for one sample:
// precision = prior + sum over observed entries of tau * E[w w^T], mean from
// the precision-weighted pseudo-data.
func (e *Engine) updateFactorSampleDense(n, iteration int) error {
	f := e.factors
	K := f.K
	g := e.container.GroupOf[n]

	prec := mat.NewSymDense(K, nil)
	b := make([]float64, K)
	for k := 0; k < K; k++ {
		prec.SetSym(k, k, f.alphaMean(g, k))
	}

	for _, v := range e.views {
		for d := 0; d < v.D; d++ {
			if !v.obs[d*v.N+n] {
				continue
			}
			t := v.Tau.At(d, n)
			if t == 0 {
				continue
			}
			y := v.Yhat.At(d, n)
			for k := 0; k < K; k++ {
				ewk := v.EW.At(d, k)
				b[k] += t * ewk * y
				// E[w_j w_k] contribution: outer product of means plus the
				// per-element variance on the diagonal.
				prec.SetSym(k, k, prec.At(k, k)+t*(v.EW2.At(d, k)-ewk*ewk))
				for j := k; j < K; j++ {
					prec.SetSym(k, j, prec.At(k, j)+t*ewk*v.EW.At(d, j))
				}
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(prec); !ok {
		return errors.Mark(
			errors.NewNumericInstabilityError("factors", iteration, diagOf(prec)),
			errors.ErrSingularMatrix)
	}

	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return errors.Mark(
			errors.NewNumericInstabilityError("factors", iteration, diagOf(prec)),
			errors.ErrSingularMatrix)
	}

	mean := mat.NewVecDense(K, nil)
	mean.MulVec(&cov, mat.NewVecDense(K, b))

	f.logDetCov[n] = -chol.LogDet()
	for k := 0; k < K; k++ {
		f.EZ.Set(n, k, mean.AtVec(k))
		for j := k; j < K; j++ {
			f.Cov[n].SetSym(k, j, cov.At(k, j))
		}
	}
	f.refreshFactorMoments(n)
	return nil
}

// updateFactorSampleSpikeSlab runs the per-(sample,factor) coordinate update
// with a spike-and-slab posterior; the covariance is diagonal on this path.
func (e *Engine) updateFactorSampleSpikeSlab(n int) {
	f := e.factors
	g := e.container.GroupOf[n]

	for k := 0; k < f.K; k++ {
		alpha := f.alphaMean(g, k)
		a := alpha
		var b float64
		for _, v := range e.views {
			for d := 0; d < v.D; d++ {
				if !v.obs[d*v.N+n] {
					continue
				}
				t := v.Tau.At(d, n)
				if t == 0 {
					continue
				}
				ewk := v.EW.At(d, k)
				a += t * v.EW2.At(d, k)
				res := v.Yhat.At(d, n)
				for j := 0; j < f.K; j++ {
					if j != k {
						res -= v.EW.At(d, j) * f.EZ.At(n, j)
					}
				}
				b += t * ewk * res
			}
		}

		mu := b / a
		f.ZMean.Set(n, k, mu)
		f.ZVarSlab.Set(n, k, 1/a)

		elnT := digamma(f.ThetaA[g][k]) - digamma(f.ThetaA[g][k]+f.ThetaB[g][k])
		eln1mT := digamma(f.ThetaB[g][k]) - digamma(f.ThetaA[g][k]+f.ThetaB[g][k])
		u := elnT - eln1mT + 0.5*f.alphaLogMean(g, k) - 0.5*math.Log(a) + 0.5*b*b/a
		s := errors.Sigmoid(u)
		f.SZ.Set(n, k, s)

		f.EZ.Set(n, k, s*mu)
		f.EZ2.Set(n, k, s*(mu*mu+1/a))
	}
	f.refreshFactorMoments(n)
}

func diagOf(s *mat.SymDense) []float64 {
	n, _ := s.Dims()
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = s.At(i, i)
	}
	return d
}
