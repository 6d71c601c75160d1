package gfa

import (
	"math"

	"github.com/YuminosukeSato/gofa/core/parallel"
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// updateWeights recomputes every feature's weight posterior from the current
// factor expectations and the feature's masked pseudo-residuals. Features are
// independent given the factor snapshot, so each view's loop parallelizes
// over features.
func (e *Engine) updateWeights(iteration int) error {
	for _, v := range e.views {
		view := v
		parallel.For(view.D, parallelThreshold, func(d int) {
			e.updateWeightFeature(view, d)
		})
		for d := 0; d < view.D; d++ {
			if err := errors.CheckFinite("weights/"+view.name, view.EW.RawRowView(d), iteration); err != nil {
				return err
			}
			if err := errors.CheckPositive("weights/"+view.name, view.WVarSlab.RawRowView(d), iteration); err != nil {
				return err
			}
		}
	}
	return nil
}

// updateWeightFeature runs the coordinate update over the K weights of one
// feature. The slab posterior is conjugate Gaussian; under spike-and-slab the
// inclusion probability follows from the same sufficient statistics.
func (e *Engine) updateWeightFeature(v *viewState, d int) {
	f := e.factors
	K := v.K

	for k := 0; k < K; k++ {
		alpha := v.alphaMean(k)
		a := alpha
		var b float64
		for n := 0; n < v.N; n++ {
			if !v.obs[d*v.N+n] {
				continue
			}
			t := v.Tau.At(d, n)
			if t == 0 {
				continue
			}
			a += t * f.EZ2.At(n, k)
			// Expected residual against all other factors, including the
			// factor cross moments E[z_j z_k].
			res := v.Yhat.At(d, n) * f.EZ.At(n, k)
			for j := 0; j < K; j++ {
				if j != k {
					res -= v.EW.At(d, j) * f.EZZ[n].At(j, k)
				}
			}
			b += t * res
		}

		mu := b / a
		v.WMean.Set(d, k, mu)
		v.WVarSlab.Set(d, k, 1/a)

		if v.ssWeights {
			elnT := digamma(v.ThetaA[k]) - digamma(v.ThetaA[k]+v.ThetaB[k])
			eln1mT := digamma(v.ThetaB[k]) - digamma(v.ThetaA[k]+v.ThetaB[k])
			u := elnT - eln1mT + 0.5*v.alphaLogMean(k) - 0.5*math.Log(a) + 0.5*b*b/a
			s := errors.Sigmoid(u)
			v.S.Set(d, k, s)
			v.EW.Set(d, k, s*mu)
			v.EW2.Set(d, k, s*(mu*mu+1/a))
		} else {
			v.EW.Set(d, k, mu)
			v.EW2.Set(d, k, mu*mu+1/a)
		}
	}
}
