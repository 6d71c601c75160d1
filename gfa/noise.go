package gfa

import (
	"github.com/YuminosukeSato/gofa/core/parallel"
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// updateNoise recomputes the Gamma noise-precision posterior of every
// gaussian feature from the accumulated expected squared residual over its
// observed samples. Count and binary views carry fixed pseudo-precisions and
// are skipped.
func (e *Engine) updateNoise(iteration int) error {
	f := e.factors
	for _, v := range e.views {
		if !v.obsModel.updatesNoise() {
			continue
		}
		view := v
		parallel.For(view.D, parallelThreshold, func(d int) {
			a := priorGammaA + 0.5*float64(view.nObs[d])
			b := priorGammaB
			for n := 0; n < view.N; n++ {
				if !view.obs[d*view.N+n] {
					continue
				}
				y := view.Y.At(d, n)
				var mean float64
				for k := 0; k < view.K; k++ {
					mean += view.EW.At(d, k) * f.EZ.At(n, k)
				}
				// E[(y - w.z)^2] = y^2 - 2 y E[w.z] + E[(w.z)^2]
				b += 0.5 * (y*y - 2*y*mean + expectedSquare(view, f, d, n, mean))
			}
			view.TauA[d] = a
			view.TauB[d] = b
		})
		if err := errors.CheckPositive("noise/"+view.name, view.TauB, iteration); err != nil {
			return err
		}
	}
	return nil
}
