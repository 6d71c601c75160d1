package gfa

import (
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// updateSparsity recomputes the ARD precision posteriors from the current
// weight and factor second moments, and the Beta posteriors over the
// spike-and-slab inclusion priors from the current inclusion probabilities.
func (e *Engine) updateSparsity(iteration int) error {
	for _, v := range e.views {
		if v.ardWeights {
			e.updateARDWeights(v)
			if err := errors.CheckPositive("ard/"+v.name, v.AlphaB, iteration); err != nil {
				return err
			}
		}
		if v.ssWeights {
			e.updateThetaWeights(v)
		}
	}
	if e.ardFactors {
		e.updateARDFactors()
		for g := range e.factors.AlphaB {
			if err := errors.CheckPositive("ard/factors", e.factors.AlphaB[g], iteration); err != nil {
				return err
			}
		}
	}
	if e.ssFactors {
		e.updateThetaFactors()
	}
	return nil
}

// updateARDWeights updates the per-(factor,view) Gamma posterior. The slab
// variable carries the ARD prior even when excluded, so the excluded mass
// contributes its prior second moment 1/E[alpha].
func (e *Engine) updateARDWeights(v *viewState) {
	for k := 0; k < v.K; k++ {
		eAlpha := v.alphaMean(k)
		a := priorGammaA + 0.5*float64(v.D)
		b := priorGammaB
		for d := 0; d < v.D; d++ {
			if v.ssWeights {
				s := v.S.At(d, k)
				mu := v.WMean.At(d, k)
				va := v.WVarSlab.At(d, k)
				b += 0.5 * (s*(mu*mu+va) + (1-s)/eAlpha)
			} else {
				b += 0.5 * v.EW2.At(d, k)
			}
		}
		v.AlphaA[k] = a
		v.AlphaB[k] = b
	}
}

func (e *Engine) updateThetaWeights(v *viewState) {
	for k := 0; k < v.K; k++ {
		var sum float64
		for d := 0; d < v.D; d++ {
			sum += v.S.At(d, k)
		}
		v.ThetaA[k] = priorBetaA + sum
		v.ThetaB[k] = priorBetaB + float64(v.D) - sum
	}
}

// updateARDFactors updates the per-(factor,group) Gamma posterior from the
// factor second moments of the group's samples.
func (e *Engine) updateARDFactors() {
	f := e.factors
	for g, idx := range e.container.GroupIdx {
		for k := 0; k < f.K; k++ {
			eAlpha := f.alphaMean(g, k)
			a := priorGammaA + 0.5*float64(len(idx))
			b := priorGammaB
			for _, n := range idx {
				if f.ssFactors {
					s := f.SZ.At(n, k)
					mu := f.ZMean.At(n, k)
					va := f.ZVarSlab.At(n, k)
					b += 0.5 * (s*(mu*mu+va) + (1-s)/eAlpha)
				} else {
					b += 0.5 * f.EZ2.At(n, k)
				}
			}
			f.AlphaA[g][k] = a
			f.AlphaB[g][k] = b
		}
	}
}

func (e *Engine) updateThetaFactors() {
	f := e.factors
	for g, idx := range e.container.GroupIdx {
		for k := 0; k < f.K; k++ {
			var sum float64
			for _, n := range idx {
				sum += f.SZ.At(n, k)
			}
			f.ThetaA[g][k] = priorBetaA + sum
			f.ThetaB[g][k] = priorBetaB + float64(len(idx)) - sum
		}
	}
}
