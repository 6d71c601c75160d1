package gfa

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// TrainingState is a deep-copy snapshot of all posterior parameters at one
// iteration boundary. It is what periodic checkpoints capture, what a
// NumericInstabilityError surfaces, and what Resume consumes. All fields are
// plain slices so the snapshot serializes cleanly.
type TrainingState struct {
	Iteration int
	ELBOTrace []float64

	NumSamples int
	NumFactors int

	// Factor posterior. Means and second moments are row-major N x K;
	// covariances are N consecutive K x K blocks.
	FactorMeans []float64
	FactorCovs  []float64

	// Spike-and-slab factor posterior (empty on the dense path).
	FactorSlabMeans []float64
	FactorSlabVars  []float64
	FactorInclusion []float64

	// Per-(group,factor) ARD and inclusion-prior posteriors (nil when off).
	FactorAlphaA, FactorAlphaB [][]float64
	FactorThetaA, FactorThetaB [][]float64

	Views []ViewTrainingState
}

// ViewTrainingState is the per-view slice of a TrainingState snapshot.
type ViewTrainingState struct {
	Name        string
	NumFeatures int

	// Slab posterior, row-major D x K.
	WeightMeans []float64
	WeightVars  []float64
	Inclusion   []float64 // empty unless spike-and-slab

	NoiseA, NoiseB []float64 // gaussian views only
	AlphaA, AlphaB []float64 // nil when ARD weights are off
	ThetaA, ThetaB []float64 // nil unless spike-and-slab

	Intercepts []float64
}

// snapshot deep-copies the current posterior parameters.
func (e *Engine) snapshot() *TrainingState {
	f := e.factors
	ts := &TrainingState{
		Iteration:   e.iteration,
		ELBOTrace:   append([]float64(nil), e.elboTrace...),
		NumSamples:  f.N,
		NumFactors:  f.K,
		FactorMeans: append([]float64(nil), f.EZ.RawMatrix().Data...),
	}

	ts.FactorCovs = make([]float64, 0, f.N*f.K*f.K)
	for n := 0; n < f.N; n++ {
		for j := 0; j < f.K; j++ {
			for k := 0; k < f.K; k++ {
				ts.FactorCovs = append(ts.FactorCovs, f.Cov[n].At(j, k))
			}
		}
	}

	if f.ssFactors {
		ts.FactorSlabMeans = append([]float64(nil), f.ZMean.RawMatrix().Data...)
		ts.FactorSlabVars = append([]float64(nil), f.ZVarSlab.RawMatrix().Data...)
		ts.FactorInclusion = append([]float64(nil), f.SZ.RawMatrix().Data...)
		ts.FactorThetaA = copyNested(f.ThetaA)
		ts.FactorThetaB = copyNested(f.ThetaB)
	}
	if f.ardFactors {
		ts.FactorAlphaA = copyNested(f.AlphaA)
		ts.FactorAlphaB = copyNested(f.AlphaB)
	}

	for _, v := range e.views {
		vs := ViewTrainingState{
			Name:        v.name,
			NumFeatures: v.D,
			WeightMeans: append([]float64(nil), v.WMean.RawMatrix().Data...),
			WeightVars:  append([]float64(nil), v.WVarSlab.RawMatrix().Data...),
			NoiseA:      append([]float64(nil), v.TauA...),
			NoiseB:      append([]float64(nil), v.TauB...),
			AlphaA:      append([]float64(nil), v.AlphaA...),
			AlphaB:      append([]float64(nil), v.AlphaB...),
			ThetaA:      append([]float64(nil), v.ThetaA...),
			ThetaB:      append([]float64(nil), v.ThetaB...),
			Intercepts:  append([]float64(nil), v.intercepts...),
		}
		if v.ssWeights {
			vs.Inclusion = append([]float64(nil), v.S.RawMatrix().Data...)
		}
		ts.Views = append(ts.Views, vs)
	}
	return ts
}

// restore loads a snapshot into freshly initialized state. The engine must
// have been built over the same container and configuration the snapshot was
// taken with.
func (e *Engine) restore(ts *TrainingState) error {
	f := e.factors
	if ts == nil {
		return errors.New("nil training state")
	}
	if ts.NumSamples != f.N || ts.NumFactors != f.K || len(ts.Views) != len(e.views) {
		return errors.Newf("training state shape mismatch: %dx%d/%d views vs %dx%d/%d",
			ts.NumSamples, ts.NumFactors, len(ts.Views), f.N, f.K, len(e.views))
	}

	copyInto(f.EZ, ts.FactorMeans)
	for n := 0; n < f.N; n++ {
		base := n * f.K * f.K
		for j := 0; j < f.K; j++ {
			for k := j; k < f.K; k++ {
				f.Cov[n].SetSym(j, k, ts.FactorCovs[base+j*f.K+k])
			}
		}
	}
	if f.ssFactors {
		copyInto(f.ZMean, ts.FactorSlabMeans)
		copyInto(f.ZVarSlab, ts.FactorSlabVars)
		copyInto(f.SZ, ts.FactorInclusion)
		f.ThetaA = copyNested(ts.FactorThetaA)
		f.ThetaB = copyNested(ts.FactorThetaB)
	}
	if f.ardFactors {
		f.AlphaA = copyNested(ts.FactorAlphaA)
		f.AlphaB = copyNested(ts.FactorAlphaB)
	}
	for n := 0; n < f.N; n++ {
		f.refreshFactorMoments(n)
	}

	for i, vs := range ts.Views {
		v := e.views[i]
		if vs.Name != v.name || vs.NumFeatures != v.D {
			return errors.Newf("training state view %q (%d features) does not match %q (%d features)",
				vs.Name, vs.NumFeatures, v.name, v.D)
		}
		copyInto(v.WMean, vs.WeightMeans)
		copyInto(v.WVarSlab, vs.WeightVars)
		if v.ssWeights {
			copyInto(v.S, vs.Inclusion)
		}
		copy(v.TauA, vs.NoiseA)
		copy(v.TauB, vs.NoiseB)
		copy(v.AlphaA, vs.AlphaA)
		copy(v.AlphaB, vs.AlphaB)
		copy(v.ThetaA, vs.ThetaA)
		copy(v.ThetaB, vs.ThetaB)
		for d := 0; d < v.D; d++ {
			v.refreshWeightMoments(d)
		}
	}

	e.iteration = ts.Iteration
	e.elboTrace = append([]float64(nil), ts.ELBOTrace...)
	return nil
}

func copyInto(dst *mat.Dense, src []float64) {
	copy(dst.RawMatrix().Data, src)
}

func copyNested(src [][]float64) [][]float64 {
	if src == nil {
		return nil
	}
	out := make([][]float64, len(src))
	for i, s := range src {
		out[i] = append([]float64(nil), s...)
	}
	return out
}
