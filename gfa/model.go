package gfa

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/config"
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// ViewParams holds the trained per-view parameters: posterior weight moments,
// sparsity state, noise posterior and per-feature intercepts.
type ViewParams struct {
	Name       string
	Features   []string
	Likelihood config.Likelihood

	// Weights are the posterior weight means E[w], features x factors.
	Weights *mat.Dense
	// WeightVars are the per-weight posterior variances.
	WeightVars *mat.Dense
	// Inclusion holds spike-and-slab inclusion probabilities, nil otherwise.
	Inclusion *mat.Dense

	// Intercepts are the per-feature means removed from gaussian views.
	Intercepts []float64

	// Gamma posteriors for noise precisions (gaussian views) and ARD
	// precisions, and Beta posteriors for the inclusion prior.
	NoiseA, NoiseB []float64
	AlphaA, AlphaB []float64
	ThetaA, ThetaB []float64
}

// FeatureIndex returns the row of a feature identifier, or -1.
func (v *ViewParams) FeatureIndex(name string) int {
	for i, f := range v.Features {
		if f == name {
			return i
		}
	}
	return -1
}

// TrainedModel is the immutable result of one fit run: the terminal posterior
// parameters, the ELBO trace, the convergence flag and the variance-explained
// table. Derived quantities are pure functions of this snapshot; nothing here
// is mutated after Fit returns.
type TrainedModel struct {
	Config     config.Config
	Samples    []string
	GroupNames []string
	GroupOf    []int

	Views []ViewParams

	// Z holds the posterior factor means, samples x factors.
	Z *mat.Dense

	ELBOTrace  []float64
	Converged  bool
	Iterations int

	State *TrainingState

	variance *VarianceTable
}

// buildModel assembles the immutable TrainedModel from the engine state,
// including the eagerly computed variance-explained table.
func (e *Engine) buildModel(converged bool) *TrainedModel {
	f := e.factors
	m := &TrainedModel{
		Config:     e.cfg,
		Samples:    append([]string(nil), e.container.Samples...),
		GroupNames: append([]string(nil), e.container.GroupNames...),
		GroupOf:    append([]int(nil), e.container.GroupOf...),
		Z:          mat.DenseCopyOf(f.EZ),
		ELBOTrace:  append([]float64(nil), e.elboTrace...),
		Converged:  converged,
		Iterations: e.iteration,
		State:      e.snapshot(),
	}

	for _, v := range e.views {
		vp := ViewParams{
			Name:       v.name,
			Features:   append([]string(nil), e.container.ViewByName(v.name).Features...),
			Likelihood: v.obsModel.kind(),
			Weights:    mat.DenseCopyOf(v.EW),
			WeightVars: mat.DenseCopyOf(v.WVarSlab),
			Intercepts: append([]float64(nil), v.intercepts...),
			NoiseA:     append([]float64(nil), v.TauA...),
			NoiseB:     append([]float64(nil), v.TauB...),
			AlphaA:     append([]float64(nil), v.AlphaA...),
			AlphaB:     append([]float64(nil), v.AlphaB...),
			ThetaA:     append([]float64(nil), v.ThetaA...),
			ThetaB:     append([]float64(nil), v.ThetaB...),
		}
		if v.ssWeights {
			vp.Inclusion = mat.DenseCopyOf(v.S)
		}
		m.Views = append(m.Views, vp)
	}

	m.variance = e.computeVariance(m)
	return m
}

// NumFactors returns K.
func (m *TrainedModel) NumFactors() int {
	_, k := m.Z.Dims()
	return k
}

// ViewByName returns the trained parameters of a view, or nil.
func (m *TrainedModel) ViewByName(name string) *ViewParams {
	for i := range m.Views {
		if m.Views[i].Name == name {
			return &m.Views[i]
		}
	}
	return nil
}

// Factors returns the factor values, optionally subset by sample and factor
// indices (nil selects all). The result is a fresh matrix; the model is not
// aliased.
func (m *TrainedModel) Factors(samples, factors []int) (*mat.Dense, error) {
	n, k := m.Z.Dims()
	if samples == nil {
		samples = sequence(n)
	}
	if factors == nil {
		factors = sequence(k)
	}
	for _, s := range samples {
		if s < 0 || s >= n {
			return nil, errors.Newf("Factors: sample index %d out of range [0,%d)", s, n)
		}
	}
	for _, f := range factors {
		if f < 0 || f >= k {
			return nil, errors.Newf("Factors: factor index %d out of range [0,%d)", f, k)
		}
	}
	out := mat.NewDense(len(samples), len(factors), nil)
	for i, s := range samples {
		for j, f := range factors {
			out.Set(i, j, m.Z.At(s, f))
		}
	}
	return out, nil
}

// WeightEntry is one ranked loading returned by Weights.
type WeightEntry struct {
	Feature string
	Weight  float64
}

// Weights returns the loadings of one (view, factor) pair ranked by
// descending absolute value. topN limits the result (0 returns all). When
// scaled is true the weights are rescaled to unit variance across the view's
// full feature set, so the scaling does not depend on topN.
func (m *TrainedModel) Weights(view string, factor, topN int, scaled bool) ([]WeightEntry, error) {
	vp := m.ViewByName(view)
	if vp == nil {
		return nil, errors.Newf("Weights: unknown view %q", view)
	}
	d, k := vp.Weights.Dims()
	if factor < 0 || factor >= k {
		return nil, errors.Newf("Weights: factor index %d out of range [0,%d)", factor, k)
	}
	if topN < 0 || topN > d {
		return nil, errors.Newf("Weights: topN %d out of range [0,%d]", topN, d)
	}

	scale := 1.0
	if scaled {
		col := mat.Col(nil, factor, vp.Weights)
		mean := floats.Sum(col) / float64(d)
		sd := math.Sqrt(floats.Dot(col, col)/float64(d) - mean*mean)
		if sd > 0 {
			scale = 1 / sd
		}
	}

	entries := make([]WeightEntry, d)
	for i := 0; i < d; i++ {
		entries[i] = WeightEntry{Feature: vp.Features[i], Weight: vp.Weights.At(i, factor) * scale}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return math.Abs(entries[i].Weight) > math.Abs(entries[j].Weight)
	})
	if topN > 0 {
		entries = entries[:topN]
	}
	return entries, nil
}

// VarianceExplained returns the immutable variance decomposition table.
func (m *TrainedModel) VarianceExplained() *VarianceTable {
	return m.variance
}

func sequence(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}
