package gfa

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/data"
	"github.com/YuminosukeSato/gofa/metrics"
)

// VarianceEntry is the variance explained by one factor in one view, in
// percent of the view's observed variance. Group is empty for the pooled
// entry over all samples; per-group entries are added when the container has
// more than one group.
type VarianceEntry struct {
	Factor  int
	View    string
	Group   string
	Percent float64
}

// TotalEntry is the variance explained by all factors jointly in one view,
// in percent. Group follows the same convention as VarianceEntry.
type TotalEntry struct {
	View    string
	Group   string
	Percent float64
}

// VarianceTable is the variance decomposition of a trained model. All fields
// are exported so the table serializes with the model artifact.
type VarianceTable struct {
	Entries []VarianceEntry
	Totals  []TotalEntry
}

// Percent returns the variance explained by (factor, view, group); use an
// empty group for the pooled entry. The second result reports whether the
// entry exists.
func (t *VarianceTable) Percent(factor int, view, group string) (float64, bool) {
	for _, en := range t.Entries {
		if en.Factor == factor && en.View == view && en.Group == group {
			return en.Percent, true
		}
	}
	return 0, false
}

// TotalPercent returns the variance explained by all factors jointly in
// (view, group); use an empty group for the pooled entry.
func (t *VarianceTable) TotalPercent(view, group string) (float64, bool) {
	for _, en := range t.Totals {
		if en.View == view && en.Group == group {
			return en.Percent, true
		}
	}
	return 0, false
}

// FactorEntries returns the pooled entries (group == "") in table order, one
// per (factor, view) pair.
func (t *VarianceTable) FactorEntries() []VarianceEntry {
	out := make([]VarianceEntry, 0, len(t.Entries))
	for _, en := range t.Entries {
		if en.Group == "" {
			out = append(out, en)
		}
	}
	return out
}

// FactorTotals returns, per factor, the pooled variance explained summed over
// views. Useful for ranking factors by overall activity.
func (t *VarianceTable) FactorTotals(numFactors int) []float64 {
	totals := make([]float64, numFactors)
	for _, en := range t.Entries {
		if en.Group == "" && en.Factor < numFactors {
			totals[en.Factor] += en.Percent
		}
	}
	return totals
}

// computeVariance builds the variance decomposition from the terminal
// posterior means: each factor's rank-one reconstruction E[w_k] E[z_k]^T is
// scored with a masked R-squared against the centered data, pooled over all
// samples and, with more than one group, per group.
func (e *Engine) computeVariance(m *TrainedModel) *VarianceTable {
	t := &VarianceTable{}
	multiGroup := e.container.NumGroups() > 1

	for _, v := range e.views {
		target := varianceTarget(v)
		recon := mat.NewDense(v.D, v.N, nil)

		for k := 0; k < v.K; k++ {
			for d := 0; d < v.D; d++ {
				w := v.EW.At(d, k)
				for n := 0; n < v.N; n++ {
					recon.Set(d, n, w*e.factors.EZ.At(n, k))
				}
			}

			pooled, err := metrics.MaskedR2(target, recon, v.obs)
			if err != nil {
				pooled = 0
			}
			t.Entries = append(t.Entries, VarianceEntry{
				Factor:  k,
				View:    v.name,
				Percent: 100 * pooled,
			})

			if multiGroup {
				for g, cols := range e.container.GroupIdx {
					r2, err := metrics.MaskedColumnsR2(target, recon, v.obs, cols)
					if err != nil {
						r2 = 0
					}
					t.Entries = append(t.Entries, VarianceEntry{
						Factor:  k,
						View:    v.name,
						Group:   m.GroupNames[g],
						Percent: 100 * r2,
					})
				}
			}
		}

		// Joint reconstruction over all factors.
		e.backend.recon(recon, v.EW, e.factors.EZ)
		total, err := metrics.MaskedR2(target, recon, v.obs)
		if err != nil {
			total = 0
		}
		t.Totals = append(t.Totals, TotalEntry{View: v.name, Percent: 100 * total})
		if multiGroup {
			for g, cols := range e.container.GroupIdx {
				r2, err := metrics.MaskedColumnsR2(target, recon, v.obs, cols)
				if err != nil {
					r2 = 0
				}
				t.Totals = append(t.Totals, TotalEntry{View: v.name, Group: m.GroupNames[g], Percent: 100 * r2})
			}
		}
	}
	return t
}

// varianceTarget returns the view's data centered per feature over observed
// entries. Gaussian views are already centered in state; other likelihoods
// are centered on a copy so the decomposition never mutates training data.
func varianceTarget(v *viewState) *mat.Dense {
	if v.obsModel.updatesNoise() {
		return v.Y
	}
	target := mat.DenseCopyOf(v.Y)
	data.CenterFeaturesObserved(target, v.obs)
	return target
}
