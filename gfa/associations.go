package gfa

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// Covariate is one sample-level annotation to test factors against. Numeric
// covariates use Values (NaN marks a missing annotation); categorical ones
// use Labels (empty string marks missing). Length must equal the number of
// samples in the model.
type Covariate struct {
	Name        string
	Values      []float64
	Labels      []string
	Categorical bool
}

// Association is the result of testing one factor against one covariate.
type Association struct {
	Factor    int
	Covariate string
	Test      string
	Statistic float64
	PValue    float64
}

// Associations tests every factor against every covariate: Pearson
// correlation with a t-test for numeric covariates, Kruskal-Wallis for
// categorical ones. Samples with a missing annotation are dropped pairwise.
func (m *TrainedModel) Associations(covs []Covariate) ([]Association, error) {
	n, k := m.Z.Dims()
	out := make([]Association, 0, len(covs)*k)

	for _, cov := range covs {
		if cov.Categorical {
			if len(cov.Labels) != n {
				return nil, errors.Newf("Associations: covariate %q has %d labels, model has %d samples",
					cov.Name, len(cov.Labels), n)
			}
		} else if len(cov.Values) != n {
			return nil, errors.Newf("Associations: covariate %q has %d values, model has %d samples",
				cov.Name, len(cov.Values), n)
		}

		for f := 0; f < k; f++ {
			z := make([]float64, n)
			for i := 0; i < n; i++ {
				z[i] = m.Z.At(i, f)
			}

			var a Association
			var err error
			if cov.Categorical {
				a, err = kruskalWallis(z, cov.Labels)
			} else {
				a, err = pearsonT(z, cov.Values)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "Associations: factor %d vs %q", f, cov.Name)
			}
			a.Factor = f
			a.Covariate = cov.Name
			out = append(out, a)
		}
	}
	return out, nil
}

// pearsonT computes the Pearson correlation between z and x over pairwise
// complete samples and converts it to a two-sided t-test p-value.
func pearsonT(z, x []float64) (Association, error) {
	var zs, xs []float64
	for i := range z {
		if !math.IsNaN(x[i]) && !math.IsNaN(z[i]) {
			zs = append(zs, z[i])
			xs = append(xs, x[i])
		}
	}
	n := len(zs)
	if n < 3 {
		return Association{}, errors.Newf("need at least 3 complete samples, have %d", n)
	}

	r := stat.Correlation(zs, xs, nil)
	if math.IsNaN(r) {
		// Zero-variance input: no association measurable.
		return Association{Test: "pearson", Statistic: 0, PValue: 1}, nil
	}
	r = errors.ClipValue(r, -1, 1)

	df := float64(n - 2)
	denom := 1 - r*r
	if denom <= 0 {
		return Association{Test: "pearson", Statistic: math.Inf(1) * math.Copysign(1, r), PValue: 0}, nil
	}
	t := r * math.Sqrt(df/denom)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	return Association{Test: "pearson", Statistic: t, PValue: errors.ClipValue(p, 0, 1)}, nil
}

// kruskalWallis runs the rank-based one-way test of z across the label
// groups, with the standard tie correction, and a chi-squared p-value.
func kruskalWallis(z []float64, labels []string) (Association, error) {
	type obs struct {
		value float64
		group string
	}
	var all []obs
	for i := range z {
		if labels[i] != "" && !math.IsNaN(z[i]) {
			all = append(all, obs{z[i], labels[i]})
		}
	}
	n := len(all)
	if n < 3 {
		return Association{}, errors.Newf("need at least 3 annotated samples, have %d", n)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].value < all[j].value })

	// Midranks with tie correction.
	ranks := make([]float64, n)
	tieSum := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && all[j].value == all[i].value {
			j++
		}
		mid := float64(i+j+1) / 2
		for t := i; t < j; t++ {
			ranks[t] = mid
		}
		ties := float64(j - i)
		tieSum += ties*ties*ties - ties
		i = j
	}

	rankSum := make(map[string]float64)
	count := make(map[string]int)
	for i, o := range all {
		rankSum[o.group] += ranks[i]
		count[o.group]++
	}
	g := len(count)
	if g < 2 {
		return Association{}, errors.Newf("need at least 2 groups, have %d", g)
	}

	nf := float64(n)
	h := 0.0
	for grp, rs := range rankSum {
		h += rs * rs / float64(count[grp])
	}
	h = 12/(nf*(nf+1))*h - 3*(nf+1)

	// Tie correction.
	if corr := 1 - tieSum/(nf*nf*nf-nf); corr > 0 {
		h /= corr
	}

	dist := distuv.ChiSquared{K: float64(g - 1)}
	p := dist.Survival(h)
	return Association{Test: "kruskal-wallis", Statistic: h, PValue: errors.ClipValue(p, 0, 1)}, nil
}
