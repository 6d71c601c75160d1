package gfa

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/gofa/config"
)

func fitSmall(t *testing.T) *TrainedModel {
	t.Helper()
	c := gaussianContainer(t, 30, []int{25, 12})

	cfg := config.Default()
	cfg.Model.NumFactors = 4
	cfg.Training.MaxIter = 40

	m, err := Fit(context.Background(), c, cfg)
	require.NoError(t, err)
	return m
}

func TestFactorsSubsetting(t *testing.T) {
	m := fitSmall(t)

	all, err := m.Factors(nil, nil)
	require.NoError(t, err)
	r, c := all.Dims()
	assert.Equal(t, 30, r)
	assert.Equal(t, 4, c)

	sub, err := m.Factors([]int{2, 7}, []int{1, 3})
	require.NoError(t, err)
	r, c = sub.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, m.Z.At(2, 1), sub.At(0, 0))
	assert.Equal(t, m.Z.At(7, 3), sub.At(1, 1))

	_, err = m.Factors([]int{99}, nil)
	assert.Error(t, err)
	_, err = m.Factors(nil, []int{-1})
	assert.Error(t, err)
}

func TestWeightsRanking(t *testing.T) {
	m := fitSmall(t)

	top, err := m.Weights("view0", 0, 10, false)
	require.NoError(t, err)
	require.Len(t, top, 10)

	seen := map[string]bool{}
	for i, en := range top {
		assert.False(t, seen[en.Feature], "duplicate feature %s", en.Feature)
		seen[en.Feature] = true
		if i > 0 {
			assert.GreaterOrEqual(t, math.Abs(top[i-1].Weight), math.Abs(en.Weight),
				"entries must be ordered by decreasing magnitude")
		}
	}

	all, err := m.Weights("view0", 0, 0, false)
	require.NoError(t, err)
	assert.Len(t, all, 25)
	// The top slice is a prefix of the full ranking.
	for i := range top {
		assert.Equal(t, all[i], top[i])
	}
}

func TestWeightsScaledIndependentOfTopN(t *testing.T) {
	m := fitSmall(t)

	all, err := m.Weights("view0", 1, 0, true)
	require.NoError(t, err)
	top, err := m.Weights("view0", 1, 5, true)
	require.NoError(t, err)

	// Scaling uses the full weight column, so the leading entries agree.
	for i := range top {
		assert.Equal(t, all[i], top[i])
	}

	// Scaled weights have unit standard deviation across the view.
	var sum, sumSq float64
	for _, en := range all {
		sum += en.Weight
		sumSq += en.Weight * en.Weight
	}
	n := float64(len(all))
	mean := sum / n
	sd := math.Sqrt(sumSq/n - mean*mean)
	assert.InDelta(t, 1.0, sd, 1e-9)
}

func TestWeightsErrors(t *testing.T) {
	m := fitSmall(t)

	_, err := m.Weights("no-such-view", 0, 0, false)
	assert.Error(t, err)
	_, err = m.Weights("view0", 99, 0, false)
	assert.Error(t, err)
	_, err = m.Weights("view0", 0, 9999, false)
	assert.Error(t, err)
}

func TestViewByNameAndFeatureIndex(t *testing.T) {
	m := fitSmall(t)

	vp := m.ViewByName("view1")
	require.NotNil(t, vp)
	assert.Equal(t, "view1", vp.Name)
	assert.Equal(t, 1, vp.FeatureIndex(vp.Features[1]))
	assert.Equal(t, -1, vp.FeatureIndex("missing-feature"))

	assert.Nil(t, m.ViewByName("nope"))
}

func TestModelCarriesInclusionUnderSpikeSlab(t *testing.T) {
	m := fitSmall(t) // spike-and-slab weights are on by default
	for _, vp := range m.Views {
		require.NotNil(t, vp.Inclusion, "view %s", vp.Name)
		d, k := vp.Inclusion.Dims()
		for i := 0; i < d; i++ {
			for j := 0; j < k; j++ {
				s := vp.Inclusion.At(i, j)
				assert.GreaterOrEqual(t, s, 0.0)
				assert.LessOrEqual(t, s, 1.0)
			}
		}
	}
}

func TestFactorTotals(t *testing.T) {
	m := fitSmall(t)
	totals := m.VarianceExplained().FactorTotals(m.NumFactors())
	require.Len(t, totals, 4)
	for k, v := range totals {
		assert.GreaterOrEqual(t, v, 0.0, "factor %d", k)
	}
}
