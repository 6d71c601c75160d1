package gfa

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// modelWithFactors builds a minimal TrainedModel around a given factor matrix
// so the association tests run against known structure.
func modelWithFactors(z *mat.Dense) *TrainedModel {
	n, _ := z.Dims()
	samples := make([]string, n)
	for i := range samples {
		samples[i] = "s"
	}
	return &TrainedModel{Samples: samples, Z: z}
}

func TestAssociationsNumeric(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	const n = 60

	z := mat.NewDense(n, 2, nil)
	age := make([]float64, n)
	for i := 0; i < n; i++ {
		a := rng.NormFloat64()
		age[i] = a
		z.Set(i, 0, a+0.1*rng.NormFloat64()) // strongly associated
		z.Set(i, 1, rng.NormFloat64())       // independent
	}

	m := modelWithFactors(z)
	out, err := m.Associations([]Covariate{{Name: "age", Values: age}})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "pearson", out[0].Test)
	assert.Equal(t, 0, out[0].Factor)
	assert.Equal(t, "age", out[0].Covariate)
	assert.Less(t, out[0].PValue, 1e-6, "correlated factor must score significant")
	assert.Greater(t, out[1].PValue, 1e-3, "independent factor must not")
}

func TestAssociationsNumericMissingValues(t *testing.T) {
	z := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	vals := []float64{1, 2, 3, 4, math.NaN(), math.NaN()}

	m := modelWithFactors(z)
	out, err := m.Associations([]Covariate{{Name: "x", Values: vals}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	// Perfect correlation over the four complete pairs.
	assert.Less(t, out[0].PValue, 0.05)
}

func TestAssociationsCategorical(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	const n = 60

	z := mat.NewDense(n, 1, nil)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		if i < n/2 {
			labels[i] = "treated"
			z.Set(i, 0, 3+0.5*rng.NormFloat64())
		} else {
			labels[i] = "control"
			z.Set(i, 0, 0.5*rng.NormFloat64())
		}
	}

	m := modelWithFactors(z)
	out, err := m.Associations([]Covariate{{Name: "arm", Labels: labels, Categorical: true}})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "kruskal-wallis", out[0].Test)
	assert.Greater(t, out[0].Statistic, 10.0, "separated groups give a large H")
	assert.Less(t, out[0].PValue, 1e-4)
}

func TestAssociationsCategoricalNoSignal(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	const n = 80

	z := mat.NewDense(n, 1, nil)
	labels := make([]string, n)
	arms := []string{"a", "b", "c"}
	for i := 0; i < n; i++ {
		labels[i] = arms[i%3]
		z.Set(i, 0, rng.NormFloat64())
	}

	m := modelWithFactors(z)
	out, err := m.Associations([]Covariate{{Name: "arm", Labels: labels, Categorical: true}})
	require.NoError(t, err)
	assert.Greater(t, out[0].PValue, 0.01)
}

func TestAssociationsValidation(t *testing.T) {
	m := modelWithFactors(mat.NewDense(4, 1, []float64{1, 2, 3, 4}))

	_, err := m.Associations([]Covariate{{Name: "short", Values: []float64{1}}})
	assert.Error(t, err)

	_, err = m.Associations([]Covariate{{Name: "short", Labels: []string{"a"}, Categorical: true}})
	assert.Error(t, err)

	// A single group cannot be tested.
	_, err = m.Associations([]Covariate{{Name: "const", Labels: []string{"a", "a", "a", "a"}, Categorical: true}})
	assert.Error(t, err)
}

func TestAssociationsConstantCovariate(t *testing.T) {
	m := modelWithFactors(mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5}))

	out, err := m.Associations([]Covariate{{Name: "flat", Values: []float64{2, 2, 2, 2, 2}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	// Zero-variance covariate: no measurable association.
	assert.Equal(t, 1.0, out[0].PValue)
}
