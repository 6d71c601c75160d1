package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/gofa/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 15, cfg.Model.NumFactors)
	assert.True(t, cfg.Model.SpikeSlabWeights)
	assert.False(t, cfg.Model.SpikeSlabFactors)
	assert.Equal(t, Auto, cfg.Model.ARDWeights)
	assert.Equal(t, Auto, cfg.Model.ARDFactors)
	assert.Equal(t, 1000, cfg.Training.MaxIter)
	assert.Equal(t, Fast, cfg.Training.Convergence)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, CPU, cfg.Training.Backend)
	assert.Equal(t, Union, cfg.Data.Alignment)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		option string
	}{
		{"zero factors", func(c *Config) { c.Model.NumFactors = 0 }, "NumFactors"},
		{"negative factors", func(c *Config) { c.Model.NumFactors = -3 }, "NumFactors"},
		{"bad likelihood", func(c *Config) { c.Model.Likelihoods = map[string]Likelihood{"rna": Likelihood(99)} }, "Likelihoods"},
		{"zero max iter", func(c *Config) { c.Training.MaxIter = 0 }, "MaxIter"},
		{"bad convergence", func(c *Config) { c.Training.Convergence = ConvergenceMode(99) }, "Convergence"},
		{"bad backend", func(c *Config) { c.Training.Backend = Backend(99) }, "Backend"},
		{"negative checkpoint", func(c *Config) { c.Training.CheckpointEvery = -1 }, "CheckpointEvery"},
		{"zero start elbo", func(c *Config) { c.Training.StartELBO = 0 }, "StartELBO"},
		{"zero freq elbo", func(c *Config) { c.Training.FreqELBO = 0 }, "FreqELBO"},
		{"bad alignment", func(c *Config) { c.Data.Alignment = Alignment(99) }, "Alignment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *errors.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.option, cfgErr.Option)
		})
	}
}

func TestToleranceByMode(t *testing.T) {
	assert.InDelta(t, 1e-2, Fast.Tolerance(), 0)
	assert.InDelta(t, 1e-4, Medium.Tolerance(), 0)
	assert.InDelta(t, 1e-6, Slow.Tolerance(), 0)
}

func TestSettingResolve(t *testing.T) {
	assert.True(t, Enabled.Resolve(false))
	assert.False(t, Disabled.Resolve(true))
	assert.True(t, Auto.Resolve(true))
	assert.False(t, Auto.Resolve(false))
}

func TestLikelihoodFor(t *testing.T) {
	m := DefaultModelOptions()
	assert.Equal(t, Gaussian, m.LikelihoodFor("anything"))

	m.Likelihoods = map[string]Likelihood{"mutations": Bernoulli}
	assert.Equal(t, Bernoulli, m.LikelihoodFor("mutations"))
	assert.Equal(t, Gaussian, m.LikelihoodFor("rna"))
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "gaussian", Gaussian.String())
	assert.Equal(t, "poisson", Poisson.String())
	assert.Equal(t, "bernoulli", Bernoulli.String())
	assert.Equal(t, "union", Union.String())
	assert.Equal(t, "intersection", Intersection.String())
	assert.Equal(t, "fast", Fast.String())
	assert.Equal(t, "cpu", CPU.String())
	assert.Equal(t, "accelerated", Accelerated.String())
}
