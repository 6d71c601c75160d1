// Package config holds the option records for a GOFA run: data options,
// model options and training options. Options are explicit fields with
// documented defaults; Validate rejects out-of-range values before any
// fitting work starts.
package config

import (
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// Likelihood selects the observation model of a view.
type Likelihood int

const (
	// Gaussian models continuous observations. Closed-form updates.
	Gaussian Likelihood = iota
	// Poisson models non-negative count observations via a quadratic bound.
	Poisson
	// Bernoulli models binary observations via the Jaakkola-Jordan bound.
	Bernoulli
)

// String returns the likelihood name.
func (l Likelihood) String() string {
	switch l {
	case Gaussian:
		return "gaussian"
	case Poisson:
		return "poisson"
	case Bernoulli:
		return "bernoulli"
	default:
		return "unknown"
	}
}

func (l Likelihood) valid() bool {
	return l == Gaussian || l == Poisson || l == Bernoulli
}

// Alignment selects how samples are aligned across views.
type Alignment int

const (
	// Union keeps every sample present in at least one view; entries of
	// views that do not cover a sample are marked missing.
	Union Alignment = iota
	// Intersection keeps only samples present in all views.
	Intersection
)

// String returns the alignment name.
func (a Alignment) String() string {
	switch a {
	case Union:
		return "union"
	case Intersection:
		return "intersection"
	default:
		return "unknown"
	}
}

// ConvergenceMode maps to a relative-ELBO-change tolerance.
type ConvergenceMode int

const (
	// Fast stops at a relative ELBO change below 1e-2.
	Fast ConvergenceMode = iota
	// Medium stops at 1e-4.
	Medium
	// Slow stops at 1e-6.
	Slow
)

// Tolerance returns the relative ELBO-change threshold for the mode.
func (c ConvergenceMode) Tolerance() float64 {
	switch c {
	case Fast:
		return 1e-2
	case Medium:
		return 1e-4
	case Slow:
		return 1e-6
	default:
		return 0
	}
}

// String returns the mode name.
func (c ConvergenceMode) String() string {
	switch c {
	case Fast:
		return "fast"
	case Medium:
		return "medium"
	case Slow:
		return "slow"
	default:
		return "unknown"
	}
}

// Backend selects the execution strategy for the dense kernels. It has no
// numeric effect beyond floating-point rounding.
type Backend int

const (
	// CPU uses straight per-entry loops.
	CPU Backend = iota
	// Accelerated uses bulk BLAS-backed matrix products.
	Accelerated
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case CPU:
		return "cpu"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// Setting is a three-valued option: Auto resolves against the data layout
// (number of views or groups) when the engine is built.
type Setting int

const (
	// Auto defers the decision to the engine.
	Auto Setting = iota
	// Enabled turns the option on.
	Enabled
	// Disabled turns the option off.
	Disabled
)

// Resolve returns the boolean value, using auto when the setting is Auto.
func (s Setting) Resolve(auto bool) bool {
	switch s {
	case Enabled:
		return true
	case Disabled:
		return false
	default:
		return auto
	}
}

// DataOptions control alignment and scaling of the input views.
type DataOptions struct {
	// ScaleViews divides each view by its standard deviation over observed
	// entries so views with different dynamic ranges contribute comparably.
	// Default false.
	ScaleViews bool

	// ScaleGroups applies the same per-view scaling separately within each
	// sample group. Default false.
	ScaleGroups bool

	// Alignment selects union (default) or intersection of samples.
	Alignment Alignment
}

// DefaultDataOptions returns the documented defaults.
func DefaultDataOptions() DataOptions {
	return DataOptions{ScaleViews: false, ScaleGroups: false, Alignment: Union}
}

// ModelOptions control the model structure and priors.
type ModelOptions struct {
	// NumFactors is the number of latent factors K. Default 15.
	NumFactors int

	// Likelihoods maps a view name to its observation model. Views not
	// listed default to Gaussian. A likelihood inconsistent with the data's
	// empirical distribution degrades fit quality and is logged as a
	// warning, never rejected.
	Likelihoods map[string]Likelihood

	// SpikeSlabWeights puts a per-weight spike-and-slab prior on the
	// loadings. Default true.
	SpikeSlabWeights bool

	// SpikeSlabFactors puts a per-value spike-and-slab prior on the
	// factors. Default false.
	SpikeSlabFactors bool

	// ARDWeights puts a per-(factor,view) automatic relevance determination
	// prior on the loadings. Auto resolves to true when there is more than
	// one view.
	ARDWeights Setting

	// ARDFactors puts a per-(factor,group) ARD prior on the factors.
	// Auto resolves to true when there is more than one group.
	ARDFactors Setting
}

// DefaultModelOptions returns the documented defaults.
func DefaultModelOptions() ModelOptions {
	return ModelOptions{
		NumFactors:       15,
		SpikeSlabWeights: true,
		SpikeSlabFactors: false,
		ARDWeights:       Auto,
		ARDFactors:       Auto,
	}
}

// LikelihoodFor returns the likelihood configured for a view.
func (m ModelOptions) LikelihoodFor(view string) Likelihood {
	if m.Likelihoods == nil {
		return Gaussian
	}
	if l, ok := m.Likelihoods[view]; ok {
		return l
	}
	return Gaussian
}

// TrainingOptions control the optimization loop.
type TrainingOptions struct {
	// MaxIter is the iteration budget. Exhausting it yields a model flagged
	// non-converged, not an error. Default 1000.
	MaxIter int

	// Convergence selects the relative ELBO-change tolerance. Default Fast.
	Convergence ConvergenceMode

	// Seed drives the reproducible random initialization.
	Seed int64

	// Backend selects the execution strategy for dense kernels. Default CPU.
	Backend Backend

	// CheckpointEvery snapshots the training state every N iterations.
	// 0 disables periodic checkpoints (a snapshot is still taken before a
	// numeric abort is reported). Default 0.
	CheckpointEvery int

	// StartELBO is the first iteration (1-based) at which the ELBO is
	// computed. Default 1.
	StartELBO int

	// FreqELBO computes the ELBO every N iterations after StartELBO.
	// Default 1.
	FreqELBO int
}

// DefaultTrainingOptions returns the documented defaults.
func DefaultTrainingOptions() TrainingOptions {
	return TrainingOptions{
		MaxIter:     1000,
		Convergence: Fast,
		Seed:        42,
		Backend:     CPU,
		StartELBO:   1,
		FreqELBO:    1,
	}
}

// Config bundles the three option groups for one run.
type Config struct {
	Data     DataOptions
	Model    ModelOptions
	Training TrainingOptions
}

// Default returns a Config with all documented defaults.
func Default() Config {
	return Config{
		Data:     DefaultDataOptions(),
		Model:    DefaultModelOptions(),
		Training: DefaultTrainingOptions(),
	}
}

// Validate rejects out-of-range option values. It is called before fitting
// starts; a Config that passes Validate never aborts later for a
// configuration reason.
func (c *Config) Validate() error {
	if c.Model.NumFactors <= 0 {
		return errors.NewConfigurationError("NumFactors", "must be a positive integer", c.Model.NumFactors)
	}
	for view, l := range c.Model.Likelihoods {
		if !l.valid() {
			return errors.NewConfigurationError("Likelihoods", "unknown likelihood for view "+view, int(l))
		}
	}
	if c.Training.MaxIter <= 0 {
		return errors.NewConfigurationError("MaxIter", "must be a positive integer", c.Training.MaxIter)
	}
	if c.Training.Convergence.Tolerance() == 0 {
		return errors.NewConfigurationError("Convergence", "unknown convergence mode", int(c.Training.Convergence))
	}
	if c.Training.Backend != CPU && c.Training.Backend != Accelerated {
		return errors.NewConfigurationError("Backend", "unknown compute backend", int(c.Training.Backend))
	}
	if c.Training.CheckpointEvery < 0 {
		return errors.NewConfigurationError("CheckpointEvery", "must be non-negative", c.Training.CheckpointEvery)
	}
	if c.Training.StartELBO < 1 {
		return errors.NewConfigurationError("StartELBO", "must be at least 1", c.Training.StartELBO)
	}
	if c.Training.FreqELBO < 1 {
		return errors.NewConfigurationError("FreqELBO", "must be at least 1", c.Training.FreqELBO)
	}
	if c.Data.Alignment != Union && c.Data.Alignment != Intersection {
		return errors.NewConfigurationError("Alignment", "unknown alignment mode", int(c.Data.Alignment))
	}
	return nil
}
