// Package gfa implements mean-field coordinate-ascent variational inference
// for a multi-view, multi-group Bayesian group factor analysis model with
// gaussian, poisson and bernoulli observation likelihoods, spike-and-slab
// and automatic relevance determination sparsity priors, and missingness-
// masked sufficient statistics.
package gfa

import (
	"context"
	"math"

	"github.com/YuminosukeSato/gofa/config"
	"github.com/YuminosukeSato/gofa/core/model"
	"github.com/YuminosukeSato/gofa/data"
	"github.com/YuminosukeSato/gofa/pkg/errors"
	"github.com/YuminosukeSato/gofa/pkg/log"
)

// Engine drives one training run. It owns its state exclusively: concurrent
// Fit calls on the same Engine fail rather than race.
type Engine struct {
	cfg       config.Config
	container *data.Container
	run       *model.StateManager
	backend   backend

	ssWeights  bool
	ssFactors  bool
	ardWeights bool
	ardFactors bool

	views   []*viewState
	factors *factorState

	elboTrace []float64
	iteration int

	lastCheckpoint *TrainingState
	checkpointFn   func(*TrainingState) error

	model *TrainedModel
}

// Option configures an Engine.
type Option func(*Engine)

// WithCheckpointFunc installs a callback invoked with every periodic
// checkpoint snapshot, e.g. to persist it. An error from the callback aborts
// the run.
func WithCheckpointFunc(fn func(*TrainingState) error) Option {
	return func(e *Engine) { e.checkpointFn = fn }
}

// NewEngine validates the configuration against the aligned container and
// resolves the per-view update strategies. All configuration and data errors
// surface here, before any fitting work.
func NewEngine(c *data.Container, cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c == nil || c.NumViews() == 0 {
		return nil, errors.NewDataShapeError("", "empty container")
	}
	for name := range cfg.Model.Likelihoods {
		if c.ViewByName(name) == nil {
			return nil, errors.NewConfigurationError("Likelihoods", "unknown view "+name, name)
		}
	}

	e := &Engine{
		cfg:        cfg,
		container:  c,
		run:        model.NewStateManager(),
		backend:    newBackend(cfg.Training.Backend),
		ssWeights:  cfg.Model.SpikeSlabWeights,
		ssFactors:  cfg.Model.SpikeSlabFactors,
		ardWeights: cfg.Model.ARDWeights.Resolve(c.NumViews() > 1),
		ardFactors: cfg.Model.ARDFactors.Resolve(c.NumGroups() > 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	// A mismatched likelihood degrades fit quality; it is logged, not
	// rejected.
	for _, v := range c.Views {
		data.CheckLikelihood(v, cfg.Model.LikelihoodFor(v.Name))
	}

	return e, nil
}

// Fit runs coordinate-ascent variational inference to termination. The
// context is checked at iteration boundaries; a cancelled run returns the
// partial model together with the context error. Exhausting MaxIter without
// meeting the tolerance is not an error: the model comes back flagged
// non-converged and a ConvergenceWarning is logged.
func (e *Engine) Fit(ctx context.Context) (*TrainedModel, error) {
	if err := e.run.Acquire(); err != nil {
		return nil, errors.WithStack(err)
	}
	defer e.run.Release()
	e.run.Reset()
	e.model = nil

	e.initState()
	e.elboTrace = nil
	e.iteration = 0
	e.refreshPseudoData()
	e.lastCheckpoint = e.snapshot()

	return e.fitLoop(ctx)
}

// Resume continues a run from a checkpointed TrainingState, e.g. after a
// cancellation or crash, keeping the iteration budget of the configuration.
func (e *Engine) Resume(ctx context.Context, ts *TrainingState) (*TrainedModel, error) {
	if err := e.run.Acquire(); err != nil {
		return nil, errors.WithStack(err)
	}
	defer e.run.Release()
	e.run.Reset()
	e.model = nil

	e.initState()
	if err := e.restore(ts); err != nil {
		return nil, err
	}
	e.refreshPseudoData()
	e.lastCheckpoint = e.snapshot()

	return e.fitLoop(ctx)
}

func (e *Engine) fitLoop(ctx context.Context) (tm *TrainedModel, err error) {
	defer errors.Recover(&err, "Engine.Fit")

	logger := log.Logger().With().Str(log.ComponentKey, "gofa.engine").Logger()
	tol := e.cfg.Training.Convergence.Tolerance()
	converged := false
	deltaELBO := math.Inf(1)

	for e.iteration < e.cfg.Training.MaxIter {
		if ctxErr := ctx.Err(); ctxErr != nil {
			partial := e.buildModel(false)
			return partial, errors.Wrap(ctxErr, "fit cancelled")
		}

		it := e.iteration + 1

		// Snapshot before the update block so that a numeric abort leaves
		// the last good state behind even without periodic checkpoints.
		pre := e.snapshot()

		if err := e.runUpdates(it); err != nil {
			e.lastCheckpoint = pre
			return nil, err
		}
		e.refreshPseudoData()
		e.iteration = it

		if it >= e.cfg.Training.StartELBO && (it-e.cfg.Training.StartELBO)%e.cfg.Training.FreqELBO == 0 {
			elbo := e.computeELBO()
			if err := errors.CheckScalar("elbo", elbo, it); err != nil {
				e.lastCheckpoint = pre
				return nil, err
			}
			if len(e.elboTrace) > 0 {
				deltaELBO = relativeDelta(elbo, e.elboTrace[len(e.elboTrace)-1])
			}
			e.elboTrace = append(e.elboTrace, elbo)

			logger.Debug().
				Str(log.OperationKey, "fit").
				Int(log.IterationKey, it).
				Float64(log.ELBOKey, elbo).
				Float64(log.DeltaELBOKey, deltaELBO).
				Msg("iteration")

			if deltaELBO < tol {
				converged = true
			}
		}

		if every := e.cfg.Training.CheckpointEvery; every > 0 && it%every == 0 {
			e.lastCheckpoint = e.snapshot()
			if e.checkpointFn != nil {
				if cbErr := e.checkpointFn(e.lastCheckpoint); cbErr != nil {
					return nil, errors.Wrap(cbErr, "checkpoint callback failed")
				}
			}
		}

		if converged {
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning(e.iteration, tol, deltaELBO))
	}

	m := e.buildModel(converged)
	e.model = m
	e.run.SetFitted()

	logger.Info().
		Str(log.OperationKey, "fit").
		Int(log.IterationKey, e.iteration).
		Bool("converged", converged).
		Float64(log.ELBOKey, finalOf(e.elboTrace)).
		Msg("training finished")

	return m, nil
}

// runUpdates executes one coordinate-ascent sweep over all parameter classes.
func (e *Engine) runUpdates(it int) error {
	if err := e.updateFactors(it); err != nil {
		return err
	}
	if err := e.updateWeights(it); err != nil {
		return err
	}
	if err := e.updateNoise(it); err != nil {
		return err
	}
	return e.updateSparsity(it)
}

// relativeDelta is the ELBO convergence criterion |elbo-prev|/|prev|, falling
// back to the absolute change when the previous value is exactly zero.
func relativeDelta(elbo, prev float64) float64 {
	denom := math.Abs(prev)
	if denom == 0 {
		denom = 1
	}
	return math.Abs(elbo-prev) / denom
}

// LastCheckpoint returns the most recent TrainingState snapshot: the latest
// periodic checkpoint, or the initial state when none was taken yet. After a
// NumericInstabilityError it holds the state of the last completed iteration.
func (e *Engine) LastCheckpoint() *TrainingState {
	return e.lastCheckpoint
}

// Model returns the trained model of the last completed run on this engine.
// It fails with a NotFittedError before the first run finishes and while a
// new run is in progress.
func (e *Engine) Model() (*TrainedModel, error) {
	if err := e.run.RequireFitted("Model"); err != nil {
		return nil, err
	}
	return e.model, nil
}

// refreshPseudoData re-linearizes the non-gaussian likelihood bounds around
// the current reconstruction and propagates the gaussian noise posterior into
// the per-entry precisions.
func (e *Engine) refreshPseudoData() {
	for _, v := range e.views {
		recon, reconSq := e.reconstruction(v)
		v.obsModel.refresh(v, recon, reconSq)
	}
}

func finalOf(trace []float64) float64 {
	if len(trace) == 0 {
		return math.NaN()
	}
	return trace[len(trace)-1]
}

// Fit aligns nothing and validates everything: it is the package-level
// convenience that builds an Engine over an existing container and runs it.
func Fit(ctx context.Context, c *data.Container, cfg config.Config, opts ...Option) (*TrainedModel, error) {
	e, err := NewEngine(c, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return e.Fit(ctx)
}
