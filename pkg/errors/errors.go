// Package errors provides the structured error and warning types used across
// GOFA. The taxonomy separates configuration and data problems (rejected
// before fitting starts), numeric failures (fatal, abort the run) and
// convergence warnings (non-fatal, reported on the trained model).
package errors

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler func(w error)
)

// SetWarningHandler installs a handler for non-fatal warnings such as
// ConvergenceWarning or a likelihood/data mismatch. The default handler is
// installed by pkg/log and emits a structured zerolog event.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// Warn dispatches a warning to the installed handler. Warnings never abort
// fitting; callers continue after raising them.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// ConvergenceWarning is raised when the ELBO tolerance was not met within
// the configured iteration budget. The run still yields a usable model,
// flagged non-converged.
type ConvergenceWarning struct {
	Iterations int
	Tolerance  float64
	DeltaELBO  float64
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("inference did not converge after %d iterations: relative ELBO change %.3e above tolerance %.3e. Consider increasing MaxIter or a faster convergence mode.",
		w.Iterations, w.DeltaELBO, w.Tolerance)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("iterations", w.Iterations).
		Float64("tolerance", w.Tolerance).
		Float64("delta_elbo", w.DeltaELBO).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a new ConvergenceWarning.
func NewConvergenceWarning(iterations int, tolerance, deltaELBO float64) *ConvergenceWarning {
	return &ConvergenceWarning{Iterations: iterations, Tolerance: tolerance, DeltaELBO: deltaELBO}
}

// LikelihoodMismatchWarning is raised when a view's data looks inconsistent
// with its declared likelihood (e.g. non-binary values under bernoulli).
// A mismatch degrades fit quality but is never an error.
type LikelihoodMismatchWarning struct {
	View       string
	Likelihood string
	Reason     string
}

func (w *LikelihoodMismatchWarning) Error() string {
	return fmt.Sprintf("view %q: data looks inconsistent with likelihood %q: %s", w.View, w.Likelihood, w.Reason)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *LikelihoodMismatchWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("view", w.View).
		Str("likelihood", w.Likelihood).
		Str("reason", w.Reason).
		Str("type", "LikelihoodMismatchWarning")
}

// NewLikelihoodMismatchWarning creates a new LikelihoodMismatchWarning.
func NewLikelihoodMismatchWarning(view, likelihood, reason string) *LikelihoodMismatchWarning {
	return &LikelihoodMismatchWarning{View: view, Likelihood: likelihood, Reason: reason}
}

// ===========================================================================
//
//	Pre-fit errors: configuration and data
//
// ===========================================================================

// ConfigurationError reports an out-of-range or inconsistent option value.
// It is always raised before any fitting work starts.
type ConfigurationError struct {
	Option string
	Reason string
	Value  interface{}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("gofa: invalid option %q: %s (got: %v)", e.Option, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("option", e.Option).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(option, reason string, value interface{}) error {
	err := &ConfigurationError{Option: option, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// DataShapeError reports a malformed view: duplicated feature identifiers,
// a dimension mismatch between matrix and identifiers, or an empty matrix.
type DataShapeError struct {
	View   string
	Reason string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("gofa: view %q: %s", e.View, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *DataShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("view", e.View).
		Str("reason", e.Reason).
		Str("type", "DataShapeError")
}

// NewDataShapeError creates a DataShapeError with a stack trace.
func NewDataShapeError(view, reason string) error {
	err := &DataShapeError{View: view, Reason: reason}
	return errors.WithStack(err)
}

// SampleAlignmentError reports that the requested alignment of samples
// across views produced an empty sample set.
type SampleAlignmentError struct {
	Alignment string
	Views     []string
}

func (e *SampleAlignmentError) Error() string {
	return fmt.Sprintf("gofa: %s of samples across views %v is empty", e.Alignment, e.Views)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *SampleAlignmentError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("alignment", e.Alignment).
		Strs("views", e.Views).
		Str("type", "SampleAlignmentError")
}

// NewSampleAlignmentError creates a SampleAlignmentError with a stack trace.
func NewSampleAlignmentError(alignment string, views []string) error {
	err := &SampleAlignmentError{Alignment: alignment, Views: views}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Fatal runtime errors
//
// ===========================================================================

// NumericInstabilityError reports a collapsed posterior: a NaN/Inf value or a
// non-positive variance or precision. It names the parameter class (e.g.
// "factors", "weights/rna", "noise/methylation") and the iteration at which
// the collapse was detected. The engine surfaces the last good checkpoint
// alongside this error.
type NumericInstabilityError struct {
	ParameterClass string
	Iteration      int
	Values         []float64
}

func (e *NumericInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("gofa: numeric instability in %s at iteration %d. Values: [%s]",
		e.ParameterClass, e.Iteration, valStr)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NumericInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("parameter_class", e.ParameterClass).
		Int("iteration", e.Iteration).
		Floats64("values", e.Values).
		Str("type", "NumericInstabilityError")
}

// NewNumericInstabilityError creates a NumericInstabilityError with a stack trace.
func NewNumericInstabilityError(parameterClass string, iteration int, values []float64) error {
	err := &NumericInstabilityError{ParameterClass: parameterClass, Iteration: iteration, Values: values}
	return errors.WithStack(err)
}

// PersistenceError reports a corrupt or version-mismatched model artifact.
// Loading never returns a partially populated model.
type PersistenceError struct {
	Op     string
	Reason string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gofa: %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("gofa: %s: %s", e.Op, e.Reason)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *PersistenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("op", e.Op).
		Str("reason", e.Reason).
		Str("type", "PersistenceError")
	if e.Err != nil {
		event.AnErr("cause", e.Err)
	}
}

// NewPersistenceError creates a PersistenceError with a stack trace.
func NewPersistenceError(op, reason string, cause error) error {
	err := &PersistenceError{Op: op, Reason: reason, Err: cause}
	return errors.WithStack(err)
}

// NotFittedError is returned when a query requires a fitted model.
type NotFittedError struct {
	Method string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("gofa: model is not fitted yet. Call Fit() before using %s()", e.Method)
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(method string) error {
	err := &NotFittedError{Method: method}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As reports whether err can be assigned to target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates an error with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Mark tags err so that Is(err, reference) holds, keeping err's own type
// visible to As. Used to attach sentinel causes to structured errors.
func Mark(err, reference error) error {
	return errors.Mark(err, reference)
}

// ===========================================================================
//
//	Common sentinel errors
//
// ===========================================================================

var (
	// ErrEmptyData is returned when an empty matrix is passed.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a precision matrix cannot be factorized.
	ErrSingularMatrix = New("singular matrix")
)
