// Package model provides run-state management shared by GOFA's engine and
// trained-model types.
package model

import (
	"fmt"
	"sync"

	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// StateManager tracks whether a model has been fitted and guards exclusive
// ownership of a training run. The engine owns its TrainingState exclusively:
// two concurrent fit invocations on the same engine are a caller bug, and
// Acquire turns that bug into an error instead of a data race.
type StateManager struct {
	Fitted bool // public for gob encoding
	mu     sync.RWMutex

	running bool
}

// NewStateManager creates a new StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
}

// Reset clears the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
}

// RequireFitted returns a NotFittedError naming the guarded method if the
// model has not been fitted.
func (s *StateManager) RequireFitted(method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(method)
	}
	return nil
}

// Acquire claims exclusive use of the training state for one fit run.
// It fails if another run is already in progress.
func (s *StateManager) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("a fit run is already in progress on this engine")
	}
	s.running = true
	return nil
}

// Release returns the training state after a fit run ends.
func (s *StateManager) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}
