package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/gofa/pkg/errors"
)

func TestStateManagerFitted(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("Factors")
	require.Error(t, err)
	var nfe *errors.NotFittedError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, "Factors", nfe.Method)

	s.SetFitted()
	assert.True(t, s.IsFitted())
	require.NoError(t, s.RequireFitted("Factors"))

	s.Reset()
	assert.False(t, s.IsFitted())
	assert.Error(t, s.RequireFitted("Factors"))
}

func TestStateManagerAcquireRelease(t *testing.T) {
	s := NewStateManager()
	require.NoError(t, s.Acquire())
	assert.Error(t, s.Acquire(), "second acquire while running must fail")

	s.Release()
	require.NoError(t, s.Acquire())
	s.Release()
}
