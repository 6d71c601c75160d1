package log

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	goferrors "github.com/YuminosukeSato/gofa/pkg/errors"
)

func TestSetOutputAndLevel(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(zerolog.InfoLevel)

	l := Logger()
	l.Info().Str(OperationKey, "fit").Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), `"op":"fit"`)

	buf.Reset()
	SetLevel(zerolog.ErrorLevel)
	l = Logger()
	l.Info().Msg("suppressed")
	assert.Empty(t, buf.String())
}

func TestWarningsRouteThroughLogger(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(zerolog.WarnLevel)

	goferrors.Warn(goferrors.NewConvergenceWarning(100, 1e-2, 5e-2))

	out := buf.String()
	assert.Contains(t, out, "ConvergenceWarning")
	assert.Contains(t, out, `"iterations":100`)
}
