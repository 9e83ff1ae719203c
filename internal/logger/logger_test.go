package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WritesAtConfiguredLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(Options{Writer: &buf, Level: "debug", Component: "test"})
	require.NoError(t, err)

	log.Debug("visible", "key", "value")
	out := buf.String()
	require.Contains(t, out, "visible")
	require.Contains(t, out, "component")
	require.Contains(t, out, "value")
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(Options{Writer: &buf, Level: "warn"})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}

func TestWith_CarriesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(Options{Writer: &buf, Level: "info"})
	require.NoError(t, err)

	log.With("stage", 3).Info("running")
	require.Contains(t, buf.String(), "stage")
}

func TestError_AppendsError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(Options{Writer: &buf, Level: "info"})
	require.NoError(t, err)

	log.Error(errTest, "failed")
	require.Contains(t, buf.String(), "test failure")
}

func TestNop_IsSilentAndSafe(t *testing.T) {
	t.Parallel()

	log := Nop()
	log.Debug("a")
	log.Info("b")
	log.Warn("c")
	log.Error(errTest, "d")
	log.With("k", "v").Info("e")

	var nilLogger *Logger
	nilLogger.Info("no panic")
}

var errTest = errorString("test failure")

type errorString string

func (e errorString) Error() string { return string(e) }
