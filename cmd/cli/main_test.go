package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_HelpExitsCleanly(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(out, []string{"-h"})
	require.NoError(t, err, "run() should return a nil error when help is requested")
	require.Contains(t, out.String(), "Usage:", "expected help text to be printed to the output buffer")
}

func TestRun_InvalidFlagReturnsExitError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(out, []string{"-no-such-flag"})
	require.Error(t, err)
}

func TestRun_StartupPanicIsRecovered(t *testing.T) {
	t.Parallel()

	// A charts path that does not exist makes app.NewApp panic during
	// registry construction; run must surface that as an error.
	out := &bytes.Buffer{}
	args := []string{
		"-bucket-url", "http://localhost:0",
		"-subgraph-url", "http://localhost:0",
		"-charts", filepath.Join(t.TempDir(), "missing"),
	}

	err := run(out, args)
	require.Error(t, err)
	require.Contains(t, err.Error(), "application startup panicked")
}
