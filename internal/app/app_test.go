package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCloser struct {
	closed bool
	err    error
}

func (f *fakeCloser) Close() error {
	f.closed = true
	return f.err
}

func TestCloseAll_ClosesEveryClientDespiteErrors(t *testing.T) {
	t.Parallel()

	bucketErr := errors.New("bucket connection reset")
	bucket := &fakeCloser{err: bucketErr}
	subgraph := &fakeCloser{}

	err := closeAll(bucket, subgraph)
	require.ErrorIs(t, err, bucketErr)
	require.True(t, bucket.closed)
	require.True(t, subgraph.closed, "later clients must still be closed after an earlier failure")
}

func TestCloseAll_AllHealthyIsNil(t *testing.T) {
	t.Parallel()

	a, b := &fakeCloser{}, &fakeCloser{}
	require.NoError(t, closeAll(a, b))
	require.True(t, a.closed)
	require.True(t, b.closed)
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)
	logger.Info("dropped below the configured level")
	logger.Warn("kept", "chart", "fertilizer")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "kept", record["msg"])
	require.Equal(t, "fertilizer", record["chart"])
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger("chatty", "text", &buf)
	require.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
