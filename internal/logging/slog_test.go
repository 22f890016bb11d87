package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newBufLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "k", 1)
	log.Info(ctx, "inf", "k", 2)
	log.Warn(ctx, "wrn", "k", 3)
	log.Error(ctx, "err", "k", 4)

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "msg=inf")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "msg=err")
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newBufLogger(t)

	child := log.With("component", "syncer")
	require.NotNil(t, child)
	child.Info(context.Background(), "tick")

	assert.Contains(t, buf.String(), "component=syncer")
}
