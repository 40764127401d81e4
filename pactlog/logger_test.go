package pactlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesLogfmtWithLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Info("orchestrator started", "chains", 20)

	out := buf.String()
	require.Contains(t, out, "level=info")
	require.Contains(t, out, `msg="orchestrator started"`)
	require.Contains(t, out, "chains=20")
}

func TestTraceAddsLvlTraceField(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Trace("scheduler waking")

	out := buf.String()
	require.Contains(t, out, "lvl=trace")
}

func TestWithAppendsPersistentFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).With("component", "proxy")

	l.Warn("downstream 5xx")

	out := buf.String()
	require.Contains(t, out, "component=proxy")
	require.Contains(t, out, `msg="downstream 5xx"`)
}

func TestNopLoggerWritesNothing(t *testing.T) {
	l := NewNop()
	require.NotPanics(t, func() {
		l.Info("ignored")
		l.Error("also ignored")
	})
}

func TestNewDefaultsToStderrWhenWriterNil(t *testing.T) {
	l := New(nil)
	require.NotNil(t, l)
}

func TestEachLevelEmitsDistinctLevelField(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "level=debug")
	require.Contains(t, lines[1], "level=info")
	require.Contains(t, lines[2], "level=warn")
	require.Contains(t, lines[3], "level=error")
}
