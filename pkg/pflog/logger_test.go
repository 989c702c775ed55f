package pflog_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/gridflow/pkg/pflog"
)

func TestLoggerWritesAtOrAboveMinimumSeverity(t *testing.T) {
	var buf bytes.Buffer
	l := pflog.New(&buf, pflog.Warn)

	l.Infof("should not print", nil)
	l.Warnf("island did not converge", map[string]any{"island": 2})

	out := buf.String()
	require.NotContains(t, out, "should not print")
	require.Contains(t, out, "island did not converge")
	require.Contains(t, out, "island=2")
}

func TestLoggerEntriesRecordsEverythingRegardlessOfMinimum(t *testing.T) {
	l := pflog.New(nil, pflog.Error)
	l.Debugf("debug detail", nil)
	l.Infof("info detail", nil)

	entries := l.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, pflog.Debug, entries[0].Level)
	require.Equal(t, pflog.Info, entries[1].Level)
}

func TestLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", pflog.Debug.String())
	require.Equal(t, "INFO", pflog.Info.String())
	require.Equal(t, "WARN", pflog.Warn.String())
	require.Equal(t, "ERROR", pflog.Error.String())
}
