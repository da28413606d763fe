package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureLogs_RecordsAndRestores(t *testing.T) {
	before := slog.Default()

	t.Run("capture", func(t *testing.T) {
		logs := CaptureLogs(t)

		slog.Info("hello", "tenant_id", "t1")
		slog.Debug("details")

		entry := logs.Find("hello")
		require.NotNil(t, entry)
		assert.Equal(t, "t1", entry["tenant_id"])
		assert.True(t, logs.Contains("details"))
		assert.False(t, logs.Contains("missing"))
		assert.NotSame(t, before, slog.Default())
	})

	assert.Same(t, before, slog.Default(), "default logger must be restored after the subtest")
}

func TestCaptureLogs_IsolatedBetweenTests(t *testing.T) {
	var first *LogCapture
	t.Run("first", func(t *testing.T) {
		first = CaptureLogs(t)
		slog.Info("from first")
	})

	t.Run("second", func(t *testing.T) {
		second := CaptureLogs(t)
		slog.Info("from second")

		assert.False(t, second.Contains("from first"))
	})

	assert.False(t, first.Contains("from second"))
}
