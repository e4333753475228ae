package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogBeforeInitIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("no sink yet", zap.String("k", "v"))
		GetLogger().Warn("still fine")
	})
}

func TestInitJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init("info", "json", path))
	t.Cleanup(func() { Log = zap.NewNop() })

	Debug("filtered out")
	Named("updater").Info("Knowledge base update completed", zap.Int("entries", 5))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "updater", rec["component"])
	assert.Equal(t, ServiceName, rec["service"])
	assert.Equal(t, float64(5), rec["entries"])
}

func TestInitRejectsBadInput(t *testing.T) {
	assert.Error(t, Init("loud", "json", "stdout"))
	assert.Error(t, Init("info", "xml", "stdout"))
	assert.Error(t, Init("info", "json", filepath.Join(t.TempDir(), "missing", "app.log")))
}
