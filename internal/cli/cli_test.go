package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydverify/backend/internal/assessment"
)

const legacyAnswer = "class User(BaseModel):\n    class Config:\n        extra = 'forbid'\n\nprint(user.dict())\n"

type env struct {
	configPath string
	cacheDir   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(registry.Close)

	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	configPath := filepath.Join(dir, "config.yaml")

	content := fmt.Sprintf(`cache:
  dir: %s
registry:
  url: %s/pypi
  changelogUrl: %s/releases
  docsUrl: %s/docs
  timeoutSec: 2
  maxAttempts: 1
logging:
  level: error
  format: console
  outputPath: stderr
`, cacheDir, registry.URL, registry.URL, registry.URL)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	return env{configPath: configPath, cacheDir: cacheDir}
}

func (e env) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	cmd.SetIn(strings.NewReader(stdin))

	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailed, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitFailed, ExitCode(fmt.Errorf("%w: outdated", errNotVerified)))
	assert.Equal(t, ExitConfig, ExitCode(fmt.Errorf("%w: bad yaml", ErrConfig)))
	assert.Equal(t, ExitConfig, ExitCode(fmt.Errorf("%w: read-only", assessment.ErrStorageUnwritable)))
}

func TestVerifyCommandJSON(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, legacyAnswer, "verify", "-q", "How do I configure a model?")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "How do I configure a model?", got["query"])
	assert.Equal(t, "outdated", got["verification_result"].(map[string]any)["accuracy_level"])
	assert.Contains(t, got["enhanced_response"], "user.model_dump()")
	assert.Equal(t, true, got["improvement_needed"])
}

func TestVerifyCommandTextAndStrict(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, legacyAnswer, "verify", "--text", "--strict")
	require.Error(t, err)
	assert.ErrorIs(t, err, errNotVerified)
	assert.Equal(t, ExitFailed, ExitCode(err))
	assert.Contains(t, out, "model_config = ConfigDict(")

	out, err = e.run(t, "Use model_validate to parse input.", "verify", "--text", "--strict")
	require.NoError(t, err)
	assert.Equal(t, "Use model_validate to parse input.", out)
}

func TestVerifyCommandFromFile(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "answer.md")
	require.NoError(t, os.WriteFile(path, []byte("Call user.dict() to export."), 0644))

	out, err := e.run(t, "", "verify", "--text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "user.model_dump()")
}

func TestVerifyCommandRejectsEmptyInput(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "   \n", "verify")
	assert.Error(t, err)
}

func TestAssessCommandWritesReport(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "", "assess")
	require.NoError(t, err)
	assert.Contains(t, out, "Assessed 4 responses (sample_responses)")
	assert.Contains(t, out, "v1_syntax_usage: 3")
	assert.Contains(t, out, "Report written to")

	reports, err := filepath.Glob(filepath.Join(e.cacheDir, "reports", "accuracy_report_*.json"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestAssessCommandBatchFile(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "drafts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"response":"Use model_dump to export."}]`), 0644))

	out, err := e.run(t, "", "assess", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Assessed 1 responses (drafts)")
}

func TestAssessCommandUnwritableStorage(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.cacheDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(e.cacheDir, "reports"), []byte("not a dir"), 0644))

	_, err := e.run(t, "", "assess")
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
}

func TestUpdateFallsBackAndStatusReportsIt(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "", "update")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, true, res["used_fallback"])
	assert.Equal(t, float64(5), res["entries_count"])

	out, err = e.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Tracked version:  2.11.0")
	assert.Contains(t, out, "Entries:          5")
	assert.Contains(t, out, "Updates logged:   1")
}

func TestComprehensiveUpdate(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "", "update", "--comprehensive")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, false, res["version_changed"])
	assert.Equal(t, false, res["docs_refreshed"])
}

func TestMissingConfigFileIsConfigError(t *testing.T) {
	cmd := NewRootCmd("test")
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "status"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
}
