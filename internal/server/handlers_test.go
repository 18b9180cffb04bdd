package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scriptdeck/scriptdeck/internal/config"
	"github.com/scriptdeck/scriptdeck/internal/history"
	"github.com/scriptdeck/scriptdeck/internal/launch"
	"github.com/scriptdeck/scriptdeck/internal/mux"
)

const sampleScript = `
import argparse

parser = argparse.ArgumentParser()
parser.add_argument('--input', type=str, required=True, help='Input file')
parser.add_argument('--count', type=int, default=1)
parser.add_argument('--verbose', action='store_true')
`

type testEnv struct {
	server  *Server
	backend *mux.Double
	store   *config.Store
	history *history.Store
	script  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dataDir := t.TempDir()
	store, err := config.Open(dataDir)
	require.NoError(t, err)

	hist, err := history.Open(filepath.Join(store.HistoryDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	backend := mux.NewDouble()
	launcher := launch.New(backend, store.ScratchDir(), zap.NewNop())

	cfg := config.DefaultServer()
	cfg.DataDir = dataDir
	srv := New(cfg, store, hist, launcher, zap.NewNop())

	script := filepath.Join(t.TempDir(), "train.py")
	require.NoError(t, os.WriteFile(script, []byte(sampleScript), 0o644))

	return &testEnv{server: srv, backend: backend, store: store, history: hist, script: script}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if raw, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(raw))
	} else {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestParseScript(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/parse-script",
		map[string]any{"script_path": env.script})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	args := body["args"].([]any)
	assert.Len(t, args, 3)
	first := args[0].(map[string]any)
	assert.Equal(t, "--input", first["name"])
	assert.Equal(t, true, first["required"])
}

func TestParseScript_MissingPath(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodPost, "/api/parse-script",
		map[string]any{"script_path": "/nope/train.py"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseScript_RejectsNonPython(t *testing.T) {
	env := newTestEnv(t)
	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hi"), 0o644))

	w := env.request(t, http.MethodPost, "/api/parse-script",
		map[string]any{"script_path": txt})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Python script")
}

func TestRunCommand_Success(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/run-command",
		`{"script_path": "`+env.script+`", "args": {"input": "a.txt", "count": 5}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], `"training"`)
	assert.Equal(t, 1, env.backend.SessionCount())

	// The launch was recorded with the composed command, supplied
	// order intact.
	records, err := env.history.Recent(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "python "+env.script+" --input a.txt --count 5", records[0].Command)
}

func TestRunCommand_MissingRequiredArgument(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/run-command",
		map[string]any{"script_path": env.script, "args": map[string]any{"count": 5}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	assert.Contains(t, body["error"], "--input")
	// Nothing was launched.
	assert.Equal(t, 0, env.backend.SessionCount())
}

func TestRunCommand_RequiresScriptPath(t *testing.T) {
	env := newTestEnv(t)
	w := env.request(t, http.MethodPost, "/api/run-command", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunCommand_UsesConfiguredPreCommand(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Update(config.Settings{PreCommand: "source venv/bin/activate"}))

	w := env.request(t, http.MethodPost, "/api/run-command",
		`{"script_path": "`+env.script+`", "args": {"input": "a.txt"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	records, err := env.history.Recent(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Command, "source venv/bin/activate && ")
}

func TestRunCommand_ExplicitEmptyPreCommandSuppressesDefault(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Update(config.Settings{PreCommand: "source venv/bin/activate"}))

	w := env.request(t, http.MethodPost, "/api/run-command",
		`{"script_path": "`+env.script+`", "pre_command": "", "args": {"input": "a.txt"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	records, err := env.history.Recent(t.Context())
	require.NoError(t, err)
	assert.NotContains(t, records[0].Command, "venv")
}

func TestRunCommand_WritesAuditLogWhenRequested(t *testing.T) {
	env := newTestEnv(t)
	logDir := t.TempDir()

	w := env.request(t, http.MethodPost, "/api/run-command", map[string]any{
		"script_path": env.script,
		"args":        map[string]any{"input": "a.txt"},
		"save_logs":   true,
		"log_dir":     logDir,
	})
	require.Equal(t, http.StatusOK, w.Code)

	data, err := os.ReadFile(filepath.Join(logDir, "command_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Script: "+env.script)
}

func TestRunCommand_NoAuditLogByDefault(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/run-command",
		map[string]any{"script_path": env.script, "args": map[string]any{"input": "a.txt"}})
	require.Equal(t, http.StatusOK, w.Code)

	_, err := os.Stat(filepath.Join(env.store.DefaultLogDir(), "command_log.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/validate",
		map[string]any{"script_path": env.script, "args": map[string]any{"input": "a.txt"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["valid"])

	w = env.request(t, http.MethodPost, "/api/validate",
		map[string]any{"script_path": env.script, "args": map[string]any{}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["missing"], "--input")
}

func TestValidate_ExpandsHomeRelativePath(t *testing.T) {
	env := newTestEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "train.py"), []byte(sampleScript), 0o644))

	w := env.request(t, http.MethodPost, "/api/validate",
		map[string]any{"script_path": "~/train.py", "args": map[string]any{"input": "a.txt"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decodeBody(t, w)["valid"])
}

func TestSettings_RoundTrip(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/config", map[string]any{
		"pre_command": "module load cuda",
		"log_dir":     "/logs",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "module load cuda", body["pre_command"])
	assert.Equal(t, "/logs", body["log_dir"])
	assert.NotEmpty(t, body["default_log_dir"])
}

func TestNamedConfigs_Endpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/api/configs", map[string]any{
		"name":        "gpu box",
		"pre_command": "module load cuda",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gpu_box", decodeBody(t, w)["name"])

	w = env.request(t, http.MethodGet, "/api/configs/gpu_box", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodGet, "/api/configs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["configs"], 1)

	w = env.request(t, http.MethodDelete, "/api/configs?name=gpu_box", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodGet, "/api/configs/gpu_box", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistory_Endpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["history"])

	env.request(t, http.MethodPost, "/api/run-command",
		map[string]any{"script_path": env.script, "args": map[string]any{"input": "a.txt"}})

	w = env.request(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["history"], 1)
}

func TestFavorites_Endpoints(t *testing.T) {
	env := newTestEnv(t)
	target := t.TempDir()

	w := env.request(t, http.MethodPost, "/api/favorites", map[string]any{"path": target})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodGet, "/api/favorites", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w)["paths"], target)

	w = env.request(t, http.MethodDelete, "/api/favorites?path="+target, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(t, http.MethodDelete, "/api/favorites?path="+target, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBrowse_Endpoint(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.py"), []byte("x"), 0o644))

	w := env.request(t, http.MethodGet, "/api/browse?path="+dir, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, dir, body["current_path"])
	assert.Len(t, body["files"], 1)
}

func TestDecodeOrderedArgs_PreservesOrder(t *testing.T) {
	raw := json.RawMessage(`{"zebra": 1, "alpha": "two", "flag": true, "skip": null}`)
	args, argsMap, err := decodeOrderedArgs(raw)
	require.NoError(t, err)

	require.Len(t, args, 4)
	assert.Equal(t, "zebra", args[0].Name)
	assert.Equal(t, "alpha", args[1].Name)
	assert.Equal(t, "flag", args[2].Name)
	assert.Equal(t, json.Number("1"), args[0].Value)
	assert.Equal(t, true, args[2].Value)
	assert.Len(t, argsMap, 4)
}

func TestDecodeOrderedArgs_RejectsNonObject(t *testing.T) {
	_, _, err := decodeOrderedArgs(json.RawMessage(`[1, 2]`))
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDecodeOrderedArgs_EmptyAndNull(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(`null`)} {
		args, argsMap, err := decodeOrderedArgs(raw)
		require.NoError(t, err)
		assert.Empty(t, args)
		assert.NotNil(t, argsMap)
	}
}
