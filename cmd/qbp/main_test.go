package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qubitpage/qbp/internal/config"
	"github.com/qubitpage/qbp/internal/secrets"
)

type seen struct {
	mu    sync.Mutex
	paths []string
	last  map[string]any
}

func (s *seen) record(r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, r.URL.Path)
	s.last = body
}

func (s *seen) body() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func newService(t *testing.T, replies map[string]string) (*httptest.Server, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		reply, ok := replies[r.URL.Path]
		if !ok {
			reply = `{"success":true}`
		}
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

// isolate points config, secrets and history at a temp dir.
func isolate(t *testing.T, baseURL string, history bool) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("QBP_IBM_TOKEN", "")

	cfgPath := filepath.Join(dir, "config.toml")
	t.Setenv("QBP_CONFIG", cfgPath)
	toml := "[backend]\nbase_url = \"" + baseURL + "\"\n" +
		"[history]\nenabled = " + map[bool]string{true: "true", false: "false"}[history] + "\n" +
		"path = \"" + filepath.Join(dir, "history.db") + "\"\n" +
		"[log]\npath = \"\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(toml), 0o600))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSimulatePrintsSortedHistogram(t *testing.T) {
	srv, s := newService(t, map[string]string{
		"/api/quantum/simulate": `{"success":true,"data":{"counts":{"000":512,"111":1536},"shots":2048}}`,
	})
	isolate(t, srv.URL, false)

	out, err := run(t, "simulate", "ghz3", "--shots", "2048")
	require.NoError(t, err)
	require.Equal(t, "ghz3", s.body()["type"])
	params := s.body()["params"].(map[string]any)
	require.EqualValues(t, 2048, params["shots"])

	first := strings.Index(out, "|111⟩")
	second := strings.Index(out, "|000⟩")
	require.True(t, first >= 0 && second > first, "expected 111 above 000:\n%s", out)
	require.Contains(t, out, "75.00%")
}

func TestSimulateRemoteFailure(t *testing.T) {
	srv, _ := newService(t, map[string]string{
		"/api/quantum/simulate": `{"success":false,"error":"backend offline"}`,
	})
	isolate(t, srv.URL, false)

	_, err := run(t, "simulate")
	require.Error(t, err)
	require.Contains(t, err.Error(), "backend offline")
}

func TestCompileSourceFile(t *testing.T) {
	srv, s := newService(t, nil)
	dir := isolate(t, srv.URL, false)
	t.Setenv("QBP_IBM_TOKEN", "tok")
	src := filepath.Join(dir, "bell.qpl")
	require.NoError(t, os.WriteFile(src, []byte("H 0\nCX 0 1"), 0o600))

	out, err := run(t, "compile", src)
	require.NoError(t, err)
	require.Equal(t, "Compiled ✓\n", out)

	body := s.body()
	require.Equal(t, "H 0\nCX 0 1", body["source"])
	require.Equal(t, "simulator", body["backend"])
	require.Equal(t, "tok", body["ibm_token"])
}

func TestCompileUnknownWidgetSendsNothing(t *testing.T) {
	srv, s := newService(t, nil)
	dir := isolate(t, srv.URL, false)
	pagePath := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(pagePath, []byte(`<div class="qbp-circuit" data-id="bell"></div>`), 0o600))

	_, err := run(t, "compile", "--page", pagePath, "--widget", "bel")
	require.Error(t, err)
	require.Contains(t, err.Error(), `did you mean "bell"`)
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Empty(t, s.paths)
}

func TestRenderMountsIntoPage(t *testing.T) {
	dir := isolate(t, "http://127.0.0.1:0", false)
	pagePath := filepath.Join(dir, "page.html")
	resultPath := filepath.Join(dir, "result.json")
	require.NoError(t, os.WriteFile(pagePath, []byte(`<html><body><div id="out"></div></body></html>`), 0o600))
	require.NoError(t, os.WriteFile(resultPath, []byte(`{"counts":{"00":512,"11":512},"shots":1024}`), 0o600))

	out, err := run(t, "render", pagePath, "out", resultPath)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(out, `class="qbp-result-row"`))
	require.Contains(t, out, "50.0%")

	_, err = run(t, "render", pagePath, "missing", resultPath)
	require.Error(t, err)
}

func TestHistoryListsRecordedExchanges(t *testing.T) {
	srv, _ := newService(t, map[string]string{
		"/api/crypto/qrng": `{"random_hex":"ff","random_int":255}`,
	})
	isolate(t, srv.URL, true)

	out, err := run(t, "qrng", "--bits", "8")
	require.NoError(t, err)
	require.Equal(t, "hex ff\nint 255\n", out)

	out, err = run(t, "history")
	require.NoError(t, err)
	require.Contains(t, out, "qrng")
	require.Contains(t, strings.ToLower(out), "outcome")
}

func TestHistoryDisabled(t *testing.T) {
	isolate(t, "http://127.0.0.1:0", false)
	_, err := run(t, "history")
	require.Error(t, err)
}

func TestTokenCommandsAndResolution(t *testing.T) {
	isolate(t, "http://127.0.0.1:0", false)
	cfg := config.Config{Backend: config.BackendConfig{TokenEnv: "QBP_IBM_TOKEN", Token: "from-config"}}
	require.Equal(t, "from-config", resolveToken(cfg))

	_, err := run(t, "token", "set", "stored")
	require.NoError(t, err)
	got, err := secrets.FetchToken(ibmTokenName)
	require.NoError(t, err)
	require.Equal(t, "stored", got)
	require.Equal(t, "stored", resolveToken(cfg))

	t.Setenv("QBP_IBM_TOKEN", "from-env")
	require.Equal(t, "from-env", resolveToken(cfg))

	_, err = run(t, "token", "delete")
	require.NoError(t, err)
	_, err = secrets.FetchToken(ibmTokenName)
	require.ErrorIs(t, err, secrets.ErrNoToken)
}

func TestErrorsAreLeftToMain(t *testing.T) {
	isolate(t, "http://127.0.0.1:0", false)
	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"history"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
	require.Empty(t, stderr.String())
}
