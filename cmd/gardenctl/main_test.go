package main

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/gardenctl/internal/config"
	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestRouteFlagsBuildOperation(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(modelPath, []byte(`{"namespace":"ns","system":"echo","system_version":"1.0.0","command":"say"}`), 0o600))

	flags := routeFlags{
		opType:    "request_create",
		args:      []string{"a"},
		kwargs:    []string{"mode=fast"},
		modelType: "Request",
		modelFile: modelPath,
	}
	op, err := flags.operation()
	require.NoError(t, err)
	require.Equal(t, model.RequestCreate, op.OperationType)
	require.Equal(t, []any{"a"}, op.Args)
	require.Equal(t, "fast", op.Kwargs["mode"])

	req, ok := op.Model.(*model.Request)
	require.True(t, ok, "model is %T", op.Model)
	require.Equal(t, "ns:echo-1.0.0", req.SystemKey())
}

func TestRouteFlagsRejectBadInput(t *testing.T) {
	testlog.Start(t)

	_, err := routeFlags{opType: "NOPE"}.operation()
	require.Error(t, err)

	_, err = routeFlags{opType: "SYSTEM_READ", kwargs: []string{"novalue"}}.operation()
	require.Error(t, err)

	_, err = routeFlags{opType: "SYSTEM_CREATE", modelFile: "system.json"}.operation()
	require.Error(t, err)
}

func TestRouteCommandPrintsResult(t *testing.T) {
	testlog.Start(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":["ns"]}`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"route", "--type", "NAMESPACE_READ_ALL", "--host", host, "--port", port})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), `"ns"`)
}

func TestConfigInitWritesLoadableTemplate(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "garden.toml")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "init", "--out", path, "--name", "child1"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	require.True(t, strings.Contains(out.String(), path))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "child1", cfg.Name)
}
