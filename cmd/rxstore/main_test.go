package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "rxstore version "+rxstore.Version+"\n", out)
}

func TestRunCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
middlewares: [auto-delete]
actions:
  - type: CREATE_ITEM
    payload: {id: x}
`), 0644))

	out, err := execute(t, "run", path, "--log-level", "error")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"items":[{"id":"x"}]}`, lines[1])
	assert.JSONEq(t, `{"items":[]}`, lines[2])
}

func TestRunCommand_Errors(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err, "a scenario path is required")

	_, err = execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"), "--log-level", "error")
	assert.Error(t, err)

	_, err = execute(t, "run", "x.yaml", "--log-level", "loud")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, serveOptions{
			Addr:        addr,
			Name:        "todo",
			Middlewares: []string{"auto-delete"},
			Metrics:     true,
		}, logging.NewNop())
	}()

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/actions", "application/json",
		strings.NewReader(`{"type":"CREATE_ITEM","payload":{"id":"x"}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `rxstore_actions_total{action_type="DELETE_ITEM",store="todo"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("server did not shut down")
	}
}
