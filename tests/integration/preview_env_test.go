package integration

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/smeltjs/smelt/internal/config"
	"github.com/smeltjs/smelt/internal/preview"
)

// previewEnv bundles a listening preview server with the pieces tests need
// to talk to it over a real socket.
type previewEnv struct {
	srv  *preview.Server
	base string
	dist string
	port int
}

// startPreview builds and starts a preview server over a freshly seeded dist
// directory. mutate runs on the configuration before the server is built, so
// tests can toggle TLS, headers, or replace the dist content.
func startPreview(t *testing.T, mutate func(*config.Config)) *previewEnv {
	t.Helper()

	dist := t.TempDir()
	writeDistFile(t, dist, "index.html", "<html>shell</html>")
	writeDistFile(t, dist, "assets/app.js", "export const ready = true")

	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Preview.DistDir = dist
	cfg.Preview.Host = "127.0.0.1"
	cfg.Preview.Port = freePort(t)
	if mutate != nil {
		mutate(cfg)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv, err := preview.New(cfg, logger)
	if err != nil {
		t.Fatalf("create preview server: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	scheme := "http"
	if cfg.EffectiveHTTPS().Enabled {
		scheme = "https"
	}
	return &previewEnv{
		srv:  srv,
		base: fmt.Sprintf("%s://127.0.0.1:%d", scheme, cfg.Preview.Port),
		dist: dist,
		port: cfg.Preview.Port,
	}
}

func writeDistFile(t *testing.T, dist, rel, content string) {
	t.Helper()
	path := filepath.Join(dist, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// freePort reserves an OS-assigned loopback port and releases it for the
// server under test to bind.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// get issues a real HTTP request against the running server.
func get(t *testing.T, url string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", url, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}
