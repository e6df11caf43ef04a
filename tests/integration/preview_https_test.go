package integration

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/smeltjs/smelt/internal/config"
)

func TestHTTPSWithGeneratedCertificate(t *testing.T) {
	env := startPreview(t, func(cfg *config.Config) {
		cfg.Preview.Https = config.HTTPSValue{Enabled: true, Configured: true}
	})

	client := &http.Client{
		Transport: &http.Transport{
			// Self-signed development certificate; trust is not the
			// subject under test.
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	resp, err := client.Get(env.base + "/")
	if err != nil {
		t.Fatalf("https request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "<html>shell</html>" {
		t.Fatalf("body = %q", body)
	}

	urls := env.srv.URLs()
	if len(urls.Local) == 0 || !strings.HasPrefix(urls.Local[0], "https://") {
		t.Fatalf("resolved URLs should use the https scheme, got %v", urls.Local)
	}
}

func TestHTTPSHandshakePresentsDevCertificate(t *testing.T) {
	env := startPreview(t, func(cfg *config.Config) {
		cfg.Preview.Https = config.HTTPSValue{Enabled: true, Configured: true}
	})

	conn, err := tls.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", env.port), &tls.Config{
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("tls dial: %v", err)
	}
	defer conn.Close()

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		t.Fatalf("server presented no certificate")
	}
	leaf := state.PeerCertificates[0]
	if err := leaf.VerifyHostname("localhost"); err != nil {
		t.Fatalf("development certificate should cover localhost: %v", err)
	}
	if state.Version < tls.VersionTLS12 {
		t.Fatalf("negotiated TLS %x, want at least 1.2", state.Version)
	}
}

func TestServerHTTPSBlockAppliesToPreview(t *testing.T) {
	env := startPreview(t, func(cfg *config.Config) {
		cfg.Server.Https = config.HTTPSValue{Enabled: true, Configured: true}
	})

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	resp, err := client.Get(env.base + "/")
	if err != nil {
		t.Fatalf("https request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	readBody(t, resp)
}

func TestPreviewHTTPSFalseOverridesServerBlock(t *testing.T) {
	env := startPreview(t, func(cfg *config.Config) {
		cfg.Server.Https = config.HTTPSValue{Enabled: true, Configured: true}
		cfg.Preview.Https = config.HTTPSValue{Enabled: false, Configured: true}
	})

	// The explicit Preview disable wins, so plain HTTP must answer.
	resp := get(t, env.base+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 over plain http", resp.StatusCode)
	}
	readBody(t, resp)
}
