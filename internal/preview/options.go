package preview

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/smeltjs/smelt/internal/config"
)

// Defaults applied when neither the preview block nor the generic server
// block supplies a value.
const (
	DefaultHost = "localhost"
	DefaultPort = 1911
)

// Options is the fully resolved server configuration. Built once by
// resolveOptions and treated as immutable afterwards; every handler receives
// it by value or reads it through the Server.
type Options struct {
	Headers    config.HeaderMap
	Host       string
	Port       int
	StrictPort bool
	TLS        *tls.Config
	DistDir    string
	Open       config.OpenValue
	CORS       bool
	Root       string
}

// resolveOptions layers the configuration sources per field: the preview
// value wins over the generic server value, which wins over the hard-coded
// default. TLS material is resolved separately by New, since loading it can
// fail for filesystem reasons that are not layering concerns.
func resolveOptions(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, &ConfigError{Reason: "configuration is required"}
	}

	host := pickString(cfg.Preview.Host, "", DefaultHost)
	if err := checkHost(host); err != nil {
		return Options{}, &ConfigError{Reason: fmt.Sprintf("host %q", host), Err: err}
	}

	port := pickPort(cfg.Preview.Port, 0, DefaultPort)
	if port < 1 || port > 65535 {
		return Options{}, &ConfigError{Reason: fmt.Sprintf("port %d out of range", port)}
	}

	dist := cfg.EffectiveDistDir()
	if !filepath.IsAbs(dist) {
		abs, err := filepath.Abs(dist)
		if err != nil {
			return Options{}, &ConfigError{Reason: "resolve dist directory", Err: err}
		}
		dist = abs
	}

	root := cfg.Compilation.Root
	if !filepath.IsAbs(root) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return Options{}, &ConfigError{Reason: "resolve project root", Err: err}
		}
		root = abs
	}

	return Options{
		Headers:    cfg.EffectiveHeaders().Clone(),
		Host:       host,
		Port:       port,
		StrictPort: cfg.Preview.StrictPort,
		DistDir:    dist,
		Open:       cfg.Preview.Open,
		CORS:       cfg.Preview.Cors,
		Root:       root,
	}, nil
}

// pickString returns the first non-empty candidate in precedence order.
func pickString(preview, server, fallback string) string {
	if preview != "" {
		return preview
	}
	if server != "" {
		return server
	}
	return fallback
}

// pickPort returns the first positive candidate in precedence order.
func pickPort(preview, server, fallback int) int {
	if preview > 0 {
		return preview
	}
	if server > 0 {
		return server
	}
	return fallback
}

// checkHost rejects values that cannot possibly name a bindable interface.
// Full validation is the config loader's job; this guards hand-built
// configurations.
func checkHost(host string) error {
	switch {
	case strings.Contains(host, "://"):
		return fmt.Errorf("must not include a scheme")
	case strings.Contains(host, "/"):
		return fmt.Errorf("must not include a path")
	case strings.ContainsAny(host, " \r\n"):
		return fmt.Errorf("must not contain whitespace")
	}
	return nil
}
