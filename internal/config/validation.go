package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate checks semantic constraints that would otherwise surface as
// confusing failures at listen time.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration is empty")
	}

	g := c.Global
	if g.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "must not be negative")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "must not be negative")
	}

	p := c.Preview
	if p.Port != 0 && (p.Port < 1 || p.Port > 65535) {
		return newFieldError("Preview.Port", "must be within 1-65535")
	}
	if err := validateHost(p.Host); err != nil {
		return fmt.Errorf("Preview.Host: %w", err)
	}
	if err := validateTLSMaterial(p.Https); err != nil {
		return fmt.Errorf("Preview.Https: %w", err)
	}
	if err := validateTLSMaterial(c.Server.Https); err != nil {
		return fmt.Errorf("Server.Https: %w", err)
	}
	if err := validateHeaders(p.Headers); err != nil {
		return fmt.Errorf("Preview.Headers: %w", err)
	}
	if err := validateHeaders(c.Server.Headers); err != nil {
		return fmt.Errorf("Server.Headers: %w", err)
	}

	if target := strings.TrimSpace(c.Preview.Open.Target); target != "" {
		if strings.Contains(target, "://") {
			return newFieldError("Preview.Open", "expects a path below the served root, not a full URL")
		}
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		c.Preview.Open.Target = target
	}

	return nil
}

func validateHost(host string) error {
	if host == "" {
		return nil
	}
	if strings.Contains(host, "://") {
		return errors.New("must not include a scheme")
	}
	if strings.Contains(host, "/") {
		return errors.New("must not include a path")
	}
	if strings.Contains(host, " ") {
		return errors.New("must not contain spaces")
	}
	return nil
}

func validateTLSMaterial(h HTTPSValue) error {
	if (h.Cert == "") != (h.Key == "") {
		return errors.New("Cert and Key must be provided together")
	}
	if h.CA != "" && h.Cert == "" {
		return errors.New("CA requires Cert and Key")
	}
	return nil
}

func validateHeaders(headers HeaderMap) error {
	for name, values := range headers {
		if strings.TrimSpace(name) == "" {
			return errors.New("header names must not be empty")
		}
		if strings.ContainsAny(name, " \r\n") {
			return fmt.Errorf("header %q: name must not contain whitespace", name)
		}
		for _, value := range values {
			if strings.ContainsAny(value, "\r\n") {
				return fmt.Errorf("header %s: values must not contain line breaks", name)
			}
		}
	}
	return nil
}

// EffectiveHTTPS returns the TLS settings the preview server should use,
// falling back to the generic [Server] block when [Preview] carries no
// explicit value. An explicit `Https = false` under [Preview] wins over
// whatever [Server] declares.
func (c *Config) EffectiveHTTPS() HTTPSValue {
	if c.Preview.Https.Configured {
		return c.Preview.Https
	}
	return c.Server.Https
}

// EffectiveHeaders returns the preview headers when any are declared,
// otherwise the generic server headers. The blocks replace rather than
// merge.
func (c *Config) EffectiveHeaders() HeaderMap {
	if len(c.Preview.Headers) > 0 {
		return c.Preview.Headers
	}
	return c.Server.Headers
}

// EffectiveDistDir returns the directory the preview server serves:
// Preview.DistDir when set, otherwise the build output location. Relative
// paths resolve against the project root.
func (c *Config) EffectiveDistDir() string {
	dir := c.Preview.DistDir
	if dir == "" {
		dir = c.Compilation.Output.Path
	}
	if dir == "" {
		dir = "dist"
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.Compilation.Root, dir)
}
