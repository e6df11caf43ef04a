package config

import (
	"net/textproto"
	"strings"
)

// HeaderMap carries response headers declared in configuration. TOML accepts
// either a single string or a list of strings per header; the decode hook
// folds both forms into a value slice and canonicalizes the header names.
type HeaderMap map[string][]string

// Clone returns a deep copy so resolved options cannot alias the parsed
// configuration.
func (h HeaderMap) Clone() HeaderMap {
	if h == nil {
		return nil
	}
	out := make(HeaderMap, len(h))
	for name, values := range h {
		out[name] = append([]string(nil), values...)
	}
	return out
}

// Set assigns a single value under the canonical form of name.
func (h HeaderMap) Set(name, value string) {
	h[CanonicalHeaderName(name)] = []string{value}
}

// CanonicalHeaderName normalizes a configured header name to its canonical
// MIME form ("x-served-by" becomes "X-Served-By"). Viper lowercases map
// keys during unmarshal, so the decode hook routes every name through here.
func CanonicalHeaderName(name string) string {
	return textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
}

// OpenValue models the Open option, which accepts a boolean or a path
// string: `Open = true` opens the served root, `Open = "/admin"` opens that
// path below it.
type OpenValue struct {
	Enabled bool
	Target  string
}

// HTTPSValue models the Https option. `Https = true` enables TLS with a
// generated development certificate; a table supplies cert material:
//
//	[Preview.Https]
//	Cert = "./certs/dev.pem"   # file path or inline PEM
//	Key  = "./certs/dev-key.pem"
//	CA   = "./certs/chain.pem" # optional
//
// Configured distinguishes an explicit `Https = false` from an absent
// option so the preview-over-server fallback can honor explicit disables.
type HTTPSValue struct {
	Enabled    bool
	Configured bool
	Cert       string
	Key        string
	CA         string
}

// HasMaterial reports whether user-supplied cert material is present.
func (h HTTPSValue) HasMaterial() bool {
	return h.Cert != "" || h.Key != "" || h.CA != ""
}

// GlobalConfig holds top-level runtime behavior shared by every command.
type GlobalConfig struct {
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// OutputConfig describes where the build pipeline writes its artifact.
type OutputConfig struct {
	Path string `mapstructure:"Path"`
}

// CompilationConfig mirrors the build-side settings the preview server
// consumes: the project root and the output location, which may be
// relative to it.
type CompilationConfig struct {
	Root   string       `mapstructure:"Root"`
	Output OutputConfig `mapstructure:"Output"`
}

// ServerConfig holds generic dev-server options. Preview falls back to
// these for the fields it does not set itself.
type ServerConfig struct {
	Https   HTTPSValue `mapstructure:"Https"`
	Headers HeaderMap  `mapstructure:"Headers"`
}

// PreviewConfig holds the preview-specific server options.
type PreviewConfig struct {
	DistDir    string     `mapstructure:"DistDir"`
	Host       string     `mapstructure:"Host"`
	Port       int        `mapstructure:"Port"`
	StrictPort bool       `mapstructure:"StrictPort"`
	Https      HTTPSValue `mapstructure:"Https"`
	Open       OpenValue  `mapstructure:"Open"`
	Cors       bool       `mapstructure:"Cors"`
	Headers    HeaderMap  `mapstructure:"Headers"`
}

// Config is the full structure mapped from smelt.toml.
type Config struct {
	Global      GlobalConfig      `mapstructure:",squash"`
	Compilation CompilationConfig `mapstructure:"Compilation"`
	Server      ServerConfig      `mapstructure:"Server"`
	Preview     PreviewConfig     `mapstructure:"Preview"`
}
