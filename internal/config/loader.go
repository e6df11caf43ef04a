package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultFileName is the configuration file looked up in the working
// directory when no explicit path is supplied.
const DefaultFileName = "smelt.toml"

// Load reads and parses the TOML configuration file, injecting defaults
// and running validation.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFileName
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		headerMapDecodeHook(),
		openValueDecodeHook(),
		httpsValueDecodeHook(),
	))

	var cfg Config
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finalize(&cfg)
}

// Default returns the configuration used when no config file exists on
// disk. It runs the same defaults and validation as Load so behavior does
// not depend on an empty file being present.
func Default() (*Config, error) {
	var cfg Config
	return finalize(&cfg)
}

func finalize(cfg *Config) (*Config, error) {
	applyGlobalDefaults(&cfg.Global)
	applyCompilationDefaults(&cfg.Compilation)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(cfg.Compilation.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	cfg.Compilation.Root = absRoot

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", false)
	v.SetDefault("Compilation.Root", ".")
	v.SetDefault("Compilation.Output.Path", "dist")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.LogMaxSize == 0 {
		g.LogMaxSize = 100
	}
	if g.LogMaxBackups == 0 {
		g.LogMaxBackups = 10
	}
}

func applyCompilationDefaults(c *CompilationConfig) {
	if c.Root == "" {
		c.Root = "."
	}
	if c.Output.Path == "" {
		c.Output.Path = "dist"
	}
}

func headerMapDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(HeaderMap(nil))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch raw := data.(type) {
		case HeaderMap:
			return raw, nil
		case map[string]string:
			headers := make(HeaderMap, len(raw))
			for name, value := range raw {
				headers[CanonicalHeaderName(name)] = []string{value}
			}
			return headers, nil
		case map[string]interface{}:
			headers := make(HeaderMap, len(raw))
			for name, value := range raw {
				canonical := CanonicalHeaderName(name)
				switch v := value.(type) {
				case string:
					headers[canonical] = append(headers[canonical], v)
				case []interface{}:
					for _, item := range v {
						s, ok := item.(string)
						if !ok {
							return nil, fmt.Errorf("header %s: values must be strings, got %T", canonical, item)
						}
						headers[canonical] = append(headers[canonical], s)
					}
				case []string:
					headers[canonical] = append(headers[canonical], v...)
				default:
					return nil, fmt.Errorf("header %s: value must be a string or list of strings, got %T", canonical, value)
				}
			}
			return headers, nil
		default:
			return nil, fmt.Errorf("unsupported Headers value: %T", data)
		}
	}
}

func openValueDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(OpenValue{})

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case bool:
			return OpenValue{Enabled: v}, nil
		case string:
			return OpenValue{Enabled: true, Target: v}, nil
		case OpenValue:
			return v, nil
		default:
			return nil, fmt.Errorf("Open expects a boolean or path string, got %T", data)
		}
	}
}

func httpsValueDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(HTTPSValue{})

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case bool:
			return HTTPSValue{Enabled: v, Configured: true}, nil
		case map[string]interface{}:
			// A cert material table implies TLS is wanted.
			value := HTTPSValue{Enabled: true, Configured: true}
			for key, raw := range v {
				s, ok := raw.(string)
				if !ok {
					return nil, fmt.Errorf("Https.%s: expects a string, got %T", key, raw)
				}
				switch strings.ToLower(key) {
				case "cert":
					value.Cert = s
				case "key":
					value.Key = s
				case "ca":
					value.CA = s
				default:
					return nil, fmt.Errorf("Https.%s: unknown field", key)
				}
			}
			return value, nil
		case HTTPSValue:
			return v, nil
		default:
			return nil, fmt.Errorf("Https expects a boolean or cert material table, got %T", data)
		}
	}
}
