// Package config loads the layered snapload configuration: a YAML file in
// the user's config directory overlaid with SNAPLOAD_-prefixed environment
// variables. The loaded value is passed explicitly to whoever needs it;
// there is no package-level singleton, and reloading means calling Load
// again.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// EnvPrefix marks environment variables that override config keys. The
// prefix is stripped and the remainder lowercased: SNAPLOAD_CACHEDIR
// overrides "cachedir".
const EnvPrefix = "SNAPLOAD_"

var (
	// ErrEmptyResource is returned when a config resource name is empty.
	ErrEmptyResource = errors.New("config resource name cannot be empty")
	// ErrConflict is returned when two config files disagree on a leaf value.
	ErrConflict = errors.New("conflicting config values")
)

// defaultConfig is materialized into the user's config directory on first
// use so there is always a file to edit.
const defaultConfig = `# snapload configuration
# Uncomment and set to enable caching of merged chunked datasets:
# cachedir: /path/to/writable/cache

copied_default: true
`

// Config is the merged option mapping handed to the loader.
type Config map[string]interface{}

// CacheDir returns the configured cache directory, if any.
func (c Config) CacheDir() (string, bool) {
	return c.String("cachedir")
}

// String returns a string-valued option.
func (c Config) String(key string) (string, bool) {
	v, ok := c[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Bool returns a bool-valued option, false when absent or mistyped.
func (c Config) Bool(key string) bool {
	v, ok := c[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	path string
}

// WithPath reads the configuration from an explicit file instead of the
// default location.
func WithPath(path string) Option {
	return func(o *loadOptions) {
		o.path = path
	}
}

// ConfigDir returns the snapload config directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".config", "snapload"), nil
}

// Load reads the configuration file and applies environment overrides.
// When no config file exists yet, the default one is written first and a
// warning is emitted so the user knows to adjust it.
func Load(opts ...Option) (Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	env := envOverrides()

	path := o.path
	if path == "" {
		path = env["config_path"]
	}
	delete(env, "config_path")

	if path == "" {
		confDir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(confDir, "config.yaml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := CopyDefault(false); err != nil {
				return nil, err
			}
		}
	}

	cfg, err := FromFile(path)
	if err != nil {
		return nil, err
	}
	if cfg.Bool("copied_default") {
		log.Warnf("using default configuration; please adjust or replace %s", path)
	}

	for k, v := range env {
		cfg[k] = v
	}
	return cfg, nil
}

// CopyDefault writes the default configuration into the user's config
// directory. With overwrite false, an existing file is an error.
func CopyDefault(overwrite bool) error {
	confDir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	path := filepath.Join(confDir, "config.yaml")
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("configuration file already exists at %s", path)
		}
	}
	if err := renameio.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return errors.Wrap(err, "writing default config")
	}
	return nil
}

// FromFile loads a config from a YAML resource: an absolute path, a path
// relative to the config directory, or the packaged default.
func FromFile(resource string) (Config, error) {
	if resource == "" {
		return nil, ErrEmptyResource
	}

	path := expandUser(resource)
	if !filepath.IsAbs(path) {
		confDir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		candidate := filepath.Join(confDir, path)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		} else if resource == "config.yaml" {
			return parseYAML([]byte(defaultConfig))
		} else {
			return nil, errors.Errorf("config resource %q not found", resource)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return parseYAML(data)
}

// FromFiles loads several YAML configs and merges them recursively,
// failing fast when two files disagree on the same leaf.
func FromFiles(paths ...string) (Config, error) {
	merged := Config{}
	for _, p := range paths {
		cfg, err := FromFile(p)
		if err != nil {
			return nil, err
		}
		if err := mergeInto(merged, cfg, nil); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// mergeInto merges src into dst. Nested mappings merge recursively; equal
// leaves are fine; differing leaves at the same key path conflict.
func mergeInto(dst, src map[string]interface{}, path []string) error {
	for key, sv := range src {
		dv, exists := dst[key]
		if !exists {
			dst[key] = sv
			continue
		}
		dm, dok := dv.(map[string]interface{})
		sm, sok := sv.(map[string]interface{})
		if dok && sok {
			if err := mergeInto(dm, sm, append(path, key)); err != nil {
				return err
			}
			continue
		}
		if fmt.Sprintf("%v", dv) == fmt.Sprintf("%v", sv) {
			continue
		}
		return errors.Wrapf(ErrConflict, "at %s", strings.Join(append(path, key), "."))
	}
	return nil
}

func parseYAML(data []byte) (Config, error) {
	var raw map[interface{}]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	out, ok := normalize(raw).(map[string]interface{})
	if !ok {
		return Config{}, nil
	}
	return Config(out), nil
}

// normalize converts yaml.v2's map[interface{}]interface{} trees into
// map[string]interface{} trees.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalize(val)
		}
		return out
	case []interface{}:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	default:
		return v
	}
}

func envOverrides() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.Index(kv, "=")
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(kv[:eq], EnvPrefix))
		out[key] = kv[eq+1:]
	}
	return out
}

func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
