// Package config loads the engine configuration from YAML, JSON or TOML
// files, with a few environment overrides on top.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	xlog "github.com/stufflebeam/orbeon-forms/internal/log"
	"github.com/stufflebeam/orbeon-forms/pkg/resource"
)

// Environment variables applied after the file.
const (
	EnvLogLevel   = "FORMPROC_LOG_LEVEL"
	EnvLogFormat  = "FORMPROC_LOG_FORMAT"
	EnvWebAppRoot = "FORMPROC_WEBAPP_ROOT"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the engine configuration.
type Config struct {
	Log       Log       `json:"log" yaml:"log" toml:"log"`
	Resources Resources `json:"resources" yaml:"resources" toml:"resources"`
	Render    Render    `json:"render" yaml:"render" toml:"render"`
}

// Log configures the base logger.
type Log struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Resources selects the resource manager.
type Resources struct {
	Kind    string            `json:"kind" yaml:"kind" toml:"kind"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
	// Chain lists the managers of a priority chain, highest priority first.
	Chain []Source `json:"chain,omitempty" yaml:"chain,omitempty" toml:"chain,omitempty"`
	Cache Cache    `json:"cache" yaml:"cache" toml:"cache"`
}

// Source is one element of a priority chain.
type Source struct {
	Kind    string            `json:"kind" yaml:"kind" toml:"kind"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
}

// Cache configures the in-memory resource cache.
type Cache struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	// Watch invalidates entries when files under the webapp root or
	// filesystem sandbox change.
	Watch bool `json:"watch" yaml:"watch" toml:"watch"`
}

// Render configures form rendering.
type Render struct {
	// Templates is a resource path prefix searched for control templates
	// before the built-in ones. Empty disables overrides.
	Templates string `json:"templates,omitempty" yaml:"templates,omitempty" toml:"templates,omitempty"`
}

// Default returns the configuration used when no file is given: a webapp
// rooted at the working directory, cached.
func Default() Config {
	return Config{
		Log: Log{Level: "info", Format: "console"},
		Resources: Resources{
			Kind:    string(resource.KindWebApp),
			Options: map[string]string{resource.OptionWebAppRoot: "."},
			Cache:   Cache{Enabled: true},
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := Decode(bytes.NewReader(data), filepath.Ext(path), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses r in the format named by ext (".yaml", ".yml", ".json" or
// ".toml") into cfg. Unknown keys are rejected.
func Decode(r io.Reader, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode yaml: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode json: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Log.Level = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogFormat); ok && strings.TrimSpace(v) != "" {
		c.Log.Format = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvWebAppRoot); ok && strings.TrimSpace(v) != "" {
		if c.Resources.Options == nil {
			c.Resources.Options = make(map[string]string)
		}
		c.Resources.Options[resource.OptionWebAppRoot] = strings.TrimSpace(v)
	}
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json or console", c.Log.Format))
	}

	kind, err := resource.ParseKind(c.Resources.Kind)
	if err != nil {
		errs = append(errs, fmt.Errorf("resources.kind: %w", err))
	}
	if kind == resource.KindPriority {
		if len(c.Resources.Chain) == 0 {
			errs = append(errs, errors.New("resources.chain: priority manager needs at least one source"))
		}
		for idx, src := range c.Resources.Chain {
			child, err := resource.ParseKind(src.Kind)
			if err != nil {
				errs = append(errs, fmt.Errorf("resources.chain[%d].kind: %w", idx, err))
				continue
			}
			if child == resource.KindPriority {
				errs = append(errs, fmt.Errorf("resources.chain[%d]: priority chains cannot nest", idx))
			}
		}
	}
	if c.Resources.Cache.Watch {
		if !c.Resources.Cache.Enabled {
			errs = append(errs, errors.New("resources.cache.watch requires resources.cache.enabled"))
		} else if c.WatchDir() == "" {
			errs = append(errs, errors.New("resources.cache.watch needs a webapp root or filesystem sandbox"))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// ResourceSpec converts the resources section into a factory spec.
func (c Config) ResourceSpec() (resource.Spec, error) {
	kind, err := resource.ParseKind(c.Resources.Kind)
	if err != nil {
		return resource.Spec{}, err
	}
	spec := resource.Spec{Kind: kind, Options: resource.Options(c.Resources.Options)}
	for _, src := range c.Resources.Chain {
		child, err := resource.ParseKind(src.Kind)
		if err != nil {
			return resource.Spec{}, err
		}
		spec.Chain = append(spec.Chain, resource.Spec{Kind: child, Options: resource.Options(src.Options)})
	}
	return spec, nil
}

// WatchDir returns the directory the cache watcher observes: the webapp root
// or filesystem sandbox of the manager, or of the first chain entry having
// one.
func (c Config) WatchDir() string {
	if dir := watchDir(c.Resources.Kind, c.Resources.Options); dir != "" {
		return dir
	}
	for _, src := range c.Resources.Chain {
		if dir := watchDir(src.Kind, src.Options); dir != "" {
			return dir
		}
	}
	return ""
}

func watchDir(kind string, options map[string]string) string {
	switch resource.Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case resource.KindWebApp:
		return strings.TrimSpace(options[resource.OptionWebAppRoot])
	case resource.KindFilesystem:
		return strings.TrimSpace(options[resource.OptionFilesystemSandbox])
	default:
		return ""
	}
}

// Logging returns the logger configuration.
func (c Config) Logging() xlog.Config {
	return xlog.Config{Level: c.Log.Level, Format: c.Log.Format}
}
