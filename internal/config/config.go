// Package config loads nodecheck settings from a YAML file validated
// against an embedded CUE schema, then applies NODECHECK_* environment
// overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	"github.com/roach88/nodecheck/internal/logging"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource, cue.Filename("config.cue"))
	if err := compiled.Err(); err != nil {
		panic(err)
	}
	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		panic(err)
	}
}

// Environment variables that override file settings.
const (
	EnvDatabase      = "NODECHECK_DB"
	EnvSchema        = "NODECHECK_SCHEMA"
	EnvLogLevel      = "NODECHECK_LOG_LEVEL"
	EnvLogFormat     = "NODECHECK_LOG_FORMAT"
	EnvMaxConcurrent = "NODECHECK_MAX_CONCURRENT"
)

// Config holds all nodecheck settings.
type Config struct {
	Database       string   `json:"database"`
	Schema         string   `json:"schema,omitempty"`
	Checkers       []string `json:"checkers,omitempty"`
	ContainerKinds []string `json:"container_kinds,omitempty"`
	MaxConcurrent  int      `json:"max_concurrent"`
	Log            Log      `json:"log"`
}

// Log configures the process logger.
type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load(strings.NewReader(""))
	if err != nil {
		panic(fmt.Sprintf("default config does not satisfy schema: %v", err))
	}
	return cfg
}

// Load validates YAML from r against the schema and decodes it. Schema
// defaults fill in absent fields.
func Load(r io.Reader) (*Config, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	value := cueCtx.CompileString("{}")
	if len(strings.TrimSpace(string(src))) > 0 {
		file, err := yaml.Extract("config.yaml", src)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		value = cueCtx.BuildFile(file)
		if err := value.Err(); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.All(), cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads path, or returns Default when path is empty.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// ApplyEnv overrides settings from environment variables looked up with
// getenv (os.Getenv in production). Empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := getenv(EnvSchema); v != "" {
		c.Schema = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := getenv(EnvMaxConcurrent); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvMaxConcurrent, v)
		}
		c.MaxConcurrent = n
	}
	return c.Validate()
}

// Validate re-checks fields that environment overrides may have changed.
func (c *Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	if c.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("max_concurrent must be >= 0, got %d", c.MaxConcurrent))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
