// Package config loads the conformance tool configuration.
//
// Sources are layered with increasing priority:
//
//  1. built-in defaults (Default)
//  2. an optional YAML file
//  3. environment variables prefixed with CONFORMANCE_, where "__" separates
//     sections: CONFORMANCE_SERVER__ADDR -> server.addr
//
// The merged result is validated with go-playground/validator tags before it
// is returned.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "CONFORMANCE_"

// Config is the root configuration.
type Config struct {
	Model   ModelConfig  `koanf:"model"`
	Log     LogConfig    `koanf:"log"`
	Server  ServerConfig `koanf:"server"`
	Target  TargetConfig `koanf:"target"`
	Workers int          `koanf:"workers" validate:"min=1,max=256"`
}

// ModelConfig locates the model document and tunes validation.
type ModelConfig struct {
	Path                string `koanf:"path"`
	MaxDepth            int    `koanf:"max_depth" validate:"min=1,max=4096"`
	RejectDuplicateKeys bool   `koanf:"reject_duplicate_keys"`
	StrictResponses     bool   `koanf:"strict_responses"`
	Language            string `koanf:"language" validate:"oneof=en ja"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"min=1"`
}

// TargetConfig describes the API under test for conformance runs.
type TargetConfig struct {
	BaseURL    string            `koanf:"base_url" validate:"omitempty,url"`
	Timeout    time.Duration     `koanf:"timeout" validate:"min=0"`
	Headers    map[string]string `koanf:"headers"`
	Operations []Operation       `koanf:"operations" validate:"dive"`
}

// Operation is one API call of a conformance run.
type Operation struct {
	ID   string `koanf:"id" validate:"required"`
	Path string `koanf:"path" validate:"required,startswith=/"`
	// Query is appended in order; the resulting URL is what links.self must echo.
	Query          []QueryParam `koanf:"query" validate:"dive"`
	ExpectedStatus int          `koanf:"expected_status" validate:"omitempty,min=100,max=599"`
	// Follow is how many links.next pages are fetched after the first response.
	Follow int `koanf:"follow" validate:"min=0,max=1000"`
}

type QueryParam struct {
	Name  string `koanf:"name" validate:"required"`
	Value string `koanf:"value"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Model: ModelConfig{
			MaxDepth: 64,
			Language: "en",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    10 << 20,
		},
		Target: TargetConfig{
			Timeout: 30 * time.Second,
		},
		Workers: 4,
	}
}

var validate = validator.New()

// Validate checks the struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if len(c.Target.Operations) > 0 && c.Target.BaseURL == "" {
		return errors.New("target.base_url is required when operations are configured")
	}
	seen := map[string]bool{}
	for _, op := range c.Target.Operations {
		if seen[op.ID] {
			return fmt.Errorf("target.operations: duplicate id %q", op.ID)
		}
		seen[op.ID] = true
	}
	return nil
}

// Load merges defaults, the YAML file at path (skipped when path is empty)
// and the environment, then validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps CONFORMANCE_SERVER__MAX_BODY_BYTES to server.max_body_bytes.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// OperationURL builds the request URL of an operation: base URL, path, then
// the query parameters in declaration order.
func (t TargetConfig) OperationURL(op Operation) string {
	b := &strings.Builder{}
	b.WriteString(strings.TrimRight(t.BaseURL, "/"))
	b.WriteString(op.Path)
	for i, q := range op.Query {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(q.Name)
		b.WriteByte('=')
		b.WriteString(q.Value)
	}
	return b.String()
}

// Status returns the operation's expected HTTP status, 200 by default.
func (op Operation) Status() int {
	if op.ExpectedStatus == 0 {
		return 200
	}
	return op.ExpectedStatus
}
