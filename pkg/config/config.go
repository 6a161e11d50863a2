// Package config handles configuration for edgeqa-runner.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
	"github.com/edgeqa/edgeqa-runner/pkg/dsl"
	"github.com/edgeqa/edgeqa-runner/pkg/vars"
)

// EnvironmentsFile sits next to the config file and maps environment names
// to variables.
const EnvironmentsFile = "environments.yaml"

var validate = validator.New()

// Config represents the workspace configuration (config.yaml / config.toml).
type Config struct {
	// Inputs
	Suite    string `yaml:"suite" toml:"suite"`       // Suite file (.xlsx, .json, .yaml)
	Locators string `yaml:"locators" toml:"locators"` // Locator repository file
	FlowsDir string `yaml:"flowsDir" toml:"flowsDir"` // Directory of *.flow.* files

	// Selection
	IncludeTags []string `yaml:"includeTags" toml:"includeTags"`
	ExcludeTags []string `yaml:"excludeTags" toml:"excludeTags"`

	// Variables
	Environment  string                       `yaml:"environment" toml:"environment"`
	Variables    map[string]string            `yaml:"variables" toml:"variables"`       // Global layer
	Environments map[string]map[string]string `yaml:"environments" toml:"environments"` // Environment layers by name

	Execution Execution `yaml:"execution" toml:"execution"`
	API       API       `yaml:"api" toml:"api"`
	Logging   Logging   `yaml:"logging" toml:"logging"`

	// Outputs
	Output      string `yaml:"output" toml:"output"`           // Report directory
	MetricsFile string `yaml:"metricsFile" toml:"metricsFile"` // Prometheus textfile

	// Dir is the directory the config was loaded from. Relative paths
	// resolve against it.
	Dir string `yaml:"-" toml:"-"`
}

// Execution controls the runner.
type Execution struct {
	DefaultFailureCategory string `yaml:"defaultFailureCategory" toml:"defaultFailureCategory" default:"STOP_ON_FAILURE" validate:"oneof=STOP_ON_FAILURE CONTINUE_ON_FAILURE STOP CONTINUE"`
	StoreMode              string `yaml:"storeMode" toml:"storeMode" default:"shared" validate:"oneof=shared flow-local flow_local local"`
	MaxFlowDepth           int    `yaml:"maxFlowDepth" toml:"maxFlowDepth" default:"10" validate:"gte=0"`
	Parallelism            int    `yaml:"parallelism" toml:"parallelism" validate:"gte=0,lte=64"`
	StopOnFail             bool   `yaml:"stopOnFail" toml:"stopOnFail"`
}

// API configures the HTTP keywords.
type API struct {
	BaseURL string            `yaml:"baseURL" toml:"baseURL" validate:"omitempty,url"`
	Timeout time.Duration     `yaml:"timeout" toml:"timeout" default:"30s" validate:"gte=0"`
	Retries int               `yaml:"retries" toml:"retries" validate:"gte=0,lte=10"`
	Headers map[string]string `yaml:"headers" toml:"headers"`
}

// Logging configures the run log.
type Logging struct {
	Level  string `yaml:"level" toml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" default:"text" validate:"oneof=text json"`
	File   string `yaml:"file" toml:"file"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load loads configuration from a YAML or TOML file over the defaults,
// merges the environments file next to it, and validates. A value written
// in the file, zero included, wins over its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, invalid(path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, invalid(path, err)
		}
	}
	cfg.Dir = filepath.Dir(path)

	if err := cfg.loadEnvironments(filepath.Join(cfg.Dir, EnvironmentsFile)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir looks for config.yaml, config.yml or config.toml in the
// directory. With none present it returns the defaults.
func LoadFromDir(dir string) (*Config, error) {
	if configPath, ok := findConfig(dir); ok {
		return Load(configPath)
	}

	// No config file found, but environments.yaml may still be there
	cfg := Default()
	cfg.Dir = dir
	if err := cfg.loadEnvironments(filepath.Join(dir, EnvironmentsFile)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigNames are the workspace config file names, in lookup order.
var ConfigNames = []string{"config.yaml", "config.yml", "config.toml"}

func findConfig(dir string) (string, bool) {
	for _, name := range ConfigNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// loadEnvironments merges an environments file into cfg. Entries of the
// file override inline entries of the same environment and key.
func (c *Config) loadEnvironments(path string) error {
	data, err := os.ReadFile(path) //#nosec G304 -- file next to the config
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var envs map[string]map[string]string
	if err := yaml.Unmarshal(data, &envs); err != nil {
		return invalid(path, err)
	}
	if c.Environments == nil {
		c.Environments = make(map[string]map[string]string, len(envs))
	}
	for name, values := range envs {
		merged := c.Environments[name]
		if merged == nil {
			merged = make(map[string]string, len(values))
		}
		for k, v := range values {
			merged[k] = v
		}
		c.Environments[name] = merged
	}
	return nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, fieldErr := range validationErrors {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed validation (rule: %s)", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return core.ErrInvalidConfig.WithMessage("config validation failed: " + strings.Join(msgs, "; "))
		}
		return core.ErrInvalidConfig.WithCause(err)
	}
	if c.Environment != "" {
		if _, ok := c.Environments[c.Environment]; !ok {
			return core.ErrInvalidConfig.
				WithMessagef("unknown environment %q", c.Environment).
				WithDetails(map[string]interface{}{"environment": c.Environment})
		}
	}
	return nil
}

// EnvironmentVars returns the variables of the selected environment.
func (c *Config) EnvironmentVars() map[string]string {
	out := make(map[string]string)
	for k, v := range c.Environments[c.Environment] {
		out[k] = v
	}
	return out
}

// FailureCategory returns the policy for steps with a blank category.
func (c *Config) FailureCategory() dsl.FailureCategory {
	fc, err := dsl.ParseFailureCategory(c.Execution.DefaultFailureCategory)
	if err != nil || fc == dsl.FailureUnspecified {
		return dsl.FailureStop
	}
	return fc
}

// StoreMode returns where STORE writes inside flows.
func (c *Config) StoreMode() vars.StoreMode {
	mode, err := vars.ParseStoreMode(c.Execution.StoreMode)
	if err != nil {
		return vars.StoreShared
	}
	return mode
}

// Path resolves p against the config directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

func invalid(path string, err error) error {
	return core.ErrInvalidConfig.
		WithMessagef("invalid configuration %s", path).
		WithCause(err)
}
