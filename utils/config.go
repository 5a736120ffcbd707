package utils

import (
	"errors"
	"fmt"
	"os"

	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
	"gopkg.in/yaml.v3"

	"hesched/core/ckkswrapper"
	"hesched/core/opgraph"
	"hesched/core/placement"
	"hesched/logging"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// HEParams selects a CKKS parameter set from which the level budget is derived.
type HEParams struct {
	LogN            int   `yaml:"log_n"`
	LogQ            []int `yaml:"log_q"`
	LogP            []int `yaml:"log_p"`
	LogDefaultScale int   `yaml:"log_default_scale"`
}

// Literal converts p into a lattigo parameter literal.
func (p *HEParams) Literal() ckks.ParametersLiteral {
	return ckks.ParametersLiteral{
		LogN:            p.LogN,
		LogQ:            p.LogQ,
		LogP:            p.LogP,
		LogDefaultScale: p.LogDefaultScale,
	}
}

// Config holds compiler configuration
type Config struct {
	// Levels is the number of multiplications between bootstraps. 0 derives it from HE.
	Levels int    `yaml:"levels"`
	Mode   string `yaml:"mode"`
	// Cores is the size of the core pool; 0 means one core per operation.
	Cores     int                `yaml:"cores"`
	MaxCycles int                `yaml:"max_cycles"`
	Latencies map[string]int     `yaml:"latencies"`
	Policies  []placement.Policy `yaml:"policies"`
	LogLevel  string             `yaml:"log_level"`
	HE        *HEParams          `yaml:"he,omitempty"`
}

// DefaultConfig returns a configuration with the default latency table and
// every default policy.
func DefaultConfig() *Config {
	return &Config{
		Levels: 3,
		Mode:   opgraph.Complete.String(),
		Latencies: map[string]int{
			"ADD":  1,
			"SUB":  1,
			"MUL":  10,
			"BOOT": 100,
		},
		Policies: append([]placement.Policy(nil), placement.DefaultPolicies...),
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return config, nil
}

// SaveConfig writes config as YAML.
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LatencyTable converts the configured latencies, keyed by kind name.
func (c *Config) LatencyTable() (opgraph.LatencyTable, error) {
	lat := opgraph.LatencyTable{}
	for name, v := range c.Latencies {
		k, err := opgraph.ParseKind(name)
		if err != nil {
			return nil, err
		}
		lat[k] = v
	}
	return lat, nil
}

// GraphMode parses the configured bootstrap mode.
func (c *Config) GraphMode() (opgraph.Mode, error) {
	return opgraph.ParseMode(c.Mode)
}

// ResolveLevels returns Levels, deriving it from the HE parameters when unset.
func (c *Config) ResolveLevels() (int, error) {
	if c.Levels > 0 || c.HE == nil {
		return c.Levels, nil
	}
	params, err := ckkswrapper.NewParams(c.HE.Literal())
	if err != nil {
		return 0, err
	}
	return ckkswrapper.Levels(params), nil
}

// ValidateConfig validates compiler configuration
func ValidateConfig(config *Config) error {
	if config.Levels < 0 {
		return fmt.Errorf("%w: levels must not be negative", ErrInvalidConfig)
	}
	if config.Levels == 0 && config.HE == nil {
		return fmt.Errorf("%w: levels must be positive when no HE parameters are given", ErrInvalidConfig)
	}
	levels, err := config.ResolveLevels()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if levels < 1 {
		return fmt.Errorf("%w: HE parameters leave no multiplicative level", ErrInvalidConfig)
	}

	if _, err := config.GraphMode(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if config.Cores < 0 {
		return fmt.Errorf("%w: cores must not be negative", ErrInvalidConfig)
	}
	if config.MaxCycles < 0 {
		return fmt.Errorf("%w: max cycles must not be negative", ErrInvalidConfig)
	}

	lat, err := config.LatencyTable()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, k := range opgraph.Kinds {
		if lat.Of(k) < 1 {
			return fmt.Errorf("%w: latency of %s must be at least 1", ErrInvalidConfig, k)
		}
	}

	if len(config.Policies) == 0 {
		return fmt.Errorf("%w: at least one policy is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool)
	for _, p := range config.Policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate policy %q", ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = true
	}

	if !logging.ValidLevel(config.LogLevel) {
		return fmt.Errorf("%w: log level must be debug, info, warn or error", ErrInvalidConfig)
	}
	return nil
}
