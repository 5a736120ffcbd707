package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hesched/core/opgraph"
	"hesched/core/placement"
)

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, ValidateConfig(config))

	lat, err := config.LatencyTable()
	require.NoError(t, err)
	assert.Equal(t, 100, lat.Of(opgraph.Boot))

	mode, err := config.GraphMode()
	require.NoError(t, err)
	assert.Equal(t, opgraph.Complete, mode)
}

func TestValidateConfigRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"no levels":      func(c *Config) { c.Levels = 0 },
		"bad mode":       func(c *Config) { c.Mode = "partial" },
		"negative cores": func(c *Config) { c.Cores = -2 },
		"zero latency":   func(c *Config) { c.Latencies["MUL"] = 0 },
		"unknown kind":   func(c *Config) { c.Latencies["DIV"] = 3 },
		"missing boot":   func(c *Config) { delete(c.Latencies, "BOOT") },
		"no policies":    func(c *Config) { c.Policies = nil },
		"zero policy":    func(c *Config) { c.Policies = []placement.Policy{{Name: "none"}} },
		"duplicate policy": func(c *Config) {
			c.Policies = append(c.Policies, c.Policies[0])
		},
		"log level": func(c *Config) { c.LogLevel = "trace" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			config := DefaultConfig()
			mutate(config)
			require.ErrorIs(t, ValidateConfig(config), ErrInvalidConfig)
		})
	}
}

func TestLevelsFromHEParams(t *testing.T) {
	config := DefaultConfig()
	config.Levels = 0
	config.HE = &HEParams{LogN: 10, LogQ: []int{40, 30, 30, 30, 30}, LogP: []int{45}, LogDefaultScale: 30}
	require.NoError(t, ValidateConfig(config))

	levels, err := config.ResolveLevels()
	require.NoError(t, err)
	assert.Equal(t, 4, levels)

	config.Levels = 2
	levels, err = config.ResolveLevels()
	require.NoError(t, err)
	assert.Equal(t, 2, levels)
}

func TestLoadConfigOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hesched.yaml")
	src := `levels: 2
mode: selective
cores: 4
latencies:
  MUL: 7
policies:
  - name: balanced
    segments: 1
    slack: 0.25
    urgency: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(config))
	assert.Equal(t, 2, config.Levels)
	assert.Equal(t, "selective", config.Mode)
	assert.Equal(t, 4, config.Cores)
	assert.Equal(t, 7, config.Latencies["MUL"])
	assert.Equal(t, 100, config.Latencies["BOOT"], "unset kinds keep their default")
	require.Len(t, config.Policies, 1)
	assert.Equal(t, 0.25, config.Policies[0].Slack)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveConfig(config, out))
	again, err := LoadConfig(out)
	require.NoError(t, err)
	assert.Equal(t, config, again)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
