package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hesched/core/listsched"
	"hesched/core/opgraph"
)

// ScheduleFile is the on-disk form of a compiled schedule.
type ScheduleFile struct {
	Version  string              `json:"version"`
	Policy   string              `json:"policy"`
	Marking  []opgraph.Mark      `json:"marking"`
	Schedule *listsched.Schedule `json:"schedule"`
}

// SaveSchedule saves a schedule to a JSON file
func SaveSchedule(filepath string, sf *ScheduleFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadSchedule loads a schedule from a JSON file
func LoadSchedule(filepath string) (*ScheduleFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	var sf ScheduleFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	return &sf, nil
}

// LatencyFile is the calibration output; its latencies block can be pasted
// into a config file.
type LatencyFile struct {
	Params    string         `yaml:"params"`
	Latencies map[string]int `yaml:"latencies"`
}

// NewLatencyFile keys lat by kind name.
func NewLatencyFile(params string, lat opgraph.LatencyTable) *LatencyFile {
	lf := &LatencyFile{Params: params, Latencies: make(map[string]int)}
	for _, k := range opgraph.Kinds {
		lf.Latencies[k.String()] = lat.Of(k)
	}
	return lf
}

// SaveLatencies writes lf as YAML.
func SaveLatencies(filepath string, lf *LatencyFile) error {
	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("failed to marshal latencies: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}
