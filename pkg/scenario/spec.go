package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TestSpec defines expected outcomes for a scenario replay.
// All fields are optional; omitted fields are not asserted.
type TestSpec struct {
	ExpectedStatus       string            `yaml:"expected_status,omitempty"        json:"expected_status,omitempty"`
	ExpectedActionStatus map[string]string `yaml:"expected_action_status,omitempty" json:"expected_action_status,omitempty"`
	ExpectedOutputs      map[string]string `yaml:"expected_outputs,omitempty"       json:"expected_outputs,omitempty"` // "action_id.field" → expected
	MustRun              []string          `yaml:"must_run,omitempty"               json:"must_run,omitempty"`
	MustNotRun           []string          `yaml:"must_not_run,omitempty"           json:"must_not_run,omitempty"`
	Description          string            `yaml:"description,omitempty"            json:"description,omitempty"`
	Tags                 []string          `yaml:"tags,omitempty"                   json:"tags,omitempty"`
}

// LoadTestSpec reads and parses a test.yaml file.
func LoadTestSpec(path string) (*TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test spec: %w", err)
	}
	return ParseTestSpec(data)
}

// ParseTestSpec parses a TestSpec from raw YAML bytes.
func ParseTestSpec(data []byte) (*TestSpec, error) {
	var spec TestSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse test spec: %w", err)
	}
	return &spec, nil
}
