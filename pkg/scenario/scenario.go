// Package scenario implements deterministic offline playbook testing: scripted
// action responses stand in for real task execution, and a test spec asserts
// on the resulting execution record.
package scenario

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/black-cross/playbook-engine/pkg/actions"
)

// Scenario is a replay scenario file: the scripted response for each action
// the playbook will attempt.
type Scenario struct {
	Responses []Response `yaml:"responses"`
}

// Response is one pre-recorded action result. Responses are matched by action
// type in file order and each entry is consumed at most once.
type Response struct {
	ActionType string         `yaml:"action_type"`
	Success    bool           `yaml:"success"`
	Output     map[string]any `yaml:"output,omitempty"`
	Error      string         `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a responses.yaml file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Responses) == 0 {
		return nil, fmt.Errorf("scenario must have at least one response")
	}
	return &s, nil
}

// ReplayRunner satisfies the engine's task runner by serving scripted
// responses. Fail-closed: an action type with no unused entry fails.
type ReplayRunner struct {
	mu       sync.Mutex
	scenario *Scenario
	used     []bool
}

// NewReplayRunner creates a ReplayRunner from a loaded scenario.
func NewReplayRunner(s *Scenario) *ReplayRunner {
	return &ReplayRunner{
		scenario: s,
		used:     make([]bool, len(s.Responses)),
	}
}

// Execute returns the first unused scripted response for the action type.
func (r *ReplayRunner) Execute(ctx context.Context, actionType string, params map[string]any, execCtx map[string]any) (*actions.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, resp := range r.scenario.Responses {
		if r.used[i] || resp.ActionType != actionType {
			continue
		}
		r.used[i] = true
		return &actions.Result{
			Success: resp.Success,
			Output:  resp.Output,
			Error:   resp.Error,
		}, nil
	}
	return nil, fmt.Errorf("replay: no scripted response for action type %q", actionType)
}
