package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/black-cross/playbook-engine/pkg/execution"
)

// RunManifest records the complete metadata for a finished execution.
// Written as <execution-id>.run.yaml next to the trace file.
type RunManifest struct {
	ExecutionID   string            `yaml:"execution_id"`
	Playbook      string            `yaml:"playbook"`
	Mode          string            `yaml:"mode"`
	TriggeredBy   string            `yaml:"triggered_by,omitempty"`
	StartedAt     string            `yaml:"started_at"`
	EndedAt       string            `yaml:"ended_at"`
	Status        string            `yaml:"status"`
	Actions       ActionsSummary    `yaml:"actions_summary"`
	DecisionPaths map[string]string `yaml:"decision_paths,omitempty"`
}

// ActionsSummary counts action results by status.
type ActionsSummary struct {
	Total     int `yaml:"total"`
	Completed int `yaml:"completed"`
	Failed    int `yaml:"failed"`
	Skipped   int `yaml:"skipped"`
}

// buildManifest produces a RunManifest from a terminal execution.
func buildManifest(ex *execution.Execution) *RunManifest {
	return &RunManifest{
		ExecutionID: ex.ID,
		Playbook:    ex.PlaybookID,
		Mode:        ex.Mode,
		TriggeredBy: ex.TriggeredBy,
		StartedAt:   ex.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:     ex.EndedAt.UTC().Format(time.RFC3339),
		Status:      ex.Status,
		Actions: ActionsSummary{
			Total:     len(ex.ActionsExecuted),
			Completed: ex.SuccessfulActions,
			Failed:    ex.FailedActions,
			Skipped:   ex.SkippedActions,
		},
		DecisionPaths: ex.DecisionPaths,
	}
}

// writeManifest writes the run manifest into dir, creating it if needed.
func writeManifest(dir string, ex *execution.Execution) error {
	m := buildManifest(ex)
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	path := filepath.Join(dir, ex.ID+".run.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
