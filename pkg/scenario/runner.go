package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/black-cross/playbook-engine/pkg/engine"
	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/store"
)

// Runner discovers and executes scenario tests for a playbook.
type Runner struct {
	Timeout time.Duration // per-scenario timeout
}

// ScenarioInfo describes a discovered scenario directory.
type ScenarioInfo struct {
	Name    string // directory name (e.g. "phishing-critical")
	Dir     string // absolute path to the scenario directory
	HasTest bool   // whether test.yaml exists
}

// DiscoverScenarios finds all scenario directories for a playbook by
// convention: {playbook-dir}/scenarios/{playbook-name}/*/responses.yaml
func DiscoverScenarios(playbookPath string) ([]ScenarioInfo, error) {
	dir := filepath.Dir(playbookPath)
	base := filepath.Base(playbookPath)
	name := strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	name = strings.TrimSuffix(name, ".playbook")

	scenariosBase := filepath.Join(dir, "scenarios", name)
	entries, err := os.ReadDir(scenariosBase)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // no scenarios directory, not an error
		}
		return nil, fmt.Errorf("read scenarios directory: %w", err)
	}

	var scenarios []ScenarioInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		scenDir := filepath.Join(scenariosBase, entry.Name())
		if _, err := os.Stat(filepath.Join(scenDir, "responses.yaml")); err != nil {
			continue
		}
		hasTest := false
		if _, err := os.Stat(filepath.Join(scenDir, "test.yaml")); err == nil {
			hasTest = true
		}
		scenarios = append(scenarios, ScenarioInfo{
			Name:    entry.Name(),
			Dir:     scenDir,
			HasTest: hasTest,
		})
	}
	return scenarios, nil
}

// RunAll executes all scenarios for a playbook and returns test results.
func (r *Runner) RunAll(playbookPath string, failFast bool) (*TestOutput, error) {
	pb, errs := schema.ValidateFile(playbookPath)
	if schema.HasErrors(errs) {
		return nil, fmt.Errorf("playbook validation failed: %s", errs[0].Message)
	}

	scenarios, err := DiscoverScenarios(playbookPath)
	if err != nil {
		return nil, err
	}

	output := &TestOutput{Playbook: pb.Name}
	for _, scenario := range scenarios {
		result := r.runScenario(pb, scenario)
		output.Scenarios = append(output.Scenarios, result)

		switch result.Status {
		case "passed":
			output.Summary.Passed++
		case "failed":
			output.Summary.Failed++
		case "skipped":
			output.Summary.Skipped++
		case "error":
			output.Summary.Errors++
		}
		output.Summary.Total++

		if failFast && (result.Status == "failed" || result.Status == "error") {
			break
		}
	}
	return output, nil
}

// RunScenario executes a single named scenario for a playbook.
func (r *Runner) RunScenario(playbookPath, scenarioName string) (*TestResult, error) {
	pb, errs := schema.ValidateFile(playbookPath)
	if schema.HasErrors(errs) {
		return nil, fmt.Errorf("playbook validation failed: %s", errs[0].Message)
	}

	scenarios, err := DiscoverScenarios(playbookPath)
	if err != nil {
		return nil, err
	}
	for _, s := range scenarios {
		if s.Name == scenarioName {
			result := r.runScenario(pb, s)
			return &result, nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found", scenarioName)
}

func (r *Runner) runScenario(pb *schema.Playbook, scenario ScenarioInfo) TestResult {
	start := time.Now()
	result := TestResult{
		PlaybookName: pb.Name,
		ScenarioName: scenario.Name,
		ScenarioDir:  scenario.Dir,
	}

	if !scenario.HasTest {
		result.Status = "skipped"
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	spec, err := LoadTestSpec(filepath.Join(scenario.Dir, "test.yaml"))
	if err != nil {
		result.Status = "error"
		result.Error = fmt.Sprintf("load test.yaml: %v", err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	run, err := r.executeReplay(pb, scenario)
	if err != nil {
		result.Status = "error"
		result.Error = fmt.Sprintf("replay: %v", err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	result.Assertions = Evaluate(spec, run)
	if HasFailures(result.Assertions) {
		result.Status = "failed"
	} else {
		result.Status = "passed"
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (r *Runner) executeReplay(pb *schema.Playbook, scenario ScenarioInfo) (*RunResult, error) {
	sc, err := LoadScenario(filepath.Join(scenario.Dir, "responses.yaml"))
	if err != nil {
		return nil, err
	}

	variables, err := loadInputs(filepath.Join(scenario.Dir, "inputs.yaml"))
	if err != nil {
		return nil, err
	}

	// Replays run against a private in-memory store so they never touch
	// recorded history, and retry delays are skipped entirely.
	memStore := store.NewMemoryStore()
	if err := memStore.SavePlaybook(pb); err != nil {
		return nil, fmt.Errorf("stage playbook: %w", err)
	}
	eng := engine.New(engine.Config{
		Store:  memStore,
		Runner: NewReplayRunner(sc),
		Sleep:  func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	})

	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	ex, err := eng.Execute(ctx, pb.ID, engine.ExecuteRequest{
		Mode:        execution.ModeTest,
		TriggeredBy: "scenario-runner",
		Variables:   variables,
	})
	if err != nil {
		return nil, err
	}
	return buildRunResult(ex), nil
}

func buildRunResult(ex *execution.Execution) *RunResult {
	run := &RunResult{
		Status:         ex.Status,
		ActionStatuses: make(map[string]string),
		Outputs:        make(map[string]string),
	}
	for _, entry := range ex.ActionsExecuted {
		run.ActionStatuses[entry.ActionID] = entry.Status
		if entry.Status != execution.ActionSkipped {
			run.RanActions = append(run.RanActions, entry.ActionID)
		}
		for field, value := range entry.Output {
			run.Outputs[entry.ActionID+"."+field] = fmt.Sprintf("%v", value)
		}
	}
	return run
}

// loadInputs reads a flat variables map; a missing file means no variables.
func loadInputs(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	var vars map[string]any
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("parse inputs: %w", err)
	}
	return vars, nil
}
