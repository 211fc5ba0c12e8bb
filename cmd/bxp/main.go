package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/black-cross/playbook-engine/pkg/decision"
	"github.com/black-cross/playbook-engine/pkg/engine"
	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/scenario"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/stats"
	"github.com/black-cross/playbook-engine/pkg/store"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

var dataDir string

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		// Don't overwrite existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "bxp",
	Short: "Black-Cross playbook engine",
	Long:  "bxp — decision-driven security playbook execution with approval gates, retries, and auditable per-action history.",
}

// openStore returns the file-backed store rooted at --data-dir.
func openStore() *store.FileStore {
	s, err := store.NewFileStore(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return s
}

// newEngine builds the standard CLI engine: file store, stats recording,
// pause/resume enabled, trace files next to the execution records.
func newEngine(s *store.FileStore) *engine.Engine {
	return engine.New(engine.Config{
		Store:    s,
		Stats:    stats.NewRecorder(s, os.Stderr),
		Pausable: true,
		TraceDir: filepath.Join(dataDir, "traces"),
		Out:      os.Stdout,
	})
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [playbook.yaml]",
	Short: "Validate a playbook YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	pb, errs := schema.ValidateFile(args[0])
	if len(errs) > 0 {
		var errors []*schema.ValidationError
		var warnings []*schema.ValidationError
		for _, e := range errs {
			if e.Severity == "warning" {
				warnings = append(warnings, e)
			} else {
				errors = append(errors, e)
			}
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
			if w.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
			}
		}
		if len(errors) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errors))
			for i, e := range errors {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
				}
			}
			return fmt.Errorf("validation failed with %d error(s)", len(errors))
		}
	}
	fmt.Printf("✓ %s is valid (%d actions, %d decisions)\n", pb.Name, len(pb.Actions), len(pb.Decisions))
	return nil
}

// --- exec ---

var (
	execMode string
	execAs   string
	execVars []string
	execYes  bool
)

var execCmd = &cobra.Command{
	Use:   "exec [playbook.yaml]",
	Short: "Execute a playbook",
	Long: `Validate the playbook, stage it in the local store, and execute it.

Live executions of playbooks with approvals_required stop in
awaiting_approval; the command then prompts for approval unless --yes
is given. Test and simulation executions skip the approval gate.`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	pb, errs := schema.ValidateFile(args[0])
	if schema.HasErrors(errs) {
		printValidationErrors(errs)
		return fmt.Errorf("playbook validation failed")
	}

	variables, err := parseVars(execVars)
	if err != nil {
		return err
	}

	s := openStore()
	if err := s.SavePlaybook(pb); err != nil {
		return fmt.Errorf("stage playbook: %w", err)
	}

	eng := newEngine(s)
	ctx := context.Background()

	fmt.Printf("Playbook: %s (%s)\n", pb.Name, pb.ID)
	fmt.Printf("Mode: %s\n", execModeOrDefault())
	if execAs != "" {
		fmt.Printf("Actor: %s\n", execAs)
	}

	ex, err := eng.Execute(ctx, pb.ID, engine.ExecuteRequest{
		Mode:        execMode,
		TriggeredBy: execAs,
		Variables:   variables,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Execution ID: %s\n", ex.ID)

	if ex.Status == execution.StatusAwaitingApproval {
		approver, ok, err := resolveApproval()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Left awaiting approval. Approve later with:")
			fmt.Printf("  bxp approve %s --as <approver>\n", ex.ID)
			return nil
		}
		ex, err = eng.Approve(ctx, ex.ID, approver, nil)
		if err != nil {
			return err
		}
	}

	if ex.Status == execution.StatusFailed {
		os.Exit(1)
	}
	return nil
}

func execModeOrDefault() string {
	if execMode == "" {
		return execution.ModeLive
	}
	return execMode
}

// resolveApproval returns the approver identity and whether to approve now.
// --yes approves as the --as actor without prompting.
func resolveApproval() (string, bool, error) {
	if execYes {
		approver := execAs
		if approver == "" {
			approver = "cli"
		}
		return approver, true, nil
	}

	rl, err := readline.New("approve this execution? (yes/no): ")
	if err != nil {
		return "", false, fmt.Errorf("init prompt: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return "", false, nil
			}
			return "", false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "yes", "y":
			approver := execAs
			if approver == "" {
				rl.SetPrompt("approver id: ")
				name, err := rl.Readline()
				if err != nil {
					return "", false, nil
				}
				approver = strings.TrimSpace(name)
				if approver == "" {
					approver = "cli"
				}
			}
			return approver, true, nil
		case "no", "n":
			return "", false, nil
		}
	}
}

// --- approve ---

var (
	approveAs   string
	approveVars []string
)

var approveCmd = &cobra.Command{
	Use:   "approve [execution-id]",
	Short: "Approve a pending execution and run it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if approveAs == "" {
			return fmt.Errorf("--as is required: approvals are recorded against a named approver")
		}
		variables, err := parseVars(approveVars)
		if err != nil {
			return err
		}
		s := openStore()
		ex, err := newEngine(s).Approve(context.Background(), args[0], approveAs, variables)
		if err != nil {
			return err
		}
		if ex.Status == execution.StatusFailed {
			os.Exit(1)
		}
		return nil
	},
}

// --- cancel ---

var cancelCmd = &cobra.Command{
	Use:   "cancel [execution-id]",
	Short: "Cancel a queued, paused, or approval-pending execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := openStore()
		ex, err := newEngine(s).Cancel(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("■ execution %s cancelled\n", ex.ID)
		return nil
	},
}

// --- list ---

var listPlaybook string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := openStore()
		execs, err := s.ListExecutions(listPlaybook)
		if err != nil {
			return err
		}
		if len(execs) == 0 {
			fmt.Println("No executions recorded.")
			return nil
		}
		for _, ex := range execs {
			fmt.Printf("  %s  %-18s  %-10s  %s  %s\n",
				ex.ID, ex.Status, ex.Mode,
				ex.StartedAt.Format("2006-01-02 15:04:05"),
				ex.PlaybookName)
		}
		return nil
	},
}

// --- paths ---

var pathsContext []string

var pathsCmd = &cobra.Command{
	Use:   "paths [playbook.yaml]",
	Short: "Preview which decision branches a context would take",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pb, errs := schema.ValidateFile(args[0])
		if schema.HasErrors(errs) {
			printValidationErrors(errs)
			return fmt.Errorf("playbook validation failed")
		}
		evalCtx, err := parseVars(pathsContext)
		if err != nil {
			return err
		}

		staging := store.NewMemoryStore()
		if err := staging.SavePlaybook(pb); err != nil {
			return err
		}
		report, err := decision.NewService(staging).GetExecutionPaths(pb.ID, evalCtx)
		if err != nil {
			return err
		}
		for _, p := range report.Paths {
			glyph := "✗"
			if p.Result {
				glyph = "✓"
			}
			fmt.Printf("  %s %-24s → %s\n", glyph, p.DecisionPoint, p.Taken)
		}
		return nil
	},
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [playbook-id]",
	Short: "Summarize decision branches across recorded executions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := openStore()
		analysis, err := decision.NewService(s).AnalyzeDecisions(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s — %d execution(s)\n", analysis.PlaybookID, analysis.Executions)
		for _, p := range analysis.Points {
			fmt.Printf("  %s\n", p.DecisionPoint)
			if len(p.Branches) == 0 {
				fmt.Println("    (no recorded branches)")
				continue
			}
			for _, b := range p.Branches {
				fmt.Printf("    %-24s %d\n", b.Path, b.Count)
			}
		}
		return nil
	},
}

// --- decision add ---

var (
	decisionPoint     string
	decisionTruePath  string
	decisionFalsePath string
	decisionCondition string
)

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Manage playbook decision points",
}

var decisionAddCmd = &cobra.Command{
	Use:   "add [playbook-id]",
	Short: "Add a decision point to a stored playbook",
	Long: `Add a decision point. The condition is YAML, inline or from a file:

  bxp decision add pb-phishing \
    --point severity_check \
    --condition '{type: simple, variable: severity, operator: equals, value: critical}' \
    --true-path escalate --false-path monitor

  bxp decision add pb-phishing --point risk --condition @risk.yaml \
    --true-path contain --false-path observe`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := parseConditionFlag(decisionCondition)
		if err != nil {
			return err
		}
		s := openStore()
		d, err := decision.NewService(s).AddDecision(args[0], decision.AddRequest{
			DecisionPoint: decisionPoint,
			Condition:     node,
			TruePath:      decisionTruePath,
			FalsePath:     decisionFalsePath,
		})
		if err != nil {
			return err
		}
		fmt.Printf("✓ decision %s added (%s)\n", d.DecisionPoint, d.ID)
		return nil
	},
}

// parseConditionFlag parses an inline YAML condition, or reads it from a file
// when the value starts with @.
func parseConditionFlag(value string) (*schema.DecisionNode, error) {
	if value == "" {
		return nil, fmt.Errorf("--condition is required")
	}
	data := []byte(value)
	if strings.HasPrefix(value, "@") {
		var err error
		data, err = os.ReadFile(value[1:])
		if err != nil {
			return nil, fmt.Errorf("read condition file: %w", err)
		}
	}
	var node schema.DecisionNode
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse condition: %w", err)
	}
	return &node, nil
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the playbook JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		var out json.RawMessage = data
		formatted, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Println(string(data))
			return nil
		}
		fmt.Println(string(formatted))
		return nil
	},
}

// --- test ---

var (
	testScenario string
	testJSON     bool
	testFailFast bool
	testTimeout  string
)

var testCmd = &cobra.Command{
	Use:   "test [playbook.yaml...]",
	Short: "Run scenario replay tests for playbooks",
	Long: `Discover scenarios for each playbook, replay them with scripted action
responses, and compare against test.yaml assertions.

Scenarios are discovered by convention at:
  {playbook-dir}/scenarios/{playbook-name}/*/responses.yaml

Only scenarios with a test.yaml file are asserted. Scenarios without
test.yaml are reported as skipped.

Exit codes:
  0 — all asserted tests passed
  1 — at least one asserted test failed
  2 — playbook validation failed (no tests ran)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	timeout := 30 * time.Second
	if testTimeout != "" {
		d, err := time.ParseDuration(testTimeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", testTimeout, err)
		}
		timeout = d
	}

	runner := &scenario.Runner{Timeout: timeout}
	allPassed := true
	hasValidationError := false

	for _, playbookPath := range args {
		var output *scenario.TestOutput
		var err error
		if testScenario != "" {
			var result *scenario.TestResult
			result, err = runner.RunScenario(playbookPath, testScenario)
			if err == nil {
				output = &scenario.TestOutput{
					Playbook:  result.PlaybookName,
					Scenarios: []scenario.TestResult{*result},
					Summary:   summarize(*result),
				}
			}
		} else {
			output, err = runner.RunAll(playbookPath, testFailFast)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ %s: %v\n", playbookPath, err)
			hasValidationError = true
			continue
		}

		if testJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(output)
		} else {
			printTestOutput(output)
		}

		if output.Summary.Failed > 0 || output.Summary.Errors > 0 {
			allPassed = false
		}
		if testFailFast && !allPassed {
			break
		}
	}

	if hasValidationError {
		os.Exit(2)
	}
	if !allPassed {
		os.Exit(1)
	}
	return nil
}

func summarize(result scenario.TestResult) scenario.TestSummary {
	s := scenario.TestSummary{Total: 1}
	switch result.Status {
	case "passed":
		s.Passed = 1
	case "failed":
		s.Failed = 1
	case "skipped":
		s.Skipped = 1
	default:
		s.Errors = 1
	}
	return s
}

func printTestOutput(output *scenario.TestOutput) {
	fmt.Printf("\n  %s\n", output.Playbook)
	for _, s := range output.Scenarios {
		switch s.Status {
		case "passed":
			fmt.Printf("    ✓ %-30s %dms\n", s.ScenarioName, s.DurationMs)
		case "failed":
			fmt.Printf("    ✗ %-30s %dms\n", s.ScenarioName, s.DurationMs)
			for _, a := range s.Assertions {
				if !a.Passed {
					fmt.Printf("        %s: %s\n", a.Type, a.Message)
				}
			}
		case "skipped":
			fmt.Printf("    ○ %-30s (no test.yaml)  %dms\n", s.ScenarioName, s.DurationMs)
		case "error":
			fmt.Printf("    ✗ %-30s ERROR: %s\n", s.ScenarioName, s.Error)
		}
	}
	fmt.Printf("\n  %d scenarios, %d passed, %d failed, %d skipped\n",
		output.Summary.Total, output.Summary.Passed, output.Summary.Failed, output.Summary.Skipped)
	if output.Summary.Errors > 0 {
		fmt.Printf("  %d errors\n", output.Summary.Errors)
	}
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bxp %s (build: %s)\n", version, commit)
	},
}

// --- helpers ---

// parseVars turns repeated key=value flags into a variables map. Values are
// parsed as YAML scalars so numbers and booleans keep their type.
func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(parts[1]), &value); err != nil {
			value = parts[1]
		}
		vars[parts[0]] = value
	}
	return vars, nil
}

func printValidationErrors(errs []*schema.ValidationError) {
	n := 0
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n", n)
	for _, e := range errs {
		if e.Severity != "warning" {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", store.DefaultBaseDir, "Directory for stored playbooks and executions")

	execCmd.Flags().StringVar(&execMode, "mode", "", "Execution mode: live, test, or simulation (default live)")
	execCmd.Flags().StringVar(&execAs, "as", "", "Actor identity recorded as triggered_by and used for approvals")
	execCmd.Flags().StringArrayVar(&execVars, "var", nil, "Set a variable (key=value), repeatable")
	execCmd.Flags().BoolVar(&execYes, "yes", false, "Approve without prompting when the playbook requires approval")

	approveCmd.Flags().StringVar(&approveAs, "as", "", "Approver identity (required)")
	approveCmd.Flags().StringArrayVar(&approveVars, "var", nil, "Add or override a variable (key=value), repeatable")

	listCmd.Flags().StringVar(&listPlaybook, "playbook", "", "Only list executions of this playbook id")

	pathsCmd.Flags().StringArrayVar(&pathsContext, "context", nil, "Context value (key=value), repeatable")

	decisionAddCmd.Flags().StringVar(&decisionPoint, "point", "", "Decision point name")
	decisionAddCmd.Flags().StringVar(&decisionCondition, "condition", "", "Condition YAML, inline or @file")
	decisionAddCmd.Flags().StringVar(&decisionTruePath, "true-path", "", "Path taken when the condition holds")
	decisionAddCmd.Flags().StringVar(&decisionFalsePath, "false-path", "", "Path taken when the condition does not hold")
	decisionCmd.AddCommand(decisionAddCmd)

	testCmd.Flags().StringVar(&testScenario, "scenario", "", "Run only the named scenario (default: all)")
	testCmd.Flags().BoolVar(&testJSON, "json", false, "Output results as structured JSON")
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "Stop after first failure")
	testCmd.Flags().StringVar(&testTimeout, "timeout", "30s", "Per-scenario timeout (e.g. 30s, 1m)")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(decisionCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(versionCmd)
}
