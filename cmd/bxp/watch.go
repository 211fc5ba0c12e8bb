package main

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/black-cross/playbook-engine/pkg/engine"
	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/stats"
	"github.com/black-cross/playbook-engine/pkg/store"
	"github.com/black-cross/playbook-engine/pkg/tui"
)

var (
	watchMode string
	watchVars []string
	watchAs   string
	watchExec string
)

var watchCmd = &cobra.Command{
	Use:   "watch [playbook.yaml]",
	Short: "Execute a playbook with a live terminal view",
	Long: `Execute a playbook and watch the per-action log update live. The view
supports pausing, resuming, and cancelling the run.

With --execution, attach read-only to an already recorded execution
instead of starting a new one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	s := openStore()

	// Attach mode: read-only view of a recorded execution.
	if watchExec != "" {
		ex, err := s.LoadExecution(watchExec)
		if err != nil {
			return err
		}
		pb, err := s.LoadPlaybook(ex.PlaybookID)
		if err != nil {
			return err
		}
		model := tui.NewModel(s, nil, pb, ex.ID)
		_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
		return err
	}

	if len(args) != 1 {
		return fmt.Errorf("a playbook path is required unless --execution is given")
	}

	pb, errs := schema.ValidateFile(args[0])
	if schema.HasErrors(errs) {
		printValidationErrors(errs)
		return fmt.Errorf("playbook validation failed")
	}
	variables, err := parseVars(watchVars)
	if err != nil {
		return err
	}
	if err := s.SavePlaybook(pb); err != nil {
		return fmt.Errorf("stage playbook: %w", err)
	}

	// Engine output goes nowhere: the TUI owns the terminal.
	eng := engine.New(engine.Config{
		Store:    s,
		Stats:    stats.NewRecorder(s, io.Discard),
		Pausable: true,
		Out:      io.Discard,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Execute runs synchronously, so it goes to a background goroutine and
	// the watch view discovers the new execution record through the store.
	started := time.Now()
	errCh := make(chan error, 1)
	go func() {
		_, err := eng.Execute(ctx, pb.ID, engine.ExecuteRequest{
			Mode:        watchMode,
			TriggeredBy: watchAs,
			Variables:   variables,
		})
		errCh <- err
	}()

	executionID, err := awaitExecution(s, pb.ID, started, errCh)
	if err != nil {
		return err
	}

	// Live mode with approvals stops before any action runs; watching that
	// would show an empty list forever, so surface the id and exit.
	if ex, err := s.LoadExecution(executionID); err == nil && ex.Status == execution.StatusAwaitingApproval {
		fmt.Printf("Execution %s is awaiting approval.\n", ex.ID)
		fmt.Printf("  bxp approve %s --as <approver>\n", ex.ID)
		return nil
	}

	model := tui.NewModel(s, eng, pb, executionID)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// awaitExecution polls the store until the execution started after the given
// time shows up, or the background run fails before creating one.
func awaitExecution(s store.Store, playbookID string, after time.Time, errCh <-chan error) (string, error) {
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-errCh:
			if err != nil {
				return "", err
			}
		case <-deadline:
			return "", fmt.Errorf("timed out waiting for the execution record")
		default:
		}

		execs, err := s.ListExecutions(playbookID)
		if err == nil {
			for _, ex := range execs {
				if !ex.StartedAt.Before(after) {
					return ex.ID, nil
				}
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchMode, "mode", "", "Execution mode: live, test, or simulation (default live)")
	watchCmd.Flags().StringArrayVar(&watchVars, "var", nil, "Set a variable (key=value), repeatable")
	watchCmd.Flags().StringVar(&watchAs, "as", "", "Actor identity recorded as triggered_by")
	watchCmd.Flags().StringVar(&watchExec, "execution", "", "Attach read-only to a recorded execution id")
}
