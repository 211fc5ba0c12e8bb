package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/black-cross/playbook-engine/pkg/execution"
)

var showCmd = &cobra.Command{
	Use:   "show [execution-id]",
	Short: "Show a recorded execution as a formatted report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, err := openStore().LoadExecution(args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderMarkdown(executionReport(ex)))
		return nil
	},
}

// executionReport builds a markdown summary of one execution.
func executionReport(ex *execution.Execution) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", ex.PlaybookName)
	fmt.Fprintf(&b, "- **Execution:** `%s`\n", ex.ID)
	fmt.Fprintf(&b, "- **Status:** %s\n", ex.Status)
	fmt.Fprintf(&b, "- **Mode:** %s\n", ex.Mode)
	if ex.TriggeredBy != "" {
		fmt.Fprintf(&b, "- **Triggered by:** %s\n", ex.TriggeredBy)
	}
	fmt.Fprintf(&b, "- **Started:** %s\n", ex.StartedAt.Format(time.RFC3339))
	if !ex.EndedAt.IsZero() {
		fmt.Fprintf(&b, "- **Duration:** %s\n", ex.Duration().Truncate(time.Millisecond))
	}
	if ex.Approval.ApprovedBy != "" {
		fmt.Fprintf(&b, "- **Approved by:** %s at %s\n", ex.Approval.ApprovedBy, ex.Approval.ApprovedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- **Actions:** %d ok / %d failed / %d skipped\n",
		ex.SuccessfulActions, ex.FailedActions, ex.SkippedActions)

	if len(ex.DecisionPaths) > 0 {
		b.WriteString("\n## Decision paths\n\n")
		for point, path := range ex.DecisionPaths {
			fmt.Fprintf(&b, "- %s → **%s**\n", point, path)
		}
	}

	if len(ex.ActionsExecuted) > 0 {
		b.WriteString("\n## Action log\n\n")
		b.WriteString("| Action | Status | Duration | Retries | Error |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, a := range ex.ActionsExecuted {
			fmt.Fprintf(&b, "| %s | %s | %dms | %d | %s |\n",
				a.ActionID, a.Status, a.DurationMS, a.RetryCount, a.Error)
		}
	}

	if len(ex.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range ex.Errors {
			fmt.Fprintf(&b, "- `%s`: %s\n", e.ActionID, e.Message)
		}
	}

	return b.String()
}

// renderMarkdown converts a markdown string to styled terminal output.
// Falls back to the raw input if glamour is unavailable or rendering fails.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
