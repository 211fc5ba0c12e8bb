package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/store"
)

// pollInterval is how often the watch view re-reads the execution record.
const pollInterval = 500 * time.Millisecond

// Controller lets the watch view pause, resume, and cancel a live execution.
// A nil controller renders a read-only view.
type Controller interface {
	Pause(ctx context.Context, executionID string) (*execution.Execution, error)
	Resume(ctx context.Context, executionID string) (*execution.Execution, error)
	Cancel(ctx context.Context, executionID string) (*execution.Execution, error)
}

// actionRow is one playbook action as shown in the watch list.
type actionRow struct {
	ID       string
	Name     string
	Type     string
	Status   string // pending, running, completed, failed, skipped
	Duration time.Duration
	Error    string
}

// Model is the Bubble Tea model for bxp watch.
type Model struct {
	store       store.Store
	controller  Controller
	executionID string

	actions  []actionRow
	latest   *execution.Execution
	selected int
	spinner  spinner.Model
	width    int
	height   int
	err      error
}

// NewModel creates a watch model for one execution of pb.
func NewModel(s store.Store, ctrl Controller, pb *schema.Playbook, executionID string) Model {
	sorted := pb.SortedActions()
	rows := make([]actionRow, 0, len(sorted))
	for _, a := range sorted {
		rows = append(rows, actionRow{
			ID:     a.ID,
			Name:   a.Name,
			Type:   a.Type,
			Status: "pending",
		})
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		store:       s,
		controller:  ctrl,
		executionID: executionID,
		actions:     rows,
		spinner:     sp,
	}
}

// --- Messages ---

type tickMsg time.Time

type pollMsg struct {
	ex  *execution.Execution
	err error
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		ex, err := m.store.LoadExecution(m.executionID)
		return pollMsg{ex: ex, err: err}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll(), tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Down):
			if m.selected < len(m.actions)-1 {
				m.selected++
			}
		case key.Matches(msg, keys.Pause):
			if m.controller != nil && m.status() == execution.StatusRunning {
				m.controller.Pause(context.Background(), m.executionID)
				return m, m.poll()
			}
		case key.Matches(msg, keys.Resume):
			if m.controller != nil && m.status() == execution.StatusPaused {
				m.controller.Resume(context.Background(), m.executionID)
				return m, m.poll()
			}
		case key.Matches(msg, keys.Cancel):
			if m.controller != nil && !m.terminal() {
				m.controller.Cancel(context.Background(), m.executionID)
				return m, m.poll()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		if m.terminal() {
			return m, nil
		}
		return m, tea.Batch(m.poll(), tick())

	case pollMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.apply(msg.ex)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// apply folds the latest execution record into the action rows.
func (m *Model) apply(ex *execution.Execution) {
	m.latest = ex

	logged := make(map[string]*execution.ActionResult, len(ex.ActionsExecuted))
	for _, entry := range ex.ActionsExecuted {
		logged[entry.ActionID] = entry
	}

	seenAll := true
	for i := range m.actions {
		entry, ok := logged[m.actions[i].ID]
		if !ok {
			if seenAll && ex.Status == execution.StatusRunning {
				m.actions[i].Status = "running"
				seenAll = false
			} else {
				m.actions[i].Status = "pending"
			}
			continue
		}
		m.actions[i].Status = entry.Status
		m.actions[i].Duration = time.Duration(entry.DurationMS) * time.Millisecond
		m.actions[i].Error = entry.Error
	}
}

func (m Model) status() string {
	if m.latest == nil {
		return ""
	}
	return m.latest.Status
}

func (m Model) terminal() bool {
	return m.latest != nil && execution.IsTerminal(m.latest.Status)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	title := "bxp watch"
	if m.latest != nil {
		title = fmt.Sprintf("bxp watch: %s", m.latest.PlaybookName)
	}
	b.WriteString(headerStyle.Render(title))
	if m.latest != nil && m.latest.Mode != execution.ModeLive {
		b.WriteString(" " + modeBadgeStyle.Render(strings.ToUpper(m.latest.Mode)))
	}
	b.WriteString("\n\n")

	for i, row := range m.actions {
		line := fmt.Sprintf("%s %s [%s]", actionIcon(row.Status, m.spinner.View()), row.Name, row.Type)
		if row.Duration > 0 {
			line += fmt.Sprintf("  %s", row.Duration.Truncate(time.Millisecond))
		}
		if row.Error != "" {
			line += "  " + truncate(row.Error, m.width-runewidth.StringWidth(line)-6)
		}

		style := actionStyle(row.Status)
		if i == m.selected {
			b.WriteString(actionCurrent.Render("▸ " + line))
		} else {
			b.WriteString("  " + style.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")
	b.WriteString(keyBarText(m.terminal(), m.status() == execution.StatusPaused, m.controller != nil))
	return b.String()
}

func (m Model) statusLine() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("  ✗ %s", m.err))
	}
	if m.latest == nil {
		return dimStyle.Render("  waiting for execution record...")
	}
	switch m.latest.Status {
	case execution.StatusCompleted:
		return statusCompletedStyle.Render(fmt.Sprintf("  ✓ completed  %d ok / %d failed / %d skipped",
			m.latest.SuccessfulActions, m.latest.FailedActions, m.latest.SkippedActions))
	case execution.StatusFailed:
		return statusFailedStyle.Render(fmt.Sprintf("  ✗ failed  %d ok / %d failed / %d skipped",
			m.latest.SuccessfulActions, m.latest.FailedActions, m.latest.SkippedActions))
	case execution.StatusCancelled:
		return dimStyle.Render("  ■ cancelled")
	case execution.StatusPaused:
		return statusRunningStyle.Render("  ‖ paused")
	case execution.StatusAwaitingApproval:
		return statusRunningStyle.Render("  ‖ awaiting approval")
	default:
		return statusRunningStyle.Render("  " + m.spinner.View() + " " + m.latest.Status)
	}
}

func actionIcon(status, spinnerFrame string) string {
	switch status {
	case "pending":
		return GlyphPending
	case "running":
		return spinnerFrame
	case execution.ActionCompleted:
		return GlyphCompleted
	case execution.ActionFailed:
		return GlyphFailed
	case execution.ActionSkipped:
		return GlyphSkipped
	default:
		return "?"
	}
}

func actionStyle(status string) interface{ Render(...string) string } {
	switch status {
	case execution.ActionCompleted:
		return actionCompleted
	case execution.ActionFailed:
		return actionFailed
	case execution.ActionSkipped:
		return actionSkipped
	default:
		return actionNormal
	}
}

// truncate shortens s to fit in width terminal cells, rune-width aware.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
