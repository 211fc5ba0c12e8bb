package tui

import (
	"strings"
	"testing"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/store"
)

func watchPlaybook() *schema.Playbook {
	return &schema.Playbook{
		ID:   "pb-watch",
		Name: "watch-me",
		Actions: []schema.Action{
			{ID: "contain", Name: "Contain", Type: "isolate_endpoint", Order: 1},
			{ID: "enrich", Name: "Enrich", Type: "enrich_ioc", Order: 0},
		},
	}
}

func TestModelInitFromPlaybook(t *testing.T) {
	m := NewModel(store.NewMemoryStore(), nil, watchPlaybook(), "ex-1")
	if len(m.actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(m.actions))
	}
	// Rows follow execution order, not declaration order.
	if m.actions[0].ID != "enrich" || m.actions[1].ID != "contain" {
		t.Errorf("rows = %q, %q; want enrich, contain", m.actions[0].ID, m.actions[1].ID)
	}
	if m.actions[0].Status != "pending" {
		t.Errorf("initial status = %q, want pending", m.actions[0].Status)
	}
}

func TestModelAppliesExecutionRecord(t *testing.T) {
	pb := watchPlaybook()
	m := NewModel(store.NewMemoryStore(), nil, pb, "ex-1")

	ex := execution.New(pb, execution.ModeLive, "tui-test", nil)
	ex.Status = execution.StatusRunning
	ex.ActionsExecuted = append(ex.ActionsExecuted, &execution.ActionResult{
		ActionID:   "enrich",
		Status:     execution.ActionCompleted,
		DurationMS: 120,
	})
	m.apply(ex)

	if m.actions[0].Status != execution.ActionCompleted {
		t.Errorf("enrich status = %q, want completed", m.actions[0].Status)
	}
	if m.actions[0].Duration.Milliseconds() != 120 {
		t.Errorf("duration = %v, want 120ms", m.actions[0].Duration)
	}
	// The first unlogged action renders as running while the execution runs.
	if m.actions[1].Status != "running" {
		t.Errorf("contain status = %q, want running", m.actions[1].Status)
	}
}

func TestModelViewShowsOutcome(t *testing.T) {
	pb := watchPlaybook()
	m := NewModel(store.NewMemoryStore(), nil, pb, "ex-1")

	ex := execution.New(pb, execution.ModeTest, "tui-test", nil)
	ex.Status = execution.StatusCompleted
	ex.SuccessfulActions = 2
	ex.ActionsExecuted = []*execution.ActionResult{
		{ActionID: "enrich", Status: execution.ActionCompleted},
		{ActionID: "contain", Status: execution.ActionCompleted},
	}
	m.apply(ex)

	view := m.View()
	if !strings.Contains(view, "watch-me") {
		t.Error("view missing playbook name")
	}
	if !strings.Contains(view, GlyphCompleted) {
		t.Error("view missing completed glyph")
	}
	if !strings.Contains(view, "TEST") {
		t.Error("non-live executions should show a mode badge")
	}
	if !m.terminal() {
		t.Error("completed execution should be terminal")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short, 10) = %q", got)
	}
	got := truncate("a very long error message", 10)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated string should end with ellipsis: %q", got)
	}
	if truncate("anything", 0) != "" {
		t.Error("zero width should yield empty string")
	}
}
