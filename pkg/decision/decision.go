// Package decision manages the decision trees attached to playbooks: adding
// decision points, previewing which branches a context would take, and
// summarizing branch frequencies across recorded executions.
package decision

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/black-cross/playbook-engine/pkg/condition"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/store"
)

// Service answers questions about a playbook's decision trees.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// AddRequest carries the fields for a new decision point.
type AddRequest struct {
	DecisionPoint string
	Condition     *schema.DecisionNode
	TruePath      string
	FalsePath     string
}

// AddDecision validates the request, appends the decision to the playbook and
// persists it. The returned decision carries its generated id.
func (s *Service) AddDecision(playbookID string, req AddRequest) (*schema.Decision, error) {
	if req.DecisionPoint == "" {
		return nil, fmt.Errorf("decision_point is required")
	}
	if req.Condition == nil {
		return nil, fmt.Errorf("condition is required")
	}
	if req.TruePath == "" {
		return nil, fmt.Errorf("true_path is required")
	}
	if req.FalsePath == "" {
		return nil, fmt.Errorf("false_path is required")
	}

	pb, err := s.store.LoadPlaybook(playbookID)
	if err != nil {
		return nil, err
	}
	for _, d := range pb.Decisions {
		if d.DecisionPoint == req.DecisionPoint {
			return nil, fmt.Errorf("decision point %q already exists on playbook %s", req.DecisionPoint, playbookID)
		}
	}

	d := schema.Decision{
		ID:            uuid.New().String(),
		DecisionPoint: req.DecisionPoint,
		Condition:     req.Condition,
		TruePath:      req.TruePath,
		FalsePath:     req.FalsePath,
		CreatedAt:     time.Now().UTC(),
	}
	pb.Decisions = append(pb.Decisions, d)
	if errs := schema.Validate(pb); schema.HasErrors(errs) {
		return nil, fmt.Errorf("decision is not valid: %s", errs[0].Message)
	}
	if err := s.store.SavePlaybook(pb); err != nil {
		return nil, err
	}
	return &d, nil
}

// Path is one decision point resolved against a context.
type Path struct {
	DecisionPoint string `json:"decision_point"`
	Taken         string `json:"taken"`
	Result        bool   `json:"result"`
}

// PathReport is the outcome of a dry evaluation of every decision point.
type PathReport struct {
	PlaybookID string `json:"playbook_id"`
	Paths      []Path `json:"paths"`
}

// GetExecutionPaths evaluates every decision point against ctx without
// executing anything. Repeated calls with the same inputs give the same
// report.
func (s *Service) GetExecutionPaths(playbookID string, ctx map[string]any) (*PathReport, error) {
	pb, err := s.store.LoadPlaybook(playbookID)
	if err != nil {
		return nil, err
	}
	report := &PathReport{PlaybookID: pb.ID, Paths: make([]Path, 0, len(pb.Decisions))}
	for _, d := range pb.Decisions {
		result := condition.Evaluate(d.Condition, ctx)
		taken := d.FalsePath
		if result {
			taken = d.TruePath
		}
		report.Paths = append(report.Paths, Path{
			DecisionPoint: d.DecisionPoint,
			Taken:         taken,
			Result:        result,
		})
	}
	return report, nil
}

// BranchCount is how often one branch of a decision point was taken.
type BranchCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// PointAnalysis aggregates the recorded branches for one decision point.
type PointAnalysis struct {
	DecisionPoint string        `json:"decision_point"`
	Branches      []BranchCount `json:"branches"`
}

// Analysis summarizes decision behavior across a playbook's execution history.
type Analysis struct {
	PlaybookID string          `json:"playbook_id"`
	Executions int             `json:"executions"`
	Points     []PointAnalysis `json:"points"`
}

// AnalyzeDecisions counts, per decision point, how often each branch was
// taken across all recorded executions of the playbook.
func (s *Service) AnalyzeDecisions(playbookID string) (*Analysis, error) {
	pb, err := s.store.LoadPlaybook(playbookID)
	if err != nil {
		return nil, err
	}
	execs, err := s.store.ListExecutions(playbookID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]map[string]int)
	for _, ex := range execs {
		for point, path := range ex.DecisionPaths {
			if counts[point] == nil {
				counts[point] = make(map[string]int)
			}
			counts[point][path]++
		}
	}

	analysis := &Analysis{PlaybookID: pb.ID, Executions: len(execs)}
	// Report points in playbook order so repeated analyses read the same.
	for _, d := range pb.Decisions {
		byPath := counts[d.DecisionPoint]
		delete(counts, d.DecisionPoint)
		analysis.Points = append(analysis.Points, pointAnalysis(d.DecisionPoint, byPath))
	}
	// Points recorded on old executions but since removed from the playbook.
	var orphaned []string
	for point := range counts {
		orphaned = append(orphaned, point)
	}
	sort.Strings(orphaned)
	for _, point := range orphaned {
		analysis.Points = append(analysis.Points, pointAnalysis(point, counts[point]))
	}
	return analysis, nil
}

func pointAnalysis(point string, byPath map[string]int) PointAnalysis {
	pa := PointAnalysis{DecisionPoint: point}
	var paths []string
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		pa.Branches = append(pa.Branches, BranchCount{Path: p, Count: byPath[p]})
	}
	return pa
}
