package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
)

// FileStore persists playbooks and executions under a base directory:
//
//	<base>/playbooks/<id>.yaml
//	<base>/executions/<id>/execution.json
//
// Executions are written after every action, so inspecting the file mid-run
// shows a consistent partial state.
type FileStore struct {
	base string
	mu   sync.Mutex // serializes writes per process
}

// DefaultBaseDir is where the CLI keeps its artifacts.
const DefaultBaseDir = ".playbook"

// NewFileStore creates the directory structure if needed.
func NewFileStore(base string) (*FileStore, error) {
	if base == "" {
		base = DefaultBaseDir
	}
	for _, sub := range []string{"playbooks", "executions"} {
		if err := os.MkdirAll(filepath.Join(base, sub), 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &FileStore{base: base}, nil
}

// ExecutionDir returns the artifacts directory for an execution
// (trace files live alongside execution.json).
func (s *FileStore) ExecutionDir(id string) string {
	return filepath.Join(s.base, "executions", id)
}

func (s *FileStore) playbookPath(id string) string {
	return filepath.Join(s.base, "playbooks", id+".yaml")
}

func (s *FileStore) SavePlaybook(pb *schema.Playbook) error {
	data, err := yaml.Marshal(pb)
	if err != nil {
		return fmt.Errorf("marshal playbook: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.playbookPath(pb.ID), data, 0644); err != nil {
		return fmt.Errorf("write playbook %s: %w", pb.ID, err)
	}
	return nil
}

func (s *FileStore) LoadPlaybook(id string) (*schema.Playbook, error) {
	pb, err := schema.LoadFile(s.playbookPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Kind: "playbook", ID: id}
		}
		return nil, err
	}
	return pb, nil
}

func (s *FileStore) SaveExecution(ex *execution.Execution) error {
	dir := s.ExecutionDir(ex.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create execution directory: %w", err)
	}
	data, err := json.MarshalIndent(ex, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(filepath.Join(dir, "execution.json"), data, 0644); err != nil {
		return fmt.Errorf("write execution %s: %w", ex.ID, err)
	}
	return nil
}

func (s *FileStore) LoadExecution(id string) (*execution.Execution, error) {
	data, err := os.ReadFile(filepath.Join(s.ExecutionDir(id), "execution.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Kind: "execution", ID: id}
		}
		return nil, fmt.Errorf("read execution %s: %w", id, err)
	}
	var ex execution.Execution
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, fmt.Errorf("unmarshal execution %s: %w", id, err)
	}
	return &ex, nil
}

func (s *FileStore) ListExecutions(playbookID string) ([]*execution.Execution, error) {
	entries, err := os.ReadDir(filepath.Join(s.base, "executions"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list executions: %w", err)
	}

	var out []*execution.Execution
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ex, err := s.LoadExecution(entry.Name())
		if err != nil {
			// Partially written directories are skipped, not fatal.
			continue
		}
		if playbookID == "" || ex.PlaybookID == playbookID {
			out = append(out, ex)
		}
	}
	return out, nil
}
