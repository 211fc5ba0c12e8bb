package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
)

// MemoryStore is an in-process store used by tests and embedders.
// Records are kept as JSON snapshots, so a loaded record is always a
// consistent point-in-time copy, never a live pointer into the engine.
type MemoryStore struct {
	mu         sync.RWMutex
	playbooks  map[string][]byte
	executions map[string][]byte
	// byPlaybook preserves insertion order for ListExecutions.
	byPlaybook map[string][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		playbooks:  make(map[string][]byte),
		executions: make(map[string][]byte),
		byPlaybook: make(map[string][]string),
	}
}

func (s *MemoryStore) SavePlaybook(pb *schema.Playbook) error {
	data, err := json.Marshal(pb)
	if err != nil {
		return fmt.Errorf("marshal playbook: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playbooks[pb.ID] = data
	return nil
}

func (s *MemoryStore) LoadPlaybook(id string) (*schema.Playbook, error) {
	s.mu.RLock()
	data, ok := s.playbooks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Kind: "playbook", ID: id}
	}
	var pb schema.Playbook
	if err := json.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("unmarshal playbook %s: %w", id, err)
	}
	return &pb, nil
}

func (s *MemoryStore) SaveExecution(ex *execution.Execution) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.executions[ex.ID]; !seen {
		s.byPlaybook[ex.PlaybookID] = append(s.byPlaybook[ex.PlaybookID], ex.ID)
	}
	s.executions[ex.ID] = data
	return nil
}

func (s *MemoryStore) LoadExecution(id string) (*execution.Execution, error) {
	s.mu.RLock()
	data, ok := s.executions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Kind: "execution", ID: id}
	}
	var ex execution.Execution
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, fmt.Errorf("unmarshal execution %s: %w", id, err)
	}
	return &ex, nil
}

func (s *MemoryStore) ListExecutions(playbookID string) ([]*execution.Execution, error) {
	s.mu.RLock()
	var ids []string
	if playbookID == "" {
		for _, list := range s.byPlaybook {
			ids = append(ids, list...)
		}
	} else {
		ids = append(ids, s.byPlaybook[playbookID]...)
	}
	s.mu.RUnlock()

	out := make([]*execution.Execution, 0, len(ids))
	for _, id := range ids {
		ex, err := s.LoadExecution(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}
