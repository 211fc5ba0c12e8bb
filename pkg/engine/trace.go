package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/black-cross/playbook-engine/pkg/execution"
)

// TraceEvent wraps an ActionResult for JSONL trace output with extra metadata.
type TraceEvent struct {
	Type        string                  `json:"type"` // action_result
	Timestamp   time.Time               `json:"timestamp"`
	ExecutionID string                  `json:"execution_id"`
	Result      *execution.ActionResult `json:"result"`
}

// TraceWriter writes ActionResult events to a JSONL trace file.
type TraceWriter struct {
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
}

// NewTraceWriter creates a trace writer that appends to the given file,
// creating the parent directory if needed.
func NewTraceWriter(path string) (*TraceWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &TraceWriter{
		file:   f,
		writer: w,
		enc:    json.NewEncoder(w),
	}, nil
}

// Write appends an ActionResult as a JSONL event and flushes to disk.
func (tw *TraceWriter) Write(executionID string, result *execution.ActionResult) error {
	event := TraceEvent{
		Type:        "action_result",
		Timestamp:   time.Now(),
		ExecutionID: executionID,
		Result:      result,
	}
	if err := tw.enc.Encode(event); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	// Flush and sync at action boundaries
	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("sync trace: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (tw *TraceWriter) Close() error {
	if err := tw.writer.Flush(); err != nil {
		return err
	}
	return tw.file.Close()
}
