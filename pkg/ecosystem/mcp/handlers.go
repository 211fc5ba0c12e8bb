// Package mcp exposes the playbook engine to AI agents over the Model
// Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/black-cross/playbook-engine/pkg/decision"
	"github.com/black-cross/playbook-engine/pkg/engine"
	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/scenario"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/store"
)

// Handlers implements the bxp MCP tools against a shared store.
type Handlers struct {
	Store store.Store
}

// HandleValidate implements the bxp/validate MCP tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	pb, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d actions)", pb.Name, len(pb.Actions))), nil
}

// HandleSchema implements the bxp/schema MCP tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleExec implements the bxp/exec MCP tool.
func (h *Handlers) HandleExec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = execution.ModeTest // safe default for AI agents
	}

	pb, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	if err := h.Store.SavePlaybook(pb); err != nil {
		return errorResult(fmt.Sprintf("stage playbook: %s", err)), nil
	}

	variables := make(map[string]any)
	if rawVars, ok := args["vars"].(map[string]any); ok {
		for k, v := range rawVars {
			variables[k] = v
		}
	}

	eng := engine.New(engine.Config{Store: h.Store})
	ex, err := eng.Execute(ctx, pb.ID, engine.ExecuteRequest{
		Mode:        mode,
		TriggeredBy: "mcp",
		Variables:   variables,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("execute: %s", err)), nil
	}

	response := map[string]any{
		"execution_id": ex.ID,
		"status":       ex.Status,
		"mode":         ex.Mode,
		"successful":   ex.SuccessfulActions,
		"failed":       ex.FailedActions,
		"skipped":      ex.SkippedActions,
	}
	if len(ex.Errors) > 0 {
		response["errors"] = ex.Errors
	}
	data, _ := json.MarshalIndent(response, "", "  ")

	isErr := ex.Status == execution.StatusFailed
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

// HandlePaths implements the bxp/paths MCP tool.
func (h *Handlers) HandlePaths(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	pb, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	evalCtx := make(map[string]any)
	if rawCtx, ok := args["context"].(map[string]any); ok {
		evalCtx = rawCtx
	}

	staging := store.NewMemoryStore()
	if err := staging.SavePlaybook(pb); err != nil {
		return errorResult(fmt.Sprintf("stage playbook: %s", err)), nil
	}
	report, err := decision.NewService(staging).GetExecutionPaths(pb.ID, evalCtx)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	return textResult(string(data)), nil
}

// HandleStatus implements the bxp/status MCP tool.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	executionID, _ := args["execution_id"].(string)
	if executionID == "" {
		return errorResult("execution_id argument is required"), nil
	}

	ex, err := h.Store.LoadExecution(executionID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	data, _ := json.MarshalIndent(ex, "", "  ")
	return textResult(string(data)), nil
}

// HandleTest implements the bxp/test MCP tool.
func (h *Handlers) HandleTest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	scenarioName, _ := args["scenario"].(string)

	runner := &scenario.Runner{Timeout: 30 * time.Second}

	var output *scenario.TestOutput
	if scenarioName != "" {
		result, err := runner.RunScenario(path, scenarioName)
		if err != nil {
			return errorResult(fmt.Sprintf("run scenario: %s", err)), nil
		}
		output = &scenario.TestOutput{
			Playbook:  result.PlaybookName,
			Scenarios: []scenario.TestResult{*result},
			Summary:   scenario.TestSummary{Total: 1},
		}
		switch result.Status {
		case "passed":
			output.Summary.Passed = 1
		case "failed":
			output.Summary.Failed = 1
		case "skipped":
			output.Summary.Skipped = 1
		default:
			output.Summary.Errors = 1
		}
	} else {
		var err error
		output, err = runner.RunAll(path, false)
		if err != nil {
			return errorResult(fmt.Sprintf("run tests: %s", err)), nil
		}
	}

	data, _ := json.MarshalIndent(output, "", "  ")
	isErr := output.Summary.Failed > 0 || output.Summary.Errors > 0
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
