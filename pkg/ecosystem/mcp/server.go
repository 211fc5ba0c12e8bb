package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/black-cross/playbook-engine/pkg/store"
)

// NewServer creates a new MCP server with playbook tools registered.
func NewServer(version string, s store.Store) *server.MCPServer {
	srv := server.NewMCPServer(
		"bxp",
		version,
		server.WithToolCapabilities(true),
	)

	h := &Handlers{Store: s}

	srv.AddTool(
		mcp.NewTool("bxp/validate",
			mcp.WithDescription("Validate a playbook YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the playbook YAML file")),
		),
		h.HandleValidate,
	)

	srv.AddTool(
		mcp.NewTool("bxp/exec",
			mcp.WithDescription("Execute a playbook (defaults to test mode for safety)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the playbook YAML file")),
			mcp.WithString("mode", mcp.Description("Execution mode: live, test, or simulation")),
		),
		h.HandleExec,
	)

	srv.AddTool(
		mcp.NewTool("bxp/paths",
			mcp.WithDescription("Preview which decision branches a playbook would take for a given context"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the playbook YAML file")),
		),
		h.HandlePaths,
	)

	srv.AddTool(
		mcp.NewTool("bxp/test",
			mcp.WithDescription("Run scenario replay tests for a playbook"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the playbook YAML file")),
			mcp.WithString("scenario", mcp.Description("Run only the named scenario (optional)")),
		),
		h.HandleTest,
	)

	srv.AddTool(
		mcp.NewTool("bxp/status",
			mcp.WithDescription("Report the state of a recorded execution"),
			mcp.WithString("execution_id", mcp.Required(), mcp.Description("Execution id")),
		),
		h.HandleStatus,
	)

	srv.AddTool(
		mcp.NewTool("bxp/schema",
			mcp.WithDescription("Export the playbook JSON Schema"),
		),
		h.HandleSchema,
	)

	return srv
}
