// Package main provides the bxp-mcp binary — MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	bmcp "github.com/black-cross/playbook-engine/pkg/ecosystem/mcp"
	"github.com/black-cross/playbook-engine/pkg/store"
)

var version = "dev"

func main() {
	base := os.Getenv("BXP_DATA_DIR")
	fs, err := store.NewFileStore(base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	s := bmcp.NewServer(version, fs)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
