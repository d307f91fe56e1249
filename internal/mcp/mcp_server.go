// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/covhub/covhub/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the covhub MCP server without starting it.
// This is exposed for unit testing. fetcher may be nil, in which case src is null.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager, fetcher contract.DiffFetcher) *server.MCPServer {
	s := server.NewMCPServer(
		"covhub Coverage Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		fetcher: fetcher,
	}

	// --- 1. Tool: get_commit_report ---
	s.AddTool(mcp.NewTool("get_commit_report",
		mcp.WithDescription("Serialize a commit with its coverage totals and report."),
		mcp.WithString("owner", mcp.Description("Username of the repository owner."), mcp.Required()),
		mcp.WithString("repo", mcp.Description("Repository name."), mcp.Required()),
		mcp.WithString("commitid", mcp.Description("Commit sha."), mcp.Required()),
		mcp.WithString("service", mcp.Description("Git provider of the owner. Any service matches when omitted."),
			mcp.Enum("github", "gitlab", "bitbucket", "local")),
		mcp.WithString("projection", mcp.Description("Field set to serialize. Defaults to 'commit'."),
			mcp.Enum("commit", "report", "file-report", "src", "parent")),
	), h.handleGetCommitReport)

	// --- 2. Tool: get_trial_status ---
	s.AddTool(mcp.NewTool("get_trial_status",
		mcp.WithDescription("Report the plan and trial state of an owner."),
		mcp.WithString("owner", mcp.Description("Username of the owner."), mcp.Required()),
		mcp.WithString("service", mcp.Description("Git provider of the owner."),
			mcp.Enum("github", "gitlab", "bitbucket", "local")),
	), h.handleGetTrialStatus)

	// --- 3. Tool: get_measurements ---
	s.AddTool(mcp.NewTool("get_measurements",
		mcp.WithDescription("List the coverage timeseries of a repository, raw or as daily summaries."),
		mcp.WithString("owner", mcp.Description("Username of the repository owner."), mcp.Required()),
		mcp.WithString("repo", mcp.Description("Repository name."), mcp.Required()),
		mcp.WithString("name", mcp.Description("Dataset to list. Defaults to 'coverage'."),
			mcp.Enum("coverage", "flag_coverage", "component_coverage")),
		mcp.WithString("measurable_id", mcp.Description("Flag or component name. Components must be configured.")),
		mcp.WithString("branch", mcp.Description("Restrict to one branch.")),
		mcp.WithString("start", mcp.Description("Start of the range (ISO 8601 or 'N days ago').")),
		mcp.WithString("end", mcp.Description("End of the range (ISO 8601 or 'N days ago').")),
		mcp.WithBoolean("summaries", mcp.Description("Return daily summaries instead of raw points.")),
		mcp.WithString("service", mcp.Description("Git provider of the owner."),
			mcp.Enum("github", "gitlab", "bitbucket", "local")),
	), h.handleGetMeasurements)

	return s
}

// StartMCPServer starts the covhub MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager, fetcher contract.DiffFetcher) error {
	s := NewMCPServer(baseCfg, mgr, fetcher)
	return server.ServeStdio(s)
}
