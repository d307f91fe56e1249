package cmd

import (
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/mcp"
	"github.com/covhub/covhub/internal/provider"
	"github.com/covhub/covhub/internal/store"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the covhub MCP server",
	Long:  `Launch an MCP server on stdio that lets AI agents read coverage reports, trial state and the coverage timeseries.`,
	// Logs go to stderr; stdio carries the protocol.
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		defer CloseStores()
		fetcher := provider.NewService(cfg, contract.NewLocalGitClient(), nil, logger)
		return mcp.StartMCPServer(rootCtx, cfg, store.Default, fetcher)
	},
}
