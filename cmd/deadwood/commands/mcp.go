package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/mcp"
	"github.com/Sumatoshi-tech/deadwood/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug      bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes deadwood's analysis as tools that AI agents can
discover and invoke:
  - deadwood_scan: Report unused dependencies and files for a project
  - deadwood_clean_preview: Dry-run cleanup summary for a project`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			obsCfg := commandObservabilityConfig(cfg, observability.ModeMCP, debug)
			if debug {
				obsCfg.DebugTrace = true
			}

			providers, err := observability.Init(obsCfg)
			if err != nil {
				return err
			}
			defer shutdownProviders(providers)

			red, redErr := observability.NewREDMetrics(providers.Meter)
			if redErr != nil {
				return redErr
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:  providers.Logger,
				Metrics: red,
				Tracer:  providers.Tracer,
				Cache:   openCache(cfg, false, providers.Logger),
				Scan:    cfg.Scan,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")

	return cmd
}
