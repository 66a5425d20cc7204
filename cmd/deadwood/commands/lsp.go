package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/lsp"
	"github.com/Sumatoshi-tech/deadwood/pkg/observability"
)

// NewLSPCommand creates the LSP server command.
func NewLSPCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start language server publishing unused-code diagnostics (LSP)",
		Long: `Start a language server (LSP) on stdio transport.

The server scans the workspace on initialization and after every save,
then publishes diagnostics for unused dependencies inside package.json
and for source files nothing references.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			providers, err := observability.Init(commandObservabilityConfig(cfg, observability.ModeLSP, false))
			if err != nil {
				return err
			}
			defer shutdownProviders(providers)

			srv := lsp.NewServer(lsp.ServerDeps{
				Logger: providers.Logger,
				Cache:  openCache(cfg, false, providers.Logger),
				Scan:   cfg.Scan,
			})

			return srv.Run()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")

	return cmd
}
