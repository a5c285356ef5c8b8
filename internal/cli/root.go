package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the erpview command line.
func Execute(ctx context.Context) error {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "erpview",
		Short:         "Terminal client for ERP screens",
		Long:          "erpview: browse, filter and act on ERP data screens from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to config file (default: user config dir)")
	root.PersistentFlags().String("api-url", "", "Data API base URL (overrides config)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
	root.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")

	// Add subcommands
	root.AddCommand(newRunCmd())
	root.AddCommand(newBulkCmd())
	root.AddCommand(newScreensCmd())

	return root
}

func mustGetStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "flag error:", err)
		os.Exit(2)
	}
	return v
}
