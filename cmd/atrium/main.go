package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/atrium-dev/atrium/internal/interfaces/cli/migrate"
	"github.com/atrium-dev/atrium/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atrium",
		Short: "Atrium - multi-tenant data-plane router",
		Long:  `Atrium routes data-plane requests to per-tenant storage and manages the tenant lifecycle, with built-in server and tenant migration tools.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
