package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/orris-inc/storefront/internal/interfaces/cli/catalog"
	"github.com/orris-inc/storefront/internal/interfaces/cli/migrate"
	"github.com/orris-inc/storefront/internal/interfaces/cli/server"
	"github.com/orris-inc/storefront/internal/interfaces/cli/token"
	"github.com/orris-inc/storefront/internal/shared/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "storefront",
		Short:   "Storefront - merchant catalog and funnel builder",
		Long:    `Storefront serves the merchant resource catalog and funnel builder API, with migration and catalog maintenance tools.`,
		Version: version.Current(),
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		catalog.NewCommand(),
		token.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
