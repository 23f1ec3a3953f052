package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	catalogservices "github.com/orris-inc/storefront/internal/application/catalog/services"
	"github.com/orris-inc/storefront/internal/application/catalog/usecases"
	"github.com/orris-inc/storefront/internal/application/workspace"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/infrastructure/config"
	"github.com/orris-inc/storefront/internal/infrastructure/database"
	"github.com/orris-inc/storefront/internal/infrastructure/repository"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

var (
	env         string
	configPath  string
	merchantID  string
	file        string
	stopOnLimit bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Catalog maintenance tools",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	cmd.AddCommand(newImportCommand())
	return cmd
}

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import resources from a YAML file",
		Long: `Create resources for a merchant from a YAML file. Each entry goes through
the same name and catalog limit checks as the HTTP API.`,
		RunE: runImport,
	}

	cmd.Flags().StringVarP(&merchantID, "merchant", "m", "", "Merchant ID (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the import file (required)")
	cmd.Flags().BoolVar(&stopOnLimit, "stop-on-limit", true, "Stop at the first catalog limit rejection")
	_ = cmd.MarkFlagRequired("merchant")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	parsed, err := usecases.ParseImportFile(f)
	if err != nil {
		return err
	}

	cfg, err := config.Load(env, configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	db := database.Get()
	manager := workspace.NewManager(workspace.Dependencies{
		CatalogRepo: repository.NewResourceRepository(db, log),
		FunnelRepo:  repository.NewFunnelRepository(db, log),
		Publisher:   events.NewInMemoryEventDispatcher(log),
		Limits:      catalogservices.Limits{MaxResources: cfg.Catalog.MaxResources},
		Policy:      funnel.DefaultPolicy(),
	}, log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := manager.Get(ctx, merchantID)
	if err != nil {
		return fmt.Errorf("failed to load merchant catalog: %w", err)
	}

	result, err := usecases.NewImportResourcesUseCase(ws.Catalog, log).Execute(ctx, usecases.ImportResourcesRequest{
		Drafts:      parsed.Resources,
		StopOnLimit: stopOnLimit,
	})
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), result)
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d resources failed to import", len(result.Failed), len(parsed.Resources))
	}
	return nil
}

func printResult(out io.Writer, result *usecases.ImportResourcesResult) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tID\tNAME\tDETAIL")
	for _, r := range result.Created {
		fmt.Fprintf(tw, "created\t%s\t%s\t%s/%s\n", r.ID(), r.Name(), r.OriginKind(), r.ValueCategory())
	}
	for _, f := range result.Failed {
		fmt.Fprintf(tw, "failed\t-\t%s\t%s\n", f.Name, f.Message)
	}
	_ = tw.Flush()

	if result.Skipped > 0 {
		fmt.Fprintf(out, "%d resources skipped\n", result.Skipped)
	}
}
