package token

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/orris-inc/storefront/internal/infrastructure/auth"
	"github.com/orris-inc/storefront/internal/infrastructure/config"
)

var (
	env        string
	configPath string
	merchantID string
	subject    string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Merchant access token tools",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token for a merchant",
		Long:  `Sign a merchant access token with the configured JWT secret. Intended for local development and operator access.`,
		RunE:  runIssue,
	}
	issue.Flags().StringVarP(&merchantID, "merchant", "m", "", "Merchant ID (required)")
	issue.Flags().StringVarP(&subject, "subject", "s", "operator", "Token subject")
	_ = issue.MarkFlagRequired("merchant")

	cmd.AddCommand(issue)
	return cmd
}

func runIssue(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(env, configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	svc := auth.NewJWTService(cfg.Auth.JWT.Secret, cfg.Auth.JWT.AccessExpMinutes)
	token, expiresAt, err := svc.Issue(merchantID, subject)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, token)
	fmt.Fprintf(out, "# expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
