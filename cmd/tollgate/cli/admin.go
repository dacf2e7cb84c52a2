package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/faucetdb/tollgate/internal/service"
)

func (a *app) newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin API credentials",
		Long:  "Mint bearer tokens for the admin API, signed with auth.jwt_secret.",
	}

	cmd.AddCommand(a.newAdminTokenCmd())

	return cmd
}

// ---------- admin token ----------

func (a *app) newAdminTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin bearer token",
		Example: `  tollgate admin token --subject ops
  curl -H "Authorization: Bearer $(tollgate admin token --subject ci --ttl 10m)" ...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAdminToken(cmd, subject, ttl)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Who the token is issued to (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: auth.jwt_expiry)")
	cmd.MarkFlagRequired("subject")

	return cmd
}

func (a *app) runAdminToken(cmd *cobra.Command, subject string, ttl time.Duration) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("ttl") {
		ttl = cfg.Auth.JWTExpiry
	}
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive, got %s", ttl)
	}

	logger := cfg.Logging.NewLogger(os.Stderr)
	token, err := service.NewAdminAuth(jwtSecret(cfg, logger)).IssueToken(subject, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
