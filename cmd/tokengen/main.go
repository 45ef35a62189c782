package main

import (
	"fmt"
	"os"
	"time"

	"webhook-engine/config"
	"webhook-engine/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// tokengen issues service tokens for the management API. Tokens are
// operator-issued: there is no self-service registration surface, so this
// command is the bootstrap credential path for a fresh deployment.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		subject    string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tokengen",
		Short: "Issue a service token for the webhook management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Token.Secret == "" {
				return fmt.Errorf("token.secret is not configured (set WHE_TOKEN_SECRET)")
			}

			if subject == "" {
				subject = uuid.New().String()
			} else if _, err := uuid.Parse(subject); err != nil {
				return fmt.Errorf("subject must be an owner UUID: %w", err)
			}

			expiry := cfg.Token.Expiry
			if ttl > 0 {
				expiry = ttl
			}

			tokenSvc := service.NewJWTTokenService(cfg.Token.Secret, expiry, cfg.Token.Issuer)
			token, expiresAt, err := tokenSvc.Generate(subject)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "subject: %s\nexpires: %s\n%s\n",
				subject, expiresAt.UTC().Format(time.RFC3339), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "owner UUID the token authenticates (default: a fresh UUID)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: token.expiry from config)")

	return cmd
}
