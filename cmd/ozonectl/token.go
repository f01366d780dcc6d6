package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/darkden-lab/ozone/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		user   string
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a gateway running with auth.mode=jwt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("OZONE_AUTH_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret is required or set OZONE_AUTH_JWT_SECRET")
			}
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			token, expires, err := auth.NewJWTService(secret, ttl).GenerateToken(user)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Subject of the token")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (auth.jwt_secret)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
