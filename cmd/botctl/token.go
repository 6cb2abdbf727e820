package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/astrobot/server/internal/auth"
)

// TokenCommand creates the token command
func TokenCommand() *cobra.Command {
	var (
		operator string
		ttl      time.Duration
		secret   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set and --secret was not given")
			}
			token, err := auth.NewJWTService(secret).SignOperatorToken(operator, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "", "Operator name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (overrides JWT_SECRET)")
	_ = cmd.MarkFlagRequired("operator")

	return cmd
}
