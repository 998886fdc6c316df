package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chameleon-systems/chameleon/pkg/tokens"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a forensics API token",
	Long: `Mint a signed bearer token for the forensics API.

The secret must match the forensics.jwt_secret configured on the
honeypot; the token is signed locally and never sent anywhere.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		operator, _ := cmd.Flags().GetString("operator")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		roles, _ := cmd.Flags().GetStringSlice("roles")

		if secret == "" {
			return fmt.Errorf("--secret is required")
		}
		if operator == "" {
			return fmt.Errorf("--operator is required")
		}

		tg := tokens.NewTokenGenerator(secret, ttl)
		token, err := tg.Generate(operator, roles)
		if err != nil {
			return fmt.Errorf("failed to mint token: %w", err)
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("secret", "", "forensics JWT secret")
	tokenCmd.Flags().String("operator", "", "operator name embedded in the token")
	tokenCmd.Flags().Duration("ttl", 12*time.Hour, "token lifetime")
	tokenCmd.Flags().StringSlice("roles", []string{"forensics"}, "roles embedded in the token")

	rootCmd.AddCommand(tokenCmd)
}
