package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chameleonctl",
	Short: "Chameleon honeypot operator CLI",
	Long: `chameleonctl is the operator-side companion to the chameleon honeypot.

Mint forensics API tokens, pull recent deception events, and audit the
integrity of the append-only event ledger.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8443", "honeypot base URL")
	rootCmd.PersistentFlags().String("token", "", "forensics API bearer token")
}
