package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent deception events",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		token, _ := cmd.Flags().GetString("token")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		if token == "" {
			return fmt.Errorf("--token is required")
		}

		client := newForensicsClient(server, token)
		events, err := client.events(limit)
		if err != nil {
			return fmt.Errorf("failed to fetch events: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}

		for _, ev := range events {
			outcome := ""
			if ev.LoginAttempt != nil {
				outcome = ev.LoginAttempt.Outcome
			}
			fmt.Printf("%6d  %s  %-8s %-16s %s\n",
				ev.Seq, ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Kind, ev.SourceIP, outcome)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().Int("limit", 50, "how many recent events to list")
	eventsCmd.Flags().Bool("json", false, "emit raw JSON")

	rootCmd.AddCommand(eventsCmd)
}
