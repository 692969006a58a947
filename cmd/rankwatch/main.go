package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/rankwatch/api/handler"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	root := &cobra.Command{
		Use:   "rankwatch",
		Short: "Track where client domains rank for their keywords",
		Long: `rankwatch checks search results for each configured client keyword,
keeps the ranking history in SQLite and raises alerts on significant moves.

Configuration comes from RANKWATCH_* environment variables and the clients
file, which may also carry scraping overrides.`,
		Version:       handler.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.clientsPath, "clients", envOr("RANKWATCH_CLIENTS", "clients.yaml"), "path to the clients file")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides RANKWATCH_DB_PATH)")

	root.AddCommand(
		newTrackCmd(&opts),
		newAlertsCmd(&opts),
		newRankingsCmd(&opts),
		newHistoryCmd(&opts),
		newStatsCmd(&opts),
		newRunsCmd(&opts),
		newServeCmd(&opts),
		newDaemonCmd(&opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
