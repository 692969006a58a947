package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/rankwatch/tracker"
)

func newTrackCmd(root *rootOptions) *cobra.Command {
	var (
		testMode bool
		clientID string
		keyword  string
	)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Run a tracking pass now",
		Long: `Checks every configured keyword and records the results. Use --client or
--keyword to narrow the run, or --test to check only the first keyword of each
client without pacing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			t, _, err := a.newTracker(nil)
			if err != nil {
				return fmt.Errorf("cannot start tracking: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := runScoped(ctx, t, testMode, clientID, keyword)
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&testMode, "test", false, "check only the first keyword of each client")
	cmd.Flags().StringVar(&clientID, "client", "", "track a single client")
	cmd.Flags().StringVar(&keyword, "keyword", "", "track a single keyword across clients")
	cmd.MarkFlagsMutuallyExclusive("test", "client", "keyword")
	return cmd
}

func runScoped(ctx context.Context, t *tracker.Tracker, testMode bool, clientID, keyword string) (*tracker.Summary, error) {
	switch {
	case clientID != "":
		return t.TrackClient(ctx, clientID)
	case keyword != "":
		return t.TrackKeyword(ctx, keyword)
	default:
		return t.TrackAll(ctx, testMode)
	}
}

func printSummary(w io.Writer, s *tracker.Summary) {
	run := s.Run
	tw := newTable(w)
	tw.SetTitle("Run " + run.ID)
	tw.AppendRows([]table.Row{
		{"Keywords", run.TotalKeywords},
		{"Successful", run.SuccessfulChecks},
		{"Failed", run.FailedChecks},
		{"Duration", fmt.Sprintf("%.1fs", run.DurationSeconds)},
	})
	if s.Canceled {
		tw.AppendRow(table.Row{"Canceled", "yes"})
	}
	tw.Render()

	if len(run.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range run.Errors {
			fmt.Fprintln(w, "  "+e)
		}
	}

	if len(s.Emitted) > 0 {
		fmt.Fprintln(w, "\nNew alerts:")
		printAlerts(w, s.Emitted)
	}
	fmt.Fprintf(w, "\n%d unacknowledged alert(s) in total.\n", len(s.Outstanding))
}
