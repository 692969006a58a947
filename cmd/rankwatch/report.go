package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/rankwatch/config"
	"github.com/use-agent/rankwatch/models"
)

const dateLayout = "2006-01-02"

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func position(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func printAlerts(w io.Writer, alerts []models.AlertRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Client", "Keyword", "Type", "Old", "New", "Change"})
	for _, a := range alerts {
		t.AppendRow(table.Row{
			a.AlertDate.Format(dateLayout), a.ClientID, a.Keyword, a.Type,
			position(a.OldPosition), position(a.NewPosition), fmt.Sprintf("%+d", a.Change),
		})
	}
	t.Render()
}

// selectClients returns the client named by args, or all clients.
func selectClients(a *app, args []string) ([]config.Client, error) {
	if len(args) == 0 {
		return a.clients.Clients, nil
	}
	c, ok := a.clients.Find(args[0])
	if !ok {
		return nil, fmt.Errorf("unknown client %q", args[0])
	}
	return []config.Client{c}, nil
}

func newAlertsCmd(root *rootOptions) *cobra.Command {
	var ack bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List unacknowledged alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			alerts, err := a.store.OutstandingAlerts(ctx)
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				fmt.Fprintln(w, "No unacknowledged alerts.")
				return nil
			}
			printAlerts(w, alerts)

			if ack {
				n, err := a.store.AcknowledgeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Acknowledged %d alert(s).\n", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ack, "ack", false, "acknowledge all listed alerts")
	return cmd
}

func newRankingsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rankings [client-id]",
		Short: "Show the latest position of every keyword",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			clients, err := selectClients(a, args)
			if err != nil {
				return err
			}
			for _, c := range clients {
				rankings, err := a.store.CurrentRankings(cmd.Context(), c.ID)
				if err != nil {
					return err
				}
				t := newTable(cmd.OutOrStdout())
				t.SetTitle(fmt.Sprintf("%s (%s)", c.Name, c.Domain))
				t.AppendHeader(table.Row{"Keyword", "Position", "URL", "Checked"})
				for _, r := range rankings {
					t.AppendRow(table.Row{r.Keyword, position(r.Position), r.URL, r.CheckDate.Format(dateLayout)})
				}
				t.Render()
			}
			return nil
		},
	}
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "history <client-id> <keyword>",
		Short: "Show the position history of one keyword",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, ok := a.clients.Find(args[0]); !ok {
				return fmt.Errorf("unknown client %q", args[0])
			}
			points, err := a.store.History(cmd.Context(), args[0], args[1], days)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.SetTitle(args[1])
			t.AppendHeader(table.Row{"Date", "Position"})
			for _, p := range points {
				t.AppendRow(table.Row{p.CheckDate.Format(dateLayout), position(p.Position)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "window size in days")
	return cmd
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [client-id]",
		Short: "Summarize current rankings per client",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			clients, err := selectClients(a, args)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Client", "Keywords", "Ranking", "Top 10", "Top 3", "Avg position"})
			for _, c := range clients {
				s, err := a.store.Stats(cmd.Context(), c.ID)
				if err != nil {
					return err
				}
				avg := "-"
				if s.AvgPosition != nil {
					avg = strconv.FormatFloat(*s.AvgPosition, 'f', 1, 64)
				}
				t.AppendRow(table.Row{c.ID, s.TotalKeywords, s.RankingKeywords, s.Top10, s.Top3, avg})
			}
			t.Render()
			return nil
		},
	}
}

func newRunsCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent tracking runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Run", "Started", "Keywords", "OK", "Failed", "Duration"})
			for _, r := range runs {
				t.AppendRow(table.Row{
					r.ID, r.RunDate.Local().Format("2006-01-02 15:04:05"),
					r.TotalKeywords, r.SuccessfulChecks, r.FailedChecks,
					fmt.Sprintf("%.1fs", r.DurationSeconds),
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
