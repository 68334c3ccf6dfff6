package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Time spent per issue against its estimate",
	Long: `Report the time logged per issue, most worked first, next to the
saved estimate and what is left of it.

Examples:
  cyclelog report
  cyclelog report --since 2025-03-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.close()

		id, err := a.identity()
		if err != nil {
			return err
		}
		logs, err := a.engine.Logs(ctx, id.UserID)
		if err != nil {
			return err
		}
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			t, err := time.ParseInLocation("2006-01-02", since, time.Local)
			if err != nil {
				return err
			}
			logs = logsSince(logs, t)
		}
		estimates, err := a.engine.LoadEstimates(ctx, id.UserID)
		if err != nil {
			return err
		}
		report.Render(cmd.OutOrStdout(), report.Build(logs, estimates), time.Now())
		return nil
	},
}

func init() {
	reportCmd.Flags().String("since", "", "Only logs started on or after this date (YYYY-MM-DD)")
}

func logsSince(logs []models.TimeLog, t time.Time) []models.TimeLog {
	var out []models.TimeLog
	for _, l := range logs {
		if !l.StartTime.Before(t) {
			out = append(out, l)
		}
	}
	return out
}
