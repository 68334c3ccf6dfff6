package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/emilianohg/cyclelog/internal/linear"
	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/report"
)

var estimatesCmd = &cobra.Command{
	Use:   "estimates",
	Short: "Manage planned hours per issue",
}

var estimatesSetCmd = &cobra.Command{
	Use:   "set <identifier> <hours>",
	Short: "Save the planned hours of an issue",
	Long: `Save the planned hours of an issue. Other saved estimates are kept.

Examples:
  cyclelog estimates set ENG-123 4
  cyclelog estimates set ENG-123 1.5h`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, err := parseHours(args[1])
		if err != nil {
			return err
		}

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
		issues, err := a.linear.FetchIssues(ctx)
		if err != nil {
			return err
		}
		issue, ok := linear.FindByIdentifier(issues, args[0])
		if !ok {
			return fmt.Errorf("issue %s not found", args[0])
		}

		if err := a.engine.SaveEstimates(ctx, id.UserID, models.EstimateMap{issue.ID: hours}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Estimated %s at %s\n", issue.Identifier, report.FormatHours(hours))
		return nil
	},
}

var estimatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved estimates",
	Args:  cobra.NoArgs,
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
		estimates, err := a.engine.LoadEstimates(ctx, id.UserID)
		if err != nil {
			return err
		}

		// Identifiers are nicer than IDs but not worth failing over.
		var issues []models.Issue
		if a.linear.HasToken() {
			issues, err = a.linear.FetchIssues(ctx)
			if err != nil {
				a.logger.Warn("listing estimates without issue names", "error", err)
			}
		}
		report.RenderEstimates(cmd.OutOrStdout(), estimates, issues)
		return nil
	},
}

func init() {
	estimatesCmd.AddCommand(estimatesSetCmd)
	estimatesCmd.AddCommand(estimatesListCmd)
}

// parseHours accepts "4", "1.5" or a duration such as "90m" or "1h30m".
func parseHours(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if h, err := strconv.ParseFloat(s, 64); err == nil {
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			return 0, fmt.Errorf("invalid number of hours %q", s)
		}
		return h, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid number of hours %q", s)
	}
	return d.Hours(), nil
}
