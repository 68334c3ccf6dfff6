package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/emilianohg/cyclelog/internal/git"
	"github.com/emilianohg/cyclelog/internal/linear"
	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/report"
	"github.com/emilianohg/cyclelog/internal/timer"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List Linear issues grouped by cycle",
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
		issues, err := a.linear.FetchIssues(ctx)
		if err != nil {
			return err
		}

		if mine, _ := cmd.Flags().GetBool("mine"); mine {
			me, err := linearUserID(ctx, a.linear, id.Email)
			if err != nil {
				return err
			}
			issues = linear.FilterByAssignee(issues, me)
		}

		logs, err := a.engine.Logs(ctx, id.UserID)
		if err != nil {
			return err
		}
		estimates, err := a.engine.LoadEstimates(ctx, id.UserID)
		if err != nil {
			return err
		}
		snap := timer.NewSnapshot(logs)
		report.RenderIssues(cmd.OutOrStdout(), linear.GroupByCycle(issues), snap.TimeSpent, estimates, snap.Active)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start [identifier]",
	Short: "Start a timer on an issue",
	Long: `Start a timer on a Linear issue such as ENG-123. Without an argument
the issue is taken from the current git branch name.`,
	Args: cobra.MaximumNArgs(1),
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

		ident, err := issueArg(ctx, args)
		if err != nil {
			return err
		}
		issues, err := a.linear.FetchIssues(ctx)
		if err != nil {
			return err
		}
		issue, ok := linear.FindByIdentifier(issues, ident)
		if !ok {
			return fmt.Errorf("issue %s not found", ident)
		}

		logID, err := a.engine.StartTimer(ctx, id.UserID, issue)
		if err != nil {
			return err
		}
		if est, _ := cmd.Flags().GetString("estimate"); est != "" {
			if err := a.engine.UpdateEstimate(ctx, logID, est); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Started %s: %s\n", issue.Identifier, issue.Title)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running timer",
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
		active, err := a.engine.ActiveTimer(ctx, id.UserID)
		if err != nil {
			return err
		}
		if active == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No timer running.")
			return nil
		}
		if err := a.engine.StopTimer(ctx, active.ID); err != nil {
			return err
		}

		stopped, err := a.engine.Get(ctx, active.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s after %s\n",
			stopped.IssueIdentifier, report.FormatDuration(stopped.Duration()))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running timer",
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
		active, err := a.engine.ActiveTimer(ctx, id.UserID)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), active, time.Now())
		return nil
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate <text>",
	Short: "Set the estimate of the running timer",
	Long: `Set a free-text estimate such as "25m" or "1h30m" on the running
timer.`,
	Args: cobra.MinimumNArgs(1),
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
		active, err := a.engine.ActiveTimer(ctx, id.UserID)
		if err != nil {
			return err
		}
		if active == nil {
			return errors.New("no timer is running")
		}

		text := strings.Join(args, " ")
		if _, err := timer.ParseEstimate(text); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v, saving it as typed\n", err)
		}
		if err := a.engine.UpdateEstimate(ctx, active.ID, text); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Estimate for %s set to %s\n", active.IssueIdentifier, text)
		return nil
	},
}

func init() {
	issuesCmd.Flags().BoolP("mine", "m", false, "Only issues assigned to you")
	startCmd.Flags().StringP("estimate", "e", "", "Estimate to record on the new timer, e.g. 25m")
}

// issueArg returns the identifier given on the command line, falling back to
// the one in the current branch name.
func issueArg(ctx context.Context, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if !git.IsRepo(ctx, ".") {
		return "", errors.New("no issue given and not inside a git repository")
	}
	ident, ok, err := git.BranchIssue(ctx, ".")
	if err != nil {
		return "", fmt.Errorf("reading branch: %w", err)
	}
	if !ok {
		return "", errors.New("no issue given and the branch name has no issue identifier")
	}
	return ident, nil
}

// linearUserID finds the Linear user behind a sign-in email.
func linearUserID(ctx context.Context, c *linear.Client, email string) (string, error) {
	users, err := c.FetchUsers(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u.ID, nil
		}
	}
	return "", fmt.Errorf("no Linear user with email %s", email)
}

func printStatus(out io.Writer, active *models.TimeLog, now time.Time) {
	if active == nil {
		fmt.Fprintln(out, "No timer running.")
		return
	}
	elapsed := timer.Elapsed(*active, now)
	fmt.Fprintf(out, "%s  %s\n", active.IssueIdentifier, active.IssueTitle)
	fmt.Fprintf(out, "Elapsed: %s\n", timer.FormatElapsed(elapsed))
	if active.Estimate == "" {
		return
	}
	fmt.Fprintf(out, "Estimate: %s", active.Estimate)
	if est, err := timer.ParseEstimate(active.Estimate); err == nil {
		if left := est - elapsed; left > 0 {
			fmt.Fprintf(out, " (%s left)", report.FormatDuration(left))
		} else if left < 0 {
			fmt.Fprintf(out, " (over by %s)", report.FormatDuration(-left))
		}
	}
	fmt.Fprintln(out)
}
