package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emilianohg/cyclelog/internal/tui"
	"github.com/emilianohg/cyclelog/internal/tui/screens"
)

var rootCmd = &cobra.Command{
	Use:   "cyclelog",
	Short: "Time tracking for Linear issues",
	Long: `Cyclelog lists your Linear issues grouped by cycle and tracks time
against them with a single running timer per user.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.close()

		sess, err := a.openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		return tui.Run(tui.Options{
			Session: sess,
			Source:  a.linear,
			NewSource: func(token string) screens.IssueSource {
				return a.newLinear(token)
			},
			Token: a.cfg.Token,
			SaveToken: func(token string) error {
				return a.saveToken(token)
			},
			Logger: a.logger,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Also log to stderr")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.cyclelog/config.toml)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(estimatesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
