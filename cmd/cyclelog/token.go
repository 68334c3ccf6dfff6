package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the Linear API token",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Save the Linear API token in the config file",
	Long: `Save the Linear API token in the config file. Without an argument the
token is read from stdin, which keeps it out of your shell history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading token: %w", err)
			}
			token = line
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return errors.New("empty token")
		}

		a, err := setup(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.saveToken(token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", a.configPath)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
}
