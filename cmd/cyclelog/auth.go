package main

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/emilianohg/cyclelog/internal/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Google",
	Long: `Opens the Google sign-in page in your browser and waits for the
redirect on a local port. Only emails on the configured allow list are
accepted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.close()

		oauth := a.cfg.OAuth
		if oauth.ClientID == "" {
			return errors.New("oauth.client_id is not set in the config file")
		}
		provider, err := auth.NewGoogleProvider(ctx, oauth.ClientID, oauth.ClientSecret)
		if err != nil {
			return err
		}

		noBrowser, _ := cmd.Flags().GetBool("no-browser")
		open := func(url string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Sign in at:\n  %s\n", url)
			if noBrowser {
				return nil
			}
			if err := openBrowser(url); err != nil {
				a.logger.Debug("could not open browser", "error", err)
			}
			return nil
		}

		id, err := a.newAuth(provider).Login(ctx, open)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", id.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the signed in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.auth.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.close()

		id, err := a.identity()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if id.Name != "" {
			fmt.Fprintf(out, "%s <%s>\n", id.Name, id.Email)
		} else {
			fmt.Fprintln(out, id.Email)
		}
		if !id.SignedIn.IsZero() {
			fmt.Fprintf(out, "Signed in %s\n", humanize.Time(id.SignedIn))
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().Bool("no-browser", false, "Print the sign-in URL instead of opening a browser")
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
