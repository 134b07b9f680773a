package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/apperr"
)

// PasswordEnv is read when login has no --password flag.
const PasswordEnv = "LISTSYNC_PASSWORD"

// sessionInfo is the JSON payload of login and whoami.
type sessionInfo struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and persist the session",
		Long: `Exchange credentials for a session token and store it in the
session database. Later commands reuse the stored session until logout.

The password comes from --password or the ` + PasswordEnv + ` variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(PasswordEnv)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				return runLogin(ctx, a, rootOpts.formatter(cmd), args[0], password)
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password (default $"+PasswordEnv+")")
	return cmd
}

func runLogin(ctx context.Context, a *app, f *OutputFormatter, username, password string) error {
	s, err := a.sessions.Login(ctx, username, password)
	if err != nil {
		if apperr.IsAuthFailed(err) {
			a.center.Error("Wrong username or password")
		}
		return a.finish(f, nil, err)
	}
	a.drain()

	if f.Format == "json" {
		return f.Success(sessionInfo{LoggedIn: true, Username: s.Username, Name: s.Name})
	}
	fmt.Fprintf(f.Writer, "%s logged in\n", displayName(s.Name, s.Username))
	return nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				f := rootOpts.formatter(cmd)
				if err := a.sessions.Logout(ctx); err != nil {
					return WrapExitError(ExitCommandError, "failed to remove session", err)
				}
				if f.Format == "json" {
					return f.Success(sessionInfo{})
				}
				fmt.Fprintln(f.Writer, "Logged out")
				return nil
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(_ context.Context, a *app) error {
				f := rootOpts.formatter(cmd)
				s, ok := a.sessions.Current()
				if f.Format == "json" {
					return f.Success(sessionInfo{LoggedIn: ok, Username: s.Username, Name: s.Name})
				}
				if !ok {
					fmt.Fprintln(f.Writer, "Not logged in")
					return nil
				}
				fmt.Fprintf(f.Writer, "%s logged in\n", displayName(s.Name, s.Username))
				return nil
			})
		},
	}
}

func displayName(name, username string) string {
	if name == "" {
		return username
	}
	return name
}
