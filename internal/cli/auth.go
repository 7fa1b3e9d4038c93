package cli

import (
	"errors"
	"fmt"

	"taskify/internal/client"

	"github.com/spf13/cobra"
)

func newCredentialsCmd(app *App, use, short string, register bool) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := app.connect()
			if err != nil {
				return err
			}

			if register {
				err = api.Register(cmd.Context(), username, password)
			} else {
				err = api.Login(cmd.Context(), username, password)
			}
			if err != nil {
				return credentialsError(err, register)
			}
			if err := app.saveSession(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", app.session.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", envOr("TASKIFY_PASSWORD", ""), "Password (or TASKIFY_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func credentialsError(err error, register bool) error {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return errors.New("invalid username or password")
	case errors.Is(err, client.ErrConflict):
		return errors.New("username already exists")
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.Message != "":
		return errors.New(apiErr.Message)
	case register:
		return errors.New("registration failed")
	default:
		return errors.New("login failed")
	}
}

func newRegisterCmd(app *App) *cobra.Command {
	return newCredentialsCmd(app, "register", "Create an account and sign in", true)
}

func newLoginCmd(app *App) *cobra.Command {
	return newCredentialsCmd(app, "login", "Sign in", false)
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := app.connect()
			if err != nil {
				return err
			}
			// The local session is cleared even if the server is unreachable.
			_ = api.Logout(cmd.Context())

			file, err := app.sessionFile()
			if err != nil {
				return err
			}
			if err := file.Remove(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
