package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"taskify/internal/client"

	"github.com/gofrs/uuid"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080/api"

type App struct {
	Server      string
	SessionPath string
	NoColor     bool

	session *client.Session
	api     *client.APIClient
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskctl",
		Short:        "Manage your Taskify tasks from the terminal",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  taskctl register -u alice -p 'correct-horse'
  taskctl add "Buy milk" --priority High --tag home
  taskctl list --status pending --sort priority
  taskctl toggle 3f2a
`),
	}

	cmd.PersistentFlags().StringVar(&app.Server, "server", envOr("TASKIFY_SERVER", defaultServer), "Base URL of the Taskify API")
	cmd.PersistentFlags().StringVar(&app.SessionPath, "session", envOr("TASKIFY_SESSION", ""), "Path to the session file (default: user config dir)")
	cmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newRmCmd(app))
	cmd.AddCommand(newToggleCmd(app))
	cmd.AddCommand(newClearCompletedCmd(app))
	cmd.AddCommand(newSummaryCmd(app))

	return cmd
}

func (app *App) sessionFile() (client.SessionFile, error) {
	if app.SessionPath != "" {
		return client.SessionFile{Path: app.SessionPath}, nil
	}
	return client.DefaultSessionFile()
}

// connect loads the saved session and builds the API client around it.
func (app *App) connect() (*client.APIClient, error) {
	if app.api != nil {
		return app.api, nil
	}
	file, err := app.sessionFile()
	if err != nil {
		return nil, err
	}
	session, err := file.Load()
	if err != nil {
		return nil, err
	}
	app.session = session
	app.api = client.NewAPIClient(app.Server, session, nil)
	return app.api, nil
}

func (app *App) saveSession() error {
	file, err := app.sessionFile()
	if err != nil {
		return err
	}
	return file.Save(app.session)
}

var errNotLoggedIn = errors.New("not logged in: run `taskctl login` first")

// controller returns a loaded controller for the signed-in user.
func (app *App) controller(ctx context.Context) (*client.Controller, error) {
	api, err := app.connect()
	if err != nil {
		return nil, err
	}
	if !app.session.Authenticated() {
		return nil, errNotLoggedIn
	}

	ctrl := client.NewController(api, nil)
	if err := ctrl.Load(ctx); err != nil {
		return nil, viewError(ctrl, err)
	}
	return ctrl, nil
}

// viewError turns a controller failure into the message shown to the user.
// An expired session gets a hint instead of the generic message.
func viewError(ctrl *client.Controller, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		return errors.New("session expired: run `taskctl login` again")
	}
	if ctrl.Error != "" {
		return errors.New(ctrl.Error)
	}
	return err
}

// resolveTask accepts a full id or an unambiguous prefix of one.
func resolveTask(ctrl *client.Controller, ref string) (uuid.UUID, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return uuid.Nil, errors.New("task id is required")
	}
	if id, err := uuid.FromString(ref); err == nil {
		return id, nil
	}

	var matches []uuid.UUID
	for _, t := range ctrl.Tasks {
		if strings.HasPrefix(t.ID.String(), ref) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, fmt.Errorf("%q matches %d tasks; use more characters", ref, len(matches))
	}
}
