// Package cli implements the tufn command: a terminal client that behaves
// like the site's forms, with the same gate, identity and local state.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tufnapp/tufngate/backend"
	"github.com/tufnapp/tufngate/backend/rest"
	"github.com/tufnapp/tufngate/config"
	"github.com/tufnapp/tufngate/localstate"
	"github.com/tufnapp/tufngate/logging"
	"github.com/tufnapp/tufngate/pkg/tufngate"
)

// App holds what the commands share. Zero-valued hooks fall back to the
// real environment, file state and REST endpoint.
type App struct {
	Out io.Writer
	Err io.Writer

	LoadConfig func() (config.Client, error)
	OpenLocal  func(path string) (localstate.Store, error)
	NewRemote  func(cfg config.Client) backend.Store
	GateOpts   []tufngate.Option

	jsonOutput bool
	cfg        config.Client
	local      localstate.Store
	remote     backend.Store
	submitter  *tufngate.Submitter
}

// NewRootCmd builds the command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	app.defaults()

	root := &cobra.Command{
		Use:   "tufn",
		Short: "tufn - join the Tufn waitlist and send feedback from the terminal",
		Long: `tufn talks to the Tufn submission endpoint the same way the website does.
Submissions pass a short cooldown and a per-form rate limit before anything
is sent, and the device identity and waitlist status are kept in a local
state file (TUFN_STATE_FILE).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.teardown()
		},
	}
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	root.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "output in JSON format")

	root.AddCommand(
		newJoinCmd(app),
		newReviewCmd(app),
		newFeedbackCmd(app),
		newCountCmd(app),
		newStatusCmd(app),
		newIdentityCmd(app),
		newThemeCmd(app),
		newDownloadsCmd(app),
	)
	return root
}

// Execute runs the tufn command against the process environment.
func Execute() {
	if err := NewRootCmd(&App{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func (a *App) defaults() {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Err == nil {
		a.Err = os.Stderr
	}
	if a.LoadConfig == nil {
		a.LoadConfig = config.LoadClient
	}
	if a.OpenLocal == nil {
		a.OpenLocal = func(path string) (localstate.Store, error) { return localstate.OpenFile(path) }
	}
	if a.NewRemote == nil {
		a.NewRemote = func(cfg config.Client) backend.Store { return rest.New(cfg.Endpoint, cfg.APIKey) }
	}
}

func (a *App) setup() error {
	cfg, err := a.LoadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	local, err := a.OpenLocal(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("open local state: %w", err)
	}
	a.local = local
	a.remote = a.NewRemote(cfg)

	logger, err := logging.New(cfg.LogLevel, logging.FormatConsole)
	if err != nil {
		logger = zap.NewNop()
	}

	// One command is one process; the sweeper is never started.
	opts := []tufngate.Option{tufngate.WithLogger(logger)}
	if cfg.GateConfig != "" {
		opts = append(opts, tufngate.WithConfigFile(cfg.GateConfig))
	}
	opts = append(opts, a.GateOpts...)
	gate, err := tufngate.New(opts...)
	if err != nil {
		return err
	}

	a.submitter, err = tufngate.NewSubmitter(gate, a.local, a.remote)
	return err
}

func (a *App) teardown() error {
	if a.remote != nil {
		return a.remote.Close()
	}
	return nil
}

// printJSON writes v as indented JSON.
func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// report prints an outcome. Anything other than success or an earlier
// signup becomes an error so the process exits non-zero.
func (a *App) report(out tufngate.Outcome) error {
	if a.jsonOutput {
		if err := a.printJSON(out); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(a.Out, out.Message)
		for _, fe := range out.Fields {
			fmt.Fprintf(a.Out, "  %s: %s\n", fe.Field, fe.Msg)
		}
	}
	if out.OK() || out.Kind == tufngate.OutcomeAlreadyJoined {
		return nil
	}
	return &outcomeError{out}
}

type outcomeError struct {
	out tufngate.Outcome
}

func (e *outcomeError) Error() string {
	if e.out.Err != nil {
		return e.out.Err.Error()
	}
	return string(e.out.Kind)
}

func (e *outcomeError) Unwrap() error { return e.out.Err }

func (a *App) dispatch(ctx context.Context, cmd tufngate.Command) error {
	return a.report(a.submitter.Dispatch(ctx, cmd))
}
