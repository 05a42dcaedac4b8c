package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tufnapp/tufngate/downloads"
	"github.com/tufnapp/tufngate/identity"
	"github.com/tufnapp/tufngate/localstate"
	"github.com/tufnapp/tufngate/pkg/tufngate"
)

func newJoinCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "join <email>",
		Short: "Join the waitlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.dispatch(cmd.Context(), tufngate.JoinWaitlist{Email: args[0]})
		},
	}
}

func newReviewCmd(app *App) *cobra.Command {
	var c tufngate.SubmitReview
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Post a review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.dispatch(cmd.Context(), c)
		},
	}
	cmd.Flags().StringVar(&c.Name, "name", "", "your name")
	cmd.Flags().StringVar(&c.Email, "email", "", "your email (optional)")
	cmd.Flags().IntVar(&c.Rating, "rating", 0, "rating from 1 to 5")
	cmd.Flags().StringVar(&c.Comment, "comment", "", "what you think of Tufn")
	return cmd
}

func newFeedbackCmd(app *App) *cobra.Command {
	var c tufngate.SubmitFeedback
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Send feedback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.dispatch(cmd.Context(), c)
		},
	}
	cmd.Flags().StringVar(&c.Name, "name", "", "your name (optional)")
	cmd.Flags().StringVar(&c.Email, "email", "", "your email (optional)")
	cmd.Flags().StringVar(&c.Category, "category", "general", "bug, feature or general")
	cmd.Flags().StringVar(&c.Message, "message", "", "your message")
	return cmd
}

func newCountCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show how many people are on the waitlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := app.submitter.Count(cmd.Context())
			if app.jsonOutput {
				return app.printJSON(map[string]int64{"count": n})
			}
			fmt.Fprintf(app.Out, "%d on the waitlist\n", n)
			return nil
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show this device's identity and waitlist status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.submitter.Status()
			if err != nil {
				return err
			}
			if app.jsonOutput {
				return app.printJSON(st)
			}
			fmt.Fprintf(app.Out, "identity: %s\n", st.Identity)
			if st.Joined {
				fmt.Fprintln(app.Out, tufngate.MsgAlreadyJoined)
			} else {
				fmt.Fprintln(app.Out, "Not on the waitlist yet.")
			}
			return nil
		},
	}
}

func newIdentityCmd(app *App) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Print (or reset) this device's identity token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				if err := app.local.Delete(localstate.KeyIdentity); err != nil {
					return err
				}
			}
			id, err := identity.GetOrCreate(app.local)
			if err != nil {
				return err
			}
			if app.jsonOutput {
				return app.printJSON(map[string]string{"identity": id})
			}
			fmt.Fprintln(app.Out, id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the stored identity and create a new one")
	return cmd
}

const (
	themeLight = "light"
	themeDark  = "dark"
)

func newThemeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the preferred theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{themeLight, themeDark},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				theme := strings.ToLower(args[0])
				if theme != themeLight && theme != themeDark {
					return fmt.Errorf("unknown theme %q (want light or dark)", args[0])
				}
				if err := app.local.Set(localstate.KeyTheme, theme); err != nil {
					return err
				}
			}
			theme, ok, err := app.local.Get(localstate.KeyTheme)
			if err != nil {
				return err
			}
			if !ok {
				theme = themeLight
			}
			if app.jsonOutput {
				return app.printJSON(map[string]string{"theme": theme})
			}
			fmt.Fprintln(app.Out, theme)
			return nil
		},
	}
}

func newDownloadsCmd(app *App) *cobra.Command {
	var current bool
	var baseURL string
	cmd := &cobra.Command{
		Use:   "downloads [os]",
		Short: "List desktop builds, or show install steps for one platform",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := downloads.NewCatalog(baseURL)
			if len(args) == 0 && !current {
				all := catalog.All()
				if app.jsonOutput {
					return app.printJSON(all)
				}
				for _, b := range all {
					fmt.Fprintf(app.Out, "%-8s %-10s %s\n", b.OS, b.Name, b.URL)
				}
				return nil
			}

			var (
				b   downloads.Build
				err error
			)
			if current {
				b, err = catalog.Current()
			} else {
				b, err = catalog.Lookup(args[0])
			}
			if err != nil {
				return err
			}
			if app.jsonOutput {
				return app.printJSON(b)
			}
			fmt.Fprintln(app.Out, b.Notice())
			fmt.Fprintln(app.Out, b.URL)
			for i, step := range b.Steps {
				fmt.Fprintf(app.Out, "%d. %s\n", i+1, step)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&current, "current", false, "show the build for this machine")
	cmd.Flags().StringVar(&baseURL, "base-url", "https://tufn.app/downloads", "where builds are hosted")
	return cmd
}
