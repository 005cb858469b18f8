package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/hosilim/dashboard-session/identity"
	"github.com/hosilim/dashboard-session/nav"
	"github.com/hosilim/dashboard-session/session"
	"github.com/hosilim/dashboard-session/users"
	"github.com/spf13/cobra"
)

var otpCmd = &cobra.Command{
	Use:   "otp <phone>",
	Short: "Send a one time password to a phone number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApplication("")
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.manager.RequestOTP(cmd.Context(), args[0]); err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OTP sent to %s\n", args[0])
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <phone> <otp>",
	Short: "Sign in with a one time password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApplication("")
		if err != nil {
			return err
		}
		defer app.Close()

		user, err := app.manager.Login(cmd.Context(), session.Credentials{Phone: args[0], OTP: args[1]})
		if err != nil {
			return userError(err)
		}
		printUser(cmd.OutOrStdout(), user)
		fmt.Fprintf(cmd.OutOrStdout(), "landing:  %s\n", nav.DefaultRouteFor(user))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Restore the stored session and show who is signed in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApplication("")
		if err != nil {
			return err
		}
		defer app.Close()

		state, err := app.manager.Boot(cmd.Context())
		if err != nil {
			return userError(err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "state:    %s\n", state)
		if state != session.StateAuthenticated {
			return nil
		}
		user := app.manager.User()
		printUser(out, user)
		fmt.Fprintf(out, "home:     %s\n", nav.DefaultRouteFor(user))
		for _, s := range nav.SectionsFor(user) {
			fmt.Fprintf(out, "  %-10s %s\n", s.ID, s.Path)
			for _, sub := range s.Subs {
				fmt.Fprintf(out, "    %-8s %s\n", sub.ID, s.SubPath(sub.ID))
			}
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApplication("")
		if err != nil {
			return err
		}
		defer app.Close()

		app.manager.Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		return nil
	},
}

var routeCmd = &cobra.Command{
	Use:   "route <path>",
	Short: "Show where the signed in user lands when opening path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApplication("")
		if err != nil {
			return err
		}
		defer app.Close()

		if _, err := app.manager.Boot(cmd.Context()); err != nil {
			return userError(err)
		}
		target, redirected := nav.Resolve(app.manager.User(), args[0])
		if redirected {
			fmt.Fprintf(cmd.OutOrStdout(), "redirect %s\n", target)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "allowed  %s\n", target)
		return nil
	},
}

var navOpts struct {
	open     string
	sub      string
	collapse bool
}

var navCmd = &cobra.Command{
	Use:   "nav [path]",
	Short: "Apply submenu actions to the dashboard at path",
	Long: `Derives the submenu state from path, then applies --open, --select and
--collapse in that order, printing every navigation they request.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApplication("")
		if err != nil {
			return err
		}
		defer app.Close()

		if _, err := app.manager.Boot(cmd.Context()); err != nil {
			return userError(err)
		}
		user := app.manager.User()
		if user == nil {
			return errors.New("not signed in")
		}

		out := cmd.OutOrStdout()
		submenu, err := nav.NewSubmenu(user, nav.NavigatorFunc(func(p string) {
			fmt.Fprintf(out, "navigate %s\n", p)
		}))
		if err != nil {
			return err
		}

		p := nav.DefaultRouteFor(user)
		if len(args) == 1 {
			p = args[0]
		}
		submenu.ReconcileFromPath(p)

		if navOpts.open != "" {
			if err := submenu.OpenSubmenu(navOpts.open); err != nil {
				return err
			}
		}
		if navOpts.sub != "" {
			if err := submenu.SelectSub(navOpts.sub); err != nil {
				return err
			}
		}
		if navOpts.collapse {
			submenu.Collapse()
		}

		state := submenu.State()
		fmt.Fprintf(out, "open:     %t\n", state.IsOpen)
		fmt.Fprintf(out, "section:  %s\n", state.ActiveSection)
		fmt.Fprintf(out, "sub:      %s\n", state.ActiveSubSection)
		fmt.Fprintf(out, "back:     %s\n", submenu.BackTarget())
		return nil
	},
}

func init() {
	navCmd.Flags().StringVar(&navOpts.open, "open", "", "open the submenu of a section")
	navCmd.Flags().StringVar(&navOpts.sub, "select", "", "select a sub-section of the open submenu")
	navCmd.Flags().BoolVar(&navOpts.collapse, "collapse", false, "collapse the submenu")
}

// userError replaces err with the message the identity service gave, keeping it
// wrapped for errors.Is.
func userError(err error) error {
	msg := identity.ErrorMessage(err)
	if msg == err.Error() {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func printUser(w io.Writer, user *users.Profile) {
	role, _ := user.PrimaryRole()
	fmt.Fprintf(w, "user:     %s %s\n", user.ID, user.Phone)
	if name := user.FullName(); name != "" {
		fmt.Fprintf(w, "name:     %s\n", name)
	}
	fmt.Fprintf(w, "role:     %s\n", role)
}
