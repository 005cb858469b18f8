package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/hosilim/dashboard-session/internal/config"
	"github.com/hosilim/dashboard-session/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hosilim",
	Short: "Hosilim dashboard session client",
	Long: `Signs in to the Hosilim marketplace with a one time password, keeps the
session in the configured token store and shows the dashboard navigation the
signed in user's roles allow.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}
		path := configPath
		if path == "" {
			path = os.Getenv(config.ConfigFileVar)
		}
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c

		logging.Setup(cfg, cmd.ErrOrStderr())
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $"+config.ConfigFileVar+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(otpCmd, loginCmd, whoamiCmd, logoutCmd, routeCmd, navCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
