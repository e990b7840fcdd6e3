package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	userEmail  string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "archnet-cli",
	Short: "archnet-cli is the command-line interface for archnet.",
	Long: `A CLI for running benchmark jobs and managing credits against the archnet
store, using the same configuration as the server.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&userEmail, "user", "u", "", "Email of the acting user")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	if err := viper.BindPFlag("USER", rootCmd.PersistentFlags().Lookup("user")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("ARCHNET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// actingUser returns the --user flag or ARCHNET_USER.
func actingUser() (string, error) {
	email := strings.TrimSpace(viper.GetString("USER"))
	if email == "" {
		return "", errors.New("no user given\n\nTip: pass --user or set ARCHNET_USER")
	}
	return email, nil
}
