// Package commands implements the semihostd command-line tree.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// configFile holds the --config flag shared by every subcommand.
var configFile string

var rootCmd = &cobra.Command{
	Use:   "semihostd",
	Short: "Semihosting protocol bridge daemon",
	Long: `semihostd bridges ARM semihosting CALL/RETN requests from a debugger
or emulator to a real filesystem or S3 bucket, exposing the handle
table, audit journal, and path policy over an admin HTTP API.

Use "semihostd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetConfigFile returns the --config flag value, or "" to use the default location.
func GetConfigFile() string {
	return configFile
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/semihostd/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
