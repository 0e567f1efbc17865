package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnwbyrd/semihost/internal/cli/prompt"
	"github.com/johnwbyrd/semihost/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a starter configuration file",
	Long: `Walk through the sandbox root, feature flags, and admin API secret
needed to run semihostd, then write a config file.

Examples:
  semihostd init
  semihostd init --config /etc/semihostd/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			overwrite, err := prompt.Confirm(fmt.Sprintf("Config file already exists at %s. Overwrite?", path), false)
			if err != nil {
				return err
			}
			if !overwrite {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}
	}

	root, err := prompt.InputRequired("Sandbox root directory")
	if err != nil {
		return err
	}

	readOnly, err := prompt.Confirm("Mount the sandbox read-only?", false)
	if err != nil {
		return err
	}

	allowSystem, err := prompt.Confirm("Allow guests to run SYSTEM commands?", false)
	if err != nil {
		return err
	}

	allowExit, err := prompt.Confirm("Allow guests to terminate the daemon via EXIT?", false)
	if err != nil {
		return err
	}

	listenAddr, err := prompt.Input("Transport listen address", ":5656")
	if err != nil {
		return err
	}

	secret, err := prompt.InputRequired("Admin API auth secret (at least 32 characters)")
	if err != nil {
		return err
	}

	cfg := config.GetDefaultConfig()
	cfg.Backend.Kind = config.BackendSandbox
	cfg.Backend.Sandbox.Root = root
	cfg.Backend.Sandbox.ReadOnly = readOnly
	cfg.Backend.Sandbox.AllowSystem = allowSystem
	cfg.Backend.Sandbox.AllowExit = allowExit
	cfg.Transport.ListenAddr = listenAddr
	cfg.Auth.Secret = secret

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("generated configuration is invalid: %w", err)
	}

	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Start the daemon with: semihostd run --config", path)
	return nil
}
