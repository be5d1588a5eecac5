package main

import (
	"errors"
	"fmt"

	"github.com/cuemby/joyride/pkg/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect joyride configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and report every problem",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := loadConfig(cmd)
		if err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			return nil
		}

		var invalid *config.ValidationError
		if !errors.As(err, &invalid) {
			return err
		}
		for _, problem := range invalid.Problems() {
			fmt.Fprintf(cmd.OutOrStdout(), "  ✗ %v\n", problem)
		}
		return fmt.Errorf("configuration has %d problem(s)", len(invalid.Problems()))
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, the config file and
JOYRIDE_* environment variables have been applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables joyride reads",
	Run: func(cmd *cobra.Command, args []string) {
		for _, key := range config.EnvKeys() {
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)
}
