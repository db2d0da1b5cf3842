package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trvlai/lawyerai/internal/config"
	"github.com/trvlai/lawyerai/pkg/detect"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, cfg.String())

		source := "built-in"
		if len(cfg.Chat.Jurisdictions) > 0 {
			source = "custom"
		}
		labels := detect.NewClassifier(cfg.Chat.Jurisdictions).Labels()
		fmt.Fprintf(out, "\nJurisdictions (%d, %s): %s\n", len(labels), source, strings.Join(labels, ", "))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration for errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		problems := config.NewValidator().ValidateConfig(cfg)
		out := cmd.OutOrStdout()
		if len(problems) == 0 {
			fmt.Fprintln(out, "Configuration is valid")
			return nil
		}

		for _, p := range problems {
			fmt.Fprintf(out, "  - %v\n", p)
		}
		return fmt.Errorf("configuration has %d problem(s): %w", len(problems), errors.Join(problems...))
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
