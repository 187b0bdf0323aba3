package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(configValidateCmd(), configShowCmd())

	return cmd
}

func configValidateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load configuration and report validation errors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(cmd.Context(), configFile); err != nil {
				return err
			}
			cmd.Println("configuration is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")

	return cmd
}

func configShowCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), configFile)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}
			cmd.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")

	return cmd
}
