package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/michaeltrefry/Yapplr-sub001/internal/conf"
)

// Command returns a cobra command that prints the effective configuration
// after defaults, file and environment merging
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("failed to marshal configuration: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
