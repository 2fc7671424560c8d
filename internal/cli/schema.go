package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/resc/api/v1beta1/configs"
)

func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(configs.Schema())
			if err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			return nil
		},
	}
}
