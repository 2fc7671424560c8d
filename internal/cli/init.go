package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/resc/api/v1beta1/configs"
)

type InitArgs struct {
	*RootArgs

	Force bool
}

func NewInitCmd(rootArgs *RootArgs) *cobra.Command {
	ia := &InitArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Long: `Write the default configuration to the path given by --config, or to the
user configuration file. Existing files are kept unless --force is set, in
which case they are backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := ia.ConfigPath
			if path == "" {
				path = configs.GetPath()
			}

			err := configs.WriteDefault(path, ia.Force)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&ia.Force, "force", "f", false, "Back up and replace an existing file")

	return cmd
}
