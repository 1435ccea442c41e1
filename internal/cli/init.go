package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/diagramgen/pkg/config"
)

// initCommand creates the init command.
func (c *CLI) initCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default " + config.DefaultFile,
		Long: `Write a config file holding every setting with its default value.
An existing file is kept unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteFile(path, config.Default(), force); err != nil {
				return err
			}
			c.Logger.Debug("Wrote config file", "path", path)
			printSuccess("Wrote %s", path)
			printNextStep("Generate diagrams", "diagramgen generate")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
