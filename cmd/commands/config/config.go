package config

import (
	"nathanbeddoewebdev/stackgate/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stackgate configuration",
		Long: "View and modify persistent stackgate settings.\n\n" +
			"Configuration is stored at <user config dir>/stackgate/stackgate.yaml.\n" +
			"STACKGATE_* environment variables override the file.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())

	return cmd
}
