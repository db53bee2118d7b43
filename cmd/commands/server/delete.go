package server

import (
	"fmt"

	"github.com/spf13/cobra"
)

func DeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a server by name",
		Long: `Delete the first server with the given name and wait for it to
disappear.

Example:
  stackgate server delete web-1-scale2`,
		Args:         cobra.ExactArgs(1),
		RunE:         runDelete,
		SilenceUsage: true,
	}

	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, _, err := setup(cmd)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Deleting server %q...\n", args[0])
	server, err := client.DeleteServerByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (ID: %s)\n", server.Name, server.ID)
	return nil
}
