package server

import (
	"fmt"

	"github.com/spf13/cobra"
)

func ScaleUpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scale-up <base-name>",
		Short: "Add one clone of a base server",
		Long: `Create one clone of the base server on its primary network and wait
until it is ACTIVE. Clones are named <base><suffix><n>, e.g. web-1-scale3.

Example:
  stackgate server scale-up web-1`,
		Args:         cobra.ExactArgs(1),
		RunE:         runScaleUp,
		SilenceUsage: true,
	}

	return cmd
}

func runScaleUp(cmd *cobra.Command, args []string) error {
	client, scaler, err := setup(cmd)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Cloning %q...\n", args[0])
	clone, err := scaler.ScaleUp(cmd.Context(), client, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s (ID: %s, status: %s)\n", clone.Name, clone.ID, clone.Status)
	return nil
}

func ScaleDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scale-down <base-name>",
		Short: "Remove one clone of a base server",
		Long: `Delete the highest-ordered clone of the base server and wait for it
to disappear. The base server itself is never deleted.

Example:
  stackgate server scale-down web-1`,
		Args:         cobra.ExactArgs(1),
		RunE:         runScaleDown,
		SilenceUsage: true,
	}

	return cmd
}

func runScaleDown(cmd *cobra.Command, args []string) error {
	client, scaler, err := setup(cmd)
	if err != nil {
		return err
	}

	deleted, err := scaler.ScaleDown(cmd.Context(), client, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", deleted)
	return nil
}
