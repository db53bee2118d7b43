package auth

import (
	"errors"
	"fmt"
	"strings"

	"nathanbeddoewebdev/stackgate/internal/services/auth"

	"github.com/spf13/cobra"
)

func LogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <cloud>",
		Short: "Forget the stored password for a cloud profile",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cloud := strings.TrimSpace(args[0])
			err := storeFactory().DeletePassword(cloud)
			switch {
			case errors.Is(err, auth.ErrPasswordNotFound):
				fmt.Fprintf(cmd.OutOrStdout(), "No stored password for cloud %s\n", cloud)
			case err != nil:
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Removed password for cloud %s\n", cloud)
			}
		},
	}
}
