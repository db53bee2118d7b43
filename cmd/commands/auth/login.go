package auth

import (
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/stackgate/internal/services/auth"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <cloud>",
		Short: "Store the password for a cloud profile",
		Long: `Store the password for a clouds.yaml profile in the local keychain.

Example:
  stackgate auth login mycloud`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cloud := strings.TrimSpace(args[0])
			if cloud == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "cloud is required")
				return
			}

			password, err := cmd.Flags().GetString("password")
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return
			}

			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter password: ")
				bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					return
				}
				password = string(bytes)
			}

			if strings.TrimSpace(password) == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "password cannot be empty")
				return
			}

			if err := storeFactory().SetPassword(cloud, password); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved password for cloud %s\n", cloud)
		},
	}

	cmd.Flags().String("password", "", "Password (optional, overrides prompt)")

	return cmd
}

// storeFactory is swapped in tests.
var storeFactory = auth.DefaultStore
