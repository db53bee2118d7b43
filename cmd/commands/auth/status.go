package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/stackgate/internal/config"
	"nathanbeddoewebdev/stackgate/internal/services/auth"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where each cloud's password comes from",
		Long: `Show, for every profile in clouds.yaml, whether its password is set
inline, stored in the keychain, or missing.

Example:
  stackgate auth status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path, err := config.FindCloudsFile(cfg.CloudsFile)
			if err != nil {
				return err
			}
			clouds, err := config.LoadClouds(path)
			if err != nil {
				return err
			}

			names := clouds.Names()
			if len(names) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No clouds defined in %s.\n", path)
				return nil
			}

			store := storeFactory()
			for _, name := range names {
				cloud, err := clouds.Get(name)
				if err != nil {
					return err
				}
				if cloud.Auth.Password != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: password in clouds.yaml\n", name)
					continue
				}
				_, err = store.GetPassword(name)
				switch {
				case err == nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: logged in\n", name)
				case errors.Is(err, auth.ErrPasswordNotFound):
					fmt.Fprintf(cmd.OutOrStdout(), "%s: not logged in\n", name)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: error (%v)\n", name, err)
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
