package cmd

import (
	"os"

	"nathanbeddoewebdev/stackgate/cmd/commands/audit"
	"nathanbeddoewebdev/stackgate/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/stackgate/cmd/commands/config"
	"nathanbeddoewebdev/stackgate/cmd/commands/serve"
	"nathanbeddoewebdev/stackgate/cmd/commands/server"
	"nathanbeddoewebdev/stackgate/internal/config"
	"nathanbeddoewebdev/stackgate/internal/log"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X nathanbeddoewebdev/stackgate/cmd.Version=...".
var Version = "dev"

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "stackgate",
		Short: "An HTTP API for common OpenStack operations",
		Long: `stackgate is a small HTTP service in front of an OpenStack cloud. It
authenticates against Keystone with the credentials in clouds.yaml and
exposes VM, network, router, floating IP and load balancer operations,
including scaling a base instance up and down by cloning it.

Quick start:
  stackgate auth login mycloud     # Store the cloud password in the keychain
  stackgate serve                  # Run the HTTP API on :8080
  stackgate server list            # List servers without the API
  stackgate audit list             # Show recorded API calls`,
		Version:           Version,
		PersistentPreRunE: initialize,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default <user config dir>/stackgate/stackgate.yaml)")
	cmd.PersistentFlags().String("env-file", ".env", "Environment file loaded before the config")

	cmd.AddCommand(serve.NewCommand(Version))
	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(server.NewCommand())
	cmd.AddCommand(audit.NewCommand())

	return cmd
}

// initialize loads the environment file, applies --config, and sets up
// the global logger from the effective settings.
func initialize(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		config.SetPath(path)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	var root = rootCmd()
	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
