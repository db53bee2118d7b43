package server

import (
	"fmt"

	"nathanbeddoewebdev/stackgate/internal/config"
	"nathanbeddoewebdev/stackgate/internal/openstack"
	"nathanbeddoewebdev/stackgate/internal/providers"
	"nathanbeddoewebdev/stackgate/internal/services/scaling"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage servers on an OpenStack cloud",
		Long: `List servers, scale a base instance up or down, and delete servers
without going through the HTTP API.`,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(ScaleUpCommand())
	cmd.AddCommand(ScaleDownCommand())
	cmd.AddCommand(DeleteCommand())

	cmd.PersistentFlags().String("cloud", "", "clouds.yaml profile to use (overrides default-cloud)")

	return cmd
}

// clientSource is the part of the provider registry the commands need.
type clientSource interface {
	Client(name string) (*openstack.Client, error)
}

// loadClients is swapped in tests.
var loadClients = func(cfg *config.Config) (clientSource, error) {
	return providers.Load(cfg)
}

// setup returns the client for --cloud and a scaling service configured
// from the loaded settings.
func setup(cmd *cobra.Command) (*openstack.Client, *scaling.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	clients, err := loadClients(cfg)
	if err != nil {
		return nil, nil, err
	}

	cloud, _ := cmd.Flags().GetString("cloud")
	client, err := clients.Client(cloud)
	if err != nil {
		return nil, nil, err
	}

	scaler := scaling.NewService(scaling.Options{
		Suffix:       cfg.Scaling.Suffix,
		NumericOrder: cfg.Scaling.NumericOrder,
	})
	return client, scaler, nil
}
