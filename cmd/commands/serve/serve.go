package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nathanbeddoewebdev/stackgate/internal/api"
	"nathanbeddoewebdev/stackgate/internal/auditlog"
	"nathanbeddoewebdev/stackgate/internal/config"
	"nathanbeddoewebdev/stackgate/internal/log"
	"nathanbeddoewebdev/stackgate/internal/providers"
	"nathanbeddoewebdev/stackgate/internal/services/scaling"

	"github.com/spf13/cobra"
)

// NewCommand returns the "serve" command. version is reported by /healthz.
func NewCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API in front of the clouds defined in clouds.yaml.

The server stops gracefully on SIGINT or SIGTERM.

Examples:
  stackgate serve
  stackgate serve --addr 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, version)
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides listen-addr)")

	return cmd
}

func run(cmd *cobra.Command, version string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := log.WithComponent("serve")

	registry, err := providers.Load(cfg)
	if err != nil {
		return err
	}
	logger.Info().Strs("clouds", registry.Names()).Str("default", registry.DefaultCloud()).Msg("clouds loaded")

	opts := api.Options{
		Clouds: registry,
		Scaler: scaling.NewService(scaling.Options{
			Suffix:       cfg.Scaling.Suffix,
			NumericOrder: cfg.Scaling.NumericOrder,
		}),
		Version: version,
	}

	if cfg.Audit.Enabled {
		path, err := cfg.AuditPath()
		if err != nil {
			return err
		}
		repo, err := auditlog.OpenAt(path)
		if err != nil {
			return err
		}
		defer repo.Close()
		opts.Audit = repo
		logger.Info().Str("path", path).Msg("audit log enabled")
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.ListenAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return api.New(opts).ListenAndServe(ctx, addr)
}
