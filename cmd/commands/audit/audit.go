package audit

import (
	"fmt"

	"nathanbeddoewebdev/stackgate/internal/auditlog"
	"nathanbeddoewebdev/stackgate/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "audit" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "View and manage audit history",
		Long: "View the audit trail of mutating API calls and prune old entries.\n\n" +
			"Recording is enabled with `stackgate config set audit-enabled true`.\n" +
			"History is stored in <user config dir>/stackgate/audit.db unless\n" +
			"audit.path is set.",
		SilenceUsage: true,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}

// openRepository is swapped in tests.
var openRepository = func() (auditlog.Repository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	path, err := cfg.AuditPath()
	if err != nil {
		return nil, err
	}
	return auditlog.OpenAt(path)
}
