package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/stackgate/internal/auditlog"

	"github.com/spf13/cobra"
)

func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit entries by age, route, outcome or cloud",
		Long: `Delete audit entries matching every given filter. At least one filter
is required.

Examples:
  stackgate audit prune --older-than 30d
  stackgate audit prune --older-than 72h --outcome success
  stackgate audit prune --route "POST /delete_lb" --outcome unresolved
  stackgate audit prune --cloud staging`,
		RunE:         runPrune,
		SilenceUsage: true,
	}

	cmd.Flags().String("older-than", "", "Only entries older than this duration (e.g. 30d, 72h)")
	cmd.Flags().String("route", "", "Only entries for this exact route, e.g. \"POST /delete_lb\"")
	cmd.Flags().String("outcome", "", "Only entries with this outcome: success, error or unresolved")
	cmd.Flags().String("cloud", "", "Only entries recorded against this cloud")

	return cmd
}

var outcomes = map[string]bool{
	auditlog.OutcomeSuccess:    true,
	auditlog.OutcomeError:      true,
	auditlog.OutcomeUnresolved: true,
}

func pruneFilter(cmd *cobra.Command) (auditlog.PruneFilter, error) {
	var filter auditlog.PruneFilter

	olderThan, _ := cmd.Flags().GetString("older-than")
	if olderThan = strings.TrimSpace(olderThan); olderThan != "" {
		d, err := parseDuration(olderThan)
		if err != nil {
			return filter, err
		}
		filter.OlderThan = d
	}

	route, _ := cmd.Flags().GetString("route")
	filter.Route = strings.TrimSpace(route)

	outcome, _ := cmd.Flags().GetString("outcome")
	filter.Outcome = strings.ToLower(strings.TrimSpace(outcome))
	if filter.Outcome != "" && !outcomes[filter.Outcome] {
		return filter, fmt.Errorf("invalid outcome %q (want success, error or unresolved)", outcome)
	}

	cloud, _ := cmd.Flags().GetString("cloud")
	filter.Cloud = strings.TrimSpace(cloud)

	if filter == (auditlog.PruneFilter{}) {
		return filter, fmt.Errorf("at least one of --older-than, --route, --outcome or --cloud is required")
	}
	return filter, nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	filter, err := pruneFilter(cmd)
	if err != nil {
		return err
	}

	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	removed, err := repo.Prune(filter)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d audit entr(y/ies).\n", removed)
	return nil
}

func parseDuration(input string) (time.Duration, error) {
	if before, ok := strings.CutSuffix(input, "d"); ok {
		num := before
		days, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", input)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}
