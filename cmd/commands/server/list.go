package server

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all servers",
		Long: `List all servers in the selected cloud.

Examples:
  stackgate server list
  stackgate server list --cloud staging -o json`,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	client, _, err := setup(cmd)
	if err != nil {
		return err
	}

	servers, err := client.ListServers(cmd.Context())
	if err != nil {
		return fmt.Errorf("error listing servers: %w", err)
	}

	if output == "json" {
		printJSON(cmd, servers)
		return nil
	}

	if len(servers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No servers found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tNETWORKS\tPRIVATE IP\tFLOATING IP")
	fmt.Fprintln(w, "--\t----\t------\t--------\t----------\t-----------")

	for _, server := range servers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			server.ID,
			server.Name,
			server.Status,
			orDash(strings.Join(server.Networks, ",")),
			orDash(server.PrivateIP),
			orDash(server.FloatingIP),
		)
	}

	w.Flush()
	return nil
}
