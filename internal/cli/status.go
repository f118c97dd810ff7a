package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health and open workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			health, err := a.client.Health(ctx)
			if err != nil {
				return err
			}
			list, err := a.client.ListWorkspaces(ctx)
			if err != nil {
				return err
			}

			var text strings.Builder
			fmt.Fprintf(&text, "%s %s (%s), up %s\n", a.client.BaseURL(), health.Status, health.Version, health.Uptime)
			if health.Shim.Error != "" {
				fmt.Fprintf(&text, "  shim self-test failed: %s\n", health.Shim.Error)
			}
			for _, ws := range list {
				entry := ws.Entry
				if entry == "" {
					entry = "-"
				}
				fmt.Fprintf(&text, "  %s  %-20s %4d files  %s\n", ws.ID, ws.Name, ws.Files, entry)
			}
			return a.output(cmd, map[string]any{"health": health, "workspaces": list},
				strings.TrimRight(text.String(), "\n"))
		},
	}
}
