package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSnapshotCommand(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "snapshot [workspace]",
		Short: "Save the live files as a new version",
		Long: `Save the live files of a workspace as a new numbered version. With
--list, print the versions instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wid, err := a.resolveWorkspace(firstArg(args))
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			if list {
				versions, err := a.client.Versions(ctx, wid)
				if err != nil {
					return err
				}
				var text strings.Builder
				for _, v := range versions {
					fmt.Fprintf(&text, "v%-4d %s  %3d files  %s\n",
						v.ID, v.Timestamp.Local().Format(time.DateTime), v.FileCount, humanize.Bytes(uint64(v.TotalBytes)))
				}
				return a.output(cmd, versions, strings.TrimRight(text.String(), "\n"))
			}

			v, err := a.client.Snapshot(ctx, wid)
			if err != nil {
				return err
			}
			return a.output(cmd, v, fmt.Sprintf("Saved version %d of %s (%d files, %s)",
				v.ID, wid, v.FileCount, humanize.Bytes(uint64(v.TotalBytes))))
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List versions instead of creating one")
	return cmd
}
