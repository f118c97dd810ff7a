package cli

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/nuitester/internal/domain/console"
)

func newLogsCommand(a *app) *cobra.Command {
	var (
		follow bool
		since  uint64
	)

	cmd := &cobra.Command{
		Use:   "logs [workspace]",
		Short: "Print the console log of a workspace",
		Long: `Print the console log: messages the UI logged, callback responses and
diagnostics. --follow keeps streaming new entries until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wid, err := a.resolveWorkspace(firstArg(args))
			if err != nil {
				return err
			}
			if follow {
				return a.followLogs(cmd, wid)
			}

			ctx, cancel := a.context(cmd)
			defer cancel()
			page, err := a.client.Logs(ctx, wid, since)
			if err != nil {
				return err
			}
			return a.output(cmd, page, strings.TrimRight(console.RenderText(page.Entries), "\n"))
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new entries")
	cmd.Flags().Uint64Var(&since, "since", 0, "Only entries after this sequence number")
	return cmd
}

func (a *app) followLogs(cmd *cobra.Command, wid string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	return a.client.Follow(ctx, wid, func(e console.Entry) {
		if a.json {
			if line, err := sonic.ConfigStd.MarshalToString(e); err == nil {
				fmt.Fprintln(out, line)
			}
			return
		}
		fmt.Fprint(out, console.RenderText([]console.Entry{e}))
	})
}
