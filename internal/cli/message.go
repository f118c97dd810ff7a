package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/nuitester/internal/shared/utils"
)

func newSendCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <workspace> <json>",
		Short: "Post a message to the UI as a window message",
		Long: `Deliver a JSON payload to every open bridge of the workspace. The UI
receives it as a window "message" event. Use "." for the default workspace.

Example:
  nuictl send . '{"type":"open","items":[1,2]}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wid, err := a.resolveWorkspace(args[0])
			if err != nil {
				return err
			}
			if err := utils.PayloadValidator().ValidateJSONString(args[1]); err != nil {
				return fmt.Errorf("payload: %w", err)
			}

			ctx, cancel := a.context(cmd)
			defer cancel()
			n, err := a.client.Send(ctx, wid, args[1])
			if err != nil {
				return err
			}
			return a.output(cmd, map[string]any{"workspace": wid, "delivered": n}, delivered(n))
		},
	}
}

func newInvokeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invoke <workspace> <name> [json]",
		Short: "Invoke a callback the UI registered",
		Long: `Call the UI callback registered under name with optional JSON data
(default {}). The result shows up in the console log. Use "." for the
default workspace.

Example:
  nuictl invoke . close '{"reason":"test"}'`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			wid, err := a.resolveWorkspace(args[0])
			if err != nil {
				return err
			}
			name := args[1]
			data := "{}"
			if len(args) == 3 {
				data = args[2]
			}
			if err := utils.PayloadValidator().ValidateJSONString(data); err != nil {
				return fmt.Errorf("data: %w", err)
			}

			ctx, cancel := a.context(cmd)
			defer cancel()
			n, err := a.client.Invoke(ctx, wid, name, data)
			if err != nil {
				return err
			}
			return a.output(cmd, map[string]any{"workspace": wid, "name": name, "delivered": n}, delivered(n))
		},
	}
}

func delivered(n int) string {
	switch n {
	case 0:
		return "No preview is open, message dropped"
	case 1:
		return "Delivered to 1 preview"
	}
	return fmt.Sprintf("Delivered to %d previews", n)
}
