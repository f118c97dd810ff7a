package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/nuitester/internal/domain/version"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		output string
		format string
		vid    int
	)

	cmd := &cobra.Command{
		Use:   "export [workspace]",
		Short: "Download the workspace files as an archive",
		Long: `Download the live files, or a snapshot with --version, as an archive.

Formats: zip (default), tar.gz, tar.zst. Use -o - to write to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wid, err := a.resolveWorkspace(firstArg(args))
			if err != nil {
				return err
			}
			if format == "" {
				format = a.project.Format
			}
			return a.export(cmd, wid, vid, format, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: the name the server offers)")
	cmd.Flags().StringVar(&format, "format", "", "Archive format: zip, tar.gz or tar.zst")
	cmd.Flags().IntVar(&vid, "version", 0, "Snapshot to export (default: live files)")
	return cmd
}

func (a *app) export(cmd *cobra.Command, wid string, vid int, format, output string) error {
	f, err := version.ParseFormat(format)
	if err != nil {
		return err
	}
	if vid < 0 {
		return fmt.Errorf("--version must be positive")
	}

	ctx, cancel := a.context(cmd)
	defer cancel()

	var buf bytes.Buffer
	name, err := a.client.Export(ctx, wid, vid, string(f), &buf)
	if err != nil {
		return err
	}

	if output == "-" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if output == "" {
		output = name
	}
	if output == "" {
		output = f.FileName()
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return err
	}

	result := map[string]any{"workspace": wid, "file": output, "bytes": buf.Len(), "format": f}
	if vid > 0 {
		result["version"] = vid
	}
	return a.output(cmd, result, fmt.Sprintf("Wrote %s (%s)", output, humanize.Bytes(uint64(buf.Len()))))
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
