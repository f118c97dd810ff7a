package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/client"
)

type pushOptions struct {
	name   string
	create bool
	save   bool
	dryRun bool
	ignore []string
}

func newPushCommand(a *app) *cobra.Command {
	var opts pushOptions

	cmd := &cobra.Command{
		Use:   "push [dir]",
		Short: "Upload a local UI folder to a workspace",
		Long: `Upload every file under dir, replacing the workspace content.

The default workspace is reused when it still exists, then a workspace with
the same --name, otherwise a new one is created. Ignore patterns come from
--ignore, the project file, or the server defaults.

Examples:
  # Push the current folder to a new workspace
  nuictl push

  # Push and remember the workspace in .nuictl.yaml
  nuictl push ./ui --name inventory --save`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.project.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				dir = "."
			}
			return a.push(cmd, dir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Workspace name (default: folder name)")
	cmd.Flags().BoolVar(&opts.create, "new", false, "Always create a new workspace")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Store the workspace id in the project file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "List the files that would be uploaded")
	cmd.Flags().StringSliceVar(&opts.ignore, "ignore", nil, "Ignore pattern (repeatable, replaces the defaults)")
	return cmd
}

func (a *app) push(cmd *cobra.Command, dir string, opts pushOptions) error {
	ctx, cancel := a.context(cmd)
	defer cancel()

	ignore := opts.ignore
	if len(ignore) == 0 {
		ignore = a.project.IgnorePatterns()
	}
	files, err := client.Collect(ctx, dir, ignore)
	if err != nil {
		return err
	}
	size := humanize.Bytes(uint64(client.TotalSize(files)))

	if opts.dryRun {
		if a.json {
			paths := make([]string, len(files))
			for i, f := range files {
				paths[i] = f.Path
			}
			return a.output(cmd, paths, "")
		}
		out := cmd.OutOrStdout()
		for _, f := range files {
			fmt.Fprintf(out, "%10s  %s\n", humanize.Bytes(uint64(f.Size)), f.Path)
		}
		fmt.Fprintf(out, "%d files, %s\n", len(files), size)
		return nil
	}

	name := opts.name
	if name == "" {
		name = a.project.Name
	}
	if name == "" {
		if abs, err := filepath.Abs(dir); err == nil {
			name = filepath.Base(abs)
		}
	}

	ws, err := a.targetWorkspace(cmd, name, opts.create)
	if err != nil {
		return err
	}
	wid := ws.ID.String()

	res, err := a.client.Upload(ctx, wid, files)
	if err != nil {
		return fmt.Errorf("upload to %s: %w", wid, err)
	}

	if opts.save {
		a.project.Workspace = wid
		if a.project.Name == "" {
			a.project.Name = name
		}
		if err := a.project.Save(ProjectFileNames[0]); err != nil {
			return fmt.Errorf("save project file: %w", err)
		}
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Pushed %d files (%s) to %s", res.Uploaded, size, wid)
	if res.Workspace.Entry != "" {
		fmt.Fprintf(&text, "\n  Entry:   %s", res.Workspace.Entry)
		fmt.Fprintf(&text, "\n  Preview: %s/workspaces/%s/preview", a.client.BaseURL(), wid)
	} else {
		text.WriteString("\n  No index.html found, nothing to preview")
	}
	return a.output(cmd, res, text.String())
}

// targetWorkspace finds the workspace a push goes to, creating one when
// nothing can be reused.
func (a *app) targetWorkspace(cmd *cobra.Command, name string, create bool) (*client.Workspace, error) {
	ctx, cancel := a.context(cmd)
	defer cancel()

	if !create {
		if wid, err := a.resolveWorkspace(""); err == nil {
			ws, err := a.client.GetWorkspace(ctx, wid)
			switch {
			case err == nil:
				return ws, nil
			case client.IsNotFound(err):
				a.logger.Warn("Default workspace is gone, creating a new one", zap.String("workspace", wid))
			default:
				return nil, err
			}
		}
		if name != "" {
			list, err := a.client.ListWorkspaces(ctx)
			if err != nil {
				return nil, err
			}
			var found *client.Workspace
			for i := range list {
				if list[i].Name == name && (found == nil || list[i].CreatedAt.After(found.CreatedAt)) {
					found = &list[i]
				}
			}
			if found != nil {
				return found, nil
			}
		}
	}
	return a.client.CreateWorkspace(ctx, name)
}
