package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/client"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/logging"
)

// Env overrides the server address when neither the flag nor the project
// file sets it.
const serverEnv = "NUITESTER_URL"

// app carries what every command needs once flags are parsed.
type app struct {
	server    string
	workspace string
	config    string
	timeout   time.Duration
	verbose   bool
	json      bool

	project *Project
	client  *client.Client
	logger  *logging.Logger
}

// NewRootCommand creates the root command for nuictl.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "nuictl",
		Short: "nuictl - drive a NUI tester server",
		Long: `nuictl pushes a local UI folder to a NUI tester server and drives the
workspace from the command line: send messages, invoke callbacks, read the
console log, snapshot and export.

Defaults for --server and --workspace are read from .nuictl.yaml or
.nuictl.toml in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.server, "server", "s", "", "Server URL (default "+client.DefaultBaseURL+")")
	flags.StringVarP(&a.workspace, "workspace", "w", "", "Default workspace id")
	flags.StringVar(&a.config, "config", "", "Project file (default: .nuictl.yaml or .nuictl.toml)")
	flags.DurationVar(&a.timeout, "timeout", 60*time.Second, "Timeout for each command")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log requests to stderr")
	flags.BoolVar(&a.json, "json", false, "Output in JSON format")

	cmd.AddCommand(
		newPushCommand(a),
		newExportCommand(a),
		newSendCommand(a),
		newInvokeCommand(a),
		newLogsCommand(a),
		newSnapshotCommand(a),
		newStatusCommand(a),
	)
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) init(cmd *cobra.Command) error {
	var err error
	if a.config != "" {
		a.project, err = LoadProject(a.config)
	} else {
		a.project, err = FindProject(".")
	}
	if err != nil {
		return err
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.logger, err = logging.New(logging.Config{
		Level:       level,
		Development: true,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	opts := client.DefaultOptions()
	opts.BaseURL = a.serverURL()
	opts.Logger = a.logger.Component("client")
	a.client = client.New(opts)

	a.logger.Debug("nuictl configured",
		zap.String("server", opts.BaseURL),
		zap.String("project", a.project.Path()))
	return nil
}

func (a *app) serverURL() string {
	switch {
	case a.server != "":
		return a.server
	case a.project != nil && a.project.Server != "":
		return a.project.Server
	case os.Getenv(serverEnv) != "":
		return os.Getenv(serverEnv)
	}
	return client.DefaultBaseURL
}

// resolveWorkspace maps a positional workspace argument to an id. An
// empty argument or "." selects the default workspace.
func (a *app) resolveWorkspace(arg string) (string, error) {
	if arg != "" && arg != "." {
		return arg, nil
	}
	if a.workspace != "" {
		return a.workspace, nil
	}
	if a.project != nil && a.project.Workspace != "" {
		return a.project.Workspace, nil
	}
	return "", errors.New("no workspace given and no default set (use --workspace or the project file)")
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

// output writes v as JSON in --json mode, otherwise the text line.
func (a *app) output(cmd *cobra.Command, v any, text string) error {
	if a.json {
		data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}
