// Package cli implements the resc command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/resc/api"
	"github.com/macropower/resc/api/v1beta1/configs"
	"github.com/macropower/resc/pkg/config"
	"github.com/macropower/resc/pkg/log"
)

const (
	cmdName = "resc"
	cmdDesc = `Rule-based task rewriting between Redis queues.`

	configFileName = "config.yaml"
)

type RootArgs struct {
	LogLevel   string
	LogFormat  string
	ConfigPath string
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVarP(&ra.ConfigPath, "config", "c", "", "Path to the resc configuration file")

	must(cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.MarkPersistentFlagFilename("config", "yaml", "yml", "json"))
}

// GetConfigPath returns the configuration file to use. See
// [api.ResolveConfigPath].
func (ra *RootArgs) GetConfigPath() string {
	wd, err := os.Getwd()
	if err != nil {
		slog.Debug("get working directory", slog.Any("err", err))
	}

	return api.ResolveConfigPath(ra.ConfigPath, wd, configFileName)
}

// LoadConfig loads and validates the configuration file.
func (ra *RootArgs) LoadConfig() (*configs.Config, string, error) {
	path := ra.GetConfigPath()

	cfg, err := config.Load(path, config.WithColor(isTerminal(os.Stderr)))
	if err != nil {
		return nil, path, fmt.Errorf("load %q: %w", path, err)
	}

	slog.Debug("loaded config", slog.String("path", path))

	return cfg, path, nil
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()
	runArgs := NewRunArgs(args)

	runCmd := NewRunCmd(runArgs)
	cmd := &cobra.Command{
		Use:               cmdName,
		Short:             cmdDesc,
		Example:           runExamples,
		PersistentPreRunE: setupLogging(args),
		Args:              runCmd.Args,
		RunE:              runCmd.RunE,
		SilenceUsage:      true,
	}

	args.AddFlags(cmd)
	runArgs.AddFlags(cmd)

	cmd.AddCommand(
		runCmd,
		NewCheckCmd(args),
		NewEvalCmd(args),
		NewSchemaCmd(),
		NewInitCmd(args),
	)

	bindEnvVars(cmd)

	return cmd
}

func setupLogging(rc *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), rc.LogLevel, rc.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		logger := slog.New(logHandler)
		slog.SetDefault(logger)
		cmd.SetContext(log.NewContext(cmd.Context(), logger))

		return nil
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: file descriptors fit in int.
}
