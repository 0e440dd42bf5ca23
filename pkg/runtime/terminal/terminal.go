package terminal

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/de-tools/pivot-reports/pkg/app"
	"github.com/de-tools/pivot-reports/pkg/services/config"
	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/de-tools/pivot-reports/pkg/terminal/commands"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	analyser   *pivot.Analyser
	reporter   *Reporter
	factory    commands.AppFactory
	configPath string
	rootCmd    *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Analyser *pivot.Analyser
	Output   io.Writer
	// Factory overrides how the online commands build the application.
	Factory commands.AppFactory
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Analyser == nil {
		opts.Analyser = pivot.NewAnalyser()
	}

	cli := &CLI{
		analyser: opts.Analyser,
		reporter: NewReporter(opts.Output),
		factory:  opts.Factory,
	}
	if cli.factory == nil {
		cli.factory = cli.loadApp
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	return cli
}

func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

func (cli *CLI) ExecuteContext(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

// SetArgs replaces os.Args for the next execution.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pivot",
		Short:         "Usage report pivot tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Path to the configuration file")

	cmd.AddCommand(commands.NewAnalyzeCmd(cli.analyser))
	cmd.AddCommand(commands.NewColumnsCmd(cli.analyser))
	cmd.AddCommand(commands.NewRunCmd(cli.factory))
	cmd.AddCommand(commands.NewHistoryCmd(cli.factory, cli.reporter))
	cmd.AddCommand(commands.NewProfilesCmd(cli.factory))

	return cmd
}

func (cli *CLI) loadApp(ctx context.Context) (commands.Application, error) {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return nil, err
	}

	logger := app.NewLogger(cfg.Log, os.Stderr)
	a, err := app.New(logger.WithContext(ctx), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise: %w", err)
	}
	return a, nil
}
