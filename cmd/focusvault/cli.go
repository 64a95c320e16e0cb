package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"focusvault/internal/shared/config"
	"focusvault/internal/shared/logging"
	"focusvault/internal/shared/timer"
)

// CLI holds the command line interface state
type CLI struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	verbose    bool

	config    config.Config
	meta      config.Metadata
	loaded    bool
	container *Container

	// overridable in tests
	logger      logging.Logger
	clock       timer.Clock
	interactive func() bool
}

// NewCLI creates a CLI writing to out and errOut.
func NewCLI(out, errOut io.Writer) *CLI {
	return &CLI{
		out:         out,
		errOut:      errOut,
		interactive: isTTY,
	}
}

// Run executes the command line.
func (cli *CLI) Run(ctx context.Context, args []string) error {
	root := cli.rootCommand()
	root.SetArgs(args)
	root.SetOut(cli.out)
	root.SetErr(cli.errOut)
	defer cli.cleanup()
	return root.ExecuteContext(ctx)
}

func (cli *CLI) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "focusvault",
		Short: "Study timer with session history and recurring plans",
		Long: `focusvault runs countdown study sessions in the terminal.

Sessions are persisted between runs, finished sessions feed a study
summary, and recurring plans open sessions on a cron schedule.

Examples:
  focusvault timer                         # 25 minute focus session
  focusvault timer --preset short_break    # 5 minute break
  focusvault timer --duration 50m --subject maths
  focusvault stats`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "configuration file (default: ./focusvault.yaml or ~/.focusvault/focusvault.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&cli.verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(
		cli.timerCommand(),
		cli.sessionsCommand(),
		cli.statsCommand(),
		cli.planCommand(),
		cli.configCommand(),
	)
	return rootCmd
}

func (cli *CLI) initializeConfigOnly() error {
	cfg, meta, err := config.Load(config.WithConfigPath(cli.configPath))
	if err != nil {
		return err
	}
	cli.config = cfg
	cli.meta = meta
	cli.loaded = true
	return nil
}

// initializeContainer loads the configuration, wires the container and
// starts the session manager. interactive suppresses console output that
// would corrupt a full-screen view.
func (cli *CLI) initializeContainer(ctx context.Context, interactive bool) (*Container, error) {
	if cli.container != nil {
		return cli.container, nil
	}
	if !cli.loaded {
		if err := cli.initializeConfigOnly(); err != nil {
			return nil, err
		}
	}

	opts := containerOptions{
		stderr:  cli.errOut,
		verbose: cli.verbose && !interactive,
		logger:  cli.logger,
		clock:   cli.clock,
	}
	if !interactive {
		opts.console = cli.out
	}
	container, err := buildContainer(cli.config, opts)
	if err != nil {
		return nil, err
	}
	cli.container = container

	if err := container.Manager.Start(ctx); err != nil {
		return nil, fmt.Errorf("start session manager: %w", err)
	}
	return container, nil
}

func (cli *CLI) cleanup() {
	if cli.container == nil {
		return
	}
	if err := cli.container.Cleanup(context.Background()); err != nil {
		fmt.Fprintf(cli.errOut, "Cleanup error: %v\n", err)
	}
	cli.container = nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
