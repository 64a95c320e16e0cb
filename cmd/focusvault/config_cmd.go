package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"focusvault/internal/shared/config"
)

func (cli *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Show, locate and initialize the focusvault configuration",
	}

	var showSources bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.initializeConfigOnly(); err != nil {
				return err
			}
			data, err := config.Marshal(cli.config)
			if err != nil {
				return err
			}
			if _, err := cli.out.Write(data); err != nil {
				return err
			}
			if showSources {
				cli.showSources()
			}
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showSources, "sources", false, "list where each non-default value came from")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.initializeConfigOnly(); err != nil {
				return err
			}
			if path := cli.meta.ConfigPath(); path != "" {
				fmt.Fprintln(cli.out, path)
				return nil
			}
			fmt.Fprintf(cli.out, "%s\n", gray("no configuration file found; using defaults"))
			fmt.Fprintf(cli.out, "create one with `focusvault config init` at %s\n", config.DefaultConfigPath(homeDir()))
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := config.ResolveConfigPath(cli.configPath)
			if path == "" {
				path = config.DefaultConfigPath(homeDir())
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(config.Default(homeDir()), path); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s wrote %s\n", green("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(showCmd, pathCmd, initCmd)
	return cmd
}

func (cli *CLI) showSources() {
	sources := cli.meta.Sources()
	keys := make([]string, 0, len(sources))
	for key, source := range sources {
		if source != config.SourceDefault {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	fmt.Fprintln(cli.out)
	if len(keys) == 0 {
		fmt.Fprintln(cli.out, gray("# all values are defaults"))
		return
	}
	for _, key := range keys {
		fmt.Fprintf(cli.out, "# %s: %s\n", key, sources[key])
	}
}
