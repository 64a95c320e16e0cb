package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"focusvault/internal/shared/timer"
)

const exitNotFound = 2

func (cli *CLI) sessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Inspect and manage stored sessions",
	}

	var activeOnly bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cli.initializeContainer(cmd.Context(), false)
			if err != nil {
				return err
			}
			records := c.Manager.List()
			if activeOnly {
				records = filterActive(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cli.out, gray("No sessions yet. Start one with `focusvault timer`."))
				return nil
			}
			writeSessionTable(cli.out, records)
			return nil
		},
	}
	listCmd.Flags().BoolVar(&activeOnly, "active", false, "only show sessions that can still be resumed")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cli.initializeContainer(cmd.Context(), false)
			if err != nil {
				return err
			}
			record, ok := c.Manager.Get(args[0])
			if !ok {
				return notFound(fmt.Errorf("%w: %s", timer.ErrSessionNotFound, args[0]))
			}
			data, err := yaml.Marshal(record)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}
			_, err = cli.out.Write(data)
			return err
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its stored record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cli.initializeContainer(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := c.Manager.Delete(args[0]); err != nil {
				return notFound(err)
			}
			fmt.Fprintf(cli.out, "%s deleted %s\n", green("✓"), args[0])
			return nil
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an unfinished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cli.initializeContainer(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := c.Manager.Cancel(args[0]); err != nil {
				return notFound(err)
			}
			fmt.Fprintf(cli.out, "%s cancelled %s\n", yellow("■"), args[0])
			return nil
		},
	}

	var noTUI bool
	resumeCmd := &cobra.Command{
		Use:   "resume <id>",
		Short: "Continue an unfinished session in reading mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.resumeSession(cmd.Context(), args[0], noTUI)
		},
	}
	resumeCmd.Flags().BoolVar(&noTUI, "no-tui", false, "print progress lines instead of the full-screen view")

	cmd.AddCommand(listCmd, showCmd, deleteCmd, cancelCmd, resumeCmd)
	return cmd
}

func (cli *CLI) resumeSession(ctx context.Context, sessionID string, noTUI bool) error {
	if err := cli.initializeConfigOnly(); err != nil {
		return err
	}
	useTUI := cli.useTUI(noTUI)
	c, err := cli.initializeContainer(ctx, useTUI)
	if err != nil {
		return err
	}

	record, ok := c.Manager.Get(sessionID)
	if !ok {
		return notFound(fmt.Errorf("%w: %s", timer.ErrSessionNotFound, sessionID))
	}
	if !record.IsActive() {
		return fmt.Errorf("session %s is %s and cannot be resumed", sessionID, record.Status)
	}
	switch record.Phase {
	case timer.PhasePaused:
		err = c.Manager.ResumeSession(sessionID)
	case timer.PhaseIdle, timer.PhaseCompleted:
		err = c.Manager.StartSession(sessionID)
	}
	if err != nil {
		return err
	}
	return cli.readSession(ctx, c, sessionID, useTUI)
}

func notFound(err error) error {
	if errors.Is(err, timer.ErrSessionNotFound) || errors.Is(err, timer.ErrPlanNotFound) {
		return &ExitCodeError{Code: exitNotFound, Err: err}
	}
	return err
}

func filterActive(records []timer.Record) []timer.Record {
	active := records[:0:0]
	for _, r := range records {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	return active
}

func writeSessionTable(w io.Writer, records []timer.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Kind", "Subject", "Remaining", "Phase", "Status", "Created"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, r := range records {
		table.Append([]string{
			r.ID,
			r.Name,
			string(r.Kind),
			r.Subject,
			fmt.Sprintf("%s / %s", timer.FormatDisplay(r.RemainingSeconds), timer.FormatDisplay(r.TotalSeconds)),
			string(r.Phase),
			string(r.Status),
			r.CreatedAt.Local().Format(time.DateTime),
		})
	}
	table.Render()
}
