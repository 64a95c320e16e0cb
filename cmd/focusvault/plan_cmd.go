package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"focusvault/internal/shared/timer"
)

type planFlags struct {
	name     string
	subject  string
	kind     string
	schedule string
	duration time.Duration
}

func (cli *CLI) planCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plan",
		Aliases: []string{"plans"},
		Short:   "Manage recurring study plans",
		Long: `Plans open and start a session on a cron schedule while focusvault runs.

Schedules use five fields: minute hour day-of-month month day-of-week.

Examples:
  focusvault plan add --name "Morning reading" --schedule "0 9 * * 1-5" --duration 50m
  focusvault plan list
  focusvault plan run plan-2abc...`,
	}

	var flags planFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recurring plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := timer.ParseKind(flags.kind)
			if err != nil {
				return err
			}
			c, err := cli.initializeContainer(cmd.Context(), false)
			if err != nil {
				return err
			}
			seconds := int(flags.duration / time.Second)
			if flags.duration == 0 {
				seconds = presetSeconds(c.Config, kind)
			}
			plan := &timer.Plan{
				Name:            flags.name,
				Subject:         flags.subject,
				Kind:            kind,
				Schedule:        flags.schedule,
				DurationSeconds: seconds,
			}
			if err := c.Manager.AddPlan(plan); err != nil {
				return err
			}
			next, _ := plan.Next(cli.now())
			fmt.Fprintf(cli.out, "%s added plan %s (next run %s)\n", green("✓"), plan.ID, next.Local().Format(time.DateTime))
			return nil
		},
	}
	addCmd.Flags().StringVar(&flags.name, "name", "", "plan name")
	addCmd.Flags().StringVar(&flags.subject, "subject", "", "subject studied in each session")
	addCmd.Flags().StringVar(&flags.kind, "kind", string(timer.KindFocus), "session kind: focus, short_break or long_break")
	addCmd.Flags().StringVar(&flags.schedule, "schedule", "", `cron schedule, e.g. "0 9 * * 1-5"`)
	addCmd.Flags().DurationVar(&flags.duration, "duration", 0, "session length (default: the kind's preset)")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("schedule")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List plans with their next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cli.initializeContainer(cmd.Context(), false)
			if err != nil {
				return err
			}
			plans := c.Manager.Plans()
			if len(plans) == 0 {
				fmt.Fprintln(cli.out, gray("No plans yet. Add one with `focusvault plan add`."))
				return nil
			}
			writePlanTable(cli.out, plans, cli.now())
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a plan",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cli.initializeContainer(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := c.Manager.RemovePlan(args[0]); err != nil {
				return notFound(err)
			}
			fmt.Fprintf(cli.out, "%s removed plan %s\n", green("✓"), args[0])
			return nil
		},
	}

	var noTUI bool
	runCmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Start a plan's session now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := cli.initializeConfigOnly(); err != nil {
				return err
			}
			useTUI := cli.useTUI(noTUI)
			c, err := cli.initializeContainer(ctx, useTUI)
			if err != nil {
				return err
			}
			record, err := c.Manager.RunPlan(ctx, args[0])
			if err != nil {
				return notFound(err)
			}
			return cli.readSession(ctx, c, record.ID, useTUI)
		},
	}
	runCmd.Flags().BoolVar(&noTUI, "no-tui", false, "print progress lines instead of the full-screen view")

	cmd.AddCommand(addCmd, listCmd, removeCmd, runCmd)
	return cmd
}

func writePlanTable(w io.Writer, plans []timer.Plan, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Subject", "Schedule", "Duration", "Next run"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, p := range plans {
		next := "-"
		if t, err := p.Next(now); err == nil {
			next = t.Local().Format(time.DateTime)
		}
		table.Append([]string{
			p.ID,
			p.Name,
			p.Subject,
			p.Schedule,
			timer.FormatDisplay(p.DurationSeconds),
			next,
		})
	}
	table.Render()
}
