package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"focusvault/internal/shared/timer"
)

func (cli *CLI) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize completed study sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cli.initializeContainer(cmd.Context(), false)
			if err != nil {
				return err
			}
			summary := timer.Summarize(c.Manager.List(), cli.now())
			writeSummary(cli.out, summary, c.Config.Timer.DailyGoal.Std())
			return nil
		},
	}
}

func (cli *CLI) now() time.Time {
	if cli.clock != nil {
		return cli.clock.Now()
	}
	return time.Now()
}

func writeSummary(w io.Writer, s timer.Summary, dailyGoal time.Duration) {
	fmt.Fprintf(w, "%s\n", bold("Study summary"))
	fmt.Fprintf(w, "  Focus time     %s in %d sessions\n", cyan(timer.FormatMinutes(s.FocusMinutes())), s.FocusSessions)
	fmt.Fprintf(w, "  Breaks         %s in %d sessions\n", timer.FormatMinutes(s.BreakSeconds/60), s.BreakSessions)
	fmt.Fprintf(w, "  Streak         %d days\n", s.StreakDays)
	fmt.Fprintf(w, "  Level          %s\n", green(string(s.Level)))

	today := timer.FormatMinutes(s.TodayFocusSeconds / 60)
	if dailyGoal > 0 {
		goal := timer.FormatMinutes(int(dailyGoal / time.Minute))
		if s.TodayFocusSeconds >= int(dailyGoal/time.Second) {
			today = fmt.Sprintf("%s of %s %s", today, goal, green("✓"))
		} else {
			today = fmt.Sprintf("%s of %s", today, goal)
		}
	}
	fmt.Fprintf(w, "  Today          %s in %d sessions\n", today, s.TodayFocusSessions)

	subjects := s.Subjects()
	if len(subjects) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", bold("By subject"))
	for _, subject := range subjects {
		fmt.Fprintf(w, "  %-14s %s\n", subject, timer.FormatMinutes(s.SubjectSeconds[subject]/60))
	}
}
