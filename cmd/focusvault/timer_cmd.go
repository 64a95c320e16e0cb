package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"focusvault/internal/presentation/tui"
	"focusvault/internal/shared/config"
	"focusvault/internal/shared/timer"
)

type timerFlags struct {
	preset   string
	duration time.Duration
	subject  string
	name     string
	noTUI    bool
}

func (cli *CLI) timerCommand() *cobra.Command {
	var flags timerFlags

	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Run a study session",
		Long: `Open a new session and count it down.

In a terminal the session is shown in reading mode:
  space  start / pause / resume
  s      stop and rewind
  r      reset
  + / -  add or remove time
  q      quit (the session is kept and can be resumed)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.runTimer(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.preset, "preset", "p", string(timer.KindFocus), "session preset: focus, short_break or long_break")
	cmd.Flags().DurationVarP(&flags.duration, "duration", "d", 0, "session length, overrides the preset (e.g. 50m)")
	cmd.Flags().StringVarP(&flags.subject, "subject", "s", "", "what you are studying")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "session name (default: preset label)")
	cmd.Flags().BoolVar(&flags.noTUI, "no-tui", false, "print progress lines instead of the full-screen view")
	return cmd
}

func (cli *CLI) runTimer(ctx context.Context, flags timerFlags) error {
	kind, err := timer.ParseKind(flags.preset)
	if err != nil {
		return err
	}
	if flags.duration < 0 || (flags.duration > 0 && flags.duration < time.Second) {
		return fmt.Errorf("%w: --duration %s", timer.ErrInvalidDuration, flags.duration)
	}

	if err := cli.initializeConfigOnly(); err != nil {
		return err
	}
	useTUI := cli.useTUI(flags.noTUI)
	c, err := cli.initializeContainer(ctx, useTUI)
	if err != nil {
		return err
	}

	seconds := int(flags.duration / time.Second)
	if seconds == 0 {
		seconds = presetSeconds(c.Config, kind)
	}
	record, err := c.Manager.Open(ctx, timer.OpenRequest{
		Name:    flags.name,
		Subject: flags.subject,
		Kind:    kind,
		Seconds: seconds,
	})
	if err != nil {
		return err
	}
	if err := c.Manager.StartSession(record.ID); err != nil {
		return err
	}
	return cli.readSession(ctx, c, record.ID, useTUI)
}

func (cli *CLI) useTUI(noTUI bool) bool {
	if noTUI || !cli.config.UI.TUI {
		return false
	}
	return cli.interactive != nil && cli.interactive()
}

func presetSeconds(cfg config.Config, kind timer.Kind) int {
	switch kind {
	case timer.KindShortBreak:
		return cfg.Timer.ShortBreak.Seconds()
	case timer.KindLongBreak:
		return cfg.Timer.LongBreak.Seconds()
	default:
		return cfg.Timer.Focus.Seconds()
	}
}

// readSession shows a session until it completes or the user quits. When a
// completion starts a break automatically, the break is shown next.
func (cli *CLI) readSession(ctx context.Context, c *Container, sessionID string, useTUI bool) error {
	for sessionID != "" {
		record, ok := c.Manager.Get(sessionID)
		if !ok {
			return fmt.Errorf("%w: %s", timer.ErrSessionNotFound, sessionID)
		}
		st, err := c.Manager.Timer(sessionID)
		if err != nil {
			return err
		}
		updates := tui.Watch(st)

		if err := cli.view(ctx, c, record, st, updates, useTUI); err != nil {
			return err
		}
		if ctx.Err() != nil || st.Phase() != timer.PhaseCompleted {
			if !useTUI {
				fmt.Fprintf(cli.out, "%s session %s kept at %s\n", yellow("■"), record.ID, st.FormattedDisplay())
			}
			return nil
		}
		fmt.Fprintf(cli.out, "%s %s finished (%s)\n", green("✓"), record.Name, timer.FormatMinutes(record.TotalSeconds/60))
		sessionID = followUp(c.Manager, record)
	}
	return nil
}

func (cli *CLI) view(ctx context.Context, c *Container, record timer.Record, st *timer.StudyTimer, updates <-chan timer.Snapshot, useTUI bool) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		if !useTUI {
			_, err := renderPlain(gctx, cli.out, record.Name, st.Snapshot(), updates, cli.interactive != nil && cli.interactive())
			return err
		}
		controls, err := tui.SessionControls(c.Manager, record.ID)
		if err != nil {
			return err
		}
		model := tui.New(controls,
			tui.WithTitle(record.Name),
			tui.WithSubtitle(sessionSubtitle(record)),
			tui.WithStep(c.Config.UI.AdjustStep.Seconds()),
			tui.WithUpdates(updates),
		)
		return tui.Run(gctx, model)
	})
	g.Go(func() error {
		return c.flushMetrics(gctx)
	})
	return g.Wait()
}

func sessionSubtitle(record timer.Record) string {
	if record.Subject == "" {
		return record.Kind.Label()
	}
	return fmt.Sprintf("%s · %s", record.Kind.Label(), record.Subject)
}

// followUp returns the newest session opened after current that is either
// running or a break that already finished, so an automatic break is shown
// even when it completed before the previous view closed.
func followUp(manager *timer.SessionManager, current timer.Record) string {
	var next timer.Record
	for _, r := range manager.List() {
		if r.ID == current.ID || !r.CreatedAt.After(current.CreatedAt) {
			continue
		}
		finishedBreak := r.Kind.IsBreak() && r.Status == timer.StatusCompleted
		if r.Phase != timer.PhaseRunning && !finishedBreak {
			continue
		}
		if next.ID == "" || r.CreatedAt.After(next.CreatedAt) {
			next = r
		}
	}
	return next.ID
}
