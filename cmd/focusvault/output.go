package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"focusvault/internal/shared/timer"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// isTTY reports whether both stdin and stdout are terminals.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func phaseColor(p timer.Phase) func(a ...interface{}) string {
	switch p {
	case timer.PhaseRunning:
		return cyan
	case timer.PhasePaused:
		return yellow
	case timer.PhaseCompleted:
		return green
	default:
		return gray
	}
}

// plainLine renders one status line for the non-interactive renderer.
func plainLine(title string, snap timer.Snapshot) string {
	paint := phaseColor(snap.Phase)
	return fmt.Sprintf("%s %s %s %s",
		bold(title),
		paint(snap.Display()),
		progressBar(snap.ProgressPercent(), 20),
		gray(fmt.Sprintf("%3.0f%% %s", snap.ProgressPercent(), snap.Phase)),
	)
}

func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// renderPlain prints a status line per update until the countdown completes
// or ctx is cancelled. On a terminal the line is redrawn in place; otherwise
// only whole minutes and phase changes are printed.
func renderPlain(ctx context.Context, out io.Writer, title string, initial timer.Snapshot, updates <-chan timer.Snapshot, inPlace bool) (timer.Snapshot, error) {
	last := initial
	write := func(snap timer.Snapshot) error {
		var err error
		if inPlace {
			_, err = fmt.Fprintf(out, "\r\033[K%s", plainLine(title, snap))
		} else {
			_, err = fmt.Fprintln(out, plainLine(title, snap))
		}
		return err
	}
	if err := write(initial); err != nil {
		return last, err
	}
	defer func() {
		if inPlace {
			fmt.Fprintln(out)
		}
	}()

	for last.Phase != timer.PhaseCompleted {
		select {
		case <-ctx.Done():
			return last, nil
		case snap, ok := <-updates:
			if !ok {
				return last, nil
			}
			quiet := !inPlace && snap.Phase == last.Phase && snap.Remaining%60 != 0
			last = snap
			if quiet {
				continue
			}
			if err := write(snap); err != nil {
				return last, err
			}
		}
	}
	return last, nil
}
