// Package tui renders a single study timer as a full-screen reading view.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"focusvault/internal/shared/timer"
)

// DefaultStep is the amount of time + and - add or remove.
const DefaultStep = 5 * 60

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(1, 4).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))

	doneStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var phaseColors = map[timer.Phase]lipgloss.Color{
	timer.PhaseIdle:      lipgloss.Color("250"),
	timer.PhaseRunning:   lipgloss.Color("14"),
	timer.PhasePaused:    lipgloss.Color("11"),
	timer.PhaseCompleted: lipgloss.Color("10"),
}

type snapshotMsg timer.Snapshot

// Option configures a Model.
type Option func(*Model)

// WithTitle sets the heading shown above the clock.
func WithTitle(title string) Option {
	return func(m *Model) {
		m.title = title
	}
}

// WithSubtitle sets the dim line under the heading.
func WithSubtitle(subtitle string) Option {
	return func(m *Model) {
		m.subtitle = subtitle
	}
}

// WithStep sets how many seconds + and - move the remaining time.
func WithStep(seconds int) Option {
	return func(m *Model) {
		if seconds > 0 {
			m.step = seconds
		}
	}
}

// WithUpdates makes the model redraw whenever a snapshot arrives.
func WithUpdates(updates <-chan timer.Snapshot) Option {
	return func(m *Model) {
		m.updates = updates
	}
}

// Model is the bubbletea model for reading mode.
type Model struct {
	controls Controls
	updates  <-chan timer.Snapshot

	title    string
	subtitle string
	step     int

	keys     keyMap
	help     help.Model
	progress progress.Model

	snap     timer.Snapshot
	width    int
	err      error
	quitting bool
}

// New builds a reading-mode model over controls.
func New(controls Controls, opts ...Option) Model {
	m := Model{
		controls: controls,
		title:    "Focus",
		step:     DefaultStep,
		keys:     defaultKeyMap(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

// Init waits for the first timer update.
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

// Update handles key presses, resizes and timer updates.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = progressWidth(msg.Width)
		return m, nil

	case snapshotMsg:
		m.snap = timer.Snapshot(msg)
		m.syncKeys()
		return m, waitForSnapshot(m.updates)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Toggle):
		err = m.toggle()
	case key.Matches(msg, m.keys.Stop):
		err = m.controls.Stop()
	case key.Matches(msg, m.keys.Reset):
		err = m.controls.Reset()
	case key.Matches(msg, m.keys.Add):
		err = m.controls.AddTime(m.step)
	case key.Matches(msg, m.keys.Subtract):
		err = m.controls.AddTime(-m.step)
	default:
		return m, nil
	}
	m.err = err
	m.refresh()
	return m, nil
}

func (m Model) toggle() error {
	switch m.controls.Snapshot().Phase {
	case timer.PhaseRunning:
		return m.controls.Pause()
	case timer.PhasePaused:
		return m.controls.Resume()
	default:
		return m.controls.Start()
	}
}

func (m *Model) refresh() {
	m.snap = m.controls.Snapshot()
	m.syncKeys()
}

// syncKeys disables the subtract key once there is no full step left.
func (m *Model) syncKeys() {
	m.keys.Subtract.SetEnabled(m.snap.Remaining >= m.step)
	m.keys.Add.SetEnabled(m.snap.Remaining < m.snap.Total)
	switch m.snap.Phase {
	case timer.PhaseRunning:
		m.keys.Toggle.SetHelp("space", "pause")
	case timer.PhasePaused:
		m.keys.Toggle.SetHelp("space", "resume")
	default:
		m.keys.Toggle.SetHelp("space", "start")
	}
	m.keys.Stop.SetEnabled(m.snap.Phase == timer.PhaseRunning || m.snap.Phase == timer.PhasePaused)
}

// Snapshot returns the state the model last rendered.
func (m Model) Snapshot() timer.Snapshot {
	return m.snap
}

// Err returns the error from the last rejected key action.
func (m Model) Err() error {
	return m.err
}

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := titleStyle.Render(m.title)
	if m.subtitle != "" {
		header += "\n" + dimStyle.Render(m.subtitle)
	}

	clock := clockStyle.Copy().
		Foreground(phaseColors[m.snap.Phase]).
		Render(m.snap.Display())

	status := dimStyle.Render(fmt.Sprintf("%s  %3.0f%%", phaseLabel(m.snap.Phase), m.snap.ProgressPercent()))
	if m.snap.Phase == timer.PhaseCompleted {
		status = doneStyle.Render("Session complete")
	}

	lines := []string{
		header,
		"",
		clock,
		"",
		m.progress.ViewAs(m.snap.ProgressPercent() / 100),
		status,
	}
	if m.err != nil {
		lines = append(lines, errorStyle.Render(m.err.Error()))
	}
	lines = append(lines, "", m.help.View(m.keys))

	body := lipgloss.JoinVertical(lipgloss.Center, lines...)
	if m.width > 0 {
		body = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, body)
	}
	return body + "\n"
}

// Run shows the model until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func waitForSnapshot(updates <-chan timer.Snapshot) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func phaseLabel(p timer.Phase) string {
	s := string(p)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func progressWidth(width int) int {
	const maxWidth = 60
	w := width - 8
	if w > maxWidth {
		w = maxWidth
	}
	if w < 10 {
		w = 10
	}
	return w
}
