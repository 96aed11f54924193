// Package tui renders an optional live progress dashboard while the
// cluster bootstraps (spec.md §1's "progress/status rendering" external
// collaborator, detailed as an [ADD] in SPEC_FULL.md §4.11). It only
// subscribes to supervisor.Event transitions; it never participates in
// readiness decisions. Model/Update/View shape and styling are grounded in
// the teacher CLI's internal/ui/application.go and styles.go.
package tui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kubernix/kubernix/internal/process"
	"github.com/kubernix/kubernix/internal/supervisor"
)

var styles = struct {
	Title   lipgloss.Style
	Pending lipgloss.Style
	Ready   lipgloss.Style
	Failed  lipgloss.Style
}{
	Title: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1).
		Bold(true),
	Pending: lipgloss.NewStyle().Foreground(lipgloss.Color("#7C7C7C")),
	Ready:   lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
	Failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true),
}

// row is one component's last-known state for rendering.
type row struct {
	state process.Status
	err   error
}

// eventMsg wraps a supervisor.Event as a tea.Msg.
type eventMsg supervisor.Event

// doneMsg signals the event channel closed: bootstrap finished or failed.
type doneMsg struct{}

// Model is the dashboard's bubbletea model. It owns no process state of its
// own — everything it renders comes from events read off the channel.
type Model struct {
	events  <-chan supervisor.Event
	names   []string
	rows    map[string]row
	spinner spinner.Model
	done    bool
}

// New builds a dashboard subscribed to events. names is the full component
// list (from components.All) so every row appears immediately, even before
// its first event arrives.
func New(events <-chan supervisor.Event, names []string) Model {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return Model{
		events:  events,
		names:   sorted,
		rows:    make(map[string]row, len(sorted)),
		spinner: s,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan supervisor.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.rows[msg.Name] = row{state: msg.State, err: msg.Err}
		return m, waitForEvent(m.events)

	case doneMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	out := styles.Title.Render("KuberNix bootstrap") + "\n\n"
	for _, name := range m.names {
		r, seen := m.rows[name]
		switch {
		case !seen:
			out += fmt.Sprintf("  %s %s\n", m.spinner.View(), styles.Pending.Render(name+" (waiting)"))
		case r.state == process.Ready:
			out += fmt.Sprintf("  ✓ %s\n", styles.Ready.Render(name))
		case r.state == process.Failed:
			out += fmt.Sprintf("  ✗ %s\n", styles.Failed.Render(fmt.Sprintf("%s: %v", name, r.err)))
		default:
			out += fmt.Sprintf("  %s %s\n", m.spinner.View(), styles.Pending.Render(name))
		}
	}
	if m.done {
		out += "\n" + styles.Ready.Render("bootstrap finished")
	}
	return out
}

// Run drives the dashboard program to completion (until its event channel
// closes or the user interrupts it). Bootstrap itself is unaffected either
// way, since the supervisor never blocks on dashboard consumption.
func Run(events <-chan supervisor.Event, names []string) error {
	_, err := tea.NewProgram(New(events, names)).Run()
	return err
}
