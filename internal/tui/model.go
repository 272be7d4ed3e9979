// Package tui is a terminal front end for playback: it shows the current
// frame and maps keys onto the playback triggers.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/liframe/internal/orchestrator"
)

// Controller is the playback surface driven by key presses.
type Controller interface {
	StepForward() int
	StepBackward() int
	TogglePlay() orchestrator.State
	Status() orchestrator.Status
	Quit() error
}

// FrameMsg describes a newly processed frame.
type FrameMsg struct {
	Index    int
	MaxIndex int
	Present  []string
	Points   int
	Labels   int
}

type tickMsg time.Time

const refreshInterval = 200 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	stateStyles = map[orchestrator.State]lipgloss.Style{
		orchestrator.Playing: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		orchestrator.Paused:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		orchestrator.Stopped: lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	}
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#45475A")).Padding(0, 1)
)

// Model is the bubbletea model.
type Model struct {
	ctrl   Controller
	keys   KeyMap
	status orchestrator.Status
	frame  *FrameMsg
	err    error
}

// NewModel returns a model driving ctrl.
func NewModel(ctrl Controller) Model {
	return Model{ctrl: ctrl, keys: DefaultKeyMap(), status: ctrl.Status()}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the status refresh.
func (m Model) Init() tea.Cmd { return tick() }

// Update handles key presses, frame messages and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Forward):
			m.ctrl.StepForward()
		case key.Matches(msg, m.keys.Backward):
			m.ctrl.StepBackward()
		case key.Matches(msg, m.keys.Toggle):
			m.ctrl.TogglePlay()
		case key.Matches(msg, m.keys.Quit):
			m.err = m.ctrl.Quit()
			m.status = m.ctrl.Status()
			return m, tea.Quit
		}
		m.status = m.ctrl.Status()
	case FrameMsg:
		m.frame = &msg
		m.status = m.ctrl.Status()
	case tickMsg:
		m.status = m.ctrl.Status()
		if m.status.State == orchestrator.Stopped {
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

// View renders the status box and key help.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("liframe"))
	b.WriteString("  ")
	b.WriteString(stateStyles[m.status.State].Render(m.status.State.String()))
	b.WriteString("\n")

	lines := []string{fmt.Sprintf("frame %d/%d", m.status.Index, m.status.MaxIndex)}
	if m.status.Unbounded {
		lines[0] = fmt.Sprintf("frame %d (live)", m.status.Index)
	}
	if f := m.frame; f != nil {
		lines = append(lines,
			fmt.Sprintf("processed %d: %s", f.Index, strings.Join(f.Present, ", ")),
			fmt.Sprintf("points %d  labels %d", f.Points, f.Labels),
		)
	} else {
		lines = append(lines, mutedStyle.Render("waiting for the first frame"))
	}
	if m.err != nil {
		lines = append(lines, fmt.Sprintf("error: %v", m.err))
	}
	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	help := make([]string, 0, 4)
	for _, k := range m.keys.bindings() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(mutedStyle.Render(strings.Join(help, " • ")))
	b.WriteString("\n")
	return b.String()
}
