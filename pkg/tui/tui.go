// Package tui provides a terminal browser for the keyboards mirrored from the device
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"github.com/james-see/accordionctl/pkg/mirror"
	"github.com/james-see/accordionctl/pkg/notify"
)

var (
	accent   = lipgloss.Color("#E0A526")
	ivory    = lipgloss.Color("#F5F0E1")
	slate    = lipgloss.Color("#2B2D42")
	dimGray  = lipgloss.Color("#666666")
	alertRed = lipgloss.Color("#FF0000")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Background(slate).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(ivory).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			PaddingLeft(2)

	tagStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	statusStyle = lipgloss.NewStyle().
			Foreground(accent).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Width(5)
)

const (
	pollInterval = 500 * time.Millisecond
	// fetchTimeout ends the spinner for a device with nothing stored
	fetchTimeout = 3 * time.Second
)

// Device reports the connection state shown in the status line
type Device interface {
	Ready() bool
	Pending() int
}

// entry is one row of the keyboard list
type entry struct {
	tag string
	kbd *keyboard.Keyboard
}

// Model represents the TUI model
type Model struct {
	mirror  *mirror.Mirror
	device  Device
	events  <-chan notify.Event
	spinner spinner.Model

	entries      []entry
	selected     int
	fetching     bool
	fetchStarted time.Time
	ready    bool
	pending  int
	err      error
}

type eventMsg notify.Event

type tickMsg time.Time

type fetchDoneMsg struct{ err error }

// New creates a new TUI model. events should be subscribed to the mirror's notifier.
func New(m *mirror.Mirror, device Device, events <-chan notify.Event) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	model := Model{
		mirror:  m,
		device:  device,
		events:  events,
		spinner: s,
	}
	return model.refresh()
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events), tick())
}

func waitForEvent(ch <-chan notify.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetch() tea.Cmd {
	mir := m.mirror
	return func() tea.Msg {
		return fetchDoneMsg{err: mir.FetchStored()}
	}
}

// refresh rebuilds the keyboard list from the mirror
func (m Model) refresh() Model {
	m.entries = nil
	for _, k := range m.mirror.Stored() {
		m.entries = append(m.entries, entry{tag: "stored", kbd: k})
	}
	for _, side := range []keyboard.Side{keyboard.SideLeft, keyboard.SideRight} {
		if k := m.mirror.Current(side); k != nil {
			m.entries = append(m.entries, entry{tag: "current " + side.String(), kbd: k})
		}
	}
	if m.selected >= len(m.entries) {
		m.selected = max(len(m.entries)-1, 0)
	}
	if m.device != nil {
		m.ready = m.device.Ready()
		m.pending = m.device.Pending()
	}
	return m
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.entries)-1 {
				m.selected++
			}
		case "f":
			m.fetching = true
			m.fetchStarted = time.Now()
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.fetch())
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		m = m.refresh()
		// the fetch itself empties the list, so wait for the first answer
		if msg.Topic == notify.TopicStored && len(m.mirror.Stored()) > 0 {
			m.fetching = false
		}
		return m, waitForEvent(m.events)

	case tickMsg:
		if m.fetching && time.Time(msg).Sub(m.fetchStarted) > fetchTimeout {
			m.fetching = false
		}
		return m.refresh(), tick()

	case fetchDoneMsg:
		if msg.err != nil {
			m.fetching = false
			m.err = msg.err
		}
		return m.refresh(), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" ACCORDION KEYBOARDS "))
	s.WriteString("\n")

	if len(m.entries) == 0 {
		s.WriteString(menuStyle.Render("no keyboards known yet, press f to fetch"))
		s.WriteString("\n")
	}
	for i, e := range m.entries {
		line := fmt.Sprintf("%s %s", e.kbd.Name, tagStyle.Render(fmt.Sprintf("(%s, %s)", e.kbd.Layout(), e.tag)))
		if i == m.selected {
			s.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			s.WriteString(menuStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}

	if m.selected < len(m.entries) {
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderGrid(m.entries[m.selected].kbd)))
		s.WriteString("\n")
	}

	s.WriteString(statusStyle.Render(m.statusLine()))
	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s", m.err.Error())))
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: select • f: fetch stored • q: quit"))

	return s.String()
}

func (m Model) statusLine() string {
	var parts []string
	if m.fetching {
		parts = append(parts, m.spinner.View()+" fetching")
	}
	if m.ready {
		parts = append(parts, "connected")
	} else {
		parts = append(parts, "disconnected")
	}
	if m.pending > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", m.pending))
	}
	return strings.Join(parts, " • ")
}

// renderGrid draws the keys row by row as on the instrument
func renderGrid(k *keyboard.Keyboard) string {
	var rows []string
	index := 1
	for _, n := range k.Layout().Rows() {
		cells := make([]string, n)
		for col := range cells {
			a, _ := k.Get(index)
			cells[col] = cellStyle.Render(cellLabel(a))
			index++
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func cellLabel(a keyboard.KeyAction) string {
	switch v := a.(type) {
	case keyboard.Note:
		return fmt.Sprintf("N%d", v.Pitch())
	case keyboard.Program:
		return fmt.Sprintf("P%d", v.Number())
	case keyboard.Control:
		return fmt.Sprintf("C%d", v.Number())
	}
	return "·"
}

// Run starts the TUI application
func Run(m *mirror.Mirror, device Device) error {
	events, cancel := m.Notifier().Chan(64)
	defer cancel()

	p := tea.NewProgram(New(m, device, events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
