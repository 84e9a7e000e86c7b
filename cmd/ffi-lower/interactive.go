package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98FB98")).
			Underline(true).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// pageSize caps the visible list rows.
const pageSize = 20

type modelState int

const (
	stateBrowse modelState = iota
	stateFilter
	stateDetail
)

type inspectModel struct {
	namespace string
	sections  []section
	visible   []entry
	filter    textinput.Model
	active    int
	selected  int
	state     modelState
}

func newInspectModel(ns string, secs []section) *inspectModel {
	ti := textinput.New()
	ti.Placeholder = "name"
	ti.Prompt = "filter: "
	ti.Width = 40

	m := &inspectModel{namespace: ns, sections: secs, filter: ti}
	m.refresh()
	return m
}

func (m *inspectModel) Init() tea.Cmd { return nil }

// refresh recomputes the entries of the active section that pass the filter.
func (m *inspectModel) refresh() {
	m.visible = m.visible[:0]
	for _, e := range m.sections[m.active].entries {
		if e.matches(m.filter.Value()) {
			m.visible = append(m.visible, e)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(0, len(m.visible)-1)
	}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateFilter {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter", "esc":
			m.filter.Blur()
			m.state = stateBrowse
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.refresh()
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.state == stateBrowse && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.state == stateBrowse && m.selected < len(m.visible)-1 {
			m.selected++
		}

	case "left", "h", "shift+tab":
		if m.state == stateBrowse {
			m.switchSection(len(m.sections) - 1)
		}

	case "right", "l", "tab":
		if m.state == stateBrowse {
			m.switchSection(1)
		}

	case "/":
		if m.state == stateBrowse {
			m.state = stateFilter
			return m, m.filter.Focus()
		}

	case "enter":
		switch m.state {
		case stateBrowse:
			if len(m.visible) > 0 {
				m.state = stateDetail
			}
		case stateDetail:
			m.state = stateBrowse
		}

	case "esc":
		switch m.state {
		case stateDetail:
			m.state = stateBrowse
		case stateBrowse:
			m.filter.SetValue("")
			m.refresh()
		}
	}
	return m, nil
}

func (m *inspectModel) switchSection(step int) {
	m.active = (m.active + step) % len(m.sections)
	m.selected = 0
	m.refresh()
}

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("FFI Inspect"))
	b.WriteString(" ")
	b.WriteString(m.namespace)
	b.WriteString("\n\n")

	for i, s := range m.sections {
		label := fmt.Sprintf("%s (%d)", s.title, len(s.entries))
		if i == m.active {
			b.WriteString(activeTabStyle.Render(label))
		} else {
			b.WriteString(tabStyle.Render(label))
		}
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("nothing to show"))
			b.WriteString("\n")
		}
		start := 0
		if m.selected >= pageSize {
			start = m.selected - pageSize + 1
		}
		end := min(len(m.visible), start+pageSize)
		for i := start; i < end; i++ {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.visible[i].label))
			} else {
				b.WriteString("  " + m.visible[i].label)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateFilter {
			b.WriteString(helpStyle.Render("enter/esc done"))
		} else {
			b.WriteString(helpStyle.Render("↑/↓ select • ←/→ section • / filter • enter details • q quit"))
		}

	case stateDetail:
		e := m.visible[m.selected]
		b.WriteString(e.label)
		b.WriteString("\n\n")
		for _, d := range e.detail {
			b.WriteString(detailStyle.Render("  " + d))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))
	}

	return b.String()
}

func runInteractive(ns string, secs []section) error {
	p := tea.NewProgram(newInspectModel(ns, secs), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
