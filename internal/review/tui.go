// Package review is the interactive posting browser: a two-pane terminal
// UI over the store for inspecting ingested postings and marking the ones
// worth keeping, which exempts them from retention cleanup.
package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jobsift/jobsift/internal/model"
)

// Lines per posting item in the list view (title + subtitle + separator).
const itemHeight = 3

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39"))

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	itemTitleStyle = lipgloss.NewStyle().
			Bold(true)

	itemSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	savedMarkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(14)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// savedToggledMsg reports the result of an async save-flag flip.
type savedToggledMsg struct {
	index int
	saved bool
	err   error
}

type reviewModel struct {
	store    model.JobStore
	postings []model.JobPosting
	list     viewport.Model
	detail   viewport.Model
	cursor   int
	width    int
	height   int
	ready    bool
	errMsg   string
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.ready = true
		return m, nil

	case savedToggledMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("save failed: %v", msg.err)
			return m, nil
		}
		m.errMsg = ""
		if msg.index < len(m.postings) {
			m.postings[msg.index].Saved = msg.saved
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.refresh()
			}
		case "down", "j":
			if m.cursor < len(m.postings)-1 {
				m.cursor++
				m.refresh()
			}
		case "pgup":
			m.detail.HalfPageUp()
		case "pgdown":
			m.detail.HalfPageDown()
		case "s":
			return m, m.toggleSaved()
		}
	}
	return m, nil
}

func (m *reviewModel) toggleSaved() tea.Cmd {
	if len(m.postings) == 0 {
		return nil
	}
	idx := m.cursor
	p := m.postings[idx]
	store := m.store
	next := !p.Saved
	return func() tea.Msg {
		err := store.SetSaved(p.ID, next)
		return savedToggledMsg{index: idx, saved: next, err: err}
	}
}

func (m *reviewModel) layout() {
	paneHeight := m.height - 4 // header + status bar + borders
	if paneHeight < 4 {
		paneHeight = 4
	}
	listWidth := m.width / 2
	m.list = viewport.New(listWidth-2, paneHeight)
	m.detail = viewport.New(m.width-listWidth-2, paneHeight)
	m.refresh()
}

func (m *reviewModel) refresh() {
	m.list.SetContent(m.renderList())
	m.detail.SetContent(m.renderDetail())

	// Keep the cursor visible.
	top := m.cursor * itemHeight
	if top < m.list.YOffset {
		m.list.SetYOffset(top)
	} else if bottom := top + itemHeight; bottom > m.list.YOffset+m.list.Height {
		m.list.SetYOffset(bottom - m.list.Height)
	}
}

func (m *reviewModel) renderList() string {
	if len(m.postings) == 0 {
		return "No postings ingested yet.\nRun `jobsift once` first."
	}

	var b strings.Builder
	for i, p := range m.postings {
		mark := "  "
		if p.Saved {
			mark = savedMarkStyle.Render("★ ")
		}
		subtitle := fmt.Sprintf("%s · %s · %s", p.Company, p.Location, p.Source)

		if i == m.cursor {
			b.WriteString(mark + selectedTitleStyle.Render(p.Title) + "\n")
			b.WriteString("  " + selectedSubtitleStyle.Render(subtitle) + "\n\n")
		} else {
			b.WriteString(mark + itemTitleStyle.Render(p.Title) + "\n")
			b.WriteString("  " + itemSubtitleStyle.Render(subtitle) + "\n\n")
		}
	}
	return b.String()
}

func (m *reviewModel) renderDetail() string {
	if len(m.postings) == 0 {
		return ""
	}
	p := m.postings[m.cursor]

	var b strings.Builder
	b.WriteString(detailTitleStyle.Render(p.Title) + "\n")

	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label) + value + "\n")
	}

	row("Company", p.Company)
	row("Location", p.Location)
	row("Salary", formatSalary(p.Salary))
	row("Experience", string(p.Experience))
	row("Tech", strings.Join(p.Technologies, ", "))
	row("Source", p.Source)
	if p.PostedAt != nil {
		row("Posted", p.PostedAt.Format("2006-01-02"))
	}
	row("First seen", p.FirstSeen.Format("2006-01-02"))
	row("Last seen", p.LastSeen.Format(time.RFC822))
	row("URL", p.URL)

	if p.Description != "" {
		b.WriteString("\n" + strings.Repeat("─", 30) + "\n\n")
		b.WriteString(p.Description)
	}
	return b.String()
}

func (m reviewModel) View() string {
	if !m.ready {
		return "loading..."
	}

	left := activeBorderStyle.Render(m.list.View())
	right := inactiveBorderStyle.Render(m.detail.View())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	saved := 0
	for _, p := range m.postings {
		if p.Saved {
			saved++
		}
	}
	status := fmt.Sprintf(" %d postings · %d saved · ↑/↓ navigate · s save · pgup/pgdn scroll · q quit", len(m.postings), saved)
	if m.errMsg != "" {
		status += "  " + errStyle.Render(m.errMsg)
	}

	header := headerStyle.Render("jobsift: review postings")
	return header + "\n" + panes + "\n" + statusBarStyle.Render(status)
}

// formatSalary renders a normalized salary for display; unspecified shows
// as such instead of a misleading zero.
func formatSalary(s model.Salary) string {
	if s.Unspecified {
		return "unspecified"
	}
	if s.Min == s.Max {
		return fmt.Sprintf("%.0f %s/%s", s.Min, s.Currency, s.Period)
	}
	return fmt.Sprintf("%.0f–%.0f %s/%s", s.Min, s.Max, s.Currency, s.Period)
}

// Run loads postings from the store and starts the interactive browser.
func Run(store model.JobStore, limit int) error {
	postings, err := store.List(limit)
	if err != nil {
		return fmt.Errorf("loading postings: %w", err)
	}

	m := reviewModel{store: store, postings: postings}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running review UI: %w", err)
	}
	return nil
}
