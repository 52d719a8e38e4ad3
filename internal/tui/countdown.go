package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aura-webinar/livestream/internal/landing"
)

type tickMsg time.Time

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// CountdownModel renders a landing page and counts down to its start.
type CountdownModel struct {
	page      *landing.Page
	baseURL   string
	interval  time.Duration
	countdown landing.Countdown
}

// NewCountdownModel counts down to page.StartsAt. baseURL prefixes the join path once joining
// is possible.
func NewCountdownModel(page *landing.Page, baseURL string) CountdownModel {
	return CountdownModel{
		page:      page,
		baseURL:   strings.TrimRight(baseURL, "/"),
		interval:  time.Second,
		countdown: page.Countdown,
	}
}

// Countdown returns the last computed countdown.
func (m CountdownModel) Countdown() landing.Countdown { return m.countdown }

func (m CountdownModel) Init() tea.Cmd {
	if m.countdown.Finished {
		return nil
	}
	return tickCmd(m.interval)
}

func (m CountdownModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		m.countdown = landing.CountdownAt(m.page.StartsAt, time.Time(msg))
		if m.countdown.Finished {
			return m, nil
		}
		return m, tickCmd(m.interval)
	}
	return m, nil
}

// CanJoin reports whether the join link should be shown.
func (m CountdownModel) CanJoin() bool {
	return m.countdown.Finished && m.page.Webinar.HasStream()
}

func (m CountdownModel) View() string {
	w := m.page.Webinar
	var b strings.Builder
	b.WriteString(TitleStyle.Render(w.Name))
	b.WriteString("\n")
	if w.Description != "" {
		b.WriteString(w.Description + "\n\n")
	}
	b.WriteString(StepStyle.Render("Starts " + m.page.StartsAt.Format("Mon, 02 Jan 2006 15:04 MST")))
	b.WriteString("\n\n")

	switch {
	case !m.countdown.Finished:
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			unit(m.countdown.Days, "days"),
			unit(m.countdown.Hours, "hours"),
			unit(m.countdown.Minutes, "minutes"),
			unit(m.countdown.Seconds, "seconds"),
		))
		b.WriteString("\n")
	case m.CanJoin():
		b.WriteString(StatusStyle.Render("The webinar has started."))
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Join") + ValueStyle.Render(m.baseURL+landing.JoinPath(w.ID)))
		b.WriteString("\n")
	default:
		b.WriteString(ErrorStyle.Render("The webinar has started but no livestream is configured."))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render("q quit"))
	return BoxStyle.Render(b.String()) + "\n"
}

func unit(n int64, label string) string {
	return UnitStyle.Render(fmt.Sprintf("%02d\n%s", n, label))
}

// FormatCountdown renders c on one line, e.g. "2d 03h 04m 05s".
func FormatCountdown(c landing.Countdown) string {
	if c.Finished {
		return "started"
	}
	return fmt.Sprintf("%dd %02dh %02dm %02ds", c.Days, c.Hours, c.Minutes, c.Seconds)
}
