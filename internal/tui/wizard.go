// Package tui holds the terminal front ends of webinarctl: the creation wizard and the
// landing-page countdown.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/internal/webinars"
	"github.com/aura-webinar/livestream/internal/wizard"
)

type field struct {
	key   string
	label string
	// toggle fields cycle through a fixed set of values instead of taking text.
	toggle []string
}

var stepFields = map[wizard.Step][]field{
	wizard.StepBasicInfo: {
		{key: "name", label: "Name"},
		{key: "description", label: "Description"},
		{key: "date", label: "Date"},
		{key: "time", label: "Time"},
		{key: "period", label: "Period", toggle: []string{string(models.PeriodAM), string(models.PeriodPM)}},
	},
	wizard.StepCallToAction: {
		{key: "ctaLabel", label: "CTA label"},
		{key: "ctaType", label: "CTA type", toggle: []string{string(models.CTABuy), string(models.CTABook)}},
		{key: "tags", label: "Tags"},
	},
	wizard.StepAdditionalInfo: {
		{key: "product", label: "Product"},
		{key: "thumbnail", label: "Thumbnail"},
	},
}

var stepTitles = map[wizard.Step]string{
	wizard.StepBasicInfo:      "Basic info",
	wizard.StepCallToAction:   "Call to action",
	wizard.StepAdditionalInfo: "Additional info",
	wizard.StepSuccess:        "Webinar created",
}

func draftField(d *webinars.Draft, key string) *string {
	switch key {
	case "name":
		return &d.Name
	case "description":
		return &d.Description
	case "date":
		return &d.Date
	case "time":
		return &d.Time
	case "ctaLabel":
		return &d.CTALabel
	case "tags":
		return &d.Tags
	case "product":
		return &d.Product
	case "thumbnail":
		return &d.Thumbnail
	}
	return nil
}

func getField(d webinars.Draft, key string) string {
	switch key {
	case "period":
		return string(d.Period)
	case "ctaType":
		return string(d.CTAType)
	}
	if p := draftField(&d, key); p != nil {
		return *p
	}
	return ""
}

func setField(d *webinars.Draft, key, value string) {
	switch key {
	case "period":
		d.Period = models.Period(value)
	case "ctaType":
		d.CTAType = models.CTAType(value)
	default:
		if p := draftField(d, key); p != nil {
			*p = value
		}
	}
}

// submittedMsg carries the result of the provisioning call made for Submit.
type submittedMsg struct {
	webinar *models.Webinar
	err     error
}

// replay hands a finished provisioning result to wizard.Submit so the transition logic stays in
// the wizard package.
type replay submittedMsg

func (r replay) Create(context.Context, webinars.Draft, string) (*models.Webinar, error) {
	return r.webinar, r.err
}

// WizardModel drives a wizard.Wizard from the keyboard.
type WizardModel struct {
	ctx        context.Context
	wiz        *wizard.Wizard
	creator    wizard.Creator
	focus      int
	submitting bool
	err        error
	landing    string
}

// NewWizardModel wraps w. creator provisions the webinar on submit.
func NewWizardModel(ctx context.Context, w *wizard.Wizard, creator wizard.Creator) WizardModel {
	return WizardModel{ctx: ctx, wiz: w, creator: creator}
}

// Wizard returns the wrapped state machine.
func (m WizardModel) Wizard() *wizard.Wizard { return m.wiz }

// LandingPath is set once the user finishes from the success step.
func (m WizardModel) LandingPath() string { return m.landing }

func (m WizardModel) Init() tea.Cmd { return nil }

func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case submittedMsg:
		m.submitting = false
		m.err = m.wiz.Submit(m.ctx, replay(msg))
		m.focus = 0
		return m, nil
	}
	return m, nil
}

func (m WizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		_ = m.wiz.Cancel()
		return m, tea.Quit
	}
	if m.submitting {
		return m, nil
	}
	if m.wiz.Step == wizard.StepSuccess {
		return m.handleSuccessKey(msg)
	}

	fields := stepFields[m.wiz.Step]
	switch msg.Type {
	case tea.KeyEsc:
		if m.wiz.Step == wizard.StepBasicInfo {
			_ = m.wiz.Cancel()
			return m, tea.Quit
		}
		m.err = m.wiz.Back()
		m.focus = 0
	case tea.KeyTab, tea.KeyDown:
		m.focus = (m.focus + 1) % len(fields)
	case tea.KeyShiftTab, tea.KeyUp:
		m.focus = (m.focus + len(fields) - 1) % len(fields)
	case tea.KeyEnter:
		if m.wiz.Step == wizard.StepAdditionalInfo {
			m.submitting = true
			m.err = nil
			return m, m.submit()
		}
		m.err = m.wiz.Next()
		if m.err == nil {
			m.focus = 0
		}
	case tea.KeyBackspace:
		m.edit(func(v string) string {
			if r := []rune(v); len(r) > 0 {
				return string(r[:len(r)-1])
			}
			return v
		})
	case tea.KeySpace:
		f := fields[m.focus]
		if len(f.toggle) > 0 {
			m.cycle(f)
		} else {
			m.edit(func(v string) string { return v + " " })
		}
	case tea.KeyRunes:
		if len(fields[m.focus].toggle) > 0 {
			break
		}
		m.edit(func(v string) string { return v + string(msg.Runes) })
	}
	return m, nil
}

func (m WizardModel) handleSuccessKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		path, err := m.wiz.Finish()
		if err != nil {
			m.err = err
			return m, nil
		}
		m.landing = path
		return m, tea.Quit
	case "r":
		m.err = m.wiz.Restart()
		m.focus = 0
	case "q", "esc":
		_ = m.wiz.Cancel()
		return m, tea.Quit
	}
	return m, nil
}

func (m *WizardModel) edit(fn func(string) string) {
	f := stepFields[m.wiz.Step][m.focus]
	d := m.wiz.Draft
	setField(&d, f.key, fn(getField(d, f.key)))
	m.err = m.wiz.UpdateDraft(d)
}

func (m *WizardModel) cycle(f field) {
	d := m.wiz.Draft
	cur := getField(d, f.key)
	next := f.toggle[0]
	for i, v := range f.toggle {
		if v == cur {
			next = f.toggle[(i+1)%len(f.toggle)]
			break
		}
	}
	setField(&d, f.key, next)
	m.err = m.wiz.UpdateDraft(d)
}

func (m WizardModel) submit() tea.Cmd {
	ctx, creator, draft, hostID := m.ctx, m.creator, m.wiz.Draft, m.wiz.HostID
	return func() tea.Msg {
		w, err := creator.Create(ctx, draft, hostID)
		return submittedMsg{webinar: w, err: err}
	}
}

func (m WizardModel) View() string {
	if m.wiz.Step == wizard.StepClosed {
		return ""
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Create webinar"))
	b.WriteString("\n")
	b.WriteString(StepStyle.Render(fmt.Sprintf("Step %d of 4 · %s", m.wiz.Step.Number(), stepTitles[m.wiz.Step])))
	b.WriteString("\n\n")

	if m.wiz.Step == wizard.StepSuccess {
		b.WriteString(m.successView())
	} else {
		for i, f := range stepFields[m.wiz.Step] {
			value := getField(m.wiz.Draft, f.key)
			style := ValueStyle
			if i == m.focus {
				style = FocusedStyle
				if len(f.toggle) == 0 {
					value += "_"
				}
			}
			b.WriteString(LabelStyle.Render(f.label))
			b.WriteString(style.Render(value))
			b.WriteString("\n")
		}
	}

	if m.submitting {
		b.WriteString("\n" + StatusStyle.Render("Provisioning livestream call..."))
	}
	if msg := errorText(m.err, m.wiz.Error); msg != "" {
		b.WriteString("\n" + ErrorStyle.Render(msg))
	}
	b.WriteString(HelpStyle.Render(helpText(m.wiz.Step)))
	return BoxStyle.Render(b.String()) + "\n"
}

func (m WizardModel) successView() string {
	w := m.wiz.Created
	if w == nil {
		return ""
	}
	lines := []string{
		StatusStyle.Render(fmt.Sprintf("%q is scheduled for %s %s %s", w.Name, w.Date, w.Time, w.Period)),
		"",
		LabelStyle.Render("Webinar ID") + ValueStyle.Render(w.ID),
		LabelStyle.Render("Call ID") + ValueStyle.Render(w.StreamCallID),
		LabelStyle.Render("Landing") + ValueStyle.Render(wizard.LandingPath(w.ID)),
	}
	if w.StreamToken != "" {
		lines = append(lines, LabelStyle.Render("Host token")+ValueStyle.Render(w.StreamToken))
	}
	return strings.Join(lines, "\n") + "\n"
}

func errorText(err error, wizardErr string) string {
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		return "Please fill in: " + strings.Join(ve.Fields, ", ")
	case err != nil:
		return "Failed to create webinar: " + err.Error()
	case wizardErr != "":
		return "Failed to create webinar: " + wizardErr
	}
	return ""
}

func helpText(step wizard.Step) string {
	switch step {
	case wizard.StepBasicInfo:
		return "tab next field · space toggles period · enter continue · esc cancel"
	case wizard.StepAdditionalInfo:
		return "tab next field · enter create webinar · esc back · ctrl+c cancel"
	case wizard.StepSuccess:
		return "enter open landing page · r create another · q quit"
	}
	return "tab next field · space toggles type · enter continue · esc back"
}
