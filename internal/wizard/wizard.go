// Package wizard implements the four-step webinar creation flow as a server-side state machine.
package wizard

import (
	"context"
	"fmt"
	"time"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/internal/webinars"
)

// Step is the wizard's current position.
type Step int

const (
	StepBasicInfo Step = iota + 1
	StepCallToAction
	StepAdditionalInfo
	StepSuccess
	StepClosed
)

var stepNames = map[Step]string{
	StepBasicInfo:      "basic_info",
	StepCallToAction:   "call_to_action",
	StepAdditionalInfo: "additional_info",
	StepSuccess:        "success",
	StepClosed:         "closed",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Number is the 1-based step shown in the "Step N of 4" header; Closed has none.
func (s Step) Number() int {
	if s >= StepBasicInfo && s <= StepSuccess {
		return int(s)
	}
	return 0
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(text []byte) error {
	for step, name := range stepNames {
		if name == string(text) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown wizard step %q", text)
}

// Creator provisions the webinar when the wizard is submitted. *webinars.Service implements it.
type Creator interface {
	Create(ctx context.Context, d webinars.Draft, hostID string) (*models.Webinar, error)
}

// Wizard is one creation flow. It is not safe for concurrent use; Store serializes access.
type Wizard struct {
	ID        string          `json:"id"`
	HostID    string          `json:"hostId,omitempty"`
	Step      Step            `json:"step"`
	Draft     webinars.Draft  `json:"draft"`
	Created   *models.Webinar `json:"webinar,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// New starts a wizard at BasicInfo with a default draft.
func New(id, hostID string) *Wizard {
	return &Wizard{ID: id, HostID: hostID, Step: StepBasicInfo, Draft: webinars.NewDraft()}
}

func (w *Wizard) invalid(op string) error {
	return fmt.Errorf("%s from %s: %w", op, w.Step, errs.ErrInvalidTransition)
}

func (w *Wizard) editable() bool {
	return w.Step == StepBasicInfo || w.Step == StepCallToAction || w.Step == StepAdditionalInfo
}

// UpdateDraft replaces the draft while one of the form steps is shown.
func (w *Wizard) UpdateDraft(d webinars.Draft) error {
	if !w.editable() {
		return w.invalid("update draft")
	}
	w.Draft = d
	w.Error = ""
	return nil
}

// Next advances one step. Leaving BasicInfo requires name, description, date and time.
func (w *Wizard) Next() error {
	switch w.Step {
	case StepBasicInfo:
		if missing := w.Draft.Missing(); len(missing) > 0 {
			return &errs.ValidationError{Fields: missing}
		}
		w.Step = StepCallToAction
	case StepCallToAction:
		w.Step = StepAdditionalInfo
	default:
		return w.invalid("next")
	}
	w.Error = ""
	return nil
}

// Back moves one step backward from CallToAction or AdditionalInfo.
func (w *Wizard) Back() error {
	switch w.Step {
	case StepCallToAction:
		w.Step = StepBasicInfo
	case StepAdditionalInfo:
		w.Step = StepCallToAction
	default:
		return w.invalid("back")
	}
	w.Error = ""
	return nil
}

// Submit provisions the webinar. On failure the wizard stays on AdditionalInfo with Error set
// so the user can retry.
func (w *Wizard) Submit(ctx context.Context, creator Creator) error {
	if w.Step != StepAdditionalInfo {
		return w.invalid("submit")
	}
	created, err := creator.Create(ctx, w.Draft, w.HostID)
	if err != nil {
		w.Error = err.Error()
		return err
	}
	w.Created = created
	w.Error = ""
	w.Step = StepSuccess
	return nil
}

// Cancel closes the wizard from any open step. Unsubmitted input is discarded.
func (w *Wizard) Cancel() error {
	if w.Step == StepClosed {
		return w.invalid("cancel")
	}
	if w.Step != StepSuccess {
		w.Draft = webinars.Draft{}
	}
	w.Step = StepClosed
	w.Error = ""
	return nil
}

// Restart begins a new draft after a successful submit. The created webinar is unaffected.
func (w *Wizard) Restart() error {
	if w.Step != StepSuccess {
		return w.invalid("restart")
	}
	w.Step = StepBasicInfo
	w.Draft = webinars.NewDraft()
	w.Created = nil
	w.Error = ""
	return nil
}

// Finish closes the wizard after success and returns the landing path of the created webinar.
func (w *Wizard) Finish() (string, error) {
	if w.Step != StepSuccess || w.Created == nil {
		return "", w.invalid("finish")
	}
	w.Step = StepClosed
	return LandingPath(w.Created.ID), nil
}

// LandingPath is where a created webinar's landing page lives.
func LandingPath(id string) string {
	return "/webinar/" + id
}
