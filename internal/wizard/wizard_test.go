package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/internal/registry"
	"github.com/aura-webinar/livestream/internal/stream/streamtest"
	"github.com/aura-webinar/livestream/internal/webinars"
)

func fillBasicInfo(w *Wizard) {
	w.Draft.Name = "Launch"
	w.Draft.Description = "What is new"
	w.Draft.Date = "2025-05-12"
	w.Draft.Time = "02:30"
	w.Draft.Period = models.PeriodPM
}

func newCreator() (*webinars.Service, *registry.MemoryRepository, *streamtest.Provider) {
	reg := registry.NewMemoryRepository()
	provider := streamtest.New()
	return webinars.NewService(reg, provider, time.UTC, nil), reg, provider
}

func TestNewWizardDefaults(t *testing.T) {
	w := New("wz", "alice")
	assert.Equal(t, StepBasicInfo, w.Step)
	assert.Equal(t, 1, w.Step.Number())
	assert.Equal(t, "12:00", w.Draft.Time)
	assert.Equal(t, models.PeriodAM, w.Draft.Period)
	assert.Equal(t, models.CTABuy, w.Draft.CTAType)
	assert.Equal(t, webinars.DefaultThumbnail, w.Draft.Thumbnail)
}

func TestNextRequiresBasicInfo(t *testing.T) {
	w := New("wz", "")
	w.Draft.Name = "  "
	err := w.Next()
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"name", "description", "date"}, ve.Fields)
	assert.Equal(t, StepBasicInfo, w.Step)

	fillBasicInfo(w)
	w.Draft.Time = ""
	assert.True(t, errs.IsValidation(w.Next()))

	w.Draft.Time = "09:00"
	require.NoError(t, w.Next())
	assert.Equal(t, StepCallToAction, w.Step)
}

func TestForwardAndBack(t *testing.T) {
	w := New("wz", "")
	assert.ErrorIs(t, w.Back(), errs.ErrInvalidTransition)

	fillBasicInfo(w)
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())
	assert.Equal(t, StepAdditionalInfo, w.Step)
	assert.ErrorIs(t, w.Next(), errs.ErrInvalidTransition)

	require.NoError(t, w.Back())
	assert.Equal(t, StepCallToAction, w.Step)
	require.NoError(t, w.Back())
	assert.Equal(t, StepBasicInfo, w.Step)
	assert.Equal(t, "Launch", w.Draft.Name, "draft survives navigation")
}

func TestSubmitSuccessThenFinish(t *testing.T) {
	creator, reg, _ := newCreator()
	w := New("wz", "alice")
	fillBasicInfo(w)
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())

	require.NoError(t, w.Submit(context.Background(), creator))
	assert.Equal(t, StepSuccess, w.Step)
	require.NotNil(t, w.Created)
	assert.NotEmpty(t, w.Created.StreamCallID)
	assert.NotEmpty(t, w.Created.StreamToken)
	assert.Equal(t, 4, w.Step.Number())

	list, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	path, err := w.Finish()
	require.NoError(t, err)
	assert.Equal(t, "/webinar/"+w.Created.ID, path)
	assert.Equal(t, StepClosed, w.Step)
	assert.Zero(t, w.Step.Number())
}

func TestSubmitFailureStaysAndAllowsRetry(t *testing.T) {
	creator, reg, provider := newCreator()
	provider.CreateErr = &errs.ProviderError{Op: "create call", StatusCode: 500, Message: "boom"}

	w := New("wz", "alice")
	fillBasicInfo(w)
	w.Step = StepAdditionalInfo

	err := w.Submit(context.Background(), creator)
	require.Error(t, err)
	assert.Equal(t, StepAdditionalInfo, w.Step)
	assert.Contains(t, w.Error, "boom")
	list, _ := reg.List(context.Background())
	assert.Empty(t, list)

	provider.CreateErr = nil
	require.NoError(t, w.Submit(context.Background(), creator))
	assert.Equal(t, StepSuccess, w.Step)
	assert.Empty(t, w.Error)
}

func TestSubmitOnlyFromAdditionalInfo(t *testing.T) {
	creator, _, provider := newCreator()
	w := New("wz", "")
	fillBasicInfo(w)
	assert.ErrorIs(t, w.Submit(context.Background(), creator), errs.ErrInvalidTransition)
	creates, _, _, _ := provider.Counts()
	assert.Zero(t, creates)
}

func TestRestartKeepsCreatedRecord(t *testing.T) {
	creator, reg, _ := newCreator()
	w := New("wz", "alice")
	fillBasicInfo(w)
	w.Step = StepAdditionalInfo
	require.NoError(t, w.Submit(context.Background(), creator))
	id := w.Created.ID

	require.NoError(t, w.Restart())
	assert.Equal(t, StepBasicInfo, w.Step)
	assert.Empty(t, w.Draft.Name)
	assert.Nil(t, w.Created)

	_, err := reg.Get(context.Background(), id)
	assert.NoError(t, err)
}

func TestCancel(t *testing.T) {
	w := New("wz", "")
	fillBasicInfo(w)
	require.NoError(t, w.Next())
	require.NoError(t, w.Cancel())
	assert.Equal(t, StepClosed, w.Step)
	assert.Empty(t, w.Draft.Name)

	assert.ErrorIs(t, w.Cancel(), errs.ErrInvalidTransition)
	assert.ErrorIs(t, w.UpdateDraft(webinars.NewDraft()), errs.ErrInvalidTransition)
	_, err := w.Finish()
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestStoreDropsClosedAndPrunes(t *testing.T) {
	s := NewStore()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	a := s.Open("")
	b := s.Open("")
	assert.Equal(t, 2, s.Len())

	snap, err := s.Do(a.ID, (*Wizard).Cancel)
	require.NoError(t, err)
	assert.Equal(t, StepClosed, snap.Step)
	_, err = s.Get(a.ID)
	assert.ErrorIs(t, err, errs.ErrWizardNotFound)

	now = now.Add(time.Hour)
	assert.Equal(t, 1, s.Prune(30*time.Minute))
	_, err = s.Get(b.ID)
	assert.ErrorIs(t, err, errs.ErrWizardNotFound)
}
