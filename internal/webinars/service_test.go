package webinars

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
	"github.com/aura-webinar/livestream/internal/stream"
	"github.com/aura-webinar/livestream/internal/stream/streamtest"
)

func validDraft() Draft {
	d := NewDraft()
	d.Name = "Product Launch"
	d.Description = "Everything new this quarter"
	d.Date = "2025-05-12"
	d.Time = "02:30"
	d.Period = models.PeriodPM
	return d
}

func newService(t *testing.T) (*Service, *registry.MemoryRepository, *streamtest.Provider) {
	t.Helper()
	reg := registry.NewMemoryRepository()
	provider := streamtest.New()
	svc := NewService(reg, provider, time.UTC, nil)
	svc.newID = func() string { return "webinar-1" }
	svc.now = func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc, reg, provider
}

func TestCreateProvisionsCallAndStoresHostToken(t *testing.T) {
	svc, reg, provider := newService(t)

	w, err := svc.Create(context.Background(), validDraft(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "webinar-1", w.ID)
	assert.Equal(t, "webinar-1", w.StreamCallID)
	assert.Equal(t, "alice", w.HostID)
	assert.Equal(t, DefaultThumbnail, w.Thumbnail)
	assert.Equal(t, models.CTABuy, w.CTAType)

	claims, err := provider.Issuer.Verify(w.StreamToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)

	call := provider.Call(stream.CallTypeLivestream, "webinar-1")
	require.NotNil(t, call)
	assert.True(t, call.Backstage)
	assert.Equal(t, "alice", call.CreatedByID)
	require.NotNil(t, call.StartsAt)
	assert.Equal(t, time.Date(2025, 5, 12, 14, 30, 0, 0, time.UTC), *call.StartsAt)

	stored, err := reg.Get(context.Background(), "webinar-1")
	require.NoError(t, err)
	assert.Equal(t, w.StreamToken, stored.StreamToken)
}

func TestCreateDefaultsHostID(t *testing.T) {
	svc, _, _ := newService(t)
	w, err := svc.Create(context.Background(), validDraft(), "")
	require.NoError(t, err)
	assert.Equal(t, "host-webinar-1", w.HostID)
}

func TestCreateProviderFailureWritesNothing(t *testing.T) {
	svc, reg, provider := newService(t)
	provider.CreateErr = &errs.ProviderError{Op: "create call", StatusCode: 500, Message: "boom"}

	_, err := svc.Create(context.Background(), validDraft(), "alice")
	require.Error(t, err)
	assert.True(t, errs.IsProvider(err))

	list, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateTokenFailureWritesNothing(t *testing.T) {
	svc, reg, provider := newService(t)
	provider.Issuer = stream.NewIssuer("test-key", "", 0)

	_, err := svc.Create(context.Background(), validDraft(), "alice")
	assert.True(t, errs.IsConfiguration(err))

	list, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateValidation(t *testing.T) {
	svc, _, provider := newService(t)

	d := validDraft()
	d.Name = "   "
	d.Date = ""
	_, err := svc.Create(context.Background(), d, "alice")
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"name", "date"}, ve.Fields)

	d = validDraft()
	d.Time = "25:00"
	_, err = svc.Create(context.Background(), d, "alice")
	assert.True(t, errs.IsValidation(err))

	creates, _, _, _ := provider.Counts()
	assert.Zero(t, creates)
}

func TestDraftMissing(t *testing.T) {
	assert.Equal(t, []string{"name", "description", "date"}, NewDraft().Missing())
	assert.Empty(t, validDraft().Missing())
}
