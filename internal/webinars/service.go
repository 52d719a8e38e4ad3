// Package webinars provisions webinars and serves the registry over HTTP.
package webinars

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/internal/registry"
	"github.com/aura-webinar/livestream/internal/stream"
)

// DefaultThumbnail is used when a draft has no thumbnail of its own.
const DefaultThumbnail = "https://images.unsplash.com/photo-1587620962725-abab7fe55159?q=80&w=1200&auto=format&fit=crop"

// Draft is the user-entered content of a webinar before it is provisioned.
type Draft struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Date        string         `json:"date"`
	Time        string         `json:"time"`
	Period      models.Period  `json:"period"`
	CTALabel    string         `json:"ctaLabel"`
	Tags        string         `json:"tags"`
	CTAType     models.CTAType `json:"ctaType"`
	Product     string         `json:"product"`
	Thumbnail   string         `json:"thumbnail"`
}

// NewDraft returns a draft with the form defaults filled in.
func NewDraft() Draft {
	return Draft{Time: "12:00", Period: models.PeriodAM, CTAType: models.CTABuy, Thumbnail: DefaultThumbnail}
}

// Missing lists the basic-info fields that are still empty.
func (d Draft) Missing() []string {
	var out []string
	if strings.TrimSpace(d.Name) == "" {
		out = append(out, "name")
	}
	if strings.TrimSpace(d.Description) == "" {
		out = append(out, "description")
	}
	if d.Date == "" {
		out = append(out, "date")
	}
	if d.Time == "" {
		out = append(out, "time")
	}
	return out
}

// Service provisions webinars: livestream call first, then host token, then the registry write.
type Service struct {
	registry registry.Repository
	provider stream.Provider
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates the provisioning service. loc is the zone schedule times are entered in.
func NewService(reg registry.Repository, provider stream.Provider, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		registry: reg,
		provider: provider,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Location returns the zone schedule times are interpreted in.
func (s *Service) Location() *time.Location { return s.loc }

// Create provisions a webinar from d for hostID (host-{id} when empty). Nothing is written to the
// registry unless the call and the host token were both obtained.
func (s *Service) Create(ctx context.Context, d Draft, hostID string) (*models.Webinar, error) {
	if missing := d.Missing(); len(missing) > 0 {
		return nil, &errs.ValidationError{Fields: missing}
	}
	if d.Period == "" {
		d.Period = models.PeriodAM
	}
	if d.Period != models.PeriodAM && d.Period != models.PeriodPM {
		return nil, &errs.ValidationError{Fields: []string{"period"}}
	}
	startsAt, err := models.ScheduledStart(d.Date, d.Time, d.Period, s.loc)
	if err != nil {
		return nil, &errs.ValidationError{Fields: []string{"date", "time"}}
	}

	id := s.newID()
	if hostID == "" {
		hostID = "host-" + id
	}
	logger := s.logger.With(zap.String("webinar_id", id), zap.String("host_id", hostID))

	call, err := s.provider.CreateOrGetCall(ctx, stream.CreateCallRequest{
		CallType:    stream.CallTypeLivestream,
		CallID:      id,
		Title:       d.Name,
		Description: d.Description,
		CreatedByID: hostID,
		StartsAt:    &startsAt,
	})
	if err != nil {
		logger.Warn("call provisioning failed", zap.Error(err))
		return nil, fmt.Errorf("provision call: %w", err)
	}
	token, err := s.provider.IssueToken(hostID, 0)
	if err != nil {
		logger.Warn("host token issue failed", zap.Error(err))
		return nil, fmt.Errorf("issue host token: %w", err)
	}

	thumbnail := d.Thumbnail
	if thumbnail == "" {
		thumbnail = DefaultThumbnail
	}
	w := &models.Webinar{
		ID:           id,
		Name:         strings.TrimSpace(d.Name),
		Description:  strings.TrimSpace(d.Description),
		Date:         d.Date,
		Time:         d.Time,
		Period:       d.Period,
		CTALabel:     d.CTALabel,
		Tags:         d.Tags,
		CTAType:      d.CTAType,
		Product:      d.Product,
		Thumbnail:    thumbnail,
		StreamCallID: call.ID,
		StreamToken:  token.Value,
		HostID:       hostID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.registry.Put(ctx, w); err != nil {
		logger.Error("registry write failed", zap.Error(err))
		return nil, fmt.Errorf("save webinar: %w", err)
	}
	logger.Info("webinar created", zap.String("call_id", call.ID), zap.Time("starts_at", startsAt))
	return w, nil
}

// List returns every webinar, newest first.
func (s *Service) List(ctx context.Context) ([]models.Webinar, error) {
	return s.registry.List(ctx)
}

// Get returns one webinar or errs.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Webinar, error) {
	return s.registry.Get(ctx, id)
}
