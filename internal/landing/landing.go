package landing

import (
	"context"
	"fmt"
	"time"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/internal/registry"
)

// Page is everything the landing view renders.
type Page struct {
	Webinar   models.Webinar `json:"webinar"`
	StartsAt  time.Time      `json:"startsAt"`
	Countdown Countdown      `json:"countdown"`
	CanRemind bool           `json:"canRemind"`
	CanJoin   bool           `json:"canJoin"`
	JoinPath  string         `json:"joinPath,omitempty"`
}

// JoinPath is the live page of a webinar.
func JoinPath(id string) string {
	return "/webinar/" + id + "/live"
}

// Build computes the page for w at now. Join is offered only once the countdown has finished
// and a livestream call exists.
func Build(w *models.Webinar, loc *time.Location, now time.Time) (*Page, error) {
	if w == nil {
		return nil, errs.ErrNotFound
	}
	start, err := w.ScheduledStart(loc)
	if err != nil {
		return nil, fmt.Errorf("webinar %s schedule: %w", w.ID, err)
	}
	cd := CountdownAt(start, now)
	p := &Page{
		Webinar:   w.Public(),
		StartsAt:  start,
		Countdown: cd,
		CanRemind: !cd.Finished,
		CanJoin:   cd.Finished && w.HasStream(),
	}
	if p.CanJoin {
		p.JoinPath = JoinPath(w.ID)
	}
	return p, nil
}

// Service loads landing pages from the registry.
type Service struct {
	registry registry.Repository
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a landing service. loc is the zone schedule times were entered in.
func NewService(reg registry.Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{registry: reg, loc: loc, now: time.Now}
}

// Load returns the page for id, or errs.ErrNotFound.
func (s *Service) Load(ctx context.Context, id string) (*Page, error) {
	w, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Build(w, s.loc, s.now())
}

// Start returns the scheduled start of id.
func (s *Service) Start(ctx context.Context, id string) (*models.Webinar, time.Time, error) {
	w, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, time.Time{}, err
	}
	start, err := w.ScheduledStart(s.loc)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("webinar %s schedule: %w", w.ID, err)
	}
	return w, start, nil
}
