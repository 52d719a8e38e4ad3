// Package registry persists webinar records as a newest-first sequence keyed by id.
package registry

import (
	"context"

	"github.com/aura-webinar/livestream/internal/models"
)

// Repository is implemented by every registry backend.
//
// List returns records newest first. Get returns errs.ErrNotFound for unknown ids. Put inserts a
// new record at the front, or replaces an existing record whole while keeping its position.
type Repository interface {
	List(ctx context.Context) ([]models.Webinar, error)
	Get(ctx context.Context, id string) (*models.Webinar, error)
	Put(ctx context.Context, w *models.Webinar) error
}

// upsert applies Put semantics to a newest-first slice.
func upsert(list []models.Webinar, w models.Webinar) []models.Webinar {
	for i := range list {
		if list[i].ID == w.ID {
			list[i] = w
			return list
		}
	}
	return append([]models.Webinar{w}, list...)
}

func find(list []models.Webinar, id string) (*models.Webinar, bool) {
	for i := range list {
		if list[i].ID == id {
			w := list[i]
			return &w, true
		}
	}
	return nil, false
}
