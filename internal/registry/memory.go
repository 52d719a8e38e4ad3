package registry

import (
	"context"
	"sync"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
)

// MemoryRepository keeps records in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	list []models.Webinar
}

// NewMemoryRepository creates an empty in-memory registry.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) List(_ context.Context) ([]models.Webinar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Webinar(nil), r.list...), nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Webinar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := find(r.list, id)
	if !ok {
		return nil, errs.ErrNotFound
	}
	return w, nil
}

func (r *MemoryRepository) Put(_ context.Context, w *models.Webinar) error {
	if w == nil || w.ID == "" {
		return &errs.ValidationError{Fields: []string{"id"}}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = upsert(r.list, *w)
	return nil
}
