package wizard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/livestream/internal/errs"
)

type entry struct {
	mu sync.Mutex
	w  *Wizard
}

// Store holds open wizards in memory. Operations on one wizard run one at a time; closed
// wizards are dropped.
type Store struct {
	mu    sync.RWMutex
	items map[string]*entry
	now   func() time.Time
}

// NewStore creates an empty wizard store.
func NewStore() *Store {
	return &Store{items: make(map[string]*entry), now: time.Now}
}

// Open starts a new wizard for hostID and returns a snapshot of it.
func (s *Store) Open(hostID string) Wizard {
	w := New(uuid.NewString(), hostID)
	w.UpdatedAt = s.now()
	s.mu.Lock()
	s.items[w.ID] = &entry{w: w}
	s.mu.Unlock()
	return *w
}

// Get returns a snapshot of the wizard.
func (s *Store) Get(id string) (Wizard, error) {
	e, err := s.entry(id)
	if err != nil {
		return Wizard{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.w, nil
}

// Do applies fn to the wizard and returns the resulting snapshot, also when fn fails.
func (s *Store) Do(id string, fn func(*Wizard) error) (Wizard, error) {
	e, err := s.entry(id)
	if err != nil {
		return Wizard{}, err
	}
	e.mu.Lock()
	err = fn(e.w)
	e.w.UpdatedAt = s.now()
	snap := *e.w
	e.mu.Unlock()

	if snap.Step == StepClosed {
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
	}
	return snap, err
}

// Prune drops wizards untouched for longer than idle and returns how many were removed.
func (s *Store) Prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.items {
		if !e.mu.TryLock() {
			continue
		}
		stale := e.w.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Len returns the number of open wizards.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) entry(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.ErrWizardNotFound
	}
	return e, nil
}
