package inmemsession

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/enrollment"
)

var errSessionExists = errors.New("enrollment session already exists")

type entry struct {
	state     enrollment.State
	expiresAt time.Time
}

// Store keeps the wizard sessions in memory (dev & tests).
type Store struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

var _ enrollment.Store = (*Store)(nil)

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = enrollment.DefaultSessionTTL
	}
	return &Store{
		sessions: make(map[string]entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *Store) Create(_ context.Context, st enrollment.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(st.ID); ok {
		return errSessionExists
	}
	s.put(st)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (enrollment.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.get(id)
	if !ok {
		return enrollment.State{}, enrollment.ErrSessionNotFound
	}
	return st, nil
}

func (s *Store) Save(_ context.Context, st enrollment.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(st.ID); !ok {
		return enrollment.ErrSessionNotFound
	}
	s.put(st)
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Purge drops the expired sessions.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	now := s.now()
	for id, e := range s.sessions {
		if !now.Before(e.expiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Store) get(id string) (enrollment.State, bool) {
	e, ok := s.sessions[id]
	if !ok || !s.now().Before(e.expiresAt) {
		return enrollment.State{}, false
	}
	return cloneState(e.state), true
}

func (s *Store) put(st enrollment.State) {
	s.sessions[st.ID] = entry{state: cloneState(st), expiresAt: s.now().Add(s.ttl)}
}

// cloneState copies the pointers & slices so that callers never share the stored state.
func cloneState(st enrollment.State) enrollment.State {
	st.Completed = append([]enrollment.Step{}, st.Completed...)
	if f := st.Draft.Files.Identity; f != nil {
		cp := *f
		st.Draft.Files.Identity = &cp
	}
	if f := st.Draft.Files.Degree; f != nil {
		cp := *f
		st.Draft.Files.Degree = &cp
	}
	if st.Redirect != nil {
		cp := *st.Redirect
		st.Redirect = &cp
	}
	if st.Confirmation != nil {
		cp := *st.Confirmation
		st.Confirmation = &cp
	}
	return st
}
