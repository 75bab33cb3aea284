package wizard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL время жизни неактивной сессии мастера.
const DefaultTTL = 30 * time.Minute

type entry struct {
	mu      sync.Mutex
	state   State
	touched atomic.Int64
}

// Store хранит сессии мастера в памяти. Изменения одной сессии
// выполняются последовательно под её собственным мьютексом.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewStore создаёт хранилище сессий. Неположительный ttl заменяется на DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

func (s *Store) expired(e *entry) bool {
	return s.now().Sub(time.Unix(0, e.touched.Load())) > s.ttl
}

// Create сохраняет новую сессию и присваивает ей идентификатор.
func (s *Store) Create(st State) State {
	st.ID = uuid.NewString()

	e := &entry{state: st}
	e.touched.Store(s.now().UnixNano())

	s.mu.Lock()
	s.sessions[st.ID] = e
	s.mu.Unlock()

	return st.clone()
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expired(e) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Get возвращает копию состояния сессии.
func (s *Store) Get(id string) (State, error) {
	e, err := s.lookup(id)
	if err != nil {
		return State{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone(), nil
}

// Update применяет fn к состоянию сессии. Изменения сохраняются даже
// при ошибке fn, чтобы введённые данные и сообщение не терялись.
func (s *Store) Update(id string, fn func(st *State) error) (State, error) {
	e, err := s.lookup(id)
	if err != nil {
		return State{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err = fn(&e.state)
	e.touched.Store(s.now().UnixNano())
	return e.state.clone(), err
}

// Delete удаляет сессию.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sweep удаляет истёкшие сессии и возвращает их количество.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len возвращает число хранимых сессий.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run периодически удаляет истёкшие сессии до отмены ctx.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
