package store

import (
	"context"
	"sync"
	"time"

	"github.com/MediSynth-io/authkit/internal/models"
)

// MemoryStore keeps users in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[int64]*models.User
	byEmail map[string]*models.User
	nextID  int64
	now     func() time.Time
}

// NewMemoryStore creates an empty store whose first user gets id 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[int64]*models.User),
		byEmail: make(map[string]*models.User),
		nextID:  1,
		now:     time.Now,
	}
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, email, passwordHash, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, ErrEmailTaken
	}

	u := &models.User{
		ID:        s.nextID,
		Email:     email,
		Password:  passwordHash,
		Name:      name,
		CreatedAt: s.now(),
	}
	s.nextID++
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u

	cp := *u
	return &cp, nil
}
