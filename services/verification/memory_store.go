package verification

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps codes in process memory. It suits development and tests; every
// instance holds its own codes.
type MemoryStore struct {
	mu     sync.Mutex
	codes  []*Code
	nextID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) latest(match func(*Code) bool) *Code {
	var found *Code
	for _, c := range s.codes {
		if !match(c) {
			continue
		}
		if found == nil || !c.CreatedAt.Before(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil
	}
	cp := *found
	return &cp
}

func (s *MemoryStore) byID(id uint) *Code {
	for _, c := range s.codes {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, email, purpose string) (*Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latest(func(c *Code) bool {
		return c.Email == email && c.Purpose == purpose
	}), nil
}

func (s *MemoryStore) FindActive(_ context.Context, email, purpose string) (*Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latest(func(c *Code) bool {
		return c.Email == email && c.Purpose == purpose && c.IsActive
	}), nil
}

func (s *MemoryStore) Replace(_ context.Context, code *Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.codes {
		if c.Email == code.Email && c.Purpose == code.Purpose && c.IsActive {
			c.IsActive = false
		}
	}

	code.ID = s.nextID
	s.nextID++
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	stored := *code
	s.codes = append(s.codes, &stored)
	return nil
}

func (s *MemoryStore) IncrementAttempts(_ context.Context, id uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byID(id)
	if c == nil {
		return 0, nil
	}
	c.Attempts++
	return c.Attempts, nil
}

func (s *MemoryStore) Deactivate(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.byID(id); c != nil {
		c.IsActive = false
	}
	return nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.byID(id); c != nil {
		c.IsUsed = true
		verifiedAt := at
		c.VerifiedAt = &verifiedAt
	}
	return nil
}

func (s *MemoryStore) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, c := range s.codes {
		if c.IsActive && !now.Before(c.ExpiresAt) {
			c.IsActive = false
			count++
		}
	}
	return count, nil
}

// Len reports how many codes are held, active or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
