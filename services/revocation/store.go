package revocation

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store interface {
	Revoke(ctx context.Context, jti string, userID uint, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Revoke(ctx context.Context, jti string, userID uint, expiresAt time.Time) error {
	record := &RevokedToken{JTI: jti, UserID: userID, ExpiresAt: expiresAt.UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(record).Error
}

func (s *GormStore) IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&RevokedToken{}).
		Where("jti = ? AND expires_at > ?", jti, now.UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&RevokedToken{})
	return result.RowsAffected, result.Error
}

// MemoryStore keeps revocations in process. It suits tests and single-instance
// deployments; entries are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]time.Time)}
}

func (m *MemoryStore) Revoke(_ context.Context, jti string, _ uint, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[jti] = expiresAt
	return nil
}

func (m *MemoryStore) IsRevoked(_ context.Context, jti string, now time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	expiresAt, ok := m.tokens[jti]
	return ok && now.Before(expiresAt), nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for jti, expiresAt := range m.tokens {
		if !now.Before(expiresAt) {
			delete(m.tokens, jti)
			removed++
		}
	}
	return removed, nil
}
