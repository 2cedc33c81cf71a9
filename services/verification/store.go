package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store persists verification codes. Lookups return nil without error when nothing
// matches.
type Store interface {
	// Latest returns the newest code for the pair regardless of its state.
	Latest(ctx context.Context, email, purpose string) (*Code, error)
	FindActive(ctx context.Context, email, purpose string) (*Code, error)
	// Replace deactivates the active code for the pair and inserts code as one unit.
	Replace(ctx context.Context, code *Code) error
	IncrementAttempts(ctx context.Context, id uint) (int, error)
	Deactivate(ctx context.Context, id uint) error
	MarkUsed(ctx context.Context, id uint, at time.Time) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) first(query *gorm.DB) (*Code, error) {
	var code Code
	err := query.Order("created_at DESC, id DESC").First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (s *GormStore) Latest(ctx context.Context, email, purpose string) (*Code, error) {
	return s.first(s.db.WithContext(ctx).Where("email = ? AND purpose = ?", email, purpose))
}

func (s *GormStore) FindActive(ctx context.Context, email, purpose string) (*Code, error) {
	return s.first(s.db.WithContext(ctx).Where("email = ? AND purpose = ? AND is_active = ?", email, purpose, true))
}

func (s *GormStore) Replace(ctx context.Context, code *Code) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Code{}).
			Where("email = ? AND purpose = ? AND is_active = ?", code.Email, code.Purpose, true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate previous codes: %w", err)
		}
		if err := tx.Create(code).Error; err != nil {
			return fmt.Errorf("insert code: %w", err)
		}
		return nil
	})
}

func (s *GormStore) IncrementAttempts(ctx context.Context, id uint) (int, error) {
	var attempts int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Code{}).Where("id = ?", id).
			Update("attempts", gorm.Expr("attempts + ?", 1)).Error; err != nil {
			return err
		}
		return tx.Model(&Code{}).Where("id = ?", id).Select("attempts").Scan(&attempts).Error
	})
	return attempts, err
}

func (s *GormStore) Deactivate(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&Code{}).Where("id = ?", id).Update("is_active", false).Error
}

func (s *GormStore) MarkUsed(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&Code{}).Where("id = ?", id).
		Updates(map[string]any{"is_used": true, "verified_at": at}).Error
}

func (s *GormStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Code{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}
