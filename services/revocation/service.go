// Package revocation blocks JWTs before their natural expiry, keyed by token id.
package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
)

var ErrMissingTokenID = errors.New("token has no id")

// Service methods are safe on a nil receiver, which is how disabled revocation is
// represented.
type Service struct {
	store  Store
	logger *logging.Service
	now    func() time.Time
}

func NewService(store Store, logger *logging.Service) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Revoke blocks jti until expiresAt. Tokens that have already expired are ignored.
func (s *Service) Revoke(ctx context.Context, jti string, userID uint, expiresAt time.Time) error {
	if s == nil {
		return nil
	}
	if jti == "" {
		return ErrMissingTokenID
	}
	if !expiresAt.After(s.now()) {
		return nil
	}
	if err := s.store.Revoke(ctx, jti, userID, expiresAt); err != nil {
		s.logger.Error("failed to revoke token", zap.Uint("user_id", userID), zap.Error(err))
		return err
	}
	s.logger.Debug("token revoked", zap.Uint("user_id", userID), zap.Time("expires_at", expiresAt))
	return nil
}

func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s == nil || jti == "" {
		return false, nil
	}
	return s.store.IsRevoked(ctx, jti, s.now())
}

func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, nil
	}
	removed, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("expired revocations removed", zap.Int64("count", removed))
	}
	return removed, nil
}
