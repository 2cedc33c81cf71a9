package apitoken

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	Prefix     = "nst_"
	tokenBytes = 64

	lastUsedTimeout = 5 * time.Second
)

var ValidScopes = []string{"read", "write", "admin"}

var ErrTokenGenerationFailed = errors.New("failed to generate secure token")

// OwnerLookup resolves the user a token belongs to. It returns nil without error when
// the user does not exist.
type OwnerLookup interface {
	LookupOwner(ctx context.Context, userID uint) (*Owner, error)
}

type Service struct {
	db           *gorm.DB
	owners       OwnerLookup
	defaultScope []string
	logger       *logging.Service

	tracking sync.WaitGroup
}

func NewService(db *gorm.DB, cfg *config.Config, owners OwnerLookup, logger *logging.Service) *Service {
	defaultScope := []string{"read"}
	if cfg != nil && cfg.APIToken.DefaultScope != "" {
		defaultScope = strings.Split(cfg.APIToken.DefaultScope, ",")
	}

	return &Service{
		db:           db,
		owners:       owners,
		defaultScope: defaultScope,
		logger:       logger,
	}
}

func IsAPIToken(credential string) bool {
	return strings.HasPrefix(credential, Prefix)
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGenerationFailed, err)
	}
	return Prefix + hex.EncodeToString(bytes), nil
}

func (s *Service) validateInput(input *CreateInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return apperror.BadRequest("Token name is required")
	}
	if len(input.Name) > 100 {
		return apperror.BadRequest("Token name must be at most 100 characters")
	}

	if len(input.Scope) == 0 {
		input.Scope = append([]string(nil), s.defaultScope...)
	}
	for _, scope := range input.Scope {
		if !isValidScope(scope) {
			return apperror.BadRequest(fmt.Sprintf("Invalid token scope: %s", scope))
		}
	}
	return nil
}

func isValidScope(scope string) bool {
	for _, valid := range ValidScopes {
		if scope == valid {
			return true
		}
	}
	return false
}

func (s *Service) Create(ctx context.Context, userID uint, input CreateInput) (*Created, error) {
	if err := s.validateInput(&input); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&APIToken{}).
		Where("user_id = ? AND name = ?", userID, input.Name).
		Count(&existing).Error; err != nil {
		s.logger.Error("failed to check API token name", zap.Uint("user_id", userID), zap.Error(err))
		return nil, apperror.Internal("Failed to create API token", err)
	}
	if existing > 0 {
		return nil, apperror.Conflict("An API token with this name already exists")
	}

	token, err := generateToken()
	if err != nil {
		s.logger.Error("failed to generate API token", zap.Error(err))
		return nil, apperror.Internal("Failed to create API token", err)
	}

	if input.ExpiresAt != nil {
		expiresAt := input.ExpiresAt.UTC()
		input.ExpiresAt = &expiresAt
	}

	record := &APIToken{
		UserID:      userID,
		TokenHash:   HashToken(token),
		Name:        input.Name,
		Description: input.Description,
		Scope:       input.Scope,
		IsActive:    true,
		ExpiresAt:   input.ExpiresAt,
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("An API token with this name already exists")
		}
		s.logger.Error("failed to store API token", zap.Uint("user_id", userID), zap.Error(err))
		return nil, apperror.Internal("Failed to create API token", err)
	}

	s.logger.Info("API token created",
		zap.Uint("user_id", userID),
		zap.Uint("token_id", record.ID),
		zap.Strings("scope", record.Scope))

	return &Created{Token: token, Record: record}, nil
}

// Validate resolves a plaintext token to its owner. Unknown, revoked, expired and
// orphaned tokens all yield a nil identity without error.
func (s *Service) Validate(ctx context.Context, token, ip string) (*Identity, error) {
	if !IsAPIToken(token) {
		return nil, nil
	}

	var record APIToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", HashToken(token)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug("API token not found")
			return nil, nil
		}
		s.logger.Error("API token lookup failed", zap.Error(err))
		return nil, apperror.Internal("Failed to validate API token", err)
	}

	if !record.IsActive {
		s.logger.Debug("API token revoked", zap.Uint("token_id", record.ID))
		return nil, nil
	}

	if record.IsExpired(time.Now()) {
		s.logger.Info("API token expired, deactivating", zap.Uint("token_id", record.ID))
		if err := s.deactivate(ctx, record.ID); err != nil {
			s.logger.Warn("failed to deactivate expired API token", zap.Uint("token_id", record.ID), zap.Error(err))
		}
		return nil, nil
	}

	owner, err := s.owners.LookupOwner(ctx, record.UserID)
	if err != nil {
		s.logger.Error("API token owner lookup failed", zap.Uint("user_id", record.UserID), zap.Error(err))
		return nil, apperror.Internal("Failed to validate API token", err)
	}
	if owner == nil || !owner.IsActive {
		s.logger.Debug("API token owner inactive", zap.Uint("user_id", record.UserID))
		return nil, nil
	}

	s.trackUsage(record.ID, ip)

	return &Identity{
		UserID:  owner.ID,
		Email:   owner.Email,
		Role:    owner.Role,
		Scope:   record.Scope,
		TokenID: record.ID,
	}, nil
}

// trackUsage records last use in the background; failures are only logged.
func (s *Service) trackUsage(tokenID uint, ip string) {
	s.tracking.Add(1)
	go func() {
		defer s.tracking.Done()

		ctx, cancel := context.WithTimeout(context.Background(), lastUsedTimeout)
		defer cancel()

		now := time.Now().UTC()
		err := s.db.WithContext(ctx).Model(&APIToken{}).
			Where("id = ?", tokenID).
			Updates(map[string]any{"last_used_at": now, "last_used_ip": ip}).Error
		if err != nil {
			s.logger.Warn("failed to update API token last used", zap.Uint("token_id", tokenID), zap.Error(err))
		}
	}()
}

// Wait blocks until pending usage updates have finished.
func (s *Service) Wait() {
	s.tracking.Wait()
}

func (s *Service) deactivate(ctx context.Context, tokenID uint) error {
	return s.db.WithContext(ctx).Model(&APIToken{}).
		Where("id = ?", tokenID).
		Update("is_active", false).Error
}

func (s *Service) Revoke(ctx context.Context, userID, tokenID uint) error {
	result := s.db.WithContext(ctx).Model(&APIToken{}).
		Where("id = ? AND user_id = ? AND is_active = ?", tokenID, userID, true).
		Update("is_active", false)
	if result.Error != nil {
		s.logger.Error("failed to revoke API token", zap.Uint("token_id", tokenID), zap.Error(result.Error))
		return apperror.Internal("Failed to revoke API token", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("API token not found")
	}

	s.logger.Info("API token revoked", zap.Uint("user_id", userID), zap.Uint("token_id", tokenID))
	return nil
}

func (s *Service) List(ctx context.Context, userID uint) ([]APIToken, error) {
	var tokens []APIToken
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&tokens).Error; err != nil {
		s.logger.Error("failed to list API tokens", zap.Uint("user_id", userID), zap.Error(err))
		return nil, apperror.Internal("Failed to list API tokens", err)
	}
	return tokens, nil
}

func (s *Service) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&APIToken{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, time.Now().UTC()).
		Update("is_active", false)
	if result.Error != nil {
		s.logger.Error("failed to cleanup expired API tokens", zap.Error(result.Error))
		return 0, fmt.Errorf("failed to cleanup expired API tokens: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Info("deactivated expired API tokens", zap.Int64("count", result.RowsAffected))
	} else {
		s.logger.Debug("no expired API tokens found to cleanup")
	}
	return result.RowsAffected, nil
}
