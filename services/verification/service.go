package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
)

const (
	codeLength   = 6
	maxUserAgent = 500
)

var codeSpace = big.NewInt(1_000_000)

type Sender interface {
	SendVerificationCode(ctx context.Context, email, code, purpose string) error
}

// Observer is notified of verification outcomes, e.g. for metrics.
type Observer interface {
	VerificationEvent(purpose, outcome string)
}

type Service struct {
	store    Store
	sender   Sender
	config   config.VerificationConfig
	logger   *logging.Service
	observer Observer
	now      func() time.Time
}

func NewService(store Store, sender Sender, cfg config.VerificationConfig, logger *logging.Service) *Service {
	return &Service{
		store:  store,
		sender: sender,
		config: cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetObserver(observer Observer) {
	s.observer = observer
}

func (s *Service) observe(purpose, outcome string) {
	if s.observer != nil {
		s.observer.VerificationEvent(purpose, outcome)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}

func (s *Service) SendCode(ctx context.Context, input SendInput) (*SendResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, apperror.BadRequest("Email is required")
	}
	if !ValidPurpose(input.Purpose) {
		return nil, apperror.BadRequest("Invalid verification purpose")
	}

	now := s.now()

	latest, err := s.store.Latest(ctx, email, input.Purpose)
	if err != nil {
		s.logger.Error("failed to load latest verification code", zap.String("purpose", input.Purpose), zap.Error(err))
		return nil, apperror.Internal("Failed to send verification code", err)
	}
	if latest != nil {
		if elapsed := now.Sub(latest.CreatedAt); elapsed < s.config.Cooldown {
			wait := int(math.Ceil((s.config.Cooldown - elapsed).Seconds()))
			s.observe(input.Purpose, "cooldown")
			return nil, apperror.TooManyRequests(
				fmt.Sprintf("Please wait %d seconds before requesting a new code", wait), wait)
		}
	}

	code, err := generateCode()
	if err != nil {
		s.logger.Error("verification code generation failed", zap.Error(err))
		return nil, apperror.Internal("Failed to send verification code", err)
	}

	userAgent := input.UserAgent
	if len(userAgent) > maxUserAgent {
		userAgent = userAgent[:maxUserAgent]
	}

	record := &Code{
		Email:       email,
		Code:        code,
		Purpose:     input.Purpose,
		MaxAttempts: s.config.MaxAttempts,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.config.CodeExpiry),
		IsActive:    true,
		IPAddress:   input.IP,
		UserAgent:   userAgent,
	}
	if err := s.store.Replace(ctx, record); err != nil {
		s.logger.Error("failed to store verification code", zap.String("purpose", input.Purpose), zap.Error(err))
		return nil, apperror.Internal("Failed to send verification code", err)
	}

	if err := s.sender.SendVerificationCode(ctx, email, code, input.Purpose); err != nil {
		s.logger.Error("failed to dispatch verification code",
			zap.Uint("code_id", record.ID),
			zap.String("purpose", input.Purpose),
			zap.Error(err))
		s.observe(input.Purpose, "send_failed")
		return nil, apperror.Internal("Failed to send verification code", err)
	}

	s.logger.Info("verification code sent",
		zap.Uint("code_id", record.ID),
		zap.String("purpose", input.Purpose),
		zap.String("ip", input.IP),
		zap.String("device", DeviceSummary(input.UserAgent)))
	s.observe(input.Purpose, "sent")

	return &SendResult{
		Success:   true,
		ExpiresIn: int(s.config.CodeExpiry.Seconds()),
	}, nil
}

// VerifyCode counts the attempt before comparing, so the attempt that reaches the
// ceiling deactivates the code even when it is wrong.
func (s *Service) VerifyCode(ctx context.Context, email, code, purpose string) (*VerifyResult, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return nil, apperror.BadRequest("Email and code are required")
	}
	if !ValidPurpose(purpose) {
		return nil, apperror.BadRequest("Invalid verification purpose")
	}

	record, err := s.store.FindActive(ctx, email, purpose)
	if err != nil {
		s.logger.Error("failed to load verification code", zap.String("purpose", purpose), zap.Error(err))
		return nil, apperror.Internal("Failed to verify code", err)
	}
	if record == nil {
		s.observe(purpose, "not_found")
		return nil, apperror.NotFound("No active verification code found. Please request a new code")
	}

	if record.IsUsed {
		s.observe(purpose, "already_used")
		return nil, apperror.BadRequest("Verification code has already been used")
	}

	now := s.now()
	if !now.Before(record.ExpiresAt) {
		s.deactivate(ctx, record.ID)
		s.observe(purpose, "expired")
		return nil, apperror.BadRequest("Verification code has expired. Please request a new code")
	}

	if record.Attempts >= record.MaxAttempts {
		s.deactivate(ctx, record.ID)
		s.observe(purpose, "exhausted")
		return nil, apperror.TooManyRequests("Too many failed attempts. Please request a new code", 0)
	}

	attempts, err := s.store.IncrementAttempts(ctx, record.ID)
	if err != nil {
		s.logger.Error("failed to record verification attempt", zap.Uint("code_id", record.ID), zap.Error(err))
		return nil, apperror.Internal("Failed to verify code", err)
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		remaining := record.MaxAttempts - attempts
		s.logger.Info("verification code mismatch",
			zap.Uint("code_id", record.ID),
			zap.String("purpose", purpose),
			zap.Int("remaining", remaining))

		if remaining <= 0 {
			s.deactivate(ctx, record.ID)
			s.observe(purpose, "exhausted")
			return nil, apperror.TooManyRequests("Too many failed attempts. Please request a new code", 0)
		}
		s.observe(purpose, "invalid")
		return nil, apperror.BadRequest(fmt.Sprintf("Invalid verification code. %d attempts remaining", remaining))
	}

	if err := s.store.MarkUsed(ctx, record.ID, now); err != nil {
		s.logger.Error("failed to mark verification code used", zap.Uint("code_id", record.ID), zap.Error(err))
		return nil, apperror.Internal("Failed to verify code", err)
	}

	s.logger.Info("verification code accepted", zap.Uint("code_id", record.ID), zap.String("purpose", purpose))
	s.observe(purpose, "verified")

	return &VerifyResult{Valid: true, VerificationID: record.ID}, nil
}

func (s *Service) deactivate(ctx context.Context, id uint) {
	if err := s.store.Deactivate(ctx, id); err != nil {
		s.logger.Warn("failed to deactivate verification code", zap.Uint("code_id", id), zap.Error(err))
	}
}

func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.store.DeactivateExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to cleanup expired verification codes", zap.Error(err))
		return 0, fmt.Errorf("failed to cleanup expired verification codes: %w", err)
	}

	if count > 0 {
		s.logger.Info("deactivated expired verification codes", zap.Int64("count", count))
	}
	return count, nil
}
