package user

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/apitoken"
	"github.com/tech-arch1tect/newsdesk/services/jwt"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/password"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	emailTokenExpiry = 24 * time.Hour

	msgInvalidCredentials = "Invalid email or password"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

var ErrUserNotFound = errors.New("user not found")

type Service struct {
	db        *gorm.DB
	passwords *password.Service
	config    config.AuthConfig
	logger    *logging.Service
	now       func() time.Time
}

func NewService(db *gorm.DB, passwords *password.Service, cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		db:        db,
		passwords: passwords,
		config:    cfg.Auth,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckPassword applies the strength policy and reports every violated rule.
func (s *Service) CheckPassword(pw string) error {
	result := s.passwords.ValidateStrength(pw)
	if result.IsValid {
		return nil
	}
	return apperror.BadRequest("Password does not meet requirements: " + strings.Join(result.Errors, "; "))
}

func (s *Service) validateRegistration(input *RegisterInput) error {
	input.Email = normalizeEmail(input.Email)
	input.Username = strings.TrimSpace(input.Username)
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	if input.Email == "" || input.Username == "" || input.Password == "" {
		return apperror.BadRequest("Email, username and password are required")
	}
	if _, err := netmail.ParseAddress(input.Email); err != nil {
		return apperror.BadRequest("Invalid email address")
	}
	if !usernamePattern.MatchString(input.Username) {
		return apperror.BadRequest("Username must be 3-50 characters of letters, numbers, underscores or hyphens")
	}
	return s.CheckPassword(input.Password)
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	if err := s.validateRegistration(&input); err != nil {
		return nil, err
	}

	var taken []User
	if err := s.db.WithContext(ctx).Select("email", "username").
		Where("email = ? OR username = ?", input.Email, input.Username).
		Find(&taken).Error; err != nil {
		s.logger.Error("failed to check user uniqueness", zap.Error(err))
		return nil, apperror.Internal("Failed to register user", err)
	}
	for _, u := range taken {
		if u.Email == input.Email {
			return nil, apperror.Conflict("Email is already registered")
		}
		if u.Username == input.Username {
			return nil, apperror.Conflict("Username is already taken")
		}
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	token, err := s.passwords.GenerateVerificationToken()
	if err != nil {
		return nil, apperror.Internal("Failed to register user", err)
	}
	tokenExpires := s.now().Add(emailTokenExpiry)

	displayName := input.DisplayName
	if displayName == "" {
		displayName = input.Username
	}

	role := s.config.DefaultRole
	if !ValidRole(role) {
		role = RoleMember
	}

	u := &User{
		Email:                    input.Email,
		Username:                 input.Username,
		PasswordHash:             hash,
		DisplayName:              displayName,
		Role:                     role,
		IsActive:                 true,
		Preferences:              DefaultPreferences(),
		VerificationToken:        token,
		VerificationTokenExpires: &tokenExpires,
	}

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("Email or username is already registered")
		}
		s.logger.Error("failed to create user", zap.String("email", input.Email), zap.Error(err))
		return nil, apperror.Internal("Failed to register user", err)
	}

	s.logger.Info("user registered", zap.Uint("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

// Authenticate checks credentials and marks the user online. Unknown email, wrong
// password and deactivated accounts fail identically.
func (s *Service) Authenticate(ctx context.Context, email, pw string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug("login for unknown email")
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		s.logger.Error("failed to load user for login", zap.Error(err))
		return nil, apperror.Internal("Login failed", err)
	}

	if !s.passwords.Verify(pw, u.PasswordHash) || !u.IsActive {
		s.logger.Info("login rejected", zap.Uint("user_id", u.ID), zap.Bool("active", u.IsActive))
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	if s.config.RequireVerifiedForLogin && !u.EmailVerified {
		return nil, apperror.Forbidden("Email address has not been verified")
	}

	s.setPresence(ctx, u.ID, true)
	u.IsOnline = true
	return &u, nil
}

func (s *Service) Logout(ctx context.Context, userID uint) {
	s.setPresence(ctx, userID, false)
}

func (s *Service) setPresence(ctx context.Context, userID uint, online bool) {
	err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Updates(map[string]any{"is_online": online, "last_seen": s.now()}).Error
	if err != nil {
		s.logger.Warn("failed to update presence", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func (s *Service) find(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Where(query, args...).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) Get(ctx context.Context, userID uint) (*User, error) {
	u, err := s.find(ctx, "id = ?", userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		s.logger.Error("failed to load user", zap.Uint("user_id", userID), zap.Error(err))
		return nil, apperror.Internal("Failed to load user", err)
	}
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID uint, input ProfileInput) (*User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" || len(name) > 100 {
			return nil, apperror.BadRequest("Display name must be 1-100 characters")
		}
		u.DisplayName = name
	}
	if input.AvatarURL != nil {
		if len(*input.AvatarURL) > 500 {
			return nil, apperror.BadRequest("Avatar URL must be at most 500 characters")
		}
		u.AvatarURL = strings.TrimSpace(*input.AvatarURL)
	}
	if input.Bio != nil {
		if len(*input.Bio) > 1000 {
			return nil, apperror.BadRequest("Bio must be at most 1000 characters")
		}
		u.Bio = *input.Bio
	}
	if input.Preferences != nil {
		u.Preferences = *input.Preferences
	}

	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		s.logger.Error("failed to update profile", zap.Uint("user_id", userID), zap.Error(err))
		return nil, apperror.Internal("Failed to update profile", err)
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.passwords.Verify(current, u.PasswordHash) {
		return apperror.BadRequest("Current password is incorrect")
	}
	if current == next {
		return apperror.BadRequest("New password must differ from the current password")
	}
	if err := s.CheckPassword(next); err != nil {
		return err
	}

	if err := s.storePassword(ctx, u.ID, next); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.Uint("user_id", userID))
	return nil
}

// ResetPassword sets a new password for the account behind email. Callers must have
// already proven control of the address.
func (s *Service) ResetPassword(ctx context.Context, email, next string) error {
	if err := s.CheckPassword(next); err != nil {
		return err
	}

	u, err := s.find(ctx, "email = ?", normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperror.NotFound("User not found")
		}
		return apperror.Internal("Failed to reset password", err)
	}

	if err := s.storePassword(ctx, u.ID, next); err != nil {
		return err
	}
	s.logger.Info("password reset", zap.Uint("user_id", u.ID))
	return nil
}

func (s *Service) storePassword(ctx context.Context, userID uint, pw string) error {
	hash, err := s.passwords.Hash(pw)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Update("password_hash", hash).Error; err != nil {
		s.logger.Error("failed to store password", zap.Uint("user_id", userID), zap.Error(err))
		return apperror.Internal("Failed to update password", err)
	}
	return nil
}

// MarkEmailVerified flags the account for email as verified and clears any pending
// link token.
func (s *Service) MarkEmailVerified(ctx context.Context, email string) error {
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("email = ?", normalizeEmail(email)).
		Updates(map[string]any{
			"email_verified":             true,
			"verification_token":         "",
			"verification_token_expires": nil,
		})
	if result.Error != nil {
		s.logger.Error("failed to mark email verified", zap.Error(result.Error))
		return apperror.Internal("Failed to verify email", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("User not found")
	}
	return nil
}

// VerifyEmailToken consumes the link token issued at registration.
func (s *Service) VerifyEmailToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, apperror.BadRequest("Verification token is required")
	}

	u, err := s.find(ctx, "verification_token = ?", token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.BadRequest("Invalid verification token")
		}
		return nil, apperror.Internal("Failed to verify email", err)
	}
	if u.VerificationTokenExpires == nil || !s.now().Before(*u.VerificationTokenExpires) {
		return nil, apperror.BadRequest("Verification token has expired")
	}

	if err := s.MarkEmailVerified(ctx, u.Email); err != nil {
		return nil, err
	}
	u.EmailVerified = true
	u.VerificationToken = ""
	u.VerificationTokenExpires = nil
	return u, nil
}

func (s *Service) SetRole(ctx context.Context, actorID, targetID uint, role string) (*User, error) {
	if !ValidRole(role) {
		return nil, apperror.BadRequest(fmt.Sprintf("Invalid role: %s", role))
	}
	if actorID == targetID {
		return nil, apperror.BadRequest("You cannot change your own role")
	}

	u, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(u).Update("role", role).Error; err != nil {
		s.logger.Error("failed to update role", zap.Uint("user_id", targetID), zap.Error(err))
		return nil, apperror.Internal("Failed to update role", err)
	}

	s.logger.Info("user role changed",
		zap.Uint("actor_id", actorID),
		zap.Uint("user_id", targetID),
		zap.String("role", role))
	u.Role = role
	return u, nil
}

// Deactivate soft-deletes an account. Its API tokens and JWTs are rejected from the
// next request on.
func (s *Service) Deactivate(ctx context.Context, actorID, targetID uint) error {
	if actorID == targetID {
		return apperror.BadRequest("You cannot delete your own account")
	}

	result := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND is_active = ?", targetID, true).
		Updates(map[string]any{"is_active": false, "is_online": false})
	if result.Error != nil {
		s.logger.Error("failed to deactivate user", zap.Uint("user_id", targetID), zap.Error(result.Error))
		return apperror.Internal("Failed to delete user", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("User not found")
	}

	s.logger.Info("user deactivated", zap.Uint("actor_id", actorID), zap.Uint("user_id", targetID))
	return nil
}

func (s *Service) LookupOwner(ctx context.Context, userID uint) (*apitoken.Owner, error) {
	u, err := s.find(ctx, "id = ?", userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apitoken.Owner{ID: u.ID, Email: u.Email, Role: u.Role, IsActive: u.IsActive}, nil
}

func Payload(u *User) jwt.Payload {
	return jwt.Payload{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// Subject reloads a refresh token's user so reissued tokens carry the current role.
func (s *Service) Subject(ctx context.Context, userID uint) (jwt.Payload, error) {
	u, err := s.find(ctx, "id = ?", userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return jwt.Payload{}, apperror.Unauthorized("Invalid refresh token")
		}
		return jwt.Payload{}, apperror.Internal("Failed to refresh token", err)
	}
	if !u.IsActive {
		return jwt.Payload{}, apperror.Unauthorized("Invalid refresh token")
	}
	return Payload(u), nil
}

func (s *Service) ActiveUserIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var active []uint
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Order("id").
		Pluck("id", &active).Error; err != nil {
		return nil, err
	}
	return active, nil
}
