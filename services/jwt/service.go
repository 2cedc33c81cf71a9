package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
)

const (
	TokenTypeRefresh = "refresh"

	insecureAccessSecret  = "newsdesk-insecure-access-secret-change-me"
	insecureRefreshSecret = "newsdesk-insecure-refresh-secret-change-me"
)

var (
	ErrInvalidToken     = errors.New("invalid JWT token")
	ErrExpiredToken     = errors.New("JWT token has expired")
	ErrMalformedToken   = errors.New("malformed JWT token")
	ErrInvalidSignature = errors.New("invalid JWT token signature")
	ErrWrongTokenType   = errors.New("JWT token has the wrong type")
)

type Payload struct {
	UserID uint
	Email  string
	Role   string
}

type AccessClaims struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID uint   `json:"userId"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// SubjectFunc reloads the current state of a token's user. It returns an error when the
// user no longer exists or may not sign in.
type SubjectFunc func(ctx context.Context, userID uint) (Payload, error)

type Service struct {
	config        config.JWTConfig
	accessSecret  []byte
	refreshSecret []byte
	logger        *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	jwtCfg := cfg.JWT

	accessSecret := jwtCfg.AccessSecret
	if accessSecret == "" {
		logger.Warn("JWT_ACCESS_SECRET is not set, using an insecure default secret")
		accessSecret = insecureAccessSecret
	}
	refreshSecret := jwtCfg.RefreshSecret
	if refreshSecret == "" {
		logger.Warn("JWT_REFRESH_SECRET is not set, using an insecure default secret")
		refreshSecret = insecureRefreshSecret
	}

	return &Service{
		config:        jwtCfg,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		logger:        logger,
	}
}

func (s *Service) AccessExpirySeconds() int {
	return int(s.config.AccessExpiry.Seconds())
}

func (s *Service) RefreshExpirySeconds() int {
	return int(s.config.RefreshExpiry.Seconds())
}

func (s *Service) registeredClaims(userID uint, expiry time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    s.config.Issuer,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Audience:  []string{s.config.Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

func (s *Service) GenerateAccessToken(payload Payload) (string, error) {
	claims := AccessClaims{
		UserID:           payload.UserID,
		Email:            payload.Email,
		Role:             payload.Role,
		RegisteredClaims: s.registeredClaims(payload.UserID, s.config.AccessExpiry),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.accessSecret)
	if err != nil {
		s.logger.Error("failed to sign access token", zap.Error(err))
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, nil
}

func (s *Service) GenerateRefreshToken(userID uint) (string, error) {
	claims := RefreshClaims{
		UserID:           userID,
		Type:             TokenTypeRefresh,
		RegisteredClaims: s.registeredClaims(userID, s.config.RefreshExpiry),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.refreshSecret)
	if err != nil {
		s.logger.Error("failed to sign refresh token", zap.Error(err))
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return tokenString, nil
}

func (s *Service) GenerateTokenPair(payload Payload) (*TokenPair, error) {
	accessToken, err := s.GenerateAccessToken(payload)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.GenerateRefreshToken(payload.UserID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessExpirySeconds(),
	}, nil
}

func (s *Service) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenString, claims, s.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(tokenString, claims, s.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh {
		s.logger.Warn("refresh token validation failed", zap.String("type", claims.Type))
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a new pair built from the user's current
// email and role.
func (s *Service) Refresh(ctx context.Context, refreshToken string, subject SubjectFunc) (*TokenPair, error) {
	claims, err := s.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid refresh token").Wrap(err)
	}

	payload, err := subject(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	return s.GenerateTokenPair(payload)
}

func (s *Service) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}

		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
		}

		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
		}

		return secret, nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithAudience(s.config.Audience))

	if err != nil {
		s.logger.Debug("JWT token validation failed", zap.Error(err))

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return ErrInvalidSignature
		default:
			return ErrInvalidToken
		}
	}

	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// ExtractTokenFromHeader accepts exactly "Bearer <token>".
func ExtractTokenFromHeader(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
