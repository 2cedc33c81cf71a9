package password

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 12
	MinLength   = 8
	MaxLength   = 128

	resetTokenBytes        = 32
	verificationTokenBytes = 32

	// bcrypt only reads this many bytes of input.
	bcryptInputLimit = 72
)

const (
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*()-_=+[]{}?"
	allChars     = lowerChars + upperChars + digitChars + specialChars
)

var ErrPasswordHashingFailed = errors.New("failed to hash password")

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "password123!": {},
	"123456": {}, "12345678": {}, "123456789": {}, "1234567890": {},
	"qwerty": {}, "qwerty123": {}, "qwertyuiop": {}, "abc123": {}, "abcd1234": {},
	"111111": {}, "000000": {}, "letmein": {}, "welcome": {}, "welcome1": {},
	"monkey": {}, "dragon": {}, "sunshine": {}, "iloveyou": {}, "football": {},
	"baseball": {}, "admin": {}, "admin123": {}, "passw0rd": {}, "p@ssw0rd": {},
	"changeme": {}, "trustno1": {},
}

type StrengthResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

type Service struct {
	cost   int
	logger *logging.Service
}

func NewService(cost int, logger *logging.Service) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Service{cost: cost, logger: logger}
}

func (s *Service) Cost() int {
	return s.cost
}

func (s *Service) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), s.cost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", apperror.Internal("Failed to process password", fmt.Errorf("%w: %v", ErrPasswordHashingFailed, err))
	}
	return string(hash), nil
}

func (s *Service) Verify(password, hash string) bool {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Warn("password verification failed", zap.Error(err))
		}
		return false
	}
	return true
}

// bcryptInput truncates to the bytes bcrypt actually uses, so passwords the
// strength policy allows never fail hashing.
func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptInputLimit {
		return b[:bcryptInputLimit]
	}
	return b
}

// ValidateStrength reports every violated rule at once.
func (s *Service) ValidateStrength(password string) StrengthResult {
	var errs []string

	length := utf8.RuneCountInString(password)
	if length < MinLength {
		errs = append(errs, fmt.Sprintf("Password must be at least %d characters long", MinLength))
	}
	if length > MaxLength {
		errs = append(errs, fmt.Sprintf("Password must be no more than %d characters long", MaxLength))
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasLower {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !hasUpper {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !hasNumber {
		errs = append(errs, "Password must contain at least one number")
	}
	if !hasSpecial {
		errs = append(errs, "Password must contain at least one special character")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		errs = append(errs, "Password is too common, please choose a stronger password")
	}

	if errs == nil {
		errs = []string{}
	}
	return StrengthResult{IsValid: len(errs) == 0, Errors: errs}
}

func (s *Service) GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		length = resetTokenBytes
	}
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

func (s *Service) GenerateResetToken() (string, error) {
	return s.GenerateSecureToken(resetTokenBytes)
}

func (s *Service) GenerateVerificationToken() (string, error) {
	return s.GenerateSecureToken(verificationTokenBytes)
}

// GenerateTemporaryPassword always returns at least MinLength characters with one of
// each required class.
func (s *Service) GenerateTemporaryPassword(length int) (string, error) {
	if length < MinLength {
		length = MinLength
	}

	chars := make([]byte, 0, length)
	for _, set := range []string{lowerChars, upperChars, digitChars, specialChars} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := randomChar(allChars)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	for i := len(chars) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		chars[i], chars[j] = chars[j], chars[i]
	}

	return string(chars), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random index: %w", err)
	}
	return int(v.Int64()), nil
}
