package verification

import (
	"context"

	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
)

// LogSender writes codes to the log instead of sending mail. Used when mail delivery
// is disabled.
type LogSender struct {
	logger *logging.Service
}

func NewLogSender(logger *logging.Service) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationCode(_ context.Context, email, code, purpose string) error {
	s.logger.Warn("mail delivery disabled, verification code logged",
		zap.String("email", email),
		zap.String("purpose", purpose),
		zap.String("code", code))
	return nil
}
