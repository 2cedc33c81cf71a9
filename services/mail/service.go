package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmlTemplate "html/template"
	"path/filepath"
	"strings"
	textTemplate "text/template"
	"time"

	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const VerificationTemplate = "verification_code"

var ErrTemplateNotFound = errors.New("mail template not found")

// MailClient is satisfied by *mail.Client.
type MailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Service struct {
	config        *config.MailConfig
	appName       string
	client        MailClient
	htmlTemplates *htmlTemplate.Template
	textTemplates *textTemplate.Template
	logger        *logging.Service
}

type TemplateData map[string]any

var fallbackVerificationText = textTemplate.Must(textTemplate.New("fallback").Parse(
	`Your {{.AppName}} {{.PurposeLabel}} code is {{.Code}}.

If you did not request this code you can ignore this email.
`))

func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	logger.Info("initializing mail service",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(cfg.Username))
	}
	if cfg.Password != "" {
		clientOpts = append(clientOpts, mail.WithPassword(cfg.Password))
	}

	switch cfg.Encryption {
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, logger, client)
}

func NewServiceWithClient(cfg *config.MailConfig, logger *logging.Service, client MailClient) (*Service, error) {
	if cfg.FromAddress == "" {
		logger.Error("mail service initialization failed: FROM_ADDRESS is required")
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	service := &Service{
		config:  cfg,
		appName: cfg.FromName,
		client:  client,
		logger:  logger,
	}

	if err := service.loadTemplates(); err != nil {
		logger.Error("failed to load mail templates", zap.Error(err))
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}

	return service, nil
}

func (s *Service) loadTemplates() error {
	if s.config.TemplatesDir == "" {
		s.logger.Debug("no template directory configured, using built-in verification mail")
		return nil
	}

	htmlPattern := filepath.Join(s.config.TemplatesDir, "*.html")
	textPattern := filepath.Join(s.config.TemplatesDir, "*.txt")

	var err error
	s.htmlTemplates, err = htmlTemplate.ParseGlob(htmlPattern)
	if err != nil && !strings.Contains(err.Error(), "pattern matches no files") {
		return fmt.Errorf("failed to parse HTML templates: %w", err)
	}

	s.textTemplates, err = textTemplate.ParseGlob(textPattern)
	if err != nil && !strings.Contains(err.Error(), "pattern matches no files") {
		return fmt.Errorf("failed to parse text templates: %w", err)
	}

	var htmlCount, textCount int
	if s.htmlTemplates != nil {
		htmlCount = len(s.htmlTemplates.Templates())
	}
	if s.textTemplates != nil {
		textCount = len(s.textTemplates.Templates())
	}

	s.logger.Info("mail templates loaded",
		zap.String("templates_dir", s.config.TemplatesDir),
		zap.Int("html_templates", htmlCount),
		zap.Int("text_templates", textCount))

	return nil
}

func (s *Service) NewMessage() (*mail.Msg, error) {
	message := mail.NewMsg()

	if s.config.FromName != "" {
		if err := message.FromFormat(s.config.FromName, s.config.FromAddress); err != nil {
			return nil, fmt.Errorf("failed to set FROM address: %w", err)
		}
	} else if err := message.From(s.config.FromAddress); err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}

	return message, nil
}

func (s *Service) Send(ctx context.Context, message *mail.Msg) error {
	startTime := time.Now()
	err := s.client.DialAndSendWithContext(ctx, message)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("failed to send email",
			zap.Error(err),
			zap.Duration("attempt_duration", duration))
		return err
	}

	s.logger.Info("email sent", zap.Duration("send_duration", duration))
	return nil
}

func (s *Service) newAddressedMessage(to []string, subject string) (*mail.Msg, error) {
	message, err := s.NewMessage()
	if err != nil {
		return nil, err
	}
	if err := message.To(to...); err != nil {
		s.logger.Warn("failed to set TO addresses", zap.Error(err), zap.Strings("recipients", to))
		return nil, fmt.Errorf("failed to set TO addresses: %w", err)
	}
	message.Subject(subject)
	return message, nil
}

func (s *Service) SendTemplate(ctx context.Context, templateName string, to []string, subject string, data TemplateData) error {
	s.logger.Debug("sending template email",
		zap.String("template", templateName),
		zap.Int("recipients", len(to)))

	message, err := s.newAddressedMessage(to, subject)
	if err != nil {
		return err
	}

	if err := s.renderTemplate(templateName, data, message); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return s.Send(ctx, message)
}

func (s *Service) SendPlain(ctx context.Context, to []string, subject, body string) error {
	message, err := s.newAddressedMessage(to, subject)
	if err != nil {
		return err
	}
	message.SetBodyString(mail.TypeTextPlain, body)

	return s.Send(ctx, message)
}

func (s *Service) renderTemplate(templateName string, data TemplateData, message *mail.Msg) error {
	var hasTemplate bool

	if s.htmlTemplates != nil {
		if tmpl := s.htmlTemplates.Lookup(templateName + ".html"); tmpl != nil {
			var htmlBuf bytes.Buffer
			if err := tmpl.Execute(&htmlBuf, data); err != nil {
				return fmt.Errorf("failed to execute HTML template: %w", err)
			}
			message.SetBodyString(mail.TypeTextHTML, htmlBuf.String())
			hasTemplate = true
		}
	}

	if s.textTemplates != nil {
		if tmpl := s.textTemplates.Lookup(templateName + ".txt"); tmpl != nil {
			var textBuf bytes.Buffer
			if err := tmpl.Execute(&textBuf, data); err != nil {
				return fmt.Errorf("failed to execute text template: %w", err)
			}
			if hasTemplate {
				message.AddAlternativeString(mail.TypeTextPlain, textBuf.String())
			} else {
				message.SetBodyString(mail.TypeTextPlain, textBuf.String())
			}
			hasTemplate = true
		}
	}

	if !hasTemplate {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, templateName)
	}
	return nil
}

func (s *Service) hasTemplate(name string) bool {
	return (s.htmlTemplates != nil && s.htmlTemplates.Lookup(name+".html") != nil) ||
		(s.textTemplates != nil && s.textTemplates.Lookup(name+".txt") != nil)
}

func purposeLabel(purpose string) string {
	switch purpose {
	case "login":
		return "sign-in"
	case "register":
		return "registration"
	case "password_reset":
		return "password reset"
	default:
		return "verification"
	}
}

// SendVerificationCode mails a one-time code, rendering the verification_code template
// when one is configured.
func (s *Service) SendVerificationCode(ctx context.Context, email, code, purpose string) error {
	data := TemplateData{
		"AppName":      s.appName,
		"Code":         code,
		"Purpose":      purpose,
		"PurposeLabel": purposeLabel(purpose),
	}
	subject := fmt.Sprintf("Your %s code", purposeLabel(purpose))

	if s.hasTemplate(VerificationTemplate) {
		return s.SendTemplate(ctx, VerificationTemplate, []string{email}, subject, data)
	}

	var body bytes.Buffer
	if err := fallbackVerificationText.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render verification mail: %w", err)
	}
	return s.SendPlain(ctx, []string{email}, subject, body.String())
}
