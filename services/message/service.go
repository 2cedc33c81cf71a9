package message

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/internal/pagination"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Directory interface {
	ActiveUserIDs(ctx context.Context, ids []uint) ([]uint, error)
}

type Service struct {
	db     *gorm.DB
	users  Directory
	logger *logging.Service
	now    func() time.Time
}

func NewService(db *gorm.DB, users Directory, logger *logging.Service) *Service {
	return &Service{
		db:     db,
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func directKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func (s *Service) requireActive(ctx context.Context, ids []uint) error {
	active, err := s.users.ActiveUserIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to check participants", zap.Error(err))
		return apperror.Internal("Failed to create conversation", err)
	}
	for _, id := range ids {
		if !slices.Contains(active, id) {
			return apperror.BadRequest(fmt.Sprintf("User %d does not exist", id))
		}
	}
	return nil
}

func (s *Service) findDirect(ctx context.Context, key string) (*Conversation, error) {
	var conv Conversation
	err := s.db.WithContext(ctx).Preload("Participants").
		Where("direct_key = ?", key).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// OpenDirect returns the direct conversation between the two users, creating it on
// first use. created reports whether a new conversation was stored.
func (s *Service) OpenDirect(ctx context.Context, userID, otherID uint) (conv *Conversation, created bool, err error) {
	if otherID == 0 || otherID == userID {
		return nil, false, apperror.BadRequest("A direct conversation needs another participant")
	}

	key := directKey(userID, otherID)
	conv, err = s.findDirect(ctx, key)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("failed to look up direct conversation", zap.Error(err))
		return nil, false, apperror.Internal("Failed to open conversation", err)
	}

	if err := s.requireActive(ctx, []uint{otherID}); err != nil {
		return nil, false, err
	}

	conv, err = s.create(ctx, TypeDirect, "", &key, userID, []uint{userID, otherID})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		conv, err = s.findDirect(ctx, key)
		if err != nil {
			return nil, false, apperror.Internal("Failed to open conversation", err)
		}
		return conv, false, nil
	}
	if err != nil {
		s.logger.Error("failed to create direct conversation", zap.Error(err))
		return nil, false, apperror.Internal("Failed to open conversation", err)
	}
	return conv, true, nil
}

func (s *Service) CreateGroup(ctx context.Context, userID uint, input GroupInput) (*Conversation, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > 100 {
		return nil, apperror.BadRequest("Group name must be 1-100 characters")
	}

	members := []uint{userID}
	for _, id := range input.ParticipantIDs {
		if id != 0 && !slices.Contains(members, id) {
			members = append(members, id)
		}
	}
	if len(members) < 2 {
		return nil, apperror.BadRequest("A group conversation needs at least one other participant")
	}
	if err := s.requireActive(ctx, members[1:]); err != nil {
		return nil, err
	}

	conv, err := s.create(ctx, TypeGroup, name, nil, userID, members)
	if err != nil {
		s.logger.Error("failed to create group conversation", zap.Error(err))
		return nil, apperror.Internal("Failed to create conversation", err)
	}
	return conv, nil
}

func (s *Service) create(ctx context.Context, kind, name string, key *string, creatorID uint, members []uint) (*Conversation, error) {
	now := s.now()
	conv := &Conversation{
		Type:      kind,
		Name:      name,
		DirectKey: key,
		CreatedBy: creatorID,
	}
	for _, id := range members {
		conv.Participants = append(conv.Participants, Participant{UserID: id, JoinedAt: now})
	}

	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		zap.Uint("conversation_id", conv.ID),
		zap.String("type", kind),
		zap.Int("participants", len(members)))
	return conv, nil
}

func (s *Service) List(ctx context.Context, userID uint) ([]Conversation, error) {
	var conversations []Conversation
	err := s.db.WithContext(ctx).Preload("Participants").
		Where("id IN (?)", s.db.Model(&Participant{}).Select("conversation_id").Where("user_id = ?", userID)).
		Order("COALESCE(last_message_at, created_at) DESC, id DESC").
		Find(&conversations).Error
	if err != nil {
		s.logger.Error("failed to list conversations", zap.Uint("user_id", userID), zap.Error(err))
		return nil, apperror.Internal("Failed to list conversations", err)
	}
	return conversations, nil
}

// authorize loads the conversation and confirms userID takes part in it.
func (s *Service) authorize(ctx context.Context, userID, conversationID uint) error {
	var conv Conversation
	if err := s.db.WithContext(ctx).Select("id").First(&conv, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("Conversation not found")
		}
		return apperror.Internal("Failed to load conversation", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error; err != nil {
		return apperror.Internal("Failed to load conversation", err)
	}
	if count == 0 {
		return apperror.Forbidden("You are not a participant in this conversation")
	}
	return nil
}

func (s *Service) Send(ctx context.Context, userID, conversationID uint, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.BadRequest("Message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return nil, apperror.BadRequest(fmt.Sprintf("Message content must be at most %d characters", MaxContentRunes))
	}
	if err := s.authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	msg := &Message{ConversationID: conversationID, SenderID: userID, Content: content}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).Where("id = ?", conversationID).
			Update("last_message_at", msg.CreatedAt.UTC()).Error
	})
	if err != nil {
		s.logger.Error("failed to send message", zap.Uint("conversation_id", conversationID), zap.Error(err))
		return nil, apperror.Internal("Failed to send message", err)
	}
	return msg, nil
}

func (s *Service) Messages(ctx context.Context, userID, conversationID uint, page Page) (*MessagePage, error) {
	if err := s.authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	if page.Limit <= 0 {
		page.Limit = DefaultPageSize
	}
	limit := pagination.Page{Limit: page.Limit}.Normalize().Limit

	query := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if page.BeforeID > 0 {
		query = query.Where("id < ?", page.BeforeID)
	}

	var messages []Message
	if err := query.Order("id DESC").Limit(limit + 1).Find(&messages).Error; err != nil {
		s.logger.Error("failed to load messages", zap.Uint("conversation_id", conversationID), zap.Error(err))
		return nil, apperror.Internal("Failed to load messages", err)
	}

	result := &MessagePage{}
	if len(messages) > limit {
		messages = messages[:limit]
		result.HasMore = true
	}
	slices.Reverse(messages)
	if result.HasMore {
		result.NextBeforeID = messages[0].ID
	}
	if messages == nil {
		messages = []Message{}
	}
	result.Messages = messages

	s.markRead(ctx, userID, conversationID)
	return result, nil
}

func (s *Service) markRead(ctx context.Context, userID, conversationID uint) {
	err := s.db.WithContext(ctx).Model(&Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", s.now()).Error
	if err != nil {
		s.logger.Warn("failed to mark conversation read",
			zap.Uint("conversation_id", conversationID),
			zap.Uint("user_id", userID),
			zap.Error(err))
	}
}
