package message

import (
	"time"

	"github.com/tech-arch1tect/newsdesk/internal/pagination"
)

const (
	TypeDirect = "direct"
	TypeGroup  = "group"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = pagination.MaxLimit
	MaxContentRunes = 5000
)

type Conversation struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	Type          string        `json:"type" gorm:"size:10;not null;index"`
	Name          string        `json:"name,omitempty" gorm:"size:100"`
	DirectKey     *string       `json:"-" gorm:"size:64;uniqueIndex"`
	CreatedBy     uint          `json:"createdBy" gorm:"not null"`
	LastMessageAt *time.Time    `json:"lastMessageAt"`
	Participants  []Participant `json:"participants" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

type Participant struct {
	ID             uint       `json:"-" gorm:"primaryKey"`
	ConversationID uint       `json:"conversationId" gorm:"not null;uniqueIndex:idx_participant_conversation_user"`
	UserID         uint       `json:"userId" gorm:"not null;uniqueIndex:idx_participant_conversation_user;index"`
	JoinedAt       time.Time  `json:"joinedAt"`
	LastReadAt     *time.Time `json:"lastReadAt"`
}

func (Participant) TableName() string {
	return "conversation_participants"
}

type Message struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID uint      `json:"conversationId" gorm:"not null;index"`
	SenderID       uint      `json:"senderId" gorm:"not null"`
	Content        string    `json:"content" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

type GroupInput struct {
	Name           string `json:"name"`
	ParticipantIDs []uint `json:"participantIds"`
}

// Page selects up to Limit messages older than BeforeID; a zero BeforeID starts at the
// newest message.
type Page struct {
	Limit    int
	BeforeID uint
}

type MessagePage struct {
	Messages     []Message `json:"messages"`
	HasMore      bool      `json:"hasMore"`
	NextBeforeID uint      `json:"nextBeforeId,omitempty"`
}
