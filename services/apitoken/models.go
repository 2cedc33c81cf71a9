package apitoken

import "time"

type APIToken struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UserID      uint       `json:"userId" gorm:"not null;uniqueIndex:idx_api_tokens_user_name"`
	TokenHash   string     `json:"-" gorm:"uniqueIndex;size:64;not null"`
	Name        string     `json:"name" gorm:"size:100;not null;uniqueIndex:idx_api_tokens_user_name"`
	Description string     `json:"description" gorm:"size:500"`
	Scope       []string   `json:"scope" gorm:"serializer:json;type:text"`
	IsActive    bool       `json:"isActive" gorm:"not null;default:true;index"`
	ExpiresAt   *time.Time `json:"expiresAt" gorm:"index"`
	LastUsedAt  *time.Time `json:"lastUsedAt"`
	LastUsedIP  string     `json:"lastUsedIp" gorm:"size:45"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (APIToken) TableName() string {
	return "api_tokens"
}

func (t *APIToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

type CreateInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	Scope       []string   `json:"scope"`
}

// Created carries the plaintext token, which is only ever returned here.
type Created struct {
	Token  string    `json:"token"`
	Record *APIToken `json:"record"`
}

type Owner struct {
	ID       uint
	Email    string
	Role     string
	IsActive bool
}

type Identity struct {
	UserID  uint
	Email   string
	Role    string
	Scope   []string
	TokenID uint
}
