package revocation

import "time"

// RevokedToken records a JWT id that must no longer be accepted. Rows are kept until
// the token would have expired on its own.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JTI       string    `gorm:"size:64;uniqueIndex;not null" json:"jti"`
	UserID    uint      `gorm:"index" json:"userId"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
