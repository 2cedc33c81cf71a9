package user

import "time"

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
	RoleViewer  = "viewer"
)

var Roles = []string{RoleAdmin, RoleManager, RoleMember, RoleViewer}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type NotificationPreferences struct {
	Email    bool `json:"email"`
	Push     bool `json:"push"`
	Mentions bool `json:"mentions"`
	Messages bool `json:"messages"`
}

type PrivacyPreferences struct {
	ShowEmail        bool `json:"showEmail"`
	ShowOnlineStatus bool `json:"showOnlineStatus"`
	AllowMessages    bool `json:"allowMessages"`
}

type Preferences struct {
	Notifications NotificationPreferences `json:"notifications"`
	Privacy       PrivacyPreferences      `json:"privacy"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: NotificationPreferences{Email: true, Push: true, Mentions: true, Messages: true},
		Privacy:       PrivacyPreferences{ShowEmail: false, ShowOnlineStatus: true, AllowMessages: true},
	}
}

type User struct {
	ID                       uint        `json:"id" gorm:"primaryKey"`
	Email                    string      `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Username                 string      `json:"username" gorm:"uniqueIndex;size:50;not null"`
	PasswordHash             string      `json:"-" gorm:"size:255;not null"`
	DisplayName              string      `json:"displayName" gorm:"size:100"`
	AvatarURL                string      `json:"avatarUrl" gorm:"size:500"`
	Bio                      string      `json:"bio" gorm:"size:1000"`
	Role                     string      `json:"role" gorm:"size:20;not null;default:member;index"`
	IsActive                 bool        `json:"isActive" gorm:"not null;default:true"`
	EmailVerified            bool        `json:"emailVerified" gorm:"not null;default:false"`
	Preferences              Preferences `json:"preferences" gorm:"serializer:json;type:text"`
	IsOnline                 bool        `json:"isOnline" gorm:"not null;default:false"`
	LastSeen                 *time.Time  `json:"lastSeen"`
	VerificationToken        string      `json:"-" gorm:"size:64;index"`
	VerificationTokenExpires *time.Time  `json:"-"`
	CreatedAt                time.Time   `json:"createdAt"`
	UpdatedAt                time.Time   `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

type RegisterInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// ProfileInput holds optional profile changes; nil fields are left untouched.
type ProfileInput struct {
	DisplayName *string      `json:"displayName"`
	AvatarURL   *string      `json:"avatarUrl"`
	Bio         *string      `json:"bio"`
	Preferences *Preferences `json:"preferences"`
}
