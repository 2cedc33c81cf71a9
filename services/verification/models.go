package verification

import "time"

const (
	PurposeLogin         = "login"
	PurposeRegister      = "register"
	PurposePasswordReset = "password_reset"
)

func ValidPurpose(purpose string) bool {
	switch purpose {
	case PurposeLogin, PurposeRegister, PurposePasswordReset:
		return true
	}
	return false
}

type Code struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Email       string     `json:"email" gorm:"size:255;not null;index:idx_verification_lookup"`
	Code        string     `json:"-" gorm:"size:6;not null"`
	Purpose     string     `json:"purpose" gorm:"size:32;not null;index:idx_verification_lookup"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts int        `json:"maxAttempts" gorm:"not null"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index"`
	ExpiresAt   time.Time  `json:"expiresAt" gorm:"not null;index"`
	IsUsed      bool       `json:"isUsed" gorm:"not null;default:false"`
	IsActive    bool       `json:"isActive" gorm:"not null;default:true;index:idx_verification_lookup"`
	IPAddress   string     `json:"ipAddress" gorm:"size:45"`
	UserAgent   string     `json:"userAgent" gorm:"size:500"`
	VerifiedAt  *time.Time `json:"verifiedAt"`
}

func (Code) TableName() string {
	return "email_verification_codes"
}

type SendInput struct {
	Email     string
	Purpose   string
	IP        string
	UserAgent string
}

type SendResult struct {
	Success   bool `json:"success"`
	ExpiresIn int  `json:"expiresIn"`
}

type VerifyResult struct {
	Valid          bool `json:"valid"`
	VerificationID uint `json:"verificationId"`
}
