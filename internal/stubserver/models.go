package stubserver

import "time"

// Admin is a console operator account.
type Admin struct {
	AdminID        string `gorm:"primaryKey" json:"adminId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	HashedPassword string `json:"-"`
}

// Member is an approved society member with issued credentials.
type Member struct {
	UniqueID              string `gorm:"primaryKey" json:"uniqueId"`
	Name                  string `json:"name"`
	Email                 string `gorm:"unique" json:"email"`
	Phone                 string `json:"phone"`
	Speciality            string `json:"speciality"`
	HashedPassword        string `json:"-"`
	RequirePasswordChange bool   `json:"-"`
}

// Application is a self-registration awaiting email verification and then
// admin review.
type Application struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	Email         string `gorm:"unique"`
	Phone         string
	Speciality    string
	Qualification string
	DocumentName  string
	DocumentSize  int64
	Status        string // otp_pending -> pending_review
	CreatedAt     time.Time
}

// OTP is a delivered one-time code, keyed by flow and principal
// ("admin:<id>" or "reg:<email>"). A reissue replaces the row.
type OTP struct {
	Key       string `gorm:"primaryKey"`
	Code      string
	ExpiresAt time.Time
}

// Application statuses.
const (
	StatusOTPPending    = "otp_pending"
	StatusPendingReview = "pending_review"
)
