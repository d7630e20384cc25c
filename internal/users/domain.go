package users

import "time"

// Account and presence defaults for new users.
const (
	AccountActive = "active"
	PresenceOff   = "offline"
)

// User represents a user account for management.
type User struct {
	ID                string     `json:"id"`
	Fullname          string     `json:"fullname"`
	Bio               string     `json:"bio"`
	Email             string     `json:"email"`
	PhoneNumber       string     `json:"phoneNumber"`
	Address           string     `json:"address"`
	AccountStatus     string     `json:"accountStatus"`
	ActiveStatus      string     `json:"activeStatus"`
	AvatarURL         string     `json:"avatarUrl,omitempty"`
	PasswordHash      string     `json:"-"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	LastEditedBy      string     `json:"lastEditedBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty"`
	// Roles is only filled for the caller's own profile.
	Roles []string `json:"roles,omitempty"`
}

// Deleted reports whether the user is soft deleted.
func (u User) Deleted() bool {
	return u.DeletedAt != nil
}

// CanSignIn reports whether the account may authenticate.
func (u User) CanSignIn() bool {
	return !u.Deleted() && u.AccountStatus == AccountActive
}

// UpdateInput replaces the profile fields of a user.
type UpdateInput struct {
	Fullname    string `json:"fullname" validate:"required,max=100"`
	Bio         string `json:"bio" validate:"required,max=250"`
	Email       string `json:"email" validate:"required,email,max=100"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=16"`
	Address     string `json:"address" validate:"required,min=50,max=250"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,url"`
}

var sortColumns = []string{"fullname", "email", "account_status", "created_at", "updated_at", "last_login_at"}
