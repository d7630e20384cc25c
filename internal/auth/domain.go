package auth

import (
	"time"

	"github.com/noah-isme/dealer-iam/internal/users"
)

// RegisterInput carries a self-service sign up.
type RegisterInput struct {
	Fullname    string `json:"fullname" validate:"required,max=100"`
	Bio         string `json:"bio" validate:"required,max=250"`
	Email       string `json:"email" validate:"required,email,max=100"`
	Password    string `json:"password" validate:"required,min=8,max=50"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=16"`
	Address     string `json:"address" validate:"required,min=50,max=250"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,url"`
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,max=50"`
}

// RefreshInput carries the refresh token presented next to an access token.
type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Tokens is the token pair handed out on register and login.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session is the register and login response body.
type Session struct {
	Tokens    Tokens    `json:"tokens"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Refreshed is the refresh response body.
type Refreshed struct {
	AccessToken string    `json:"access_token"`
	Type        string    `json:"type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Profile is the caller's own account together with token timing.
type Profile struct {
	Data            users.User `json:"data"`
	CurrentTime     int64      `json:"current_time"`
	CurrentDatetime string     `json:"current_datetime"`
	TokenExpiredAt  time.Time  `json:"token_expired_at"`
}

const (
	tokenType      = "bearer"
	datetimeLayout = "2006-01-02 15:04:05"
)
