package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	GoogleID  *string   `json:"googleId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// never serialized
	PasswordHash string `json:"-"`
	ResetOTP     *OTP   `json:"-"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// OTP is a one-time password reset code. Only its digest is stored.
type OTP struct {
	CodeHash  string
	ExpiresAt time.Time
}

func (o *OTP) Expired(now time.Time) bool {
	return o == nil || !now.Before(o.ExpiresAt)
}

type SignupRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

func (r SignupRequest) Trimmed() SignupRequest {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = NormalizeEmail(r.Email)
	return r
}

type GoogleLoginRequest struct {
	FirstName string
	LastName  string
	Email     string
	GoogleID  string
	IDToken   string
}

// GoogleIdentity is what a verified Google ID token tells us about its holder.
type GoogleIdentity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
