package model

import (
	"time"

	"github.com/google/uuid"
)

const MailKindPasswordResetOTP = "password_reset_otp"

// OTPMail is the job enqueued for the mail dispatcher. It carries the
// plaintext code because the dispatcher renders it into the email body.
type OTPMail struct {
	ID            uuid.UUID `json:"id"`
	Kind          string    `json:"kind"`
	To            string    `json:"to"`
	FirstName     string    `json:"firstName"`
	OTP           string    `json:"otp"`
	ExpireMinutes int       `json:"expireMinutes"`
	RequestedAt   time.Time `json:"requestedAt"`
}
