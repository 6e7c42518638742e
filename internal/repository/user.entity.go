package repository

import (
	"time"

	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/nimasrn/expense-tracker/pkg/pg"
)

type UserEntity struct {
	pg.Model
	FirstName string     `gorm:"column:first_name;not null"`
	LastName  string     `gorm:"column:last_name;not null"`
	Email     string     `gorm:"column:email;not null;uniqueIndex"`
	Password  string     `gorm:"column:password;not null;default:''"`
	GoogleID  *string    `gorm:"column:google_id;uniqueIndex"`
	OTPHash   *string    `gorm:"column:otp_hash"`
	OTPExpiry *time.Time `gorm:"column:otp_expiry"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	e := &UserEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Password:  m.PasswordHash,
		GoogleID:  m.GoogleID,
	}
	if m.ResetOTP != nil {
		hash, expiry := m.ResetOTP.CodeHash, m.ResetOTP.ExpiresAt
		e.OTPHash, e.OTPExpiry = &hash, &expiry
	}
	return e
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	m := &model.User{
		ID:           e.ID,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Email:        e.Email,
		PasswordHash: e.Password,
		GoogleID:     e.GoogleID,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if e.OTPHash != nil && e.OTPExpiry != nil {
		m.ResetOTP = &model.OTP{CodeHash: *e.OTPHash, ExpiresAt: *e.OTPExpiry}
	}
	return m
}
