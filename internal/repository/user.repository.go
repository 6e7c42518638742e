package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/nimasrn/expense-tracker/pkg/pg"
	"gorm.io/gorm"
)

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	entity := toUserEntity(user)
	entity.Email = model.NormalizeEmail(entity.Email)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return toUserModel(entity), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email = ?", model.NormalizeEmail(email))
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).Where(query, args...).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toUserModel(&entity), nil
}

func (r *UserRepository) LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error {
	err := r.update(ctx, id, map[string]any{"google_id": googleID})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateGoogleID
	}
	return err
}

// SetOTP stores the reset code digest, replacing any previous one.
func (r *UserRepository) SetOTP(ctx context.Context, id uuid.UUID, otp model.OTP) error {
	return r.update(ctx, id, map[string]any{
		"otp_hash":   otp.CodeHash,
		"otp_expiry": otp.ExpiresAt,
	})
}

// ResetPassword stores the new password digest and clears the reset code.
func (r *UserRepository) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.update(ctx, id, map[string]any{
		"password":   passwordHash,
		"otp_hash":   nil,
		"otp_expiry": nil,
	})
}

func (r *UserRepository) update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := r.Write(ctx).Model(&UserEntity{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
