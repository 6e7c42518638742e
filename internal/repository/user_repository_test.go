package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := createUser(t, repo, "jane@example.com")
	assert.NotEqual(t, uuid.Nil, u.ID)

	_, err := repo.Create(ctx, &model.User{FirstName: "J", LastName: "D", Email: "jane@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_Find(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := createUser(t, repo, "jane@example.com")

	byEmail, err := repo.FindByEmail(ctx, "  JANE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "digest", byEmail.PasswordHash)
	assert.Nil(t, byEmail.ResetOTP)

	byID, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", byID.Email)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_OTPLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := createUser(t, repo, "jane@example.com")
	expiry := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)

	require.NoError(t, repo.SetOTP(ctx, u.ID, model.OTP{CodeHash: "otp-digest", ExpiresAt: expiry}))

	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResetOTP)
	assert.Equal(t, "otp-digest", got.ResetOTP.CodeHash)
	assert.True(t, expiry.Equal(got.ResetOTP.ExpiresAt))

	require.NoError(t, repo.ResetPassword(ctx, u.ID, "new-digest"))

	got, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-digest", got.PasswordHash)
	assert.Nil(t, got.ResetOTP)

	assert.ErrorIs(t, repo.SetOTP(ctx, uuid.New(), model.OTP{}), ErrUserNotFound)
}

func TestUserRepository_LinkGoogleID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	a := createUser(t, repo, "a@example.com")
	b := createUser(t, repo, "b@example.com")

	require.NoError(t, repo.LinkGoogleID(ctx, a.ID, "google-123"))
	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.GoogleID)
	assert.Equal(t, "google-123", *got.GoogleID)

	assert.ErrorIs(t, repo.LinkGoogleID(ctx, b.ID, "google-123"), ErrDuplicateGoogleID)
}
