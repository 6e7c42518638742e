package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTxn(userID uuid.UUID, category model.Category, paymentType model.PaymentType, amount string) *model.Transaction {
	return &model.Transaction{
		Date:        "2024-03-01",
		Description: "entry",
		Amount:      decimal.RequireFromString(amount),
		PaymentType: paymentType,
		Type:        category,
		UserID:      userID,
	}
}

func TestTransactionRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice@example.com")
	bob := createUser(t, users, "bob@example.com")

	created, err := repo.Create(ctx, newTxn(alice.ID, model.CategoryIncome, model.PaymentTypeCash, "120.50"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = repo.Create(ctx, newTxn(alice.ID, model.CategoryExpense, model.PaymentTypeAccount, "20"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTxn(bob.ID, model.CategoryIncome, model.PaymentTypeAccount, "999"))
	require.NoError(t, err)

	t.Run("find by user is scoped", func(t *testing.T) {
		txs, err := repo.FindByUser(ctx, alice.ID)
		require.NoError(t, err)
		assert.Len(t, txs, 2)
		for _, tx := range txs {
			assert.Equal(t, alice.ID, tx.UserID)
		}
	})

	t.Run("amount round-trips exactly", func(t *testing.T) {
		got, err := repo.FindByIDForUser(ctx, created.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("120.50")), got.Amount.String())
		assert.Equal(t, model.PaymentTypeCash, got.PaymentType)
	})

	t.Run("find by id of another user", func(t *testing.T) {
		_, err := repo.FindByIDForUser(ctx, created.ID, bob.ID)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	t.Run("find excluding", func(t *testing.T) {
		txs, err := repo.FindByUserExcluding(ctx, alice.ID, created.ID)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.NotEqual(t, created.ID, txs[0].ID)
	})
}

func TestTransactionRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice@example.com")
	created, err := repo.Create(ctx, newTxn(alice.ID, model.CategoryIncome, model.PaymentTypeCash, "100"))
	require.NoError(t, err)

	created.Amount = decimal.NewFromInt(75)
	created.Description = "salary"
	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "salary", updated.Description)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(75)))

	stranger := *created
	stranger.UserID = uuid.New()
	_, err = repo.Update(ctx, &stranger)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestTransactionRepository_DeleteByID(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice@example.com")
	created, err := repo.Create(ctx, newTxn(alice.ID, model.CategoryExpense, model.PaymentTypeCash, "10"))
	require.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteByID(ctx, created.ID, uuid.New()), ErrTransactionNotFound)
	require.NoError(t, repo.DeleteByID(ctx, created.ID, alice.ID))
	assert.ErrorIs(t, repo.DeleteByID(ctx, created.ID, alice.ID), ErrTransactionNotFound)

	txs, err := repo.FindByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestTransactionRepository_LockLedger(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice@example.com")

	err := repo.WithinTransaction(ctx, func(ctx context.Context) error {
		return repo.LockLedger(ctx, alice.ID)
	})
	assert.NoError(t, err)

	err = repo.WithinTransaction(ctx, func(ctx context.Context) error {
		return repo.LockLedger(ctx, uuid.New())
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTransactionRepository_WithinTransactionRollsBack(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice@example.com")
	boom := errors.New("boom")

	err := repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.Create(ctx, newTxn(alice.ID, model.CategoryIncome, model.PaymentTypeCash, "5")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	txs, err := repo.FindByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
