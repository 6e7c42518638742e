package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/nimasrn/expense-tracker/pkg/pg"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// LockLedger takes a row lock on the owning user until the surrounding
// transaction ends, serializing all ledger mutations of that user.
func (r *TransactionRepository) LockLedger(ctx context.Context, userID uuid.UUID) error {
	var entity UserEntity
	err := r.ForUpdate(ctx).
		Select("id").
		Where("id = ?", userID).
		First(&entity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// FindByUser returns every transaction of the user, newest first.
func (r *TransactionRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// FindByUserExcluding returns the user's transactions except excludeID.
func (r *TransactionRepository) FindByUserExcluding(ctx context.Context, userID, excludeID uuid.UUID) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).
		Where("user_id = ? AND id <> ?", userID, excludeID).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

func (r *TransactionRepository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// Update overwrites the mutable fields of txn, scoped to its owner.
func (r *TransactionRepository) Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id = ? AND user_id = ?", txn.ID, txn.UserID).
		Updates(map[string]any{
			"date":         txn.Date,
			"description":  txn.Description,
			"amount":       txn.Amount,
			"payment_type": string(txn.PaymentType),
			"type":         string(txn.Type),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrTransactionNotFound
	}

	return r.FindByIDForUser(ctx, txn.ID, txn.UserID)
}

func (r *TransactionRepository) DeleteByID(ctx context.Context, id, userID uuid.UUID) error {
	result := r.Write(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&TransactionEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}
