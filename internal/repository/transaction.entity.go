package repository

import (
	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/nimasrn/expense-tracker/pkg/pg"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	pg.Model
	Date        string          `gorm:"column:date;not null"`
	Description string          `gorm:"column:description;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	PaymentType string          `gorm:"column:payment_type;not null;default:account"`
	Type        string          `gorm:"column:type;not null"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Date:        m.Date,
		Description: m.Description,
		Amount:      m.Amount,
		PaymentType: string(m.PaymentType),
		Type:        string(m.Type),
		UserID:      m.UserID,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:          e.ID,
		Date:        e.Date,
		Description: e.Description,
		Amount:      e.Amount,
		PaymentType: model.PaymentType(e.PaymentType),
		Type:        model.Category(e.Type),
		UserID:      e.UserID,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
