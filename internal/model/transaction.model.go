package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentTypeCash    PaymentType = "cash"
	PaymentTypeAccount PaymentType = "account"
)

type Category string

const (
	CategoryIncome  Category = "income"
	CategoryExpense Category = "expense"
)

// Transaction is a single income or expense entry of a user's ledger.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType PaymentType     `json:"paymentType"`
	Type        Category        `json:"type"`
	UserID      uuid.UUID       `json:"userId"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TransactionCreateRequest is the input of a new ledger entry.
// PaymentType and Type are kept raw; the ledger normalizes them.
type TransactionCreateRequest struct {
	Date        string
	Description string
	Amount      decimal.Decimal
	PaymentType string
	Type        string
}

func (r TransactionCreateRequest) Trimmed() TransactionCreateRequest {
	r.Date = strings.TrimSpace(r.Date)
	r.Description = strings.TrimSpace(r.Description)
	r.PaymentType = strings.TrimSpace(r.PaymentType)
	r.Type = strings.TrimSpace(r.Type)
	return r
}

// TransactionPatch carries the fields of an update. Nil fields keep the stored value.
type TransactionPatch struct {
	Date        *string
	Description *string
	Amount      *decimal.Decimal
	PaymentType *string
	Type        *string
}

func (p TransactionPatch) Empty() bool {
	return p.Date == nil && p.Description == nil && p.Amount == nil && p.PaymentType == nil && p.Type == nil
}
