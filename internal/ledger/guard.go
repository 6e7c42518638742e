package ledger

import (
	"errors"
	"fmt"

	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/shopspring/decimal"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

var ErrGuardViolation = errors.New("ledger guard violation")

// GuardViolation reports a mutation rejected because it would leave a
// channel negative or expenses above income.
type GuardViolation struct {
	Operation      string
	Channel        model.PaymentType
	CashBalance    decimal.Decimal
	AccountBalance decimal.Decimal

	// set for income deletions only
	RemainingIncome decimal.Decimal
	TotalExpenses   decimal.Decimal
}

func (e *GuardViolation) Error() string {
	switch e.Operation {
	case OperationDelete:
		return "Cannot delete this income. Existing expenses are greater than remaining income after deletion."
	case OperationUpdate:
		return "Update not allowed. Expenses cannot exceed total income."
	default:
		return fmt.Sprintf("Transaction not allowed. Expenses cannot exceed income in %s.", e.Channel)
	}
}

func (e *GuardViolation) Unwrap() error {
	return ErrGuardViolation
}

// CheckChannels rejects aggregates where either channel balance is below zero.
func CheckChannels(operation string, a Aggregates) error {
	cash, account := a.CashBalance(), a.AccountBalance()

	var channel model.PaymentType
	switch {
	case cash.IsNegative():
		channel = model.PaymentTypeCash
	case account.IsNegative():
		channel = model.PaymentTypeAccount
	default:
		return nil
	}

	return &GuardViolation{
		Operation:      operation,
		Channel:        channel,
		CashBalance:    cash,
		AccountBalance: account,
	}
}

// CheckCreate guards adding candidate to a ledger whose totals are current.
func CheckCreate(current Aggregates, candidate *model.Transaction) error {
	return CheckChannels(OperationCreate, current.AddTransaction(candidate))
}

// CheckUpdate guards replacing a record: others must exclude the record being
// updated, effective carries its values after the patch.
func CheckUpdate(others Aggregates, effective *model.Transaction) error {
	return CheckChannels(OperationUpdate, others.AddTransaction(effective))
}

// CheckDelete guards removing t. Only income deletions can be rejected:
// the remaining income must still cover total expenses.
func CheckDelete(current Aggregates, t *model.Transaction) error {
	if t == nil || t.Type != model.CategoryIncome {
		return nil
	}

	remaining := current.TotalIncome().Sub(t.Amount)
	expenses := current.TotalExpenses()
	if remaining.GreaterThanOrEqual(expenses) {
		return nil
	}

	return &GuardViolation{
		Operation:       OperationDelete,
		Channel:         NormalizePaymentType(string(t.PaymentType)),
		CashBalance:     current.CashBalance(),
		AccountBalance:  current.AccountBalance(),
		RemainingIncome: remaining,
		TotalExpenses:   expenses,
	}
}
