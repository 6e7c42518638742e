// Package ledger holds the pure balance arithmetic of a user's transactions.
// Nothing here touches storage; callers fetch the set and act on the result.
package ledger

import (
	"strings"

	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/shopspring/decimal"
)

// Aggregates are the per-channel, per-category sums of a transaction set.
type Aggregates struct {
	CashIncome      decimal.Decimal
	CashExpenses    decimal.Decimal
	AccountIncome   decimal.Decimal
	AccountExpenses decimal.Decimal
}

// NormalizePaymentType maps any input onto a channel. Only "cash" (any case)
// selects the cash channel; everything else, including empty, is account.
func NormalizePaymentType(raw string) model.PaymentType {
	if strings.EqualFold(strings.TrimSpace(raw), string(model.PaymentTypeCash)) {
		return model.PaymentTypeCash
	}
	return model.PaymentTypeAccount
}

// ParsePaymentType is the strict form used when validating input.
// Empty input defaults to account.
func ParsePaymentType(raw string) (model.PaymentType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return model.PaymentTypeAccount, true
	case string(model.PaymentTypeCash):
		return model.PaymentTypeCash, true
	case string(model.PaymentTypeAccount):
		return model.PaymentTypeAccount, true
	}
	return "", false
}

// ParseCategory accepts "income" or "expense" in any case.
func ParseCategory(raw string) (model.Category, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(model.CategoryIncome):
		return model.CategoryIncome, true
	case string(model.CategoryExpense):
		return model.CategoryExpense, true
	}
	return "", false
}

// Add folds one entry into the totals. Any category other than income counts as expense.
func (a Aggregates) Add(paymentType model.PaymentType, category model.Category, amount decimal.Decimal) Aggregates {
	income := strings.EqualFold(string(category), string(model.CategoryIncome))
	cash := NormalizePaymentType(string(paymentType)) == model.PaymentTypeCash

	switch {
	case income && cash:
		a.CashIncome = a.CashIncome.Add(amount)
	case income:
		a.AccountIncome = a.AccountIncome.Add(amount)
	case cash:
		a.CashExpenses = a.CashExpenses.Add(amount)
	default:
		a.AccountExpenses = a.AccountExpenses.Add(amount)
	}
	return a
}

// AddTransaction folds t into the totals.
func (a Aggregates) AddTransaction(t *model.Transaction) Aggregates {
	if t == nil {
		return a
	}
	return a.Add(t.PaymentType, t.Type, t.Amount)
}

// Merge adds two partial aggregates; ComputeAggregates(x ++ y) equals
// ComputeAggregates(x).Merge(ComputeAggregates(y)).
func (a Aggregates) Merge(b Aggregates) Aggregates {
	return Aggregates{
		CashIncome:      a.CashIncome.Add(b.CashIncome),
		CashExpenses:    a.CashExpenses.Add(b.CashExpenses),
		AccountIncome:   a.AccountIncome.Add(b.AccountIncome),
		AccountExpenses: a.AccountExpenses.Add(b.AccountExpenses),
	}
}

func (a Aggregates) CashBalance() decimal.Decimal {
	return a.CashIncome.Sub(a.CashExpenses)
}

func (a Aggregates) AccountBalance() decimal.Decimal {
	return a.AccountIncome.Sub(a.AccountExpenses)
}

func (a Aggregates) TotalIncome() decimal.Decimal {
	return a.CashIncome.Add(a.AccountIncome)
}

func (a Aggregates) TotalExpenses() decimal.Decimal {
	return a.CashExpenses.Add(a.AccountExpenses)
}

func (a Aggregates) TotalBalance() decimal.Decimal {
	return a.TotalIncome().Sub(a.TotalExpenses())
}

func (a Aggregates) Breakdown() model.Breakdown {
	return model.Breakdown{
		CashIncome:      a.CashIncome,
		CashExpenses:    a.CashExpenses,
		AccountIncome:   a.AccountIncome,
		AccountExpenses: a.AccountExpenses,
	}
}

// ComputeAggregates folds a transaction set. The result does not depend on order.
func ComputeAggregates(txs []*model.Transaction) Aggregates {
	var a Aggregates
	for _, t := range txs {
		a = a.AddTransaction(t)
	}
	return a
}

// Summarize builds the read model of a user's ledger.
func Summarize(txs []*model.Transaction) *model.Summary {
	if len(txs) == 0 {
		return &model.Summary{
			Transactions: []*model.Transaction{},
			Message:      model.SummaryMessageEmpty,
		}
	}

	a := ComputeAggregates(txs)
	return &model.Summary{
		Transactions:  txs,
		TotalIncome:   a.TotalIncome(),
		TotalExpenses: a.TotalExpenses(),
		TotalBalance:  a.TotalBalance(),
		Cash:          a.CashBalance(),
		Account:       a.AccountBalance(),
		Breakdown:     a.Breakdown(),
		Message:       model.SummaryMessageFetched,
	}
}
