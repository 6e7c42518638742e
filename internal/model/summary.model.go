package model

import "github.com/shopspring/decimal"

const (
	SummaryMessageEmpty   = "No Record Found"
	SummaryMessageFetched = "Data Fetch successful"
)

// Breakdown is the four per-channel, per-category totals of a ledger.
type Breakdown struct {
	CashIncome      decimal.Decimal `json:"cashIncome"`
	CashExpenses    decimal.Decimal `json:"cashExpenses"`
	AccountIncome   decimal.Decimal `json:"accountIncome"`
	AccountExpenses decimal.Decimal `json:"accountExpenses"`
}

// Summary is a user's ledger with its derived balances.
type Summary struct {
	Transactions  []*Transaction  `json:"expenses,omitempty"`
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	TotalBalance  decimal.Decimal `json:"totalBalance"`
	Cash          decimal.Decimal `json:"cash"`
	Account       decimal.Decimal `json:"account"`
	Breakdown     Breakdown       `json:"breakdown"`
	Message       string          `json:"message"`
}
