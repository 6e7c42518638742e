package ledger

import (
	"math/rand"
	"testing"

	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(category model.Category, paymentType model.PaymentType, amount string) *model.Transaction {
	return &model.Transaction{
		Type:        category,
		PaymentType: paymentType,
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestNormalizePaymentType(t *testing.T) {
	tests := []struct {
		in   string
		want model.PaymentType
	}{
		{"cash", model.PaymentTypeCash},
		{"CASH", model.PaymentTypeCash},
		{" Cash ", model.PaymentTypeCash},
		{"account", model.PaymentTypeAccount},
		{"ACCOUNT", model.PaymentTypeAccount},
		{"", model.PaymentTypeAccount},
		{"crypto", model.PaymentTypeAccount},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePaymentType(tt.in))
		})
	}
}

func TestParsePaymentType(t *testing.T) {
	pt, ok := ParsePaymentType("Cash")
	assert.True(t, ok)
	assert.Equal(t, model.PaymentTypeCash, pt)

	pt, ok = ParsePaymentType("")
	assert.True(t, ok)
	assert.Equal(t, model.PaymentTypeAccount, pt)

	_, ok = ParsePaymentType("card")
	assert.False(t, ok)
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("INCOME")
	assert.True(t, ok)
	assert.Equal(t, model.CategoryIncome, c)

	c, ok = ParseCategory("expense")
	assert.True(t, ok)
	assert.Equal(t, model.CategoryExpense, c)

	_, ok = ParseCategory("transfer")
	assert.False(t, ok)
}

func TestComputeAggregates(t *testing.T) {
	txs := []*model.Transaction{
		tx(model.CategoryIncome, model.PaymentTypeCash, "100"),
		tx(model.CategoryIncome, model.PaymentTypeAccount, "250.50"),
		tx(model.CategoryExpense, model.PaymentTypeCash, "40"),
		tx(model.CategoryExpense, "", "10.25"),
		tx(model.CategoryExpense, "CASH", "5"),
		nil,
	}

	a := ComputeAggregates(txs)

	assert.True(t, a.CashIncome.Equal(decimal.NewFromInt(100)))
	assert.True(t, a.CashExpenses.Equal(decimal.NewFromInt(45)))
	assert.True(t, a.AccountIncome.Equal(decimal.RequireFromString("250.50")))
	assert.True(t, a.AccountExpenses.Equal(decimal.RequireFromString("10.25")))
	assert.Equal(t, "55", a.CashBalance().String())
	assert.Equal(t, "240.25", a.AccountBalance().String())
	assert.Equal(t, "295.25", a.TotalBalance().String())
}

func TestComputeAggregates_Empty(t *testing.T) {
	a := ComputeAggregates(nil)
	assert.True(t, a.TotalIncome().IsZero())
	assert.True(t, a.TotalExpenses().IsZero())
}

func TestComputeAggregates_OrderAndPartitionIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	categories := []model.Category{model.CategoryIncome, model.CategoryExpense}
	channels := []model.PaymentType{model.PaymentTypeCash, model.PaymentTypeAccount, ""}

	txs := make([]*model.Transaction, 0, 200)
	for i := 0; i < 200; i++ {
		txs = append(txs, &model.Transaction{
			Type:        categories[r.Intn(len(categories))],
			PaymentType: channels[r.Intn(len(channels))],
			Amount:      decimal.New(r.Int63n(100_000), -2),
		})
	}

	want := ComputeAggregates(txs)

	for round := 0; round < 5; round++ {
		shuffled := append([]*model.Transaction(nil), txs...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := ComputeAggregates(shuffled)
		require.True(t, want.CashIncome.Equal(got.CashIncome))
		require.True(t, want.CashExpenses.Equal(got.CashExpenses))
		require.True(t, want.AccountIncome.Equal(got.AccountIncome))
		require.True(t, want.AccountExpenses.Equal(got.AccountExpenses))

		cut := r.Intn(len(shuffled))
		merged := ComputeAggregates(shuffled[:cut]).Merge(ComputeAggregates(shuffled[cut:]))
		require.True(t, want.TotalBalance().Equal(merged.TotalBalance()))
		require.True(t, want.CashBalance().Equal(merged.CashBalance()))
	}
}

func TestSummarize(t *testing.T) {
	t.Run("empty ledger", func(t *testing.T) {
		s := Summarize(nil)
		assert.Equal(t, model.SummaryMessageEmpty, s.Message)
		assert.Empty(t, s.Transactions)
		assert.True(t, s.TotalIncome.IsZero())
		assert.True(t, s.TotalExpenses.IsZero())
		assert.True(t, s.TotalBalance.IsZero())
		assert.True(t, s.Cash.IsZero())
		assert.True(t, s.Account.IsZero())
	})

	t.Run("populated ledger", func(t *testing.T) {
		s := Summarize([]*model.Transaction{
			tx(model.CategoryIncome, model.PaymentTypeCash, "100"),
			tx(model.CategoryExpense, model.PaymentTypeCash, "30"),
			tx(model.CategoryIncome, model.PaymentTypeAccount, "50"),
		})
		assert.Equal(t, model.SummaryMessageFetched, s.Message)
		assert.Len(t, s.Transactions, 3)
		assert.Equal(t, "70", s.Cash.String())
		assert.Equal(t, "50", s.Account.String())
		assert.Equal(t, "150", s.TotalIncome.String())
		assert.Equal(t, "30", s.TotalExpenses.String())
		assert.Equal(t, "120", s.TotalBalance.String())
		assert.Equal(t, "30", s.Breakdown.CashExpenses.String())
	})
}
