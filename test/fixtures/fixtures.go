package fixtures

import (
	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/shopspring/decimal"
)

const (
	TestPassword    = "Secret@123"
	TestNewPassword = "N3wSecret!"
	TestDate        = "2024-01-15"
)

var (
	TestSignup = model.SignupRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  TestPassword,
	}

	TestSignupOther = model.SignupRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
		Password:  TestPassword,
	}
)

func NewIncome(amount string, paymentType model.PaymentType) model.TransactionCreateRequest {
	return model.TransactionCreateRequest{
		Date:        TestDate,
		Description: "salary",
		Amount:      decimal.RequireFromString(amount),
		PaymentType: string(paymentType),
		Type:        string(model.CategoryIncome),
	}
}

func NewExpense(amount string, paymentType model.PaymentType) model.TransactionCreateRequest {
	return model.TransactionCreateRequest{
		Date:        TestDate,
		Description: "groceries",
		Amount:      decimal.RequireFromString(amount),
		PaymentType: string(paymentType),
		Type:        string(model.CategoryExpense),
	}
}

func NewTransaction(userID uuid.UUID, category model.Category, paymentType model.PaymentType, amount string) *model.Transaction {
	return &model.Transaction{
		Date:        TestDate,
		Description: string(category),
		Amount:      decimal.RequireFromString(amount),
		PaymentType: paymentType,
		Type:        category,
		UserID:      userID,
	}
}

var (
	ValidEmails = []string{
		"ada@example.com",
		"first.last@example.co.uk",
		"user+tag@example.org",
	}

	InvalidEmails = []string{
		"",
		"plainaddress",
		"@missing-local.org",
		"user@",
	}
)
