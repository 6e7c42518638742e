package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/ledger"
	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/nimasrn/expense-tracker/internal/repository"
	"github.com/nimasrn/expense-tracker/pkg/prom"
)

type TransactionRepository interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	LockLedger(ctx context.Context, userID uuid.UUID) error
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error)
	FindByUserExcluding(ctx context.Context, userID, excludeID uuid.UUID) ([]*model.Transaction, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*model.Transaction, error)
	Update(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	DeleteByID(ctx context.Context, id, userID uuid.UUID) error
}

// LedgerService applies the balance guard to every mutation of a user's
// transactions. Each mutation reads, checks and writes inside one database
// transaction holding the user's ledger lock.
type LedgerService struct {
	repo TransactionRepository
}

func NewLedgerService(repo TransactionRepository) *LedgerService {
	return &LedgerService{repo: repo}
}

func (s *LedgerService) Create(ctx context.Context, userID uuid.UUID, req model.TransactionCreateRequest) (*model.Transaction, error) {
	candidate, err := candidateFromRequest(userID, req)
	if err != nil {
		return nil, err
	}

	var created *model.Transaction
	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, userID); err != nil {
			return err
		}

		existing, err := s.repo.FindByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}

		if err := ledger.CheckCreate(ledger.ComputeAggregates(existing), candidate); err != nil {
			return err
		}

		created, err = s.repo.Create(ctx, candidate)
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.observe(ledger.OperationCreate, err)
	}

	prom.IncLedgerMutation(ledger.OperationCreate)
	return created, nil
}

func (s *LedgerService) Update(ctx context.Context, userID, id uuid.UUID, patch model.TransactionPatch) (*model.Transaction, error) {
	var updated *model.Transaction
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, userID); err != nil {
			return err
		}

		current, err := s.find(ctx, id, userID)
		if err != nil {
			return err
		}

		effective, err := applyPatch(current, patch)
		if err != nil {
			return err
		}

		others, err := s.repo.FindByUserExcluding(ctx, userID, id)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}

		if err := ledger.CheckUpdate(ledger.ComputeAggregates(others), effective); err != nil {
			return err
		}

		updated, err = s.repo.Update(ctx, effective)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.observe(ledger.OperationUpdate, err)
	}

	prom.IncLedgerMutation(ledger.OperationUpdate)
	return updated, nil
}

// Delete removes a transaction. Deleting income is refused when the
// remaining income would no longer cover the user's total expenses.
func (s *LedgerService) Delete(ctx context.Context, userID, id uuid.UUID) (uuid.UUID, error) {
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, userID); err != nil {
			return err
		}

		current, err := s.find(ctx, id, userID)
		if err != nil {
			return err
		}

		if current.Type == model.CategoryIncome {
			all, err := s.repo.FindByUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}
			if err := ledger.CheckDelete(ledger.ComputeAggregates(all), current); err != nil {
				return err
			}
		}

		if err := s.repo.DeleteByID(ctx, id, userID); err != nil {
			if errors.Is(err, repository.ErrTransactionNotFound) {
				return newError(ErrNotFound, "Expense not found")
			}
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, s.observe(ledger.OperationDelete, err)
	}

	prom.IncLedgerMutation(ledger.OperationDelete)
	return id, nil
}

func (s *LedgerService) Summary(ctx context.Context, userID uuid.UUID) (*model.Summary, error) {
	txs, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return ledger.Summarize(txs), nil
}

func (s *LedgerService) lock(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.LockLedger(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(ErrUnauthorized, "User no longer exists")
		}
		return fmt.Errorf("lock ledger: %w", err)
	}
	return nil
}

func (s *LedgerService) find(ctx context.Context, id, userID uuid.UUID) (*model.Transaction, error) {
	t, err := s.repo.FindByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, newError(ErrNotFound, "Expense not found")
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}

func (s *LedgerService) observe(operation string, err error) error {
	if errors.Is(err, ledger.ErrGuardViolation) {
		prom.IncGuardRejection(operation)
	}
	return err
}

func candidateFromRequest(userID uuid.UUID, req model.TransactionCreateRequest) (*model.Transaction, error) {
	req = req.Trimmed()

	if req.Date == "" {
		return nil, newError(ErrValidation, "Date is required")
	}
	if req.Description == "" {
		return nil, newError(ErrValidation, "Description is required")
	}
	if !req.Amount.IsPositive() {
		return nil, newError(ErrValidation, "Amount must be greater than 0")
	}

	category, ok := ledger.ParseCategory(req.Type)
	if !ok {
		return nil, newError(ErrValidation, "Invalid type")
	}
	paymentType, ok := ledger.ParsePaymentType(req.PaymentType)
	if !ok {
		return nil, newError(ErrValidation, "Invalid payment type")
	}

	return &model.Transaction{
		Date:        req.Date,
		Description: req.Description,
		Amount:      req.Amount,
		PaymentType: paymentType,
		Type:        category,
		UserID:      userID,
	}, nil
}

// applyPatch returns a copy of current with the patch applied and validated.
func applyPatch(current *model.Transaction, patch model.TransactionPatch) (*model.Transaction, error) {
	next := *current
	next.PaymentType = ledger.NormalizePaymentType(string(current.PaymentType))

	if patch.Date != nil {
		v := strings.TrimSpace(*patch.Date)
		if v == "" {
			return nil, newError(ErrValidation, "Date cannot be empty")
		}
		next.Date = v
	}
	if patch.Description != nil {
		v := strings.TrimSpace(*patch.Description)
		if v == "" {
			return nil, newError(ErrValidation, "Description cannot be empty")
		}
		next.Description = v
	}
	if patch.Type != nil {
		c, ok := ledger.ParseCategory(*patch.Type)
		if !ok {
			return nil, newError(ErrValidation, "Invalid type")
		}
		next.Type = c
	}
	if patch.Amount != nil {
		if patch.Amount.IsNegative() {
			return nil, newError(ErrValidation, "Amount must be a positive number")
		}
		next.Amount = *patch.Amount
	}
	if patch.PaymentType != nil {
		pt, ok := ledger.ParsePaymentType(*patch.PaymentType)
		if !ok {
			return nil, newError(ErrValidation, "Invalid payment type")
		}
		next.PaymentType = pt
	}

	if _, ok := ledger.ParseCategory(string(next.Type)); !ok {
		return nil, newError(ErrValidation, "Invalid type")
	}
	return &next, nil
}
