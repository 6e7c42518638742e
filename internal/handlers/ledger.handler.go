package handlers

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/export"
	"github.com/nimasrn/expense-tracker/internal/model"
	xhttp "github.com/nimasrn/expense-tracker/pkg/http"
	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/shopspring/decimal"
)

type LedgerService interface {
	Create(ctx context.Context, userID uuid.UUID, req model.TransactionCreateRequest) (*model.Transaction, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch model.TransactionPatch) (*model.Transaction, error)
	Delete(ctx context.Context, userID, id uuid.UUID) (uuid.UUID, error)
	Summary(ctx context.Context, userID uuid.UUID) (*model.Summary, error)
}

type LedgerHandler struct {
	svc LedgerService
}

func RegisterLedgerRoutes(r xhttp.Routes, h *LedgerHandler, v TokenVerifier) {
	r.POST("/postExpense", Authenticate(v, h.CreateExpense))
	r.GET("/getExpense", Authenticate(v, h.GetExpense))
	r.PUT("/updateExpense/{id}", Authenticate(v, h.UpdateExpense))
	r.DELETE("/deleteExpense/{id}", Authenticate(v, h.DeleteExpense))
	r.GET("/exportExpense", Authenticate(v, h.ExportExpense))
}

func NewLedgerHandler(svc LedgerService) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

type createExpenseRequest struct {
	Date        string           `json:"date" validate:"required"`
	Description string           `json:"description" validate:"required"`
	Amount      *decimal.Decimal `json:"amount" validate:"required,gt=0"`
	PaymentType string           `json:"paymentType"`
	Type        string           `json:"type" validate:"required"`
}

type updateExpenseRequest struct {
	Date        *string          `json:"date" validate:"omitempty,min=1"`
	Description *string          `json:"description" validate:"omitempty,min=1"`
	Amount      *decimal.Decimal `json:"amount" validate:"omitempty,gte=0"`
	PaymentType *string          `json:"paymentType"`
	Type        *string          `json:"type"`
}

type expenseResponse struct {
	Message string             `json:"message"`
	Expense *model.Transaction `json:"expense"`
}

type updateResponse struct {
	Message string             `json:"message"`
	Data    *model.Transaction `json:"data"`
}

type deleteResponse struct {
	Message   string    `json:"message"`
	ExpenseID uuid.UUID `json:"expenseId"`
}

func (h *LedgerHandler) CreateExpense(ctx *xhttp.RequestCtx) {
	var req createExpenseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeValidation(ctx, "Invalid JSON body")
		return
	}
	if msg := validateRequest(req); msg != "" {
		writeValidation(ctx, msg)
		return
	}

	created, err := h.svc.Create(ctx, userID(ctx), model.TransactionCreateRequest{
		Date:        req.Date,
		Description: req.Description,
		Amount:      *req.Amount,
		PaymentType: req.PaymentType,
		Type:        req.Type,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	writeJSON(ctx, xhttp.StatusCreated, expenseResponse{Message: "Transaction added successfully", Expense: created})
}

func (h *LedgerHandler) GetExpense(ctx *xhttp.RequestCtx) {
	summary, err := h.svc.Summary(ctx, userID(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, summary)
}

func (h *LedgerHandler) UpdateExpense(ctx *xhttp.RequestCtx) {
	id, ok := pathID(ctx, "id")
	if !ok {
		writeMessage(ctx, xhttp.StatusNotFound, "Expense not found")
		return
	}

	var req updateExpenseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeValidation(ctx, "Invalid JSON body")
		return
	}
	if msg := validateRequest(req); msg != "" {
		writeValidation(ctx, msg)
		return
	}

	updated, err := h.svc.Update(ctx, userID(ctx), id, model.TransactionPatch{
		Date:        req.Date,
		Description: req.Description,
		Amount:      req.Amount,
		PaymentType: req.PaymentType,
		Type:        req.Type,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	writeJSON(ctx, xhttp.StatusOK, updateResponse{Message: "Updated successfully", Data: updated})
}

func (h *LedgerHandler) DeleteExpense(ctx *xhttp.RequestCtx) {
	id, ok := pathID(ctx, "id")
	if !ok {
		writeMessage(ctx, xhttp.StatusNotFound, "Expense not found")
		return
	}

	deleted, err := h.svc.Delete(ctx, userID(ctx), id)
	if err != nil {
		writeError(ctx, err)
		return
	}

	writeJSON(ctx, xhttp.StatusOK, deleteResponse{Message: "Transaction deleted successfully", ExpenseID: deleted})
}

// ExportExpense streams the caller's ledger as xlsx (default) or pdf.
func (h *LedgerHandler) ExportExpense(ctx *xhttp.RequestCtx) {
	format, err := export.ParseFormat(query(ctx, "format"))
	if err != nil {
		writeMessage(ctx, xhttp.StatusBadRequest, "Unsupported export format")
		return
	}

	summary, err := h.svc.Summary(ctx, userID(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, summary); err != nil {
		logger.Error("export failed", "format", format, "error", err)
		writeMessage(ctx, xhttp.StatusInternalServerError, msgInternal)
		return
	}

	ctx.Response.Header.SetContentType(format.ContentType())
	ctx.Response.Header.Set("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	ctx.SetStatusCode(xhttp.StatusOK)
	ctx.SetBody(buf.Bytes())
}
