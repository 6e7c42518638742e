package handlers

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/ledger"
	"github.com/nimasrn/expense-tracker/internal/services"
	xhttp "github.com/nimasrn/expense-tracker/pkg/http"
	"github.com/nimasrn/expense-tracker/pkg/logger"
)

const msgInternal = "Internal Server Error."

type messageResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Errors string `json:"errors"`
}

type guardResponse struct {
	Message         string  `json:"message"`
	Cash            string  `json:"cash"`
	Account         string  `json:"account"`
	RemainingIncome *string `json:"remainingIncome,omitempty"`
	TotalExpenses   *string `json:"totalExpenses,omitempty"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeMessage(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, messageResponse{Message: msg})
}

func writeValidation(ctx *xhttp.RequestCtx, msg string) {
	writeJSON(ctx, xhttp.StatusBadRequest, validationResponse{Errors: msg})
}

// writeError maps a service error onto its status code. Anything unclassified
// is logged and answered with a generic 500.
func writeError(ctx *xhttp.RequestCtx, err error) {
	var gv *ledger.GuardViolation
	if errors.As(err, &gv) {
		resp := guardResponse{
			Message: gv.Error(),
			Cash:    gv.CashBalance.String(),
			Account: gv.AccountBalance.String(),
		}
		if gv.Operation == ledger.OperationDelete {
			remaining, expenses := gv.RemainingIncome.String(), gv.TotalExpenses.String()
			resp.RemainingIncome = &remaining
			resp.TotalExpenses = &expenses
		}
		writeJSON(ctx, xhttp.StatusBadRequest, resp)
		return
	}

	var se *services.Error
	if errors.As(err, &se) {
		writeMessage(ctx, statusOf(se.Kind), se.Message)
		return
	}

	logger.Error("request failed", "path", string(ctx.Path()), "method", string(ctx.Method()), "error", err)
	writeMessage(ctx, xhttp.StatusInternalServerError, msgInternal)
}

func statusOf(kind error) int {
	switch {
	case errors.Is(kind, services.ErrValidation):
		return xhttp.StatusBadRequest
	case errors.Is(kind, services.ErrNotFound):
		return xhttp.StatusNotFound
	case errors.Is(kind, services.ErrConflict):
		return xhttp.StatusConflict
	case errors.Is(kind, services.ErrUnauthorized):
		return xhttp.StatusUnauthorized
	case errors.Is(kind, services.ErrTooManyRequests):
		return xhttp.StatusTooManyRequests
	default:
		return xhttp.StatusInternalServerError
	}
}

func pathID(ctx *xhttp.RequestCtx, name string) (uuid.UUID, bool) {
	raw, _ := ctx.UserValue(name).(string)
	id, err := uuid.Parse(raw)
	return id, err == nil
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
