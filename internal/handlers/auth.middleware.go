package handlers

import (
	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/auth"
	xhttp "github.com/nimasrn/expense-tracker/pkg/http"
)

const userIDKey = "auth.user_id"

type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// token's user id on the request.
func Authenticate(v TokenVerifier, next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		token := xhttp.BearerToken(ctx)
		if token == "" {
			writeMessage(ctx, xhttp.StatusUnauthorized, "Token is missing. Access Denied.")
			return
		}

		claims, err := v.VerifyToken(token)
		if err != nil || claims.UserID == uuid.Nil {
			writeMessage(ctx, xhttp.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx.SetUserValue(userIDKey, claims.UserID)
		next(ctx)
	}
}

func userID(ctx *xhttp.RequestCtx) uuid.UUID {
	id, _ := ctx.UserValue(userIDKey).(uuid.UUID)
	return id
}
