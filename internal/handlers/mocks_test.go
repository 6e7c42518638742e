package handlers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/auth"
	"github.com/nimasrn/expense-tracker/internal/model"
	xhttp "github.com/nimasrn/expense-tracker/pkg/http"
	"github.com/stretchr/testify/mock"
	"github.com/valyala/fasthttp"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Create(ctx context.Context, userID uuid.UUID, req model.TransactionCreateRequest) (*model.Transaction, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockLedgerService) Update(ctx context.Context, userID, id uuid.UUID, patch model.TransactionPatch) (*model.Transaction, error) {
	args := m.Called(ctx, userID, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockLedgerService) Delete(ctx context.Context, userID, id uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockLedgerService) Summary(ctx context.Context, userID uuid.UUID) (*model.Summary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Summary), args.Error(1)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Signup(ctx context.Context, req model.SignupRequest) (*model.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockAccountService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.User), args.String(1), args.Error(2)
}

func (m *MockAccountService) GoogleLogin(ctx context.Context, req model.GoogleLoginRequest) (*model.User, string, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.User), args.String(1), args.Error(2)
}

func (m *MockAccountService) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAccountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return m.Called(ctx, email, code, newPassword).Error(0)
}

// staticVerifier accepts exactly one token.
type staticVerifier struct {
	token  string
	userID uuid.UUID
}

func (v staticVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if token != v.token {
		return nil, errors.New("bad token")
	}
	return &auth.Claims{UserID: v.userID}, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&fasthttp.Request{}, nil, nil)
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

// withUser marks ctx as authenticated, as Authenticate would.
func withUser(ctx *xhttp.RequestCtx, id uuid.UUID) *xhttp.RequestCtx {
	ctx.SetUserValue(userIDKey, id)
	return ctx
}
