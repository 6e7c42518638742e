package e2e

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/expense-tracker/internal/auth"
	"github.com/nimasrn/expense-tracker/internal/handlers"
	"github.com/nimasrn/expense-tracker/internal/mailer"
	"github.com/nimasrn/expense-tracker/internal/processor"
	"github.com/nimasrn/expense-tracker/internal/queue"
	"github.com/nimasrn/expense-tracker/internal/repository"
	"github.com/nimasrn/expense-tracker/internal/services"
	xhttp "github.com/nimasrn/expense-tracker/pkg/http"
	"github.com/nimasrn/expense-tracker/pkg/pg"
	"github.com/nimasrn/expense-tracker/pkg/redis"
	"github.com/nimasrn/expense-tracker/test/fixtures"
	"github.com/nimasrn/expense-tracker/test/helpers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []*mailer.Message
}

func (m *captureMailer) Send(_ context.Context, msg *mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) Name() string { return "capture" }

func (m *captureMailer) Last() *mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

type TestEnvironment struct {
	DB      *pg.DB
	Redis   redis.RedisAdapter
	Queue   *queue.Queue
	Mail    *captureMailer
	Handler xhttp.RequestHandler
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	_, adapter := helpers.SetupTestRedis(t)

	qc := queue.QueueConfig{
		Name:              "test:mail:otp",
		ConsumerGroup:     "mailer",
		ConsumerName:      "e2e",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      20 * time.Millisecond,
		EnableDLQ:         true,
	}
	q, err := queue.NewQueue(adapter, qc)
	require.NoError(t, err)

	creds := auth.NewCredentials("e2e-secret", bcrypt.MinCost, "expense-tracker")
	ledgerService := services.NewLedgerService(repository.NewTransactionRepository(db))
	accountService := services.NewAccountService(repository.NewUserRepository(db), creds, nil, q, services.NewRedisLimiter(adapter), services.AccountConfig{
		TokenTTL:       time.Hour,
		GoogleTokenTTL: time.Hour,
		OTPTTL:         5 * time.Minute,
		ResetCooldown:  time.Minute,
	})

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	handlers.RegisterAccountRoutes(s.Router, handlers.NewAccountHandler(accountService))
	handlers.RegisterLedgerRoutes(s.Router, handlers.NewLedgerHandler(ledgerService), creds)
	handlers.RegisterHealthRoutes(s.Router, handlers.NewHealthHandler(map[string]handlers.Pinger{"postgres": db, "redis": adapter}))

	m := &captureMailer{}
	otp := processor.NewOTPMailProcessor(m, processor.NewIdempotencyService(adapter, processor.DefaultIdempotencyConfig()), processor.OTPMailConfig{
		From:    "no-reply@example.com",
		AppName: "Expense Tracker",
	})
	dispatcher := processor.NewProcessorService(adapter, otp, processor.ServiceConfig{Queue: qc, Workers: 2})
	require.NoError(t, dispatcher.Start())
	t.Cleanup(dispatcher.Stop)

	return &TestEnvironment{DB: db, Redis: adapter, Queue: q, Mail: m, Handler: s.Handler()}
}

type response struct {
	Status int
	Body   map[string]any
	Raw    []byte
}

func (env *TestEnvironment) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&fasthttp.Request{}, nil, nil)
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if token != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBody(b)
	}

	env.Handler(ctx)

	resp := response{Status: ctx.Response.StatusCode(), Raw: append([]byte(nil), ctx.Response.Body()...)}
	if ct := string(ctx.Response.Header.ContentType()); len(resp.Raw) > 0 && ct == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(resp.Raw, &resp.Body))
	}
	return resp
}

func (env *TestEnvironment) signupAndLogin(t *testing.T, email string) string {
	t.Helper()
	resp := env.do(t, "POST", "/signup", "", map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     email,
		"password":  fixtures.TestPassword,
	})
	require.Equal(t, 201, resp.Status, string(resp.Raw))

	resp = env.do(t, "POST", "/login", "", map[string]string{"email": email, "password": fixtures.TestPassword})
	require.Equal(t, 200, resp.Status, string(resp.Raw))
	return resp.Body["token"].(string)
}

func (env *TestEnvironment) post(t *testing.T, token, typ, paymentType, amount string) response {
	t.Helper()
	return env.do(t, "POST", "/postExpense", token, map[string]any{
		"date":        fixtures.TestDate,
		"description": typ + " via " + paymentType,
		"amount":      json.Number(amount),
		"paymentType": paymentType,
		"type":        typ,
	})
}

func amountOf(t *testing.T, v any) decimal.Decimal {
	t.Helper()
	switch x := v.(type) {
	case string:
		return decimal.RequireFromString(x)
	case float64:
		return decimal.NewFromFloat(x)
	}
	t.Fatalf("unexpected amount %#v", v)
	return decimal.Zero
}

func TestE2E_ChannelGuardOnCreate(t *testing.T) {
	env := setupE2EEnvironment(t)
	token := env.signupAndLogin(t, "ada@example.com")

	resp := env.post(t, token, "income", "account", "1000")
	require.Equal(t, 201, resp.Status, string(resp.Raw))

	// the cash channel has no income yet
	resp = env.post(t, token, "expense", "cash", "50")
	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, "Transaction not allowed. Expenses cannot exceed income in cash.", resp.Body["message"])
	assert.Equal(t, "-50", resp.Body["cash"])
	assert.Equal(t, "1000", resp.Body["account"])

	resp = env.post(t, token, "expense", "account", "400")
	require.Equal(t, 201, resp.Status)

	resp = env.do(t, "GET", "/getExpense", token, nil)
	require.Equal(t, 200, resp.Status)
	assert.True(t, amountOf(t, resp.Body["totalIncome"]).Equal(decimal.NewFromInt(1000)))
	assert.True(t, amountOf(t, resp.Body["totalExpenses"]).Equal(decimal.NewFromInt(400)))
	assert.True(t, amountOf(t, resp.Body["account"]).Equal(decimal.NewFromInt(600)))
	assert.True(t, amountOf(t, resp.Body["cash"]).IsZero())
	assert.Len(t, resp.Body["expenses"], 2)
}

func TestE2E_UpdateCannotOverdrawChannel(t *testing.T) {
	env := setupE2EEnvironment(t)
	token := env.signupAndLogin(t, "ada@example.com")

	require.Equal(t, 201, env.post(t, token, "income", "cash", "100").Status)
	resp := env.post(t, token, "expense", "cash", "60")
	require.Equal(t, 201, resp.Status)
	id := resp.Body["expense"].(map[string]any)["id"].(string)

	resp = env.do(t, "PUT", "/updateExpense/"+id, token, map[string]any{"amount": 150})
	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, "Update not allowed. Expenses cannot exceed total income.", resp.Body["message"])

	resp = env.do(t, "PUT", "/updateExpense/"+id, token, map[string]any{"amount": 90, "description": "rent"})
	require.Equal(t, 200, resp.Status, string(resp.Raw))
	data := resp.Body["data"].(map[string]any)
	assert.Equal(t, "rent", data["description"])
	assert.Equal(t, "cash", data["paymentType"])
	assert.True(t, amountOf(t, data["amount"]).Equal(decimal.NewFromInt(90)))

	resp = env.do(t, "PUT", "/updateExpense/"+id, token, map[string]any{"amount": 0})
	require.Equal(t, 200, resp.Status, string(resp.Raw))
	assert.True(t, amountOf(t, resp.Body["data"].(map[string]any)["amount"]).IsZero())

	resp = env.do(t, "GET", "/getExpense", token, nil)
	require.Equal(t, 200, resp.Status)
	assert.True(t, amountOf(t, resp.Body["cash"]).Equal(decimal.NewFromInt(100)))
}

func TestE2E_DeleteIncomeGuard(t *testing.T) {
	env := setupE2EEnvironment(t)
	token := env.signupAndLogin(t, "ada@example.com")

	resp := env.post(t, token, "income", "account", "300")
	require.Equal(t, 201, resp.Status)
	incomeID := resp.Body["expense"].(map[string]any)["id"].(string)

	resp = env.post(t, token, "expense", "account", "250")
	require.Equal(t, 201, resp.Status)
	expenseID := resp.Body["expense"].(map[string]any)["id"].(string)

	resp = env.do(t, "DELETE", "/deleteExpense/"+incomeID, token, nil)
	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, "0", resp.Body["remainingIncome"])
	assert.Equal(t, "250", resp.Body["totalExpenses"])

	resp = env.do(t, "DELETE", "/deleteExpense/"+expenseID, token, nil)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, expenseID, resp.Body["expenseId"])

	resp = env.do(t, "DELETE", "/deleteExpense/"+incomeID, token, nil)
	require.Equal(t, 200, resp.Status)

	resp = env.do(t, "GET", "/getExpense", token, nil)
	assert.Equal(t, "No Record Found", resp.Body["message"])
}

func TestE2E_LedgersAreIsolated(t *testing.T) {
	env := setupE2EEnvironment(t)
	ada := env.signupAndLogin(t, "ada@example.com")
	grace := env.signupAndLogin(t, "grace@example.com")

	resp := env.post(t, ada, "income", "account", "500")
	require.Equal(t, 201, resp.Status)
	id := resp.Body["expense"].(map[string]any)["id"].(string)

	// another user's income does not fund grace's expenses
	resp = env.post(t, grace, "expense", "account", "10")
	assert.Equal(t, 400, resp.Status)

	resp = env.do(t, "DELETE", "/deleteExpense/"+id, grace, nil)
	assert.Equal(t, 404, resp.Status)

	resp = env.do(t, "GET", "/getExpense", grace, nil)
	assert.Equal(t, "No Record Found", resp.Body["message"])
}

func TestE2E_AuthRequired(t *testing.T) {
	env := setupE2EEnvironment(t)

	resp := env.do(t, "GET", "/getExpense", "", nil)
	assert.Equal(t, 401, resp.Status)
	assert.Equal(t, "Token is missing. Access Denied.", resp.Body["message"])

	resp = env.do(t, "GET", "/getExpense", "not-a-jwt", nil)
	assert.Equal(t, 401, resp.Status)

	resp = env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, 200, resp.Status)
}

var otpPattern = regexp.MustCompile(`code (\d{6})`)

func TestE2E_PasswordResetFlow(t *testing.T) {
	env := setupE2EEnvironment(t)
	env.signupAndLogin(t, "ada@example.com")

	resp := env.do(t, "POST", "/forgotPassword", "", map[string]string{"email": "ADA@example.com"})
	require.Equal(t, 200, resp.Status, string(resp.Raw))

	// a second request inside the cooldown is throttled
	resp = env.do(t, "POST", "/forgotPassword", "", map[string]string{"email": "ada@example.com"})
	assert.Equal(t, 429, resp.Status)

	helpers.AssertEventually(t, 3*time.Second, func() bool { return env.Mail.Last() != nil }, "otp mail was not dispatched")
	sent := env.Mail.Last()
	assert.Equal(t, "ada@example.com", sent.To)
	match := otpPattern.FindStringSubmatch(sent.Text)
	require.Len(t, match, 2)
	code := match[1]

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	resp = env.do(t, "POST", "/resetPassword", "", map[string]string{"email": "ada@example.com", "otp": wrong, "newPassword": fixtures.TestNewPassword})
	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, "Invalid OTP", resp.Body["message"])

	resp = env.do(t, "POST", "/resetPassword", "", map[string]string{"email": "ada@example.com", "otp": code, "newPassword": fixtures.TestNewPassword})
	require.Equal(t, 200, resp.Status, string(resp.Raw))

	resp = env.do(t, "POST", "/login", "", map[string]string{"email": "ada@example.com", "password": fixtures.TestPassword})
	assert.Equal(t, 401, resp.Status)

	resp = env.do(t, "POST", "/login", "", map[string]string{"email": "ada@example.com", "password": fixtures.TestNewPassword})
	assert.Equal(t, 200, resp.Status)

	// the code is single use
	resp = env.do(t, "POST", "/resetPassword", "", map[string]string{"email": "ada@example.com", "otp": code, "newPassword": fixtures.TestPassword})
	assert.Equal(t, 400, resp.Status)
}

func TestE2E_ExportPDF(t *testing.T) {
	env := setupE2EEnvironment(t)
	token := env.signupAndLogin(t, "ada@example.com")
	require.Equal(t, 201, env.post(t, token, "income", "cash", "42.50").Status)

	resp := env.do(t, "GET", "/exportExpense?format=pdf", token, nil)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "%PDF-", string(resp.Raw[:5]))
}
