package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-tracker/internal/auth"
	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/nimasrn/expense-tracker/internal/repository"
	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/nimasrn/expense-tracker/pkg/prom"
)

type UserRepository interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, user *model.User) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error
	SetOTP(ctx context.Context, id uuid.UUID, otp model.OTP) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type Credentials interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, digest string) bool
	IssueToken(userID uuid.UUID, ttl time.Duration) (string, error)
}

type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*model.GoogleIdentity, error)
}

// MailPublisher enqueues mail jobs for the dispatcher.
type MailPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// Limiter admits at most one call per key and window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

type AccountConfig struct {
	TokenTTL       time.Duration
	GoogleTokenTTL time.Duration
	OTPTTL         time.Duration
	ResetCooldown  time.Duration
}

type AccountService struct {
	users     UserRepository
	creds     Credentials
	google    GoogleVerifier
	mail      MailPublisher
	limiter   Limiter
	cfg       AccountConfig
	now       func() time.Time
	generator func() (string, error)
}

// NewAccountService wires the account flows. google and limiter may be nil:
// without a verifier Google logins are trusted as posted, without a limiter
// reset requests are not throttled.
func NewAccountService(users UserRepository, creds Credentials, google GoogleVerifier, mail MailPublisher, limiter Limiter, cfg AccountConfig) *AccountService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	return &AccountService{
		users:     users,
		creds:     creds,
		google:    google,
		mail:      mail,
		limiter:   limiter,
		cfg:       cfg,
		now:       time.Now,
		generator: auth.GenerateOTP,
	}
}

func (s *AccountService) Signup(ctx context.Context, req model.SignupRequest) (*model.User, error) {
	req = req.Trimmed()
	if req.Email == "" || req.Password == "" || req.FirstName == "" {
		return nil, newError(ErrValidation, "First name, email and password are required")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, newError(ErrConflict, "Email already in use")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	digest, err := s.creds.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: digest,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, newError(ErrConflict, "Email already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	prom.IncAccountEvent("signup")
	return user, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.users.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			prom.IncAccountEvent("login_failed")
			return nil, "", newError(ErrUnauthorized, "Invalid email or password")
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if !s.creds.Compare(password, user.PasswordHash) {
		prom.IncAccountEvent("login_failed")
		return nil, "", newError(ErrUnauthorized, "Invalid email or password")
	}

	token, err := s.creds.IssueToken(user.ID, s.cfg.TokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	prom.IncAccountEvent("login")
	return user, token, nil
}

// GoogleLogin signs in a Google identity, creating the user on first sight
// and linking the Google id onto an existing password account.
func (s *AccountService) GoogleLogin(ctx context.Context, req model.GoogleLoginRequest) (*model.User, string, error) {
	if req.IDToken != "" && s.google != nil {
		identity, err := s.google.Verify(ctx, req.IDToken)
		if err != nil {
			logger.Warn("google token rejected", "error", err)
			return nil, "", newError(ErrUnauthorized, "Invalid Google token")
		}
		req.Email = identity.Email
		req.GoogleID = identity.Subject
		if req.FirstName == "" {
			req.FirstName = identity.FirstName
		}
		if req.LastName == "" {
			req.LastName = identity.LastName
		}
	}

	req.Email = model.NormalizeEmail(req.Email)
	req.GoogleID = strings.TrimSpace(req.GoogleID)
	if req.Email == "" || req.GoogleID == "" {
		return nil, "", newError(ErrValidation, "Email and googleId are required")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		user, err = s.createGoogleUser(ctx, req)
		if err != nil {
			return nil, "", err
		}
	case err != nil:
		return nil, "", fmt.Errorf("find user: %w", err)
	case user.GoogleID == nil:
		if err := s.users.LinkGoogleID(ctx, user.ID, req.GoogleID); err != nil {
			if errors.Is(err, repository.ErrDuplicateGoogleID) {
				return nil, "", newError(ErrConflict, "Google account is linked to another user")
			}
			return nil, "", fmt.Errorf("link google id: %w", err)
		}
		user.GoogleID = &req.GoogleID
	case *user.GoogleID != req.GoogleID:
		return nil, "", newError(ErrUnauthorized, "Google account does not match this email")
	}

	token, err := s.creds.IssueToken(user.ID, s.cfg.GoogleTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	prom.IncAccountEvent("google_login")
	return user, token, nil
}

func (s *AccountService) createGoogleUser(ctx context.Context, req model.GoogleLoginRequest) (*model.User, error) {
	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" {
		firstName, _, _ = strings.Cut(req.Email, "@")
	}
	googleID := req.GoogleID

	user, err := s.users.Create(ctx, &model.User{
		FirstName: firstName,
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		GoogleID:  &googleID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, newError(ErrConflict, "Email already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// RequestPasswordReset stores a fresh OTP digest and enqueues the mail in
// one transaction; a failed enqueue leaves the previous OTP untouched.
// The stream publish is not part of the database commit: if the commit fails
// after the publish, a code that was never stored can still be mailed and
// will be refused by ResetPassword. Repeating the request replaces the code.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return newError(ErrValidation, "Email is required")
	}

	if s.limiter != nil && s.cfg.ResetCooldown > 0 {
		ok, err := s.limiter.Allow(ctx, "otp:"+email, s.cfg.ResetCooldown)
		if err != nil {
			logger.Warn("reset limiter unavailable", "error", err)
		} else if !ok {
			return newError(ErrTooManyRequests, "Please wait before requesting another code")
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(ErrNotFound, "User not found")
		}
		return fmt.Errorf("find user: %w", err)
	}

	code, err := s.generator()
	if err != nil {
		return err
	}
	digest, err := s.creds.Hash(code)
	if err != nil {
		return err
	}

	now := s.now()
	otp := model.OTP{CodeHash: digest, ExpiresAt: now.Add(s.cfg.OTPTTL)}
	job := model.OTPMail{
		ID:            uuid.New(),
		Kind:          model.MailKindPasswordResetOTP,
		To:            user.Email,
		FirstName:     user.FirstName,
		OTP:           code,
		ExpireMinutes: int(s.cfg.OTPTTL / time.Minute),
		RequestedAt:   now,
	}

	err = s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.SetOTP(ctx, user.ID, otp); err != nil {
			return fmt.Errorf("store otp: %w", err)
		}
		if _, err := s.mail.PublishJSON(ctx, job, map[string]string{"kind": job.Kind, "job_id": job.ID.String()}); err != nil {
			return fmt.Errorf("enqueue otp mail: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	prom.IncAccountEvent("reset_requested")
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if strings.TrimSpace(code) == "" || newPassword == "" {
		return newError(ErrValidation, "Email, otp and new password are required")
	}

	user, err := s.users.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(ErrNotFound, "User not found")
		}
		return fmt.Errorf("find user: %w", err)
	}

	if user.ResetOTP == nil {
		return newError(ErrValidation, "No reset code was requested")
	}
	if user.ResetOTP.Expired(s.now()) {
		return newError(ErrValidation, "OTP has expired")
	}
	if !s.creds.Compare(strings.TrimSpace(code), user.ResetOTP.CodeHash) {
		return newError(ErrValidation, "Invalid OTP")
	}

	digest, err := s.creds.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, user.ID, digest); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	prom.IncAccountEvent("reset_completed")
	return nil
}
