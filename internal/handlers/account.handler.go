package handlers

import (
	"context"

	"github.com/nimasrn/expense-tracker/internal/model"
	xhttp "github.com/nimasrn/expense-tracker/pkg/http"
)

type AccountService interface {
	Signup(ctx context.Context, req model.SignupRequest) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	GoogleLogin(ctx context.Context, req model.GoogleLoginRequest) (*model.User, string, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

type AccountHandler struct {
	svc AccountService
}

func RegisterAccountRoutes(r xhttp.Routes, h *AccountHandler) {
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.POST("/googleLogin", h.GoogleLogin)
	r.POST("/forgotPassword", h.ForgotPassword)
	r.POST("/resetPassword", h.ResetPassword)
}

func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

type signupRequest struct {
	FirstName string `json:"firstName" validate:"required,alpha"`
	LastName  string `json:"lastName" validate:"required,alpha"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,strong"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type googleLoginRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"omitempty,email"`
	GoogleID  string `json:"googleId" validate:"required_without=IDToken"`
	IDToken   string `json:"idToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8,strong"`
}

type userResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

type loginResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
}

func (h *AccountHandler) Signup(ctx *xhttp.RequestCtx) {
	var req signupRequest
	if !decode(ctx, &req) {
		return
	}

	user, err := h.svc.Signup(ctx, model.SignupRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	writeJSON(ctx, xhttp.StatusCreated, userResponse{Message: "Account created successfully", User: user})
}

func (h *AccountHandler) Login(ctx *xhttp.RequestCtx) {
	var req loginRequest
	if !decode(ctx, &req) {
		return
	}

	user, token, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeError(ctx, err)
		return
	}

	writeJSON(ctx, xhttp.StatusOK, loginResponse{Message: "Login successful", User: user, Token: token})
}

func (h *AccountHandler) GoogleLogin(ctx *xhttp.RequestCtx) {
	var req googleLoginRequest
	if !decode(ctx, &req) {
		return
	}

	user, token, err := h.svc.GoogleLogin(ctx, model.GoogleLoginRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		GoogleID:  req.GoogleID,
		IDToken:   req.IDToken,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	writeJSON(ctx, xhttp.StatusOK, loginResponse{Message: "Login successful", User: user, Token: token})
}

func (h *AccountHandler) ForgotPassword(ctx *xhttp.RequestCtx) {
	var req forgotPasswordRequest
	if !decode(ctx, &req) {
		return
	}

	if err := h.svc.RequestPasswordReset(ctx, req.Email); err != nil {
		writeError(ctx, err)
		return
	}

	writeMessage(ctx, xhttp.StatusOK, "Password reset OTP sent successfully.")
}

func (h *AccountHandler) ResetPassword(ctx *xhttp.RequestCtx) {
	var req resetPasswordRequest
	if !decode(ctx, &req) {
		return
	}

	if err := h.svc.ResetPassword(ctx, req.Email, req.OTP, req.NewPassword); err != nil {
		writeError(ctx, err)
		return
	}

	writeMessage(ctx, xhttp.StatusOK, "Password reset successful")
}

// decode reads and validates the body, answering 400 itself on failure.
func decode(ctx *xhttp.RequestCtx, dst any) bool {
	if err := readJSON(ctx, dst); err != nil {
		writeValidation(ctx, "Invalid JSON body")
		return false
	}
	if msg := validateRequest(dst); msg != "" {
		writeValidation(ctx, msg)
		return false
	}
	return true
}
