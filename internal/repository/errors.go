package repository

import "errors"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateEmail      = errors.New("email already in use")
	ErrDuplicateGoogleID   = errors.New("google account already linked")
)
