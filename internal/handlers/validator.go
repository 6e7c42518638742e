package handlers

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const passwordSpecials = "@$!%*?&"

// messages is keyed by "<json field>.<tag>".
var messages = map[string]string{
	"firstName.required":        "First name is required",
	"firstName.alpha":           "First name must contain only alphabetic characters",
	"lastName.required":         "Last name is required",
	"lastName.alpha":            "Last name must contain only alphabetic characters",
	"email.required":            "Email is required",
	"email.email":               "Please enter a valid email address",
	"password.required":         "Password is required",
	"password.min":              "Password must be at least 8 characters",
	"password.strong":           "Password must contain at least one uppercase letter, one number, and one special character",
	"newPassword.required":      "Password is required",
	"newPassword.min":           "Password must be at least 8 characters",
	"newPassword.strong":        "Password must contain at least one uppercase letter, one number, and one special character",
	"otp.required":              "OTP is required",
	"otp.len":                   "OTP must be 6 digits",
	"otp.numeric":               "OTP must be 6 digits",
	"date.required":             "Date is required",
	"date.min":                  "Date is required",
	"description.required":      "Description is required",
	"description.min":           "Description is required",
	"amount.required":           "Price is required",
	"amount.gt":                 "Price must be greater than 0",
	"amount.gte":                "Price cannot be negative",
	"type.required":             "Type is required",
	"googleId.required_without": "googleId or idToken is required",
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		_ = v.RegisterValidation("strong", func(fl validator.FieldLevel) bool {
			return strongPassword(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// validateRequest returns the message of the first failed rule, or "".
func validateRequest(req any) string {
	err := getValidator().Struct(req)
	if err == nil {
		return ""
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "Invalid request"
	}
	fe := errs[0]
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fe.Field() + " is invalid"
}

// strongPassword requires 8+ characters drawn from letters, digits and
// @$!%*?&, with at least one of each class.
func strongPassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && unicode.IsLower(r):
			lower = true
		case r < unicode.MaxASCII && unicode.IsUpper(r):
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}
