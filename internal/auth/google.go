package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/expense-tracker/internal/model"
	"google.golang.org/api/idtoken"
)

var ErrGoogleTokenRejected = errors.New("google id token rejected")

// GoogleVerifier validates Google ID tokens issued for one OAuth client.
type GoogleVerifier struct {
	audience string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		audience: clientID,
		validate: idtoken.Validate,
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*model.GoogleIdentity, error) {
	payload, err := v.validate(ctx, token, v.audience)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGoogleTokenRejected, err)
	}
	return identityFromPayload(payload)
}

func identityFromPayload(p *idtoken.Payload) (*model.GoogleIdentity, error) {
	if p == nil || p.Subject == "" {
		return nil, ErrGoogleTokenRejected
	}

	claim := func(name string) string {
		s, _ := p.Claims[name].(string)
		return s
	}

	email := claim("email")
	if email == "" {
		return nil, fmt.Errorf("%w: token carries no email", ErrGoogleTokenRejected)
	}
	if verified, ok := p.Claims["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("%w: email not verified", ErrGoogleTokenRejected)
	}

	return &model.GoogleIdentity{
		Subject:   p.Subject,
		Email:     email,
		FirstName: claim("given_name"),
		LastName:  claim("family_name"),
	}, nil
}
