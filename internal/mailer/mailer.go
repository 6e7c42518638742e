package mailer

import (
	"context"
	"errors"
)

var (
	ErrNoAvailableRelays = errors.New("no available mail relays")
	ErrRejected          = errors.New("mail rejected by relay")
)

// Message is a rendered email ready for delivery.
type Message struct {
	ID      string `json:"message_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

// Mailer delivers a single message. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}
