// Package mailer is the delivery boundary: a Sender attempts delivery of
// one message and reports the outcome.
package mailer

import (
	"context"
	"errors"
	"strings"
)

// ErrSendFailed marks a delivery the provider reported as failed. It is a
// terminal outcome for the recipient row, as opposed to a transport error,
// which the dispatcher may retry.
var ErrSendFailed = errors.New("email delivery failed")

// Sender attempts delivery of a single message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ValidEmail performs a basic structural check on an address.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	if len(parts[0]) == 0 || len(parts[1]) == 0 {
		return false
	}
	return strings.Contains(parts[1], ".")
}
