// Package email delivers transactional mail for the identity service:
// verification codes and account notices.
package email

import (
	"context"
	"fmt"
)

// Sender delivers a single plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SendVerificationCode formats and sends an email-verification code.
// serviceName is stamped into the subject and body so shared SMTP accounts
// stay attributable.
func SendVerificationCode(ctx context.Context, s Sender, to, code, serviceName string, ttlHours int) error {
	subject := fmt.Sprintf("%s: verify your email", serviceName)
	body := fmt.Sprintf(
		"Your %s verification code is:\n\n  %s\n\nThe code expires in %d hour(s). If you did not sign up, ignore this email.\n",
		serviceName, code, ttlHours,
	)
	return s.Send(ctx, to, subject, body)
}
