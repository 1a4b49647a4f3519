// Package notify delivers issued codes to subjects. Transport (email, SMS,
// Telegram) is the sender's concern; the authorization core only hands over
// the subject, the plaintext code, and its purpose.
package notify

import (
	"context"
	"log"

	codedomain "loginus/internal/code/domain"
)

// Sender delivers one code to its subject. Implementations must not log or
// persist the plaintext code beyond what delivery requires.
type Sender interface {
	Send(ctx context.Context, subject, code string, purpose codedomain.Purpose) error
}

// LogSender prints that a delivery happened without the code value. Used in
// development environments where no real channel is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, subject, _ string, purpose codedomain.Purpose) error {
	log.Printf("notify: would deliver %s code to %s", purpose, subject)
	return nil
}

// Router picks a sender by purpose: SMS purposes go to the SMS sender,
// everything else to the fallback.
type Router struct {
	SMS      Sender
	Fallback Sender
}

func (r Router) Send(ctx context.Context, subject, code string, purpose codedomain.Purpose) error {
	if purpose == codedomain.PurposeTwoFactorSMS && r.SMS != nil {
		return r.SMS.Send(ctx, subject, code, purpose)
	}
	if r.Fallback == nil {
		return nil
	}
	return r.Fallback.Send(ctx, subject, code, purpose)
}
