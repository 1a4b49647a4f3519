package notify

import (
	"context"
	"testing"

	codedomain "loginus/internal/code/domain"
)

type recordSender struct {
	purposes []codedomain.Purpose
}

func (r *recordSender) Send(_ context.Context, _, _ string, purpose codedomain.Purpose) error {
	r.purposes = append(r.purposes, purpose)
	return nil
}

func TestRouterSendsSMSPurposeToSMSSender(t *testing.T) {
	sms := &recordSender{}
	fallback := &recordSender{}
	r := Router{SMS: sms, Fallback: fallback}

	if err := r.Send(context.Background(), "79991234567", "123456", codedomain.PurposeTwoFactorSMS); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sms.purposes) != 1 || len(fallback.purposes) != 0 {
		t.Fatalf("sms=%d fallback=%d, want 1/0", len(sms.purposes), len(fallback.purposes))
	}
}

func TestRouterFallsBackForOtherPurposes(t *testing.T) {
	sms := &recordSender{}
	fallback := &recordSender{}
	r := Router{SMS: sms, Fallback: fallback}

	if err := r.Send(context.Background(), "u@example.com", "abc", codedomain.PurposeEmailVerification); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fallback.purposes) != 1 {
		t.Fatalf("fallback = %d, want 1", len(fallback.purposes))
	}
}

func TestRouterNilSendersAreSafe(t *testing.T) {
	r := Router{}
	if err := r.Send(context.Background(), "u", "c", codedomain.PurposeTwoFactorSMS); err != nil {
		t.Fatalf("Send with nil senders: %v", err)
	}
}
