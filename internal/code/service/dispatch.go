package service

import (
	"context"
	"fmt"

	"loginus/internal/code/domain"
	"loginus/internal/notify"
)

// Dispatcher issues codes and hands them to a delivery channel in one step.
// The plaintext value never leaves the process except through the sender.
type Dispatcher struct {
	manager *Manager
	sender  notify.Sender
}

// NewDispatcher returns a Dispatcher over the manager and sender.
func NewDispatcher(manager *Manager, sender notify.Sender) *Dispatcher {
	return &Dispatcher{manager: manager, sender: sender}
}

// IssueAndSend issues a code for purpose+subject and delivers it to
// destination (phone number or email address, depending on the channel).
// Delivery failure expires the code so an undeliverable value can never be
// submitted later.
func (d *Dispatcher) IssueAndSend(ctx context.Context, purpose domain.Purpose, subject, destination string, metadata map[string]string) (*Issued, error) {
	issued, err := d.manager.Issue(ctx, purpose, subject, 0, metadata)
	if err != nil {
		return nil, err
	}
	if err := d.sender.Send(ctx, destination, issued.Value, purpose); err != nil {
		if _, terr := d.manager.repo.Transition(ctx, issued.ID, domain.StatusPending, domain.StatusExpired); terr != nil {
			return nil, fmt.Errorf("delivery failed (%v) and code not revoked: %w", err, terr)
		}
		return nil, fmt.Errorf("delivery failed: %w", err)
	}
	issued.Value = ""
	return issued, nil
}
