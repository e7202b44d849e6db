// Package notifytest provides push doubles for tests.
package notifytest

import (
	"context"
	"errors"
	"sync"

	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
)

var ErrPushDown = errors.New("push gateway unavailable")

// Pusher records pushes. With Fail set every push returns ErrPushDown after
// being recorded.
type Pusher struct {
	Fail bool

	mu   sync.Mutex
	sent []notifications.PushMessage
}

func (p *Pusher) Push(_ context.Context, msg notifications.PushMessage) error {
	p.mu.Lock()
	p.sent = append(p.sent, msg)
	p.mu.Unlock()
	if p.Fail {
		return ErrPushDown
	}
	return nil
}

func (p *Pusher) Sent() []notifications.PushMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.PushMessage(nil), p.sent...)
}

// To returns the pushes addressed to one recipient.
func (p *Pusher) To(recipient string) []notifications.PushMessage {
	var out []notifications.PushMessage
	for _, m := range p.Sent() {
		if m.Recipient == recipient {
			out = append(out, m)
		}
	}
	return out
}

var ErrCleanupDown = errors.New("notification cleanup unavailable")

// FailingCleanup delivers through the wrapped Notifier but fails every
// cleanup call.
type FailingCleanup struct {
	notifications.Notifier
}

func (FailingCleanup) DeleteForRequests(context.Context, []uint) error {
	return ErrCleanupDown
}

func (FailingCleanup) DeleteCancellationNotices(context.Context, string, string) error {
	return ErrCleanupDown
}

func (FailingCleanup) DeleteCancellationForAssignment(context.Context, string, uint) error {
	return ErrCleanupDown
}
