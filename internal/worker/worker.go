// Package worker turns checkout events into confirmation emails. It runs
// as its own process so a slow or flaky mail relay never adds latency to
// the checkout request path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vinabook/bookshop/internal/domain"
	"github.com/vinabook/bookshop/internal/email"
)

const (
	sendAttempts   = 3
	sendRetryDelay = 2 * time.Second
)

type Notification struct {
	notifier   email.Notifier
	logger     *slog.Logger
	retryDelay time.Duration
}

func NewNotification(notifier email.Notifier, logger *slog.Logger) *Notification {
	return &Notification{
		notifier:   notifier,
		logger:     logger,
		retryDelay: sendRetryDelay,
	}
}

// Handle processes one checkout event. Delivery is best-effort: transient
// relay failures are retried a few times, then the event is dropped after
// logging. Nothing here returns an error, because a message that keeps
// failing would otherwise wedge the partition.
func (n *Notification) Handle(ctx context.Context, payload []byte) error {
	var event domain.CheckoutCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		n.logger.Error("dropping undecodable checkout event", "error", err)
		return nil
	}

	msg, err := email.RenderConfirmation(event.Username, event.Lines)
	if err != nil {
		n.logger.Error("dropping checkout event that failed to render", "user_id", event.UserID, "error", err)
		return nil
	}

	var sendErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		sendErr = n.notifier.Send(ctx, event.Email, msg.Subject, msg.Text, msg.HTML)
		if sendErr == nil {
			n.logger.Info("confirmation email sent", "user_id", event.UserID, "orders", len(event.Lines))
			return nil
		}

		n.logger.Warn("confirmation email attempt failed",
			"user_id", event.UserID, "attempt", attempt, "error", sendErr)

		if attempt < sendAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.retryDelay):
			}
		}
	}

	n.logger.Error("giving up on confirmation email", "user_id", event.UserID, "error", sendErr)
	return nil
}
