package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinabook/bookshop/internal/domain"
)

type fakeNotifier struct {
	sent     []sentMessage
	failures int
	attempts int
}

type sentMessage struct {
	to      string
	subject string
	text    string
}

func (f *fakeNotifier) Send(_ context.Context, to, subject, text, _ string) error {
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("relay down")
	}
	f.sent = append(f.sent, sentMessage{to: to, subject: subject, text: text})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestNotification(notifier *fakeNotifier) *Notification {
	n := NewNotification(notifier, testLogger())
	n.retryDelay = time.Millisecond
	return n
}

func eventPayload(t *testing.T) []byte {
	t.Helper()

	payload, err := json.Marshal(domain.CheckoutCompletedEvent{
		UserID:   "u1",
		Email:    "alice@example.com",
		Username: "alice",
		Lines: []domain.CheckoutLine{
			{OrderID: "o1", BookID: "b1", BookName: "Dune", Quantity: 2, Price: 15.0},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestHandleSendsConfirmation(t *testing.T) {
	notifier := &fakeNotifier{}
	n := newTestNotification(notifier)

	require.NoError(t, n.Handle(context.Background(), eventPayload(t)))

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "alice@example.com", notifier.sent[0].to)
	assert.Equal(t, "Order confirmation", notifier.sent[0].subject)
	assert.Contains(t, notifier.sent[0].text, "Dune x 2")
}

func TestHandleDropsUndecodableEvent(t *testing.T) {
	notifier := &fakeNotifier{}
	n := newTestNotification(notifier)

	// Malformed payloads must not fail the consumer.
	assert.NoError(t, n.Handle(context.Background(), []byte("{not json")))
	assert.Empty(t, notifier.sent)
}

func TestHandleRetriesTransientFailure(t *testing.T) {
	notifier := &fakeNotifier{failures: 1}
	n := newTestNotification(notifier)

	require.NoError(t, n.Handle(context.Background(), eventPayload(t)))

	assert.Equal(t, 2, notifier.attempts)
	require.Len(t, notifier.sent, 1)
}

func TestHandleGivesUpAfterRetries(t *testing.T) {
	notifier := &fakeNotifier{failures: sendAttempts + 1}
	n := newTestNotification(notifier)

	// The event is dropped after the retry budget; the consumer keeps going.
	assert.NoError(t, n.Handle(context.Background(), eventPayload(t)))
	assert.Equal(t, sendAttempts, notifier.attempts)
	assert.Empty(t, notifier.sent)
}

func TestHandleStopsRetryingOnCancel(t *testing.T) {
	notifier := &fakeNotifier{failures: sendAttempts + 1}
	n := newTestNotification(notifier)
	n.retryDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Handle(ctx, eventPayload(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, notifier.attempts)
}
