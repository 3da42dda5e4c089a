// Package email renders and delivers customer notifications. Delivery is
// always best-effort from the caller's point of view: checkout and status
// updates log failures and move on.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Notifier sends one message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// RelayClient delivers through the mail relay service, which exposes
// POST /send and answers {"status":"sent"} on success.
type RelayClient struct {
	baseURL string
	client  *http.Client
}

func NewRelayClient(baseURL string, client *http.Client) *RelayClient {
	return &RelayClient{baseURL: baseURL, client: client}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    string `json:"html,omitempty"`
}

func (c *RelayClient) Send(ctx context.Context, to, subject, text, html string) error {
	data, err := json.Marshal(sendRequest{To: to, Subject: subject, Body: text, HTML: html})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode)
	}

	return nil
}

// LogNotifier is the fallback when no relay is configured: it records the
// message instead of delivering it. Useful in development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, _, _ string) error {
	n.logger.Info("email suppressed (no relay configured)", "to", to, "subject", subject)
	return nil
}
