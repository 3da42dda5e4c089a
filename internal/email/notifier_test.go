package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRelayClientSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/send" {
			t.Errorf("expected /send, got %s", r.URL.Path)
		}

		var req struct {
			To      string `json:"to"`
			Subject string `json:"subject"`
			Body    string `json:"body"`
			HTML    string `json:"html"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.To != "alice@example.com" {
			t.Errorf("unexpected recipient: %q", req.To)
		}
		if req.Subject != "Order confirmation" {
			t.Errorf("unexpected subject: %q", req.Subject)
		}

		_, _ = w.Write([]byte(`{"status":"sent"}`))
	}))
	defer server.Close()

	client := NewRelayClient(server.URL, server.Client())
	err := client.Send(context.Background(), "alice@example.com", "Order confirmation", "text body", "<p>html body</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRelayClientSendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewRelayClient(server.URL, server.Client())
	err := client.Send(context.Background(), "a@b.c", "s", "t", "h")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
