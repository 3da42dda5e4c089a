package blob

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/files" {
			t.Errorf("expected /files, got %s", r.URL.Path)
		}

		var req struct {
			File     string `json:"file"`
			FileName string `json:"file_name"`
			Folder   string `json:"folder"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		data, err := base64.StdEncoding.DecodeString(req.File)
		if err != nil {
			t.Fatalf("file is not valid base64: %v", err)
		}
		if string(data) != "fake image bytes" {
			t.Errorf("unexpected file content: %q", data)
		}
		if req.FileName != "cover.png" {
			t.Errorf("unexpected file name: %q", req.FileName)
		}
		if req.Folder != "/vinabook/book_images" {
			t.Errorf("unexpected folder: %q", req.Folder)
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"url":"https://img.example.com/cover.png"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	url, err := client.Upload(context.Background(), []byte("fake image bytes"), "cover.png", "/vinabook/book_images")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://img.example.com/cover.png" {
		t.Errorf("unexpected url: %q", url)
	}
}

func TestClientUploadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.Upload(context.Background(), []byte("x"), "a.png", "/folder")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestClientUploadEmptyURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"url":""}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.Upload(context.Background(), []byte("x"), "a.png", "/folder")
	if err == nil {
		t.Fatal("expected error for empty url, got nil")
	}
}
