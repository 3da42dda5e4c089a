// Package blob uploads catalog images to the external image store and
// returns their public URLs. Checkout never touches it.
package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, folder string) (string, error)
}

// Client talks to the image service, which accepts base64 payloads on
// POST /files and answers {"url": "..."}.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{baseURL: baseURL, client: client}
}

type uploadRequest struct {
	File     string `json:"file"`
	FileName string `json:"file_name"`
	Folder   string `json:"folder"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

func (c *Client) Upload(ctx context.Context, data []byte, filename, folder string) (string, error) {
	payload, err := json.Marshal(uploadRequest{
		File:     base64.StdEncoding.EncodeToString(data),
		FileName: filename,
		Folder:   folder,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("image service returned status %d", resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode image service response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("image service returned an empty url")
	}

	return out.URL, nil
}
