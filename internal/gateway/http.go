package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// UploadResponse is the asset API's reply to an image upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HTTP posts images to an asset API as multipart form uploads.
type HTTP struct {
	BaseURL    string
	APIKey     string
	MaxBytes   int
	httpClient *http.Client
}

// NewHTTP creates an HTTP gateway.
func NewHTTP(baseURL, apiKey string) *HTTP {
	return &HTTP{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		MaxBytes: DefaultMaxBytes,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Upload sends data as the "file" field to POST {base}/buildings/{id}/image.
func (g *HTTP) Upload(ctx context.Context, entryID string, data []byte) (string, error) {
	if err := Validate(data, g.MaxBytes); err != nil {
		return "", err
	}
	if _, err := Key("", entryID); err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.jpg"`, entryID))
	h.Set("Content-Type", ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	endpoint := g.BaseURL + "/buildings/" + url.PathEscape(entryID) + "/image"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if g.APIKey != "" {
		req.Header.Set("x-api-key", g.APIKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}

	var out UploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", fmt.Errorf("asset API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", errors.New(msg)
	}
	if out.ImageURL == "" {
		return "", errors.New("asset API returned no image URL")
	}
	return out.ImageURL, nil
}
