// Package transport provides the HTTP implementation of the pipeline's
// Transport interface. The daemon talks to a JSON chat API: message sends
// carry the idempotency key in a header, attachment uploads stream the raw
// bytes and report fractional progress as the body is consumed.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pvieira94/courier/internal/pipeline"
	"github.com/pvieira94/courier/internal/store"
)

// HTTP implements pipeline.Transport against a REST chat API.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates a transport for the API at baseURL.
func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type sendRequest struct {
	Content       string        `json:"content,omitempty"`
	Replies       []store.Reply `json:"replies,omitempty"`
	AttachmentIDs []string      `json:"attachment_ids,omitempty"`
}

type messageResponse struct {
	ID       string `json:"id"`
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
}

// SendMessage posts the payload to the channel's message endpoint. The
// idempotency key travels in a header so the server can deduplicate retried
// calls.
func (t *HTTP) SendMessage(ctx context.Context, channelID string, payload pipeline.SendPayload, idempotencyKey string) (*store.Message, error) {
	body, err := json.Marshal(sendRequest{
		Content:       payload.Content,
		Replies:       payload.Replies,
		AttachmentIDs: payload.AttachmentIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", t.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("send rejected: status %d", resp.StatusCode)
	}

	var mr messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}
	return &store.Message{ID: mr.ID, AuthorID: mr.AuthorID, Content: mr.Content}, nil
}

type uploadResponse struct {
	ID string `json:"id"`
}

// UploadAttachment posts the file bytes to the attachment endpoint,
// reporting fractional progress as the request body is consumed.
func (t *HTTP) UploadAttachment(ctx context.Context, data []byte, creds pipeline.Credentials, onProgress func(float64)) (pipeline.UploadResult, error) {
	reader := &progressReader{
		r:          bytes.NewReader(data),
		total:      int64(len(data)),
		onProgress: onProgress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/attachments", reader)
	if err != nil {
		return pipeline.UploadResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	if creds.UserID != "" {
		req.Header.Set("X-User-ID", creds.UserID)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return pipeline.UploadResult{}, fmt.Errorf("upload request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return pipeline.UploadResult{}, fmt.Errorf("upload rejected: status %d", resp.StatusCode)
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return pipeline.UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	if ur.ID == "" {
		return pipeline.UploadResult{}, fmt.Errorf("upload response missing id")
	}
	return pipeline.UploadResult{ID: ur.ID}, nil
}

// progressReader reports cumulative read progress in [0,1] as the HTTP
// client consumes the request body.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress func(float64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.read += int64(n)
	if pr.onProgress != nil && pr.total > 0 && n > 0 {
		pr.onProgress(float64(pr.read) / float64(pr.total))
	}
	return n, err
}
