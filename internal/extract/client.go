package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is the payload submitted to the extraction worker.
type Request struct {
	Token       string `json:"token"`
	StoragePath string `json:"storage_path"`
	Filename    string `json:"filename,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

// Response is the worker's immediate accept/reject answer. The extraction
// result itself arrives out of band; only the acceptance is recorded here.
type Response struct {
	StatusCode int
	Body       []byte

	// Accepted holds the parsed acceptance payload for 2xx answers.
	Accepted map[string]any
}

// Worker submits a document for asynchronous extraction.
type Worker interface {
	Submit(ctx context.Context, req Request) (Response, error)
}

const secretHeader = "X-Doc-Secret"

// maxBodyExcerpt bounds how much of a worker response is read and recorded.
const maxBodyExcerpt = 1500

// HTTPWorker calls the independently-deployed extraction worker over HTTP
// with a shared secret header.
type HTTPWorker struct {
	url    string
	secret string
	client *http.Client
}

func NewHTTPWorker(url, secret string, timeout time.Duration) *HTTPWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPWorker{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *HTTPWorker) Submit(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal worker request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build worker request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(secretHeader, w.secret)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("call extraction worker: %w", err)
	}
	defer resp.Body.Close()

	excerpt, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
	if err != nil {
		return Response{}, fmt.Errorf("read worker response: %w", err)
	}

	out := Response{StatusCode: resp.StatusCode, Body: excerpt}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Acceptance payloads are free-form; an unparseable body is not a
		// dispatch failure.
		_ = json.Unmarshal(excerpt, &out.Accepted)
	}
	return out, nil
}
