package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Document is one catalog entity pushed to the search index.
type Document struct {
	Kind string      `json:"kind"`
	ID   string      `json:"id"`
	Body interface{} `json:"body"`
}

// Mirror pushes catalog documents to an external search index. Indexing is
// best effort: the store is the source of truth and a mirror failure must
// never fail the write that triggered it.
type Mirror interface {
	Index(ctx context.Context, doc Document) error
}

type NoopMirror struct{}

func (NoopMirror) Index(_ context.Context, _ Document) error { return nil }

type HTTPMirror struct {
	baseURL string
	client  *http.Client
}

func NewHTTPMirror(baseURL string, timeout time.Duration) *HTTPMirror {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPMirror{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (m *HTTPMirror) Index(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal search document: %w", err)
	}

	url := fmt.Sprintf("%s/index/%s/%s", m.baseURL, doc.Kind, doc.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("push search document: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("search index returned %d", resp.StatusCode)
	}
	return nil
}

// IndexAsync fires the push on its own goroutine with a detached timeout and
// only logs failures.
func IndexAsync(mirror Mirror, doc Document) {
	if mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mirror.Index(ctx, doc); err != nil {
			log.Printf("[search] WARN: index %s/%s failed: %v", doc.Kind, doc.ID, err)
		}
	}()
}
