package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spec-kit/support-desk/internal/config"
)

// Snippet is one retrieval result from the semantic-search service.
type Snippet struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Service is the contract of the external semantic-search service. Documents
// live in per-tenant namespaces; the service owns embedding and ranking.
type Service interface {
	EnsureNamespace(ctx context.Context, tenantID string) (string, error)
	Upsert(ctx context.Context, namespace, id, text string, metadata map[string]any) error
	Query(ctx context.Context, namespace, queryText string, k int) ([]Snippet, error)
}

// NamespaceFor derives the per-tenant namespace name.
func NamespaceFor(tenantID string) string {
	return fmt.Sprintf("tenant_%s_kb", tenantID)
}

// Client speaks JSON over HTTP to the semantic-search service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client. An empty base URL yields a client whose calls
// all fail; callers are expected to degrade gracefully on query errors.
func NewClient(cfg config.SearchConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnsureNamespace creates the tenant's namespace if it does not exist and
// returns its name. Idempotent on the service side.
func (c *Client) EnsureNamespace(ctx context.Context, tenantID string) (string, error) {
	namespace := NamespaceFor(tenantID)
	payload := map[string]any{"tenant_id": tenantID}
	if err := c.do(ctx, http.MethodPut, "/namespaces/"+url.PathEscape(namespace), payload, nil); err != nil {
		return "", err
	}
	return namespace, nil
}

// Upsert stores or replaces a document under an externally-assigned key.
func (c *Client) Upsert(ctx context.Context, namespace, id, text string, metadata map[string]any) error {
	payload := map[string]any{
		"text":     text,
		"metadata": metadata,
	}
	path := fmt.Sprintf("/namespaces/%s/documents/%s", url.PathEscape(namespace), url.PathEscape(id))
	return c.do(ctx, http.MethodPut, path, payload, nil)
}

// Query returns up to k snippets ranked by the service. No re-ranking is
// done here.
func (c *Client) Query(ctx context.Context, namespace, queryText string, k int) ([]Snippet, error) {
	payload := map[string]any{
		"text":  queryText,
		"top_k": k,
	}
	var out struct {
		Results []Snippet `json:"results"`
	}
	path := fmt.Sprintf("/namespaces/%s/query", url.PathEscape(namespace))
	if err := c.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("search service not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("search service %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
