// Package vector writes embedded records to a namespaced remote vector store.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Vector is one record to upsert: an id, the embedding values, and a copy of
// the originating record's metadata.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

type Client struct {
	host      string
	apiKey    string
	namespace string
	client    *http.Client
}

// NewClient builds an upsert client scoped to one namespace. All vectors
// written by one install share that namespace. httpClient may be nil.
func NewClient(host, apiKey, namespace string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{host: host, apiKey: apiKey, namespace: namespace, client: httpClient}
}

// Namespace returns the namespace this client writes to.
func (c *Client) Namespace() string { return c.namespace }

type upsertRequest struct {
	Namespace string   `json:"namespace"`
	Vectors   []Vector `json:"vectors"`
}

// Upsert writes all vectors in a single request. A non-2xx response is a hard
// failure for the whole batch; there is no partial success within one call.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	body, err := json.Marshal(upsertRequest{Namespace: c.namespace, Vectors: vectors})
	if err != nil {
		return fmt.Errorf("failed to marshal upsert request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/vectors/upsert", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build upsert request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("vector upsert failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vector upsert failed: %s", resp.Status)
	}
	return nil
}
