package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Pathstore talks to the pathstore HTTP KV API.
type Pathstore struct {
	baseURL    string
	apiKey     string
	source     string
	httpClient *http.Client
}

func NewPathstore(baseURL, apiKey string) *Pathstore {
	return &Pathstore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		source:  "paperdoc",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// nodeRequest is the body for PUT /kv/{key}.
type nodeRequest struct {
	Value      any     `json:"value"`
	MemoryType string  `json:"memory_type,omitempty"`
	Salience   float64 `json:"salience,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// nodeResponse is a node as returned by GET /kv/{key} and prefix scans.
type nodeResponse struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

func (p *Pathstore) PutNode(ctx context.Context, key string, value any) error {
	body, err := json.Marshal(nodeRequest{
		Value:      value,
		MemoryType: "metacognitive",
		Salience:   0.1,
		Source:     p.source,
	})
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.baseURL+"/kv/"+key, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.do(req)
	if err != nil {
		return fmt.Errorf("put node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("put node", key, resp)
	}
	return nil
}

func (p *Pathstore) GetNode(ctx context.Context, key string) (*Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/kv/"+key, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("get node", key, resp)
	}

	var node nodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &Node{Key: key, Value: node.Value}, nil
}

func (p *Pathstore) DeleteNode(ctx context.Context, key string, recursive bool) error {
	u := p.baseURL + "/kv/" + key
	if recursive {
		u += "?children=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.do(req)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return statusError("delete node", key, resp)
	}
	return nil
}

// ListChildren does a prefix scan under the given key. Pathstore reports
// keys dot-separated; they are returned slash-separated like every other key.
func (p *Pathstore) ListChildren(ctx context.Context, prefix string, limit int) ([]Node, error) {
	u := p.baseURL + "/kv/" + prefix + "/*"
	if limit > 0 {
		u += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list children", prefix, resp)
	}

	var result struct {
		Nodes []nodeResponse `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	nodes := make([]Node, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		nodes = append(nodes, Node{Key: strings.ReplaceAll(n.Key, ".", "/"), Value: n.Value})
	}
	return nodes, nil
}

// Close releases idle connections.
func (p *Pathstore) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *Pathstore) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	return p.httpClient.Do(req)
}

// statusError turns an unexpected response into an error. 429 and 5xx are
// retryable.
func statusError(op, key string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("%s %s: %s", op, key, body)}
	}
	return fmt.Errorf("%s %s: status %d: %s", op, key, resp.StatusCode, string(body))
}
