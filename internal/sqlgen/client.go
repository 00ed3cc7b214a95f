package sqlgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type ClientConfig struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the /generate_sql endpoint. Without a configured timeout the call waits
// for as long as the context allows.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("endpoint scheme must be http or https: %q", endpoint)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("endpoint host is required: %q", endpoint)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		client:   client,
	}, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Generate posts the question and decodes the reply. A non-2xx reply yields a
// *ServiceError, everything that prevents reading a JSON reply yields a
// *TransportError.
func (c *Client) Generate(ctx context.Context, question string) (Response, error) {
	body, err := json.Marshal(Request{Query: question})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &failure); err != nil {
			return Response{}, &TransportError{Err: fmt.Errorf("decode error response (status %d): %w", resp.StatusCode, err)}
		}
		message := failure.Error
		if message == "" {
			message = failure.Message
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return Response{}, &ServiceError{StatusCode: resp.StatusCode, Message: message}
	}

	decoded, err := decodeResponse(raw)
	if err != nil {
		return Response{}, &TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return decoded, nil
}

// decodeResponse only fails on malformed JSON. A reply that is not an object, or whose
// fields have unexpected types, leaves the affected fields empty.
func decodeResponse(raw []byte) (Response, error) {
	if !json.Valid(raw) {
		return Response{}, errors.New("invalid JSON")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Response{}, nil
	}

	var decoded Response
	if value, ok := fields["generated_sql"]; ok {
		_ = json.Unmarshal(value, &decoded.GeneratedSQL)
	}
	if value, ok := fields["query_result"]; ok {
		if err := json.Unmarshal(value, &decoded.QueryResult); err != nil {
			decoded.QueryResult = nil
		}
	}
	if value, ok := fields["error"]; ok {
		_ = json.Unmarshal(value, &decoded.Error)
	}
	return decoded, nil
}
