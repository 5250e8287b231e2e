// Package remote holds the shared plumbing for the typed upstream API
// clients (storefront, accounting, optional second storefront).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is returned for any non-2xx upstream response. It preserves
// the status and a snippet of the body so run-fatal failures can be
// logged with full context.
type APIError struct {
	System  string // "shopify", "books", "woo"
	Method  string
	URL     string
	Status  int
	Snippet string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s %s returned %d: %s", e.System, e.Method, e.URL, e.Status, e.Snippet)
}

// DoJSON performs a JSON request against an upstream system and decodes
// the response into out (which may be nil for empty responses).
func DoJSON(ctx context.Context, client *http.Client, system, method, url string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal %s %s: %w", system, method, url, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: build %s %s: %w", system, method, url, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s %s: %w", system, method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			System:  system,
			Method:  method,
			URL:     url,
			Status:  resp.StatusCode,
			Snippet: string(snippet),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode %s %s: %w", system, method, url, err)
	}
	return nil
}
