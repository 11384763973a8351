package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
)

// apiError is a non-2xx API response.
type apiError struct {
	Status int
	Body   dto.ErrorResponse
}

func (e *apiError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Body.Error, e.Status, e.Body.Message)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Body.Error, e.Status)
}

type apiClient struct {
	http    *http.Client
	baseURL string
	actor   string
}

func newAPIClient(opts *options) *apiClient {
	return &apiClient{
		http:    &http.Client{Timeout: opts.timeout},
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		actor:   opts.actor,
	}
}

// do sends body as JSON and decodes a 2xx response into out. okStatuses lists
// additional statuses whose body is decoded into out rather than treated as
// an error.
func (c *apiClient) do(ctx context.Context, method, path string, headers map[string]string, body, out any, okStatuses ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.actor != "" {
		req.Header.Set("X-Actor", c.actor)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	accepted := resp.StatusCode >= 200 && resp.StatusCode < 300
	for _, s := range okStatuses {
		accepted = accepted || resp.StatusCode == s
	}

	if !accepted {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, &apiErr.Body); err != nil || apiErr.Body.Error == "" {
			apiErr.Body.Error = strings.TrimSpace(string(raw))
		}
		return resp.StatusCode, apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
