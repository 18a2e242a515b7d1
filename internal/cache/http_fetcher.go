package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FetchError reports a non-2xx upstream response
type FetchError struct {
	Endpoint   string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: upstream returned %d", e.Endpoint, e.StatusCode)
}

// HTTPFetcher fetches JSON from <baseURL><endpoint>?<params>
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher against baseURL
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch implements Fetcher. params must serialize to a JSON object; its
// fields become query parameters.
func (f *HTTPFetcher) Fetch(ctx context.Context, endpoint string, params interface{}) (interface{}, error) {
	query, err := queryFromParams(params)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}

	target := f.baseURL + endpoint
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: failed to create request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("fetch %s: failed to decode response: %w", endpoint, err)
	}
	return payload, nil
}

func queryFromParams(params interface{}) (url.Values, error) {
	query := url.Values{}
	if params == nil {
		return query, nil
	}
	if values, ok := params.(url.Values); ok {
		return values, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("params must be an object: %w", err)
	}
	for name, value := range fields {
		switch v := value.(type) {
		case string:
			query.Set(name, v)
		case nil:
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			query.Set(name, string(encoded))
		}
	}
	return query, nil
}
