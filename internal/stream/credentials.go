package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CredentialFetcher obtains the provider connection credential. One
// fetch happens per connect attempt.
type CredentialFetcher interface {
	FetchAPIKey(ctx context.Context) (string, error)
}

// CredentialFetcherFunc is a function adapter for CredentialFetcher.
type CredentialFetcherFunc func(ctx context.Context) (string, error)

func (f CredentialFetcherFunc) FetchAPIKey(ctx context.Context) (string, error) {
	return f(ctx)
}

// HTTPCredentialFetcher fetches the connection credential from an
// authenticated host endpoint returning {"apiKey": "..."}.
type HTTPCredentialFetcher struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
}

// NewHTTPCredentialFetcher creates a fetcher for the given endpoint.
// authToken may be empty for unauthenticated endpoints.
func NewHTTPCredentialFetcher(endpoint, authToken string) *HTTPCredentialFetcher {
	return &HTTPCredentialFetcher{
		endpoint:  endpoint,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchAPIKey performs one authenticated call to the credential endpoint.
func (f *HTTPCredentialFetcher) FetchAPIKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if f.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.authToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch credential: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read credential response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("credential endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("unmarshal credential response: %w", err)
	}
	if payload.APIKey == "" {
		return "", fmt.Errorf("credential endpoint returned empty apiKey")
	}

	return payload.APIKey, nil
}
