package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// UserAgent identifies the crawler to the host.
	UserAgent = "kingsroom-scraper/1.0"
	// maxFetchRetries bounds the in-call retries for transport errors.
	// HTTP-level failures (404, 429, 5xx) are classified, not retried here;
	// the orchestrator owns retry-across-runs for those.
	maxFetchRetries = 2
)

// FetchStatus classifies an HTTP exchange.
type FetchStatus int

const (
	FetchOK FetchStatus = iota
	FetchNotModified
	FetchNotFound
	FetchRateLimited
	FetchAuthError
	FetchServerError
)

// Fetched is the outcome of one page fetch.
type Fetched struct {
	Status       FetchStatus
	Body         []byte
	ETag         string
	LastModified string
	ErrorMessage string
}

// Fetcher performs conditional GETs with bounded retry on transport errors.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch GETs url, sending If-None-Match when etag is known. Transport
// errors are retried with exponential backoff before giving up.
func (f *Fetcher) Fetch(ctx context.Context, url, etag string) (*Fetched, error) {
	var result *Fetched

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", UserAgent)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		result, err = classify(resp)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	return result, nil
}

func classify(resp *http.Response) (*Fetched, error) {
	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &Fetched{Status: FetchNotModified}, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &Fetched{Status: FetchNotFound}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Fetched{Status: FetchRateLimited}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Fetched{Status: FetchAuthError}, nil
	case resp.StatusCode >= 500:
		return &Fetched{
			Status:       FetchServerError,
			ErrorMessage: fmt.Sprintf("server returned %d", resp.StatusCode),
		}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return &Fetched{
		Status:       FetchOK,
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}
