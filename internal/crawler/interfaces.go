package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Gate decides whether a URL may be fetched and paces requests.
type Gate interface {
	Allowed(ctx context.Context, rawURL string) bool
	Wait(ctx context.Context, rawURL string) error
}

// DocumentSink persists downloaded document payloads and returns the local path.
type DocumentSink interface {
	Save(ctx context.Context, rawURL, contentType string, body []byte) (string, error)
}

// RetryPolicy governs retries of failed fetches.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
