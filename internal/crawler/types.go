package crawler

import (
	"net/http"
	"time"
)

// Source is one configured crawl target.
type Source struct {
	Name      string
	StartURLs []string
	MaxDocs   int
}

// Task is a queued frontier member.
type Task struct {
	URL   string
	Depth int
	// Seed is the start URL this task descends from.
	Seed string
}

// FetchRequest describes a single GET issued by a Fetcher.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse captures what a Fetcher returns for a successful request.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response media type header, lowercased by callers as needed.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// Document is a payload persisted to the raw download directory.
type Document struct {
	URL         string
	Seed        string
	Path        string
	ContentType string
	Bytes       int64
}

// Result summarizes one source crawl. Documents are listed in download order.
type Result struct {
	Source    string
	Documents []Document
	Visited   int
	Denied    int
	Failed    int
}
