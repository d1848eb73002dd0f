package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]FetchResponse
	errs  map[string][]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[string]FetchResponse),
		errs:  make(map[string][]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) html(url string, links ...string) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	b.WriteString("</body></html>")
	f.pages[url] = FetchResponse{
		URL:        url,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       []byte(b.String()),
	}
}

func (f *fakeFetcher) pdf(url, body string) {
	f.pages[url] = FetchResponse{
		URL:        url,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"application/pdf"}},
		Body:       []byte(body),
	}
}

func (f *fakeFetcher) fail(url string, errs ...error) {
	f.errs[url] = append(f.errs[url], errs...)
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.URL]++
	if queued := f.errs[req.URL]; len(queued) > 0 {
		f.errs[req.URL] = queued[1:]
		return FetchResponse{}, queued[0]
	}
	resp, ok := f.pages[req.URL]
	if !ok {
		return FetchResponse{}, &StatusError{URL: req.URL, Code: http.StatusNotFound}
	}
	return resp, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) total(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for u, c := range f.calls {
		if strings.HasPrefix(u, prefix) {
			n += c
		}
	}
	return n
}

// pathGate disallows any URL containing one of the denied substrings.
type pathGate struct {
	mu     sync.Mutex
	denied []string
	waits  int
}

func (g *pathGate) Allowed(_ context.Context, rawURL string) bool {
	for _, d := range g.denied {
		if strings.Contains(rawURL, d) {
			return false
		}
	}
	return true
}

func (g *pathGate) Wait(ctx context.Context, _ string) error {
	g.mu.Lock()
	g.waits++
	g.mu.Unlock()
	return ctx.Err()
}

type noPause struct{}

func (noPause) Pause(context.Context, time.Duration) {}
