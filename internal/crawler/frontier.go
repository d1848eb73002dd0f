package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/doc-harvester/internal/metrics"
)

// Config tunes a Frontier.
type Config struct {
	// MaxDepth bounds traversal: pages at depth d enqueue non-document links only
	// while d+1 < MaxDepth. The default of 1 scans the start pages and downloads
	// their direct document links.
	MaxDepth     int
	SameHostOnly bool
	// Concurrency is the number of workers downloading the document links of one page.
	Concurrency         int
	DocumentExtensions  []string
	DocumentPathMarkers []string
	DocumentMediaTypes  []string
	ForbiddenThreshold  int
	RetryPolicy         RetryPolicy
}

// Frontier crawls one source at a time.
type Frontier struct {
	cfg     Config
	fetcher Fetcher
	gate    Gate
	sink    DocumentSink
	filter  documentFilter
	pauser  pauseController
	logger  *zap.Logger
}

// New builds a Frontier from its collaborators.
func New(cfg Config, fetcher Fetcher, gate Gate, sink DocumentSink, logger *zap.Logger) (*Frontier, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if gate == nil {
		return nil, errors.New("gate is required")
	}
	if sink == nil {
		return nil, errors.New("document sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 1
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if len(cfg.DocumentExtensions) == 0 && len(cfg.DocumentPathMarkers) == 0 {
		cfg.DocumentExtensions = []string{".pdf"}
		cfg.DocumentPathMarkers = []string{"/pdf/"}
	}
	if len(cfg.DocumentMediaTypes) == 0 {
		cfg.DocumentMediaTypes = []string{"pdf"}
	}
	return &Frontier{
		cfg:     cfg,
		fetcher: fetcher,
		gate:    gate,
		sink:    sink,
		filter:  newDocumentFilter(cfg.DocumentExtensions, cfg.DocumentPathMarkers, cfg.DocumentMediaTypes),
		pauser:  &timerPauseController{},
		logger:  logger,
	}, nil
}

type crawlRun struct {
	source  Source
	visited visitTracker
	quota   *downloadQuota
	blocker domainBlocker

	mu     sync.Mutex
	result Result
}

func (r *crawlRun) addDocument(doc Document) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Documents = append(r.result.Documents, doc)
	return len(r.result.Documents)
}

func (r *crawlRun) addDenied() {
	r.mu.Lock()
	r.result.Denied++
	r.mu.Unlock()
}

func (r *crawlRun) addFailed() {
	r.mu.Lock()
	r.result.Failed++
	r.mu.Unlock()
}

func (r *crawlRun) snapshot() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.result
	out.Documents = append([]Document(nil), r.result.Documents...)
	out.Visited = r.visited.Len()
	return out
}

// Crawl walks the source breadth-first until its queue is exhausted or MaxDocs
// documents have been saved. Per-URL failures are logged and counted; only an
// unusable source or a cancelled context produce an error.
func (f *Frontier) Crawl(ctx context.Context, src Source) (Result, error) {
	if src.MaxDocs <= 0 {
		return Result{Source: src.Name}, fmt.Errorf("%w: %s: max docs must be positive", ErrInvalidSource, src.Name)
	}
	logger := f.logger.With(zap.String("source", src.Name))

	queue := make([]Task, 0, len(src.StartURLs))
	for _, raw := range src.StartURLs {
		normalized, err := NormalizeURL(raw)
		if err != nil {
			logger.Warn("skipping invalid start url", zap.String("url", raw), zap.Error(err))
			continue
		}
		queue = append(queue, Task{URL: normalized, Seed: normalized})
	}
	if len(queue) == 0 {
		return Result{Source: src.Name}, fmt.Errorf("%w: %s: no valid start urls", ErrInvalidSource, src.Name)
	}

	run := &crawlRun{
		source:  src,
		visited: newConcurrentVisitTracker(),
		quota:   newDownloadQuota(src.MaxDocs),
		blocker: newThresholdDomainBlocker(f.cfg.ForbiddenThreshold),
		result:  Result{Source: src.Name},
	}
	logger.Info("crawl started", zap.Int("start_urls", len(queue)), zap.Int("max_docs", src.MaxDocs))

	for len(queue) > 0 && !run.quota.Full() {
		if err := ctx.Err(); err != nil {
			return run.snapshot(), fmt.Errorf("crawl %s: %w", src.Name, err)
		}
		task := queue[0]
		queue = queue[1:]
		if !run.visited.MarkIfNew(task.URL) {
			continue
		}
		queue = append(queue, f.visit(ctx, run, task, logger)...)
	}

	result := run.snapshot()
	logger.Info("crawl finished",
		zap.Int("downloaded", len(result.Documents)),
		zap.Int("visited", result.Visited),
		zap.Int("denied", result.Denied),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// visit processes one dequeued page and returns the tasks it discovered.
func (f *Frontier) visit(ctx context.Context, run *crawlRun, task Task, logger *zap.Logger) []Task {
	logger = logger.With(zap.String("url", task.URL), zap.Int("depth", task.Depth))
	resp, ok := f.fetchGated(ctx, run, task.URL, logger)
	if !ok {
		return nil
	}
	if f.filter.IsDocumentResponse(resp) {
		f.store(ctx, run, task, resp, logger)
		return nil
	}

	base, err := url.Parse(task.URL)
	if resp.URL != "" {
		base, err = url.Parse(resp.URL)
	}
	if err != nil {
		logger.Warn("unparseable page url", zap.Error(err))
		return nil
	}
	links, err := extractLinks(base, resp.Body)
	if err != nil {
		logger.Warn("link extraction failed", zap.Error(err))
		return nil
	}

	var (
		candidates []string
		children   []Task
	)
	for _, link := range links {
		normalized, err := NormalizeURL(link.String())
		if err != nil {
			continue
		}
		if f.filter.IsDocumentLink(link) {
			if run.visited.MarkIfNew(normalized) {
				candidates = append(candidates, normalized)
			}
			continue
		}
		if task.Depth+1 >= f.cfg.MaxDepth {
			continue
		}
		if f.cfg.SameHostOnly && !sameHost(base, link) {
			continue
		}
		if run.visited.Seen(normalized) {
			continue
		}
		children = append(children, Task{URL: normalized, Depth: task.Depth + 1, Seed: task.Seed})
	}
	logger.Debug("page scanned",
		zap.Int("links", len(links)),
		zap.Int("document_links", len(candidates)),
		zap.Int("enqueued", len(children)),
	)
	f.downloadCandidates(ctx, run, task, candidates, logger)
	return children
}

// downloadCandidates fetches the document links of one page with a bounded pool.
func (f *Frontier) downloadCandidates(ctx context.Context, run *crawlRun, parent Task, candidates []string, logger *zap.Logger) {
	if len(candidates) == 0 {
		return
	}
	workers := min(f.cfg.Concurrency, len(candidates))
	jobs := make(chan Task)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				f.downloadCandidate(ctx, run, task, logger)
			}
		}()
	}
	for _, rawURL := range candidates {
		if run.quota.Full() || ctx.Err() != nil {
			break
		}
		jobs <- Task{URL: rawURL, Depth: parent.Depth + 1, Seed: parent.Seed}
	}
	close(jobs)
	wg.Wait()
}

func (f *Frontier) downloadCandidate(ctx context.Context, run *crawlRun, task Task, logger *zap.Logger) {
	if run.quota.Full() || ctx.Err() != nil {
		return
	}
	rawURL := task.URL
	logger = logger.With(zap.String("document_url", rawURL))
	resp, ok := f.fetchGated(ctx, run, rawURL, logger)
	if !ok {
		return
	}
	if !f.filter.IsDocumentResponse(resp) {
		logger.Debug("document link returned a non-document payload", zap.String("content_type", resp.ContentType()))
		metrics.ObserveDocument(rawURL, metrics.DocumentNonDocument)
		return
	}
	f.store(ctx, run, task, resp, logger)
}

// fetchGated consults the gate, waits out the politeness delay, and fetches.
func (f *Frontier) fetchGated(ctx context.Context, run *crawlRun, rawURL string, logger *zap.Logger) (FetchResponse, bool) {
	host := hostOf(rawURL)
	if run.blocker.IsBlocked(host) {
		logger.Info("host blocked after repeated forbidden responses", zap.String("host", host))
		run.addDenied()
		metrics.ObserveFetch(rawURL, metrics.FetchSkipped, 0)
		return FetchResponse{}, false
	}
	if !f.gate.Allowed(ctx, rawURL) {
		logger.Info("fetch disallowed by policy", zap.String("target", rawURL))
		run.addDenied()
		metrics.ObserveFetch(rawURL, metrics.FetchDenied, 0)
		return FetchResponse{}, false
	}
	resp, err := f.fetchWithRetry(ctx, rawURL, logger)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusForbidden && run.blocker.MarkForbidden(host) {
			logger.Warn("host reached forbidden threshold", zap.String("host", host))
		}
		logger.Warn("fetch failed", zap.String("target", rawURL), zap.Error(err))
		run.addFailed()
		metrics.ObserveFetch(rawURL, metrics.FetchError, 0)
		return FetchResponse{}, false
	}
	metrics.ObserveFetch(rawURL, metrics.FetchOK, len(resp.Body))
	return resp, true
}

func (f *Frontier) fetchWithRetry(ctx context.Context, rawURL string, logger *zap.Logger) (FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		if err := f.gate.Wait(ctx, rawURL); err != nil {
			return FetchResponse{}, err
		}
		resp, err := f.fetcher.Fetch(ctx, FetchRequest{URL: rawURL})
		if err == nil {
			return resp, nil
		}
		if f.cfg.RetryPolicy == nil || !f.cfg.RetryPolicy.ShouldRetry(err, attempt) {
			return FetchResponse{}, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		delay := f.cfg.RetryPolicy.Backoff(attempt)
		logger.Debug("retrying fetch", zap.Int("attempt", attempt+1), zap.Duration("backoff", delay), zap.Error(err))
		f.pauser.Pause(ctx, delay)
	}
}

// store saves a document payload if the quota still has room.
func (f *Frontier) store(ctx context.Context, run *crawlRun, task Task, resp FetchResponse, logger *zap.Logger) {
	rawURL := task.URL
	if !run.quota.Reserve() {
		logger.Debug("quota reached, discarding payload")
		return
	}
	path, err := f.sink.Save(ctx, rawURL, resp.ContentType(), resp.Body)
	if err != nil {
		run.quota.Release()
		run.addFailed()
		logger.Error("saving document failed", zap.Error(err))
		metrics.ObserveDocument(rawURL, metrics.DocumentFailed)
		return
	}
	run.quota.Commit()
	n := run.addDocument(Document{
		URL:         rawURL,
		Seed:        task.Seed,
		Path:        path,
		ContentType: resp.ContentType(),
		Bytes:       int64(len(resp.Body)),
	})
	logger.Info("document downloaded",
		zap.String("path", path),
		zap.Int("downloaded", n),
		zap.Int("max_docs", run.source.MaxDocs),
	)
	metrics.ObserveDocument(rawURL, metrics.DocumentDownloaded)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
