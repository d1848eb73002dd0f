package crawler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const defaultForbiddenAttempts = 3

// visitTracker records URLs already dequeued during one crawl run.
type visitTracker interface {
	MarkIfNew(url string) bool
	Seen(url string) bool
	Len() int
}

type concurrentVisitTracker struct {
	seen  sync.Map
	count atomic.Int64
}

func newConcurrentVisitTracker() *concurrentVisitTracker {
	return &concurrentVisitTracker{}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (t *concurrentVisitTracker) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	_, loaded := t.seen.LoadOrStore(url, struct{}{})
	if !loaded {
		t.count.Add(1)
	}
	return !loaded
}

// Seen reports whether url was already marked.
func (t *concurrentVisitTracker) Seen(url string) bool {
	_, ok := t.seen.Load(url)
	return ok
}

func (t *concurrentVisitTracker) Len() int {
	return int(t.count.Load())
}

// domainBlocker tracks repeated forbidden responses and blocks hosts on excess.
type domainBlocker interface {
	IsBlocked(host string) bool
	MarkForbidden(host string) bool
}

type thresholdDomainBlocker struct {
	mu        sync.Mutex
	threshold int
	counts    map[string]int
	blocked   map[string]struct{}
}

func newThresholdDomainBlocker(threshold int) *thresholdDomainBlocker {
	if threshold <= 0 {
		threshold = defaultForbiddenAttempts
	}
	return &thresholdDomainBlocker{
		threshold: threshold,
		counts:    make(map[string]int),
		blocked:   make(map[string]struct{}),
	}
}

func (b *thresholdDomainBlocker) IsBlocked(host string) bool {
	if host == "" {
		return false
	}
	key := strings.ToLower(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blocked[key]
	return ok
}

// MarkForbidden increments the counter for host and returns true once blocked.
func (b *thresholdDomainBlocker) MarkForbidden(host string) bool {
	if host == "" {
		return false
	}
	key := strings.ToLower(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, blocked := b.blocked[key]; blocked {
		return true
	}
	b.counts[key]++
	if b.counts[key] >= b.threshold {
		b.blocked[key] = struct{}{}
		return true
	}
	return false
}

// downloadQuota hands out download slots so exactly max documents are kept even
// when several workers finish at once. A slot is reserved before the payload is
// written and then either committed or released.
type downloadQuota struct {
	mu        sync.Mutex
	cond      *sync.Cond
	max       int
	reserved  int
	committed int
}

func newDownloadQuota(max int) *downloadQuota {
	q := &downloadQuota{max: max}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Reserve blocks while pending reservations could still fill the quota and
// returns false once it is filled.
func (q *downloadQuota) Reserve() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.committed+q.reserved >= q.max {
		if q.committed >= q.max {
			return false
		}
		q.cond.Wait()
	}
	q.reserved++
	return true
}

func (q *downloadQuota) Commit() {
	q.mu.Lock()
	q.reserved--
	q.committed++
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *downloadQuota) Release() {
	q.mu.Lock()
	q.reserved--
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Full reports whether the quota has been reached by committed downloads.
func (q *downloadQuota) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.committed >= q.max
}

// pauseController abstracts how the crawler waits between retry attempts.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
