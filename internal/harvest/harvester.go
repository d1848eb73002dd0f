package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/doc-harvester/internal/crawler"
	"github.com/JakeFAU/doc-harvester/internal/metrics"
)

// SourceSummary counts what happened to one source's downloads.
type SourceSummary struct {
	Source      string
	Downloaded  int
	Unchanged   int
	NonDocument int
	Processed   int
	Failed      int
	Denied      int
	FetchErrors int
}

func (s *SourceSummary) add(o SourceSummary) {
	s.Downloaded += o.Downloaded
	s.Unchanged += o.Unchanged
	s.NonDocument += o.NonDocument
	s.Processed += o.Processed
	s.Failed += o.Failed
	s.Denied += o.Denied
	s.FetchErrors += o.FetchErrors
}

// Summary reports a whole run.
type Summary struct {
	RunID    string
	Sources  []SourceSummary
	Duration time.Duration
}

// Totals sums every source.
func (s Summary) Totals() SourceSummary {
	total := SourceSummary{Source: "total"}
	for _, src := range s.Sources {
		total.add(src)
	}
	return total
}

// Harvester runs sources sequentially.
type Harvester struct {
	crawler   Crawler
	processor DocumentProcessor
	sources   []crawler.Source
	runID     string
	logger    *zap.Logger
}

// NewHarvester wires a crawler and processor over the configured sources.
func NewHarvester(c Crawler, p DocumentProcessor, sources []crawler.Source, runID string, logger *zap.Logger) (*Harvester, error) {
	if c == nil {
		return nil, errors.New("crawler is required")
	}
	if p == nil {
		return nil, errors.New("processor is required")
	}
	if len(sources) == 0 {
		return nil, errors.New("at least one source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harvester{
		crawler:   c,
		processor: p,
		sources:   sources,
		runID:     runID,
		logger:    logger.With(zap.String("run_id", runID)),
	}, nil
}

// Run harvests every source. Per-document and per-source failures are logged
// and counted; only cancellation of ctx stops the run early with an error.
func (h *Harvester) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: h.runID}
	defer func() {
		summary.Duration = time.Since(start)
		metrics.ObserveRun(summary.Duration)
	}()

	h.logger.Info("harvest started", zap.Int("sources", len(h.sources)))
	for _, src := range h.sources {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("harvest canceled: %w", err)
		}
		srcSummary, err := h.runSource(ctx, src)
		summary.Sources = append(summary.Sources, srcSummary)
		if err != nil {
			return summary, err
		}
	}

	total := summary.Totals()
	h.logger.Info("harvest complete",
		zap.Int("downloaded", total.Downloaded),
		zap.Int("processed", total.Processed),
		zap.Int("unchanged", total.Unchanged),
		zap.Int("non_document", total.NonDocument),
		zap.Int("failed", total.Failed),
	)
	return summary, nil
}

func (h *Harvester) runSource(ctx context.Context, src crawler.Source) (SourceSummary, error) {
	logger := h.logger.With(zap.String("source", src.Name))
	out := SourceSummary{Source: src.Name}

	res, err := h.crawler.Crawl(ctx, src)
	out.Downloaded = len(res.Documents)
	out.Denied = res.Denied
	out.FetchErrors = res.Failed
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, fmt.Errorf("harvest canceled: %w", ctxErr)
		}
		logger.Error("crawl failed", zap.Error(err))
	}

	for _, doc := range res.Documents {
		outcome, err := h.process(ctx, doc)
		if err != nil {
			out.Failed++
			logger.Error("processing failed", zap.String("path", doc.Path), zap.String("url", doc.URL), zap.Error(err))
			metrics.ObserveDocument(doc.URL, metrics.DocumentFailed)
			continue
		}
		switch outcome {
		case OutcomeProcessed:
			out.Processed++
		case OutcomeUnchanged:
			out.Unchanged++
		case OutcomeNonDocument:
			out.NonDocument++
		}
	}
	logger.Info("source complete",
		zap.Int("downloaded", out.Downloaded),
		zap.Int("processed", out.Processed),
		zap.Int("unchanged", out.Unchanged),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

// process isolates a panicking document from the rest of the batch.
func (h *Harvester) process(ctx context.Context, doc crawler.Document) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = "", fmt.Errorf("panic processing %s: %v", doc.Path, r)
		}
	}()
	return h.processor.Process(ctx, doc)
}
