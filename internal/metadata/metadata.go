// Package metadata derives bibliographic metadata from PDF files using a tiered
// strategy: native document information first, then heuristics over the first
// page's text, with OCR standing in for pages that carry too little text.
package metadata

import (
	"context"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/zap"

	pdfextract "github.com/JakeFAU/doc-harvester/internal/extract/pdf"
	"github.com/JakeFAU/doc-harvester/internal/metrics"
)

// Tiers reported to metrics.
const (
	TierNative  = "native"
	TierText    = "text"
	TierOCR     = "ocr"
	TierDefault = "default"
)

// Metadata is the extracted bibliographic information for one document.
type Metadata struct {
	Title    string
	Authors  []string
	PubYear  *string
	Language string
}

// DocumentReader exposes native PDF information and page text.
type DocumentReader interface {
	Info(path string) (pdfextract.Info, error)
	PageText(path string, page int) (string, error)
}

// OCR recognizes the text of a document's first page. It returns "" on failure.
type OCR interface {
	FirstPageText(ctx context.Context, path string) string
}

// Config holds the extraction thresholds.
type Config struct {
	MinTextChars   int
	TitleMinLen    int
	TitleMaxLen    int
	SanskritRatio  float64
	KeywordMinHits int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinTextChars:   100,
		TitleMinLen:    10,
		TitleMaxLen:    200,
		SanskritRatio:  0.15,
		KeywordMinHits: 2,
	}
}

// Pipeline runs the extraction tiers. It never fails: every error degrades to
// the best partial result assembled so far.
type Pipeline struct {
	cfg      Config
	reader   DocumentReader
	ocr      OCR
	detector LanguageDetector
	logger   *zap.Logger
}

// NewPipeline builds a Pipeline. ocr may be nil to disable the OCR fallback.
func NewPipeline(cfg Config, reader DocumentReader, ocr OCR, logger *zap.Logger) *Pipeline {
	defaults := DefaultConfig()
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = defaults.MinTextChars
	}
	if cfg.TitleMinLen <= 0 {
		cfg.TitleMinLen = defaults.TitleMinLen
	}
	if cfg.TitleMaxLen <= 0 {
		cfg.TitleMaxLen = defaults.TitleMaxLen
	}
	if cfg.SanskritRatio <= 0 {
		cfg.SanskritRatio = defaults.SanskritRatio
	}
	if cfg.KeywordMinHits <= 0 {
		cfg.KeywordMinHits = defaults.KeywordMinHits
	}
	if reader == nil {
		reader = pdfextract.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		reader:   reader,
		ocr:      ocr,
		detector: LanguageDetector{Ratio: cfg.SanskritRatio, MinHits: cfg.KeywordMinHits},
		logger:   logger,
	}
}

// Extract returns metadata for the PDF at path. The title is never empty: it
// falls back to the file's base name.
func (p *Pipeline) Extract(ctx context.Context, path string) (md Metadata) {
	md = Metadata{
		Title:    filepath.Base(path),
		Authors:  []string{},
		Language: LanguageUnknown,
	}
	titleTier, authorTier := TierDefault, TierDefault
	logger := p.logger.With(zap.String("path", path))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("metadata extraction panicked", zap.Any("panic", r))
		}
		metrics.ObserveExtractionTier("title", titleTier)
		metrics.ObserveExtractionTier("authors", authorTier)
	}()

	info, err := p.reader.Info(path)
	if err != nil {
		logger.Warn("reading native metadata failed", zap.Error(err))
	}
	if title := CleanText(info.Title); title != "" {
		md.Title = title
		titleTier = TierNative
	}
	if authors := NormalizeAuthors(info.Author); len(authors) > 0 {
		md.Authors = authors
		authorTier = TierNative
	}

	text, textTier := p.firstPageText(ctx, path, logger)
	fields := p.fromText(text)
	if fields.title != "" && titleTier == TierDefault {
		md.Title = fields.title
		titleTier = textTier
	}
	if len(fields.authors) > 0 && authorTier == TierDefault {
		md.Authors = fields.authors
		authorTier = textTier
	}

	md.Language = p.detector.Detect(text)
	md.PubYear = FindPublicationYear(info.CreationDate, text)
	return md
}

// firstPageText returns the text the heuristics run over and the tier it came from.
func (p *Pipeline) firstPageText(ctx context.Context, path string, logger *zap.Logger) (string, string) {
	text, err := p.reader.PageText(path, 1)
	if err != nil {
		logger.Warn("reading first page text failed", zap.Error(err))
		text = ""
	}
	if utf8.RuneCountInString(text) >= p.cfg.MinTextChars || p.ocr == nil {
		return text, TierText
	}
	logger.Debug("first page text below threshold, running ocr",
		zap.Int("chars", utf8.RuneCountInString(text)),
		zap.Int("min_chars", p.cfg.MinTextChars),
	)
	return p.ocr.FirstPageText(ctx, path), TierOCR
}
