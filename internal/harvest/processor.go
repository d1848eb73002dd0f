package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/doc-harvester/internal/clock/system"
	"github.com/JakeFAU/doc-harvester/internal/crawler"
	"github.com/JakeFAU/doc-harvester/internal/metrics"
	"github.com/JakeFAU/doc-harvester/internal/record"
	"github.com/JakeFAU/doc-harvester/internal/storage"
)

// Outcome classifies what happened to a downloaded document.
type Outcome string

// Processing outcomes.
const (
	OutcomeProcessed   Outcome = "processed"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeNonDocument Outcome = "non_document"
)

const documentExt = ".pdf"

// ProcessorConfig controls record encoding and notification routing.
type ProcessorConfig struct {
	Format record.Format
	// Topic receives one message per new record when a Notifier is configured.
	Topic string
}

// Deps groups the Processor's collaborators. Records, Hasher, Index and
// Extractor are required; the rest are optional mirrors.
type Deps struct {
	Hasher    Hasher
	Index     Index
	Extractor Extractor
	Records   storage.BlobStore
	Mirror    storage.BlobStore
	Catalog   Catalog
	Notifier  Notifier
	Clock     Clock
}

// Processor fingerprints, delta-checks, extracts and persists single documents.
type Processor struct {
	cfg  ProcessorConfig
	deps Deps
	log  *zap.Logger
}

// NewProcessor validates deps and returns a Processor.
func NewProcessor(cfg ProcessorConfig, deps Deps, logger *zap.Logger) (*Processor, error) {
	switch {
	case deps.Hasher == nil:
		return nil, errors.New("hasher is required")
	case deps.Index == nil:
		return nil, errors.New("delta index is required")
	case deps.Extractor == nil:
		return nil, errors.New("metadata extractor is required")
	case deps.Records == nil:
		return nil, errors.New("record store is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if cfg.Format == "" {
		cfg.Format = record.FormatJSON
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{cfg: cfg, deps: deps, log: logger}, nil
}

// Process persists a record for doc when its content is new. The delta index
// learns the fingerprint only after the record is durably written, so a
// byte-identical download later in the same run is reported unchanged.
func (p *Processor) Process(ctx context.Context, doc crawler.Document) (Outcome, error) {
	logger := p.log.With(zap.String("path", doc.Path), zap.String("url", doc.URL))
	if !strings.EqualFold(filepath.Ext(doc.Path), documentExt) {
		logger.Info("skipping non-pdf download")
		metrics.ObserveDocument(doc.URL, metrics.DocumentNonDocument)
		return OutcomeNonDocument, nil
	}

	fp, id, err := p.deps.Hasher.HashFile(doc.Path)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", doc.Path, err)
	}
	if !p.deps.Index.IsNewOrChanged(fp) {
		existing, _ := p.deps.Index.Lookup(fp)
		logger.Info("skipping unchanged document", zap.String("document_id", existing.String()))
		metrics.ObserveDocument(doc.URL, metrics.DocumentUnchanged)
		return OutcomeUnchanged, nil
	}

	md := p.deps.Extractor.Extract(ctx, doc.Path)
	rec := record.Record{
		DocumentID:  id.String(),
		Checksum:    fp.String(),
		Title:       md.Title,
		Authors:     md.Authors,
		PubYear:     md.PubYear,
		Language:    md.Language,
		ScrapedAt:   record.FormatTimestamp(p.deps.Clock.Now()),
		Site:        siteOf(doc),
		DownloadURL: doc.URL,
	}
	data, err := record.Marshal(rec, p.cfg.Format)
	if err != nil {
		return "", fmt.Errorf("encode record %s: %w", rec.DocumentID, err)
	}
	uri, err := p.deps.Records.PutObject(ctx, p.cfg.Format.Filename(rec.DocumentID), p.contentType(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("persist record %s: %w", rec.DocumentID, err)
	}
	p.deps.Index.Record(fp, id)
	logger.Info("document processed",
		zap.String("document_id", rec.DocumentID),
		zap.String("title", rec.Title),
		zap.String("record", uri),
	)
	metrics.ObserveDocument(doc.URL, metrics.DocumentProcessed)

	p.mirror(ctx, doc, logger)
	p.catalog(ctx, rec, logger)
	p.notify(ctx, rec, logger)
	return OutcomeProcessed, nil
}

func (p *Processor) contentType() string {
	if p.cfg.Format == record.FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// mirror copies the raw document to the optional blob mirror. Failures are logged only.
func (p *Processor) mirror(ctx context.Context, doc crawler.Document, logger *zap.Logger) {
	if p.deps.Mirror == nil {
		return
	}
	// #nosec G304 -- paths come from the harvester's own download directory.
	f, err := os.Open(doc.Path)
	if err != nil {
		logger.Warn("open document for mirror failed", zap.Error(err))
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Debug("close mirrored document", zap.Error(cerr))
		}
	}()
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	uri, err := p.deps.Mirror.PutObject(ctx, filepath.Base(doc.Path), contentType, f)
	if err != nil {
		logger.Warn("mirror raw document failed", zap.Error(err))
		return
	}
	logger.Debug("raw document mirrored", zap.String("uri", uri))
}

func (p *Processor) catalog(ctx context.Context, rec record.Record, logger *zap.Logger) {
	if p.deps.Catalog == nil {
		return
	}
	if err := p.deps.Catalog.UpsertRecord(ctx, rec); err != nil {
		logger.Warn("catalog upsert failed", zap.String("document_id", rec.DocumentID), zap.Error(err))
	}
}

func (p *Processor) notify(ctx context.Context, rec record.Record, logger *zap.Logger) {
	if p.deps.Notifier == nil || p.cfg.Topic == "" {
		return
	}
	msgID, err := p.deps.Notifier.Publish(ctx, p.cfg.Topic, rec)
	if err != nil {
		logger.Warn("publish record failed", zap.String("document_id", rec.DocumentID), zap.Error(err))
		return
	}
	logger.Debug("record published", zap.String("message_id", msgID))
}

// siteOf is the host of the start URL the document was reached from.
func siteOf(doc crawler.Document) string {
	for _, raw := range []string{doc.Seed, doc.URL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return ""
}
