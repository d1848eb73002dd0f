package harvest

import (
	"context"
	"time"

	"github.com/JakeFAU/doc-harvester/internal/crawler"
	"github.com/JakeFAU/doc-harvester/internal/fingerprint"
	"github.com/JakeFAU/doc-harvester/internal/metadata"
	"github.com/JakeFAU/doc-harvester/internal/record"
)

// Crawler downloads the documents of one source.
type Crawler interface {
	Crawl(ctx context.Context, src crawler.Source) (crawler.Result, error)
}

// Hasher fingerprints a downloaded file.
type Hasher interface {
	HashFile(path string) (fingerprint.Fingerprint, fingerprint.DocumentID, error)
}

// Index answers whether content was already persisted and learns new records.
type Index interface {
	IsNewOrChanged(fp fingerprint.Fingerprint) bool
	Lookup(fp fingerprint.Fingerprint) (fingerprint.DocumentID, bool)
	Record(fp fingerprint.Fingerprint, id fingerprint.DocumentID)
}

// Extractor derives bibliographic metadata. It never fails.
type Extractor interface {
	Extract(ctx context.Context, path string) metadata.Metadata
}

// Catalog mirrors persisted records into a queryable store.
type Catalog interface {
	UpsertRecord(ctx context.Context, rec record.Record) error
}

// Notifier announces newly persisted records.
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock provides the scraped_at timestamp.
type Clock interface {
	Now() time.Time
}

// DocumentProcessor turns one downloaded document into at most one record.
type DocumentProcessor interface {
	Process(ctx context.Context, doc crawler.Document) (Outcome, error)
}
