// Package delta tracks which document fingerprints have already been persisted
// so unchanged downloads can be skipped between (and within) runs.
package delta

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/doc-harvester/internal/fingerprint"
	"github.com/JakeFAU/doc-harvester/internal/record"
)

// Index maps fingerprints of persisted records to their document IDs.
// It is seeded once from the records directory and then updated incrementally
// as new records are written, so intra-run duplicates are also suppressed.
type Index struct {
	mu      sync.RWMutex
	entries map[fingerprint.Fingerprint]fingerprint.DocumentID
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[fingerprint.Fingerprint]fingerprint.DocumentID)}
}

// Load scans dir for persisted records and builds an index from their checksum and id.
// A missing directory yields an empty index. Unreadable or malformed records are skipped.
func Load(dir string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := NewIndex()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("read records dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		format, ok := record.FormatForFile(entry.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rec, err := readRecord(path, format)
		if err != nil {
			logger.Debug("skipping unreadable record", zap.String("path", path), zap.Error(err))
			continue
		}
		if rec.Checksum == "" || rec.DocumentID == "" {
			logger.Debug("skipping incomplete record", zap.String("path", path))
			continue
		}
		idx.entries[fingerprint.Fingerprint(rec.Checksum)] = fingerprint.DocumentID(rec.DocumentID)
	}
	return idx, nil
}

func readRecord(path string, format record.Format) (record.Record, error) {
	// #nosec G304 -- records directory is owned by the harvester.
	data, err := os.ReadFile(path)
	if err != nil {
		return record.Record{}, fmt.Errorf("read record: %w", err)
	}
	return record.Unmarshal(data, format)
}

// IsNewOrChanged reports whether fp is absent from the index.
func (i *Index) IsNewOrChanged(fp fingerprint.Fingerprint) bool {
	if i == nil {
		return true
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.entries[fp]
	return !ok
}

// Lookup returns the document ID recorded for fp.
func (i *Index) Lookup(fp fingerprint.Fingerprint) (fingerprint.DocumentID, bool) {
	if i == nil {
		return "", false
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	id, ok := i.entries[fp]
	return id, ok
}

// Record marks fp as persisted. Call only after the record has been written successfully.
func (i *Index) Record(fp fingerprint.Fingerprint, id fingerprint.DocumentID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[fp] = id
}

// Len returns the number of known fingerprints.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}
