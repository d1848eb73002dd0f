package harvest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/doc-harvester/internal/clock/system"
	"github.com/JakeFAU/doc-harvester/internal/crawler"
	"github.com/JakeFAU/doc-harvester/internal/delta"
	"github.com/JakeFAU/doc-harvester/internal/extract/pdf/pdftest"
	collyfetcher "github.com/JakeFAU/doc-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/doc-harvester/internal/fingerprint"
	"github.com/JakeFAU/doc-harvester/internal/metadata"
	"github.com/JakeFAU/doc-harvester/internal/policy"
	"github.com/JakeFAU/doc-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/doc-harvester/internal/policy/robots"
	"github.com/JakeFAU/doc-harvester/internal/record"
	"github.com/JakeFAU/doc-harvester/internal/storage/local"
)

func TestHarvestEndToEnd(t *testing.T) {
	t.Parallel()

	newPDF := pdftest.Bytes(pdftest.Doc{
		Title:        "Yoga Sutras of Patanjali",
		Author:       "Patanjali",
		CreationDate: "D:19950101000000",
		Pages:        []string{"A treatise on the practice of yoga."},
	})
	oldPDF := pdftest.Bytes(pdftest.Doc{Title: "Previously Harvested Volume", Pages: []string{"old"}})

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
			<a href="/docs/new.pdf">new</a>
			<a href="/docs/old.pdf">old</a>
			<a href="/private/hidden.pdf">hidden</a>
		</body></html>`)
	})
	servePDF := func(body []byte) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(body)
		}
	}
	mux.HandleFunc("/docs/new.pdf", servePDF(newPDF))
	mux.HandleFunc("/docs/old.pdf", servePDF(oldPDF))
	mux.HandleFunc("/private/hidden.pdf", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("disallowed document was fetched")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	rawDir := filepath.Join(t.TempDir(), "raw")
	recordsDir := filepath.Join(t.TempDir(), "json")
	records, err := local.New(local.Config{BaseDir: recordsDir})
	require.NoError(t, err)

	oldFP := fingerprint.DigestBytes(oldPDF)
	oldID := fingerprint.DeriveID(oldFP)
	prior, err := record.Marshal(record.Record{
		DocumentID: oldID.String(),
		Checksum:   oldFP.String(),
		Title:      "Previously Harvested Volume",
	}, record.FormatJSON)
	require.NoError(t, err)
	_, err = records.PutObject(context.Background(), oldID.String()+".json", "application/json", bytes.NewReader(prior))
	require.NoError(t, err)

	index, err := delta.Load(recordsDir, nil)
	require.NoError(t, err)
	require.Equal(t, 1, index.Len())

	const userAgent = "DocHarvester/1.0 (test)"
	gate := policy.NewGate(
		robots.New(robots.Config{UserAgent: userAgent, FailOpen: true}, nil, nil),
		ratelimit.New(ratelimit.Config{}),
		nil,
		nil,
	)
	sink, err := crawler.NewFileSystemSink(rawDir, nil)
	require.NoError(t, err)
	frontier, err := crawler.New(crawler.Config{}, collyfetcher.New(collyfetcher.Config{UserAgent: userAgent}), gate, sink, nil)
	require.NoError(t, err)

	processor, err := NewProcessor(ProcessorConfig{Format: record.FormatJSON}, Deps{
		Hasher:    fingerprint.New(),
		Index:     index,
		Extractor: metadata.NewPipeline(metadata.DefaultConfig(), nil, nil, nil),
		Records:   records,
		Clock:     system.New(),
	}, nil)
	require.NoError(t, err)

	src := crawler.Source{Name: "test-library", StartURLs: []string{srv.URL + "/"}, MaxDocs: 10}
	h, err := NewHarvester(frontier, processor, []crawler.Source{src}, "e2e", nil)
	require.NoError(t, err)

	summary, err := h.Run(context.Background())
	require.NoError(t, err)
	total := summary.Totals()
	assert.Equal(t, 2, total.Downloaded)
	assert.Equal(t, 1, total.Processed)
	assert.Equal(t, 1, total.Unchanged)
	assert.Zero(t, total.Failed)
	assert.Equal(t, 1, total.Denied)

	rawEntries, err := os.ReadDir(rawDir)
	require.NoError(t, err)
	assert.Len(t, rawEntries, 2)

	recordEntries, err := os.ReadDir(recordsDir)
	require.NoError(t, err)
	require.Len(t, recordEntries, 2)

	newFP := fingerprint.DigestBytes(newPDF)
	newID := fingerprint.DeriveID(newFP)
	data, err := os.ReadFile(filepath.Join(recordsDir, newID.String()+".json"))
	require.NoError(t, err)
	rec, err := record.Unmarshal(data, record.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, newFP.String(), rec.Checksum)
	assert.Equal(t, "Yoga Sutras of Patanjali", rec.Title)
	assert.Equal(t, []string{"Patanjali"}, rec.Authors)
	require.NotNil(t, rec.PubYear)
	assert.Equal(t, "1995", *rec.PubYear)
	assert.Equal(t, srv.URL+"/docs/new.pdf", rec.DownloadURL)
	assert.Equal(t, srv.Listener.Addr().String(), rec.Site)
	assert.False(t, index.IsNewOrChanged(newFP))
}
