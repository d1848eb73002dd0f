package pdfextract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/doc-harvester/internal/extract/pdf/pdftest"
)

func TestInfoReadsDocumentDictionary(t *testing.T) {
	t.Parallel()

	path := pdftest.Write(t, t.TempDir(), "book.pdf", pdftest.Doc{
		Title:        "Rigveda Samhita Volume One",
		Author:       "Max Muller",
		CreationDate: "D:19721104120000",
		Pages:        []string{"first page", "second page"},
	})

	info, err := New().Info(path)
	require.NoError(t, err)
	assert.Equal(t, "Rigveda Samhita Volume One", info.Title)
	assert.Equal(t, "Max Muller", info.Author)
	assert.Equal(t, "D:19721104120000", info.CreationDate)
	assert.Equal(t, 2, info.Pages)
}

func TestInfoWithoutDictionaryEntries(t *testing.T) {
	t.Parallel()

	path := pdftest.Write(t, t.TempDir(), "bare.pdf", pdftest.Doc{Pages: []string{"text"}})
	info, err := New().Info(path)
	require.NoError(t, err)
	assert.Empty(t, info.Title)
	assert.Empty(t, info.Author)
	assert.Equal(t, 1, info.Pages)
}

func TestPageText(t *testing.T) {
	t.Parallel()

	path := pdftest.Write(t, t.TempDir(), "text.pdf", pdftest.Doc{Pages: []string{"Hello World", "Second"}})
	p := New()

	text, err := p.PageText(path, 1)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello World")

	_, err = p.PageText(path, 3)
	require.ErrorIs(t, err, ErrNoPage)
	_, err = p.PageText(path, 0)
	require.ErrorIs(t, err, ErrNoPage)
}

func TestPageTextKeepsLineBreaks(t *testing.T) {
	t.Parallel()

	path := pdftest.Write(t, t.TempDir(), "lines.pdf", pdftest.Doc{
		Pages: []string{"The Hymns of the Rigveda\n\nby Ralph Griffith\nPrinted in 1920"},
	})

	text, err := New().PageText(path, 1)
	require.NoError(t, err)
	assert.Equal(t, "The Hymns of the Rigveda\n\nby Ralph Griffith\nPrinted in 1920\n", text)
}

func TestJoinRowsOrdersRowsAndWords(t *testing.T) {
	t.Parallel()

	rows := pdf.Rows{
		{Position: 652, Content: pdf.TextHorizontal{{S: "third", X: 72}}},
		{Position: 712, Content: pdf.TextHorizontal{{S: "line", X: 100}, {S: "first ", X: 72}}},
		{Position: 692, Content: pdf.TextHorizontal{{S: "second", X: 72}}},
		{Position: 600},
	}
	assert.Equal(t, "first line\nsecond\n\nthird\n", joinRows(rows))
	assert.Empty(t, joinRows(nil))
}

func TestMalformedFilesReturnErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("%PDF-1.4\nthis is not really a pdf"), 0o600))
	truncated := filepath.Join(dir, "truncated.pdf")
	full := pdftest.Bytes(pdftest.Doc{Title: "Cut short", Pages: []string{"x"}})
	require.NoError(t, os.WriteFile(truncated, full[:len(full)/2], 0o600))

	p := New()
	for _, path := range []string{garbage, truncated, filepath.Join(dir, "missing.pdf")} {
		_, err := p.Info(path)
		assert.Error(t, err, path)
		_, err = p.PageText(path, 1)
		assert.Error(t, err, path)
	}
}
