// Package pdfextract reads native metadata and page text from PDF files.
package pdfextract

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoPage is returned when a requested page does not exist.
var ErrNoPage = errors.New("page out of range")

// Info holds the document information dictionary of a PDF.
type Info struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate string
	Pages        int
}

// Parser extracts information from PDF files on disk.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// Info reads the document information dictionary. Malformed files yield an error,
// including ones that make the underlying parser panic.
func (p *Parser) Info(path string) (info Info, err error) {
	defer recoverInto(&err, path)

	f, r, err := pdf.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	dict := r.Trailer().Key("Info")
	info = Info{
		Title:        textValue(dict, "Title"),
		Author:       textValue(dict, "Author"),
		Subject:      textValue(dict, "Subject"),
		Keywords:     textValue(dict, "Keywords"),
		Creator:      textValue(dict, "Creator"),
		Producer:     textValue(dict, "Producer"),
		CreationDate: textValue(dict, "CreationDate"),
		Pages:        r.NumPage(),
	}
	return info, nil
}

// PageText returns the plain text of a 1-indexed page.
func (p *Parser) PageText(path string, page int) (text string, err error) {
	defer recoverInto(&err, path)

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	if page < 1 || page > r.NumPage() {
		return "", fmt.Errorf("%w: %d of %d", ErrNoPage, page, r.NumPage())
	}
	pg := r.Page(page)
	if pg.V.IsNull() {
		return "", fmt.Errorf("%w: page %d has no content", ErrNoPage, page)
	}
	rows, err := pg.GetTextByRow()
	if err != nil {
		return "", fmt.Errorf("extract text from page %d: %w", page, err)
	}
	return joinRows(rows), nil
}

// joinRows rebuilds the page's line structure: rows top to bottom separated by
// "\n", with a blank line where the vertical gap is well above the tightest
// line spacing on the page.
func joinRows(rows pdf.Rows) string {
	lines := make([]*pdf.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil && len(row.Content) > 0 {
			lines = append(lines, row)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Position > lines[j].Position })

	minGap := int64(-1)
	for i := 1; i < len(lines); i++ {
		if gap := lines[i-1].Position - lines[i].Position; gap > 0 && (minGap < 0 || gap < minGap) {
			minGap = gap
		}
	}

	var b strings.Builder
	for i, row := range lines {
		if i > 0 {
			b.WriteByte('\n')
			if minGap > 0 && 2*(lines[i-1].Position-row.Position) >= 3*minGap {
				b.WriteByte('\n')
			}
		}
		words := append([]pdf.Text(nil), row.Content...)
		sort.SliceStable(words, func(i, j int) bool { return words[i].X < words[j].X })
		for _, w := range words {
			b.WriteString(w.S)
		}
	}
	if len(lines) > 0 {
		b.WriteByte('\n')
	}
	return b.String()
}

func textValue(dict pdf.Value, key string) string {
	if dict.IsNull() {
		return ""
	}
	v := dict.Key(key)
	if v.IsNull() {
		return ""
	}
	return strings.TrimSpace(v.Text())
}

func recoverInto(err *error, path string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("parse pdf %s: %v", path, r)
	}
}
