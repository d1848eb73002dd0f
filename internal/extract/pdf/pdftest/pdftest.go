// Package pdftest builds small, well-formed PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Doc describes the PDF to generate. Each entry of Pages becomes one page drawn
// with the standard Helvetica font. Newlines in a page start a new line 20pt
// lower via a Td move, so an empty line leaves a 40pt gap.
type Doc struct {
	Title        string
	Author       string
	CreationDate string
	Pages        []string
}

// Bytes renders doc as a complete PDF with a classic cross-reference table.
func Bytes(doc Doc) []byte {
	pages := doc.Pages
	if len(pages) == 0 {
		pages = []string{""}
	}

	// Objects: 1 catalog, 2 pages, 3 font, 4 info, then a page and content stream per page.
	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		infoDict(doc),
	)
	for i, text := range pages {
		content := pageContent(text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 6+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// Write stores the rendered doc under dir and returns its path.
func Write(t testing.TB, dir, name string, doc Doc) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Bytes(doc), 0o600); err != nil {
		t.Fatalf("write pdf %s: %v", path, err)
	}
	return path
}

func infoDict(doc Doc) string {
	var parts []string
	if doc.Title != "" {
		parts = append(parts, fmt.Sprintf("/Title (%s)", escape(doc.Title)))
	}
	if doc.Author != "" {
		parts = append(parts, fmt.Sprintf("/Author (%s)", escape(doc.Author)))
	}
	if doc.CreationDate != "" {
		parts = append(parts, fmt.Sprintf("/CreationDate (%s)", escape(doc.CreationDate)))
	}
	return "<< " + strings.Join(parts, " ") + " >>"
}

func pageContent(text string) string {
	var b strings.Builder
	b.WriteString("BT /F1 12 Tf 72 712 Td")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString(" 0 -20 Td")
		}
		if line != "" {
			fmt.Fprintf(&b, " (%s) Tj", escape(line))
		}
	}
	b.WriteString(" ET")
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
