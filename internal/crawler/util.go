package crawler

import (
	"net/url"
	"strings"
)

// SanitizeFilename derives a flat file name from a document URL: the host without
// a leading "www." joined to the path with slashes replaced by underscores.
// A URL without a path yields the host alone.
func SanitizeFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.Replace(u.Host, "www.", "", 1)
	p := strings.Trim(strings.ReplaceAll(u.Path, "/", "_"), "_")
	if p == "" {
		return host
	}
	return host + "_" + p
}

// documentFilter identifies links whose path plausibly names a document.
type documentFilter struct {
	extensions []string
	markers    []string
	mediaTypes []string
}

func newDocumentFilter(extensions, markers, mediaTypes []string) documentFilter {
	return documentFilter{
		extensions: lowerAll(extensions),
		markers:    lowerAll(markers),
		mediaTypes: lowerAll(mediaTypes),
	}
}

// IsDocumentLink matches the URL path against the extension and path-marker lists.
func (f documentFilter) IsDocumentLink(u *url.URL) bool {
	if u == nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range f.extensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	for _, marker := range f.markers {
		if strings.Contains(p, marker) {
			return true
		}
	}
	return false
}

// IsDocumentResponse reports whether a response carries a document payload.
func (f documentFilter) IsDocumentResponse(resp FetchResponse) bool {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	contentType := strings.ToLower(resp.ContentType())
	for _, marker := range f.mediaTypes {
		if strings.Contains(contentType, marker) {
			return true
		}
	}
	return false
}

func sameHost(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
