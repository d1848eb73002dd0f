// Package record defines the persisted metadata record and its on-disk encodings.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Format selects the on-disk encoding of a record.
type Format string

// Supported record formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// TimestampLayout is the UTC layout used for scraped_at.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Record is the unit of output: one per new or changed document, immutable once written.
type Record struct {
	DocumentID  string   `json:"document_id" yaml:"document_id"`
	Checksum    string   `json:"checksum" yaml:"checksum"`
	Title       string   `json:"title" yaml:"title"`
	Authors     []string `json:"authors" yaml:"authors"`
	PubYear     *string  `json:"pub_year" yaml:"pub_year"`
	Language    string   `json:"language" yaml:"language"`
	ScrapedAt   string   `json:"scraped_at" yaml:"scraped_at"`
	Site        string   `json:"site" yaml:"site"`
	DownloadURL string   `json:"download_url" yaml:"download_url"`
}

// FormatTimestamp renders t as the UTC scraped_at string.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseFormat validates a configured format name.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown record format %q", raw)
	}
}

// Ext returns the file extension (with dot) used for records in this format.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// FormatForFile infers the format from a record filename, reporting false for foreign files.
func FormatForFile(name string) (Format, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON, true
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML, true
	default:
		return "", false
	}
}

// Filename is the record's file name: <document_id>.<ext>.
func (f Format) Filename(documentID string) string {
	return documentID + f.Ext()
}

// Marshal encodes rec. Non-Latin scripts are written verbatim, never escaped.
func Marshal(rec Record, f Format) ([]byte, error) {
	if rec.Authors == nil {
		rec.Authors = []string{}
	}
	switch f {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode yaml record: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("close yaml encoder: %w", err)
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode json record: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// Unmarshal decodes a record previously written with Marshal.
func Unmarshal(data []byte, f Format) (Record, error) {
	var rec Record
	switch f {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return Record{}, fmt.Errorf("decode yaml record: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &rec); err != nil {
			return Record{}, fmt.Errorf("decode json record: %w", err)
		}
	}
	return rec, nil
}
