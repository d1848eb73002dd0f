package metadata

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Language labels.
const (
	LanguageSanskrit = "Sanskrit"
	LanguageEnglish  = "English"
	LanguageUnknown  = "Unknown"
)

// Title patterns in priority order: lead text ending a paragraph, a capitalized
// line, an explicit "Title:" marker.
var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^(.{10,100}?)\n\n`),
	regexp.MustCompile(`([A-Z][^\n]{10,100})\n`),
	regexp.MustCompile(`Title:\s*(.*?)\n`),
}

// Author patterns in priority order.
var authorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bby\s+([^\n]+)`),
	regexp.MustCompile(`(?i)Author:\s*(.*?)\n`),
	regexp.MustCompile(`(?i)(?:Edited|Compiled) by\s+([^\n]+)`),
}

var (
	authorSeparators = regexp.MustCompile(`;|\band\b`)
	creationYear     = regexp.MustCompile(`D:(\d{4})`)
	anyYear          = regexp.MustCompile(`\b(\d{4})\b`)
	textYear         = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

var sanskritKeywords = []string{"संस्कृत", "sanskrit", "वेद", "पुराण", "श्लोक"}

// CleanText trims s and collapses every whitespace run to a single space.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textFields is what the heuristics recover from a page of text.
type textFields struct {
	title   string
	authors []string
}

func (p *Pipeline) fromText(text string) textFields {
	var out textFields
	for _, re := range titlePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n := utf8.RuneCountInString(strings.TrimSpace(m[1]))
		if n >= p.cfg.TitleMinLen && n <= p.cfg.TitleMaxLen {
			out.title = CleanText(m[1])
			break
		}
	}
	for _, re := range authorPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			out.authors = NormalizeAuthors(m[1])
			break
		}
	}
	return out
}

// NormalizeAuthors splits a raw author string on commas, semicolons, and the
// word "and", rewriting each "First Middle Last" fragment to "Last, First Middle".
// A fragment already written as "Last, First" is kept whole.
func NormalizeAuthors(raw string) []string {
	var authors []string
	for _, segment := range authorSeparators.Split(raw, -1) {
		for _, name := range splitCommas(segment) {
			name = CleanText(name)
			if name == "" {
				continue
			}
			authors = append(authors, formatAuthorName(name))
		}
	}
	return authors
}

// splitCommas keeps "Last, First" together and splits comma-separated lists of
// full names.
func splitCommas(segment string) []string {
	parts := strings.Split(segment, ",")
	if len(parts) == 2 && len(strings.Fields(parts[0])) == 1 && len(strings.Fields(parts[1])) > 0 {
		return []string{segment}
	}
	return parts
}

func formatAuthorName(name string) string {
	if strings.Contains(name, ",") {
		return strings.Join(strings.Fields(strings.ReplaceAll(name, ",", ", ")), " ")
	}
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	return parts[len(parts)-1] + ", " + strings.Join(parts[:len(parts)-1], " ")
}

// LanguageDetector classifies text as Sanskrit when enough of it is Devanagari
// or enough distinct Sanskrit keywords appear.
type LanguageDetector struct {
	Ratio   float64
	MinHits int
}

var defaultDetector = LanguageDetector{Ratio: 0.15, MinHits: 2}

// DetectLanguage classifies text with the default thresholds.
func DetectLanguage(text string) string {
	return defaultDetector.Detect(text)
}

// Detect returns LanguageSanskrit, LanguageEnglish, or LanguageUnknown for empty text.
func (d LanguageDetector) Detect(text string) string {
	if text == "" {
		return LanguageUnknown
	}
	total, devanagari := 0, 0
	for _, r := range text {
		total++
		if r >= 0x0900 && r <= 0x097F {
			devanagari++
		}
	}
	ratio := float64(devanagari) / float64(max(1, total))

	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range sanskritKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	if ratio > d.Ratio || hits >= d.MinHits {
		return LanguageSanskrit
	}
	return LanguageEnglish
}

// FindPublicationYear looks for a year in the PDF creation date, preferring the
// "D:YYYY" date prefix, then in text for the first 19xx or 20xx token.
// It returns nil when no year is found.
func FindPublicationYear(creationDate, text string) *string {
	if creationDate != "" {
		if m := creationYear.FindStringSubmatch(creationDate); m != nil {
			return &m[1]
		}
		if m := anyYear.FindStringSubmatch(creationDate); m != nil {
			return &m[1]
		}
	}
	if text != "" {
		if m := textYear.FindString(text); m != "" {
			return &m
		}
	}
	return nil
}
