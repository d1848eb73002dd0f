package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAuthors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want []string
	}{
		{"John Smith", []string{"Smith, John"}},
		{"Smith, John", []string{"Smith, John"}},
		{"A and B", []string{"A", "B"}},
		{"John Ronald Tolkien and C. S. Lewis", []string{"Tolkien, John Ronald", "Lewis, C. S."}},
		{"Max Muller, Arthur Macdonell", []string{"Muller, Max", "Macdonell, Arthur"}},
		{"Smith, John; Jane Doe", []string{"Smith, John", "Doe, Jane"}},
		{"Anand Kumar", []string{"Kumar, Anand"}},
		{"  Kalidasa  ", []string{"Kalidasa"}},
		{"", nil},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeAuthors(tc.in), tc.in)
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LanguageUnknown, DetectLanguage(""))
	assert.Equal(t, LanguageSanskrit, DetectLanguage("धर्मक्षेत्रे कुरुक्षेत्रे समवेता युयुत्सवः"))
	assert.Equal(t, LanguageEnglish, DetectLanguage("A plain English paragraph about library catalogues and archives."))
	assert.Equal(t, LanguageSanskrit, DetectLanguage("An introduction to Sanskrit grammar and the वेद tradition, written in English."))
	assert.Equal(t, LanguageEnglish, DetectLanguage("A history of Sanskrit studies in Europe."), "one keyword is not enough")

	// 2 Devanagari runes out of 12 is above 0.15.
	assert.Equal(t, LanguageSanskrit, DetectLanguage("abcdefghij"+"कख"))
	strict := LanguageDetector{Ratio: 0.5, MinHits: 3}
	assert.Equal(t, LanguageEnglish, strict.Detect("abcdefghij"+"कख"))
}

func TestFindPublicationYear(t *testing.T) {
	t.Parallel()

	year := func(p *string) string {
		if p == nil {
			return "<nil>"
		}
		return *p
	}
	assert.Equal(t, "1972", year(FindPublicationYear("D:19721104120000+05'30'", "Printed 1999")))
	assert.Equal(t, "2004", year(FindPublicationYear("created 2004-05-06", "")))
	assert.Equal(t, "1999", year(FindPublicationYear("", "First edition 1999, reprinted 2010")))
	assert.Equal(t, "2010", year(FindPublicationYear("unknown", "ISBN 12345 reprinted 2010")))
	assert.Equal(t, "<nil>", year(FindPublicationYear("", "printed in 1850")))
	assert.Nil(t, FindPublicationYear("", ""))
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "The Rig Veda", CleanText("  The\tRig \n Veda "))
	assert.Empty(t, CleanText(" \n "))
}

func TestFromText(t *testing.T) {
	t.Parallel()

	p := NewPipeline(Config{}, &fakeReader{}, nil, nil)

	t.Run("paragraph lead title and by line", func(t *testing.T) {
		t.Parallel()
		got := p.fromText("The Hymns of the Rigveda\n\nTranslated by Ralph Griffith\n")
		assert.Equal(t, "The Hymns of the Rigveda", got.title)
		assert.Equal(t, []string{"Griffith, Ralph"}, got.authors)
	})

	t.Run("short lead falls through to capitalized line", func(t *testing.T) {
		t.Parallel()
		got := p.fromText("vol. 1\n\nUpanishads of the Ancient Sages\nmore text")
		assert.Equal(t, "Upanishads of the Ancient Sages", got.title)
	})

	t.Run("explicit markers", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("sacred hymn ", 10)
		got := p.fromText("author: vyasa\nTitle: " + long + "\n")
		assert.Equal(t, strings.TrimSpace(long), got.title)
		assert.Equal(t, []string{"vyasa"}, got.authors)
	})

	t.Run("edited by", func(t *testing.T) {
		t.Parallel()
		got := p.fromText("Compiled by Vishnu Sharma\n")
		assert.Equal(t, []string{"Sharma, Vishnu"}, got.authors)
	})

	t.Run("title over the maximum length is rejected", func(t *testing.T) {
		t.Parallel()
		strict := NewPipeline(Config{TitleMaxLen: 15}, &fakeReader{}, nil, nil)
		got := strict.fromText("A Considerably Long Heading\n\n")
		require.Empty(t, got.title)
		got = strict.fromText(strings.Repeat("a", 12) + "\n\n")
		require.Equal(t, strings.Repeat("a", 12), got.title)
	})
}
