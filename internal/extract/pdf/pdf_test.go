package pdf

import "testing"

func TestCleanRemovesHeadersAndFooters(t *testing.T) {
	raw := "Page 3 of 10\narXiv:2301.12345v2 [cs.LG] 1 Jan 2023\nReal content line here.\n42\n"
	got := clean(raw)
	if got != "Real content line here." {
		t.Fatalf("expected header/footer lines stripped, got %q", got)
	}
}

func TestCleanDehyphenates(t *testing.T) {
	raw := "This is a hyphen-\nated word that should rejoin."
	got := clean(raw)
	if got != "This is a hyphenated word that should rejoin." {
		t.Fatalf("expected dehyphenation, got %q", got)
	}
}

func TestCleanDoesNotDehyphenateBeforeUppercase(t *testing.T) {
	// "continuation begins lowercase" is the documented trigger; a capital
	// letter after the break usually means a genuine line-final hyphen.
	raw := "End of sentence-\nNext Sentence starts here."
	got := clean(raw)
	if got != "End of sentence-\nNext Sentence starts here." {
		t.Fatalf("expected no dehyphenation across a capitalized break, got %q", got)
	}
}

func TestCleanCollapsesWhitespace(t *testing.T) {
	raw := "Too   many    spaces.\n\n\n\nToo many blank lines."
	got := clean(raw)
	if got != "Too many spaces.\n\nToo many blank lines." {
		t.Fatalf("unexpected whitespace collapse: %q", got)
	}
}

func TestFullTextJoinsNonEmptyPages(t *testing.T) {
	et := ExtractedText{Pages: []Page{
		{PageNumber: 1, Text: "first"},
		{PageNumber: 2, Text: ""},
		{PageNumber: 3, Text: "third"},
	}}
	if got := et.FullText(); got != "first\n\nthird" {
		t.Fatalf("expected blank pages skipped, got %q", got)
	}
}
