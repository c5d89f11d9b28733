package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func fixtureQuery(t *testing.T) *goquery.Document {
	t.Helper()
	return goquery.NewDocumentFromNode(loadFixture(t))
}

func TestExtractFrontMatter(t *testing.T) {
	fm := extractFrontMatter(fixtureQuery(t))

	if fm.Title != "Seeing Is Believing: A Study" {
		t.Errorf("unexpected title %q", fm.Title)
	}
	if len(fm.Authors) != 2 {
		t.Fatalf("expected 2 authors, got %d", len(fm.Authors))
	}

	ada := fm.Authors[0]
	if ada.GivenName != "Ada" || ada.SurName != "Lovelace" {
		t.Errorf("unexpected name %q %q", ada.GivenName, ada.SurName)
	}
	if ada.Email != "ada@example.org" {
		t.Errorf("expected mailto prefix stripped, got %q", ada.Email)
	}
	if ada.Institution != "Analytical Engine Institute, London, UK" {
		t.Errorf("unexpected institution %q", ada.Institution)
	}
	if fm.Authors[1].Institution != "" {
		t.Errorf("expected no institution, got %q", fm.Authors[1].Institution)
	}

	if fm.PubInfo.DOI != "https://doi.org/10.1145/1234567.7654321" {
		t.Errorf("unexpected DOI %q", fm.PubInfo.DOI)
	}
	if fm.PubInfo.ConferenceInfo != "CHI '24, May 11-16, 2024, Honolulu, HI, USA" {
		t.Errorf("unexpected conference info %q", fm.PubInfo.ConferenceInfo)
	}
	if fm.CCSConcepts != "Human-centered computing Empirical studies;" {
		t.Errorf("unexpected CCS concepts %q", fm.CCSConcepts)
	}
	if fm.Keywords != "figures, tables, reading" {
		t.Errorf("unexpected keywords %q", fm.Keywords)
	}

	if !strings.Contains(fm.ACMReferenceFormat, "Seeing Is Believing") {
		t.Errorf("expected reference text kept, got %q", fm.ACMReferenceFormat)
	}
	if strings.Contains(fm.ACMReferenceFormat, "<script") {
		t.Errorf("expected script removed, got %q", fm.ACMReferenceFormat)
	}
	if !strings.Contains(fm.ACMReferenceFormat, `class="AcmReferenceFormat"`) {
		t.Errorf("expected class attribute kept, got %q", fm.ACMReferenceFormat)
	}
}

func TestExtractFrontMatter_ReferenceMarkup(t *testing.T) {
	doc := goquery.NewDocumentFromNode(parseSnippet(t, `<html><body><section class="front-matter">
<div class="AcmReferenceFormat"><p class="ref-line" onclick="x()">Ada. 2024. <span class="venue">CHI</span>.</p></div>
</section></body></html>`))
	fm := extractFrontMatter(doc)

	for _, want := range []string{`class="ref-line"`, `class="venue"`, "Ada. 2024."} {
		if !strings.Contains(fm.ACMReferenceFormat, want) {
			t.Errorf("expected %q in %q", want, fm.ACMReferenceFormat)
		}
	}
	if strings.Contains(fm.ACMReferenceFormat, "onclick") {
		t.Errorf("expected event handler removed, got %q", fm.ACMReferenceFormat)
	}
}

func TestExtractFrontMatter_Missing(t *testing.T) {
	fm := extractFrontMatter(goquery.NewDocumentFromNode(parseSnippet(t, "<html><body><p>x</p></body></html>")))
	if fm.Title != "" || fm.Authors == nil || len(fm.Authors) != 0 {
		t.Errorf("expected empty front matter, got %+v", fm)
	}
}

func TestExtractFrontMatter_KeywordsNeedBothLabels(t *testing.T) {
	src := `<html><body><section class="front-matter">
<div class="classifications"><p>Keywords: alpha, beta</p></div>
</section></body></html>`
	fm := extractFrontMatter(goquery.NewDocumentFromNode(parseSnippet(t, src)))
	if fm.Keywords != "" {
		t.Errorf("expected no keywords without the end label, got %q", fm.Keywords)
	}
}

func TestExtractReferences(t *testing.T) {
	refs := extractReferences(fixtureQuery(t))
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[0].ID != "bib1" || refs[0].Label != "[1]" || refs[0].Value != "1" {
		t.Errorf("unexpected attributes %+v", refs[0])
	}
	if refs[0].Citation != "Charles Babbage. 1864. Passages." {
		t.Errorf("expected navigation text cut, got %q", refs[0].Citation)
	}
	if refs[1].Citation != "Grace Hopper. 1952. Compilers." {
		t.Errorf("unexpected citation %q", refs[1].Citation)
	}
}

func TestBetween(t *testing.T) {
	tests := []struct {
		text, want string
	}{
		{"Keywords: a, bACM Reference Format: x", "a, b"},
		{"Keywords: a", ""},
		{"ACM Reference Format: x", ""},
		{"pre Keywords:ACM Reference Format:", ""},
	}
	for _, tt := range tests {
		if got := between(tt.text, keywordsLabel, acmRefLabel); got != tt.want {
			t.Errorf("between(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
