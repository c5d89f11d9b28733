package parser

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/dgallion1/paperdoc/internal/doctree"
	"github.com/dgallion1/paperdoc/internal/textnorm"
)

const (
	ccsLabel       = "CCS Concepts:"
	keywordsLabel  = "Keywords:"
	acmRefLabel    = "ACM Reference Format:"
	doiLabel       = "DOI:"
	navigateMarker = "Navigate"
)

var (
	nonASCII  = runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII }))
	refPolicy = newRefPolicy()
)

// newRefPolicy keeps user-generated markup plus class attributes, so the
// reference block stays styleable.
func newRefPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	return p
}

// extractFrontMatter maps the front-matter block onto flat fields. Missing
// containers leave their fields empty.
func extractFrontMatter(doc *goquery.Document) doctree.FrontMatter {
	fm := doctree.FrontMatter{Authors: []doctree.Author{}}
	sec := doc.Find("section.front-matter").First()
	if sec.Length() == 0 {
		return fm
	}

	fm.Title = selText(sec.Find("span.title").First())

	sec.Find("div.authorGroup").First().Find("div.author").Each(func(_ int, s *goquery.Selection) {
		fm.Authors = append(fm.Authors, extractAuthor(s))
	})

	if pub := sec.Find("div.pubInfo").First(); pub.Length() > 0 {
		doi := pub.Find(`a[href*="doi.org"]`).First()
		if href, ok := doi.Attr("href"); ok {
			fm.PubInfo.DOI = href
			conf := selText(pub)
			conf = strings.ReplaceAll(conf, selText(doi), "")
			conf = strings.ReplaceAll(conf, doiLabel, "")
			fm.PubInfo.ConferenceInfo = textnorm.Normalize(conf)
		}
	}

	if ccs := sec.Find("div.CCSconcepts").First(); ccs.Length() > 0 {
		text := strings.ReplaceAll(selText(ccs), ccsLabel, "")
		if ascii, _, err := transform.String(nonASCII, text); err == nil {
			text = ascii
		}
		fm.CCSConcepts = textnorm.Normalize(text)
	}

	if kw := sec.Find("div.classifications").First(); kw.Length() > 0 {
		fm.Keywords = between(selText(kw), keywordsLabel, acmRefLabel)
	}

	if ref := sec.Find("div.AcmReferenceFormat").First(); ref.Length() > 0 {
		if raw, err := goquery.OuterHtml(ref); err == nil {
			fm.ACMReferenceFormat = refPolicy.Sanitize(raw)
		}
	}
	return fm
}

// extractAuthor reads name parts and email from one author block. The
// institution is the first text run between the surname and the email.
func extractAuthor(s *goquery.Selection) doctree.Author {
	a := doctree.Author{
		GivenName: selText(s.Find("span.givenName").First()),
		SurName:   selText(s.Find("span.surName").First()),
	}
	if href, ok := s.Find(`a[href*="mailto:"]`).First().Attr("href"); ok {
		a.Email = strings.ReplaceAll(href, "mailto:", "")
	}
	if len(s.Nodes) == 0 || a.SurName == "" || a.Email == "" {
		return a
	}

	parts := strippedStrings(s.Nodes[0])
	nameIdx, emailIdx := indexOf(parts, a.SurName), indexOf(parts, a.Email)
	if nameIdx >= 0 && emailIdx-nameIdx > 1 {
		a.Institution = textnorm.Normalize(parts[nameIdx+1])
	}
	return a
}

// extractReferences reads every entry of the bibliography list.
func extractReferences(doc *goquery.Document) []doctree.Reference {
	refs := []doctree.Reference{}
	doc.Find("ul.bibUl").First().Find("li").Each(func(_ int, li *goquery.Selection) {
		citation := selText(li)
		if i := strings.Index(citation, navigateMarker); i >= 0 {
			citation = strings.TrimSpace(citation[:i])
		}
		refs = append(refs, doctree.Reference{
			ID:       li.AttrOr("id", ""),
			Label:    li.AttrOr("label", ""),
			Value:    li.AttrOr("value", ""),
			Citation: citation,
		})
	})
	return refs
}

func selText(s *goquery.Selection) string {
	return textnorm.Normalize(s.Text())
}

// between returns the trimmed text between two labels, or "" unless both occur.
func between(text, start, end string) string {
	i := strings.Index(text, start)
	if i < 0 || !strings.Contains(text, end) {
		return ""
	}
	rest := text[i+len(start):]
	if j := strings.Index(rest, end); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
