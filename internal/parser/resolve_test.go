package parser

import (
	"log/slog"
	"testing"

	"golang.org/x/net/html"

	"github.com/dgallion1/paperdoc/internal/doctree"
)

func registryOf(ids ...string) *registry {
	var vs []doctree.VisualElement
	for i, id := range ids {
		vs = append(vs, doctree.VisualElement{Kind: doctree.KindFigure, ID: id, SourceLine: i + 1})
	}
	return newRegistry(vs)
}

// newTestResolver indexes root and extracts its visuals the same way Extract does.
func newTestResolver(root *html.Node) (*resolver, *visualExtractor) {
	doc := indexDocument(root)
	vx := newVisualExtractor(doc, HashIDs(), slog.New(slog.DiscardHandler))
	reg := newRegistry(vx.extractAll())
	return &resolver{doc: doc, reg: reg, ids: vx.idOf}, vx
}

func TestMostReferenced(t *testing.T) {
	tests := []struct {
		name   string
		ids    []string
		text   string
		want   string
		wantOK bool
	}{
		{"first figure mention wins", []string{"fig1", "fig2"},
			"See Figure 2 and Figure 1. Figure 1 again.", "fig2", true},
		{"first table mention", []string{"table1", "table2"},
			"Table 1 shows X. Table 2 differs. Table 1 confirms.", "table1", true},
		{"figure beats table", []string{"fig3", "table1"},
			"Table 1 and Table 1 but Figure 3.", "fig3", true},
		{"invalid first figure falls to first table", []string{"fig1", "table4"},
			"Figure 9 then Table 4 then Figure 1.", "table4", true},
		{"plurality when both firsts are unknown", []string{"table1", "table2"},
			"Figure 9, Table 7, Table 2, Table 1, Table 1.", "table1", true},
		{"nothing known", []string{"fig1"}, "Figure 5 only.", "", false},
		{"no mentions", []string{"fig1"}, "Plain prose.", "", false},
		{"synthetic id never matches", []string{"table_abc123"}, "Table 1 here.", "", false},
		{"whitespace between word and number", []string{"fig4"}, "Figure\n  4 shows it.", "fig4", true},
		{"no-break space between word and number", []string{"fig1", "fig2"},
			"As shown in Figure\u00a01, results hold.", "fig1", true},
		{"no-break space before table number", []string{"table2"}, "See Table\u00a02.", "table2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &resolver{reg: registryOf(tt.ids...)}
			got, ok := r.mostReferenced(tt.text)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestRegistry_ExcludesInvalidIDs(t *testing.T) {
	reg := registryOf("fig1", "table_abc123", "", "fig1")
	if reg.has("table_abc123") || reg.has("") {
		t.Error("expected synthetic and empty ids excluded")
	}
	if len(reg.elements) != 4 {
		t.Errorf("expected every element kept, got %d", len(reg.elements))
	}
	if len(reg.valid) != 1 {
		t.Errorf("expected 1 valid entry, got %d", len(reg.valid))
	}
}

func TestRegistry_LatestBefore(t *testing.T) {
	reg := newRegistry([]doctree.VisualElement{
		{ID: "fig2", SourceLine: 30},
		{ID: "fig1", SourceLine: 10},
		{ID: "table_x", SourceLine: 20},
	})
	tests := []struct {
		pos    int
		want   string
		wantOK bool
	}{
		{5, "", false},
		{10, "", false},
		{11, "fig1", true},
		{25, "fig1", true},
		{31, "fig2", true},
	}
	for _, tt := range tests {
		got, ok := reg.latestBefore(tt.pos)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("latestBefore(%d): expected (%q, %v), got (%q, %v)", tt.pos, tt.want, tt.wantOK, got, ok)
		}
	}
}

func TestNearest_PrecedingSibling(t *testing.T) {
	root := parseSnippet(t, `<html><body><div>
<figure id="fig1"></figure>
<p id="a">No refs here.</p>
<table id="table_zz"><tr><td>x</td></tr></table>
<p id="b">Nothing.</p>
</div></body></html>`)
	r, _ := newTestResolver(root)

	if got := r.nearest(byID(t, root, "a"), "No refs here."); got == nil || *got != "fig1" {
		t.Errorf("expected fig1, got %v", got)
	}
	// The synthetic table sibling is skipped.
	if got := r.nearest(byID(t, root, "b"), "Nothing."); got == nil || *got != "fig1" {
		t.Errorf("expected fig1 past invalid table, got %v", got)
	}
}

func TestNearest_LatestBeforeFallback(t *testing.T) {
	root := parseSnippet(t, `<html><body>
<div><figure id="fig1"></figure></div>
<div><figure id="fig2"></figure></div>
<p id="c">Outside. See Figure 7.</p>
</body></html>`)
	r, _ := newTestResolver(root)

	got := r.nearest(byID(t, root, "c"), "Outside. See Figure 7.")
	if got == nil || *got != "fig2" {
		t.Errorf("expected latest preceding fig2, got %v", got)
	}
}

func TestNearest_None(t *testing.T) {
	root := parseSnippet(t, `<html><body><p id="d">Lonely.</p><figure id="fig1"></figure></body></html>`)
	r, _ := newTestResolver(root)

	if got := r.nearest(byID(t, root, "d"), "Lonely."); got != nil {
		t.Errorf("expected nil, got %q", *got)
	}
}

func TestNearest_TextWins(t *testing.T) {
	root := parseSnippet(t, `<html><body>
<figure id="fig1"></figure><figure id="fig2"></figure>
<p id="e">Compare with Figure 1.</p>
</body></html>`)
	r, _ := newTestResolver(root)

	if got := r.nearest(byID(t, root, "e"), "Compare with Figure 1."); got == nil || *got != "fig1" {
		t.Errorf("expected fig1 from text, got %v", got)
	}
}
