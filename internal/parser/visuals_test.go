package parser

import (
	"log/slog"
	"testing"

	"golang.org/x/net/html"

	"github.com/dgallion1/paperdoc/internal/doctree"
)

func extractorFor(t *testing.T, src string, gen IDGen) (*html.Node, *visualExtractor) {
	t.Helper()
	root := parseSnippet(t, src)
	return root, newVisualExtractor(indexDocument(root), gen, slog.New(slog.DiscardHandler))
}

func fixedIDs(suffix string) IDGen {
	return func(string, int) string { return suffix }
}

func tables(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if classify(n) == kindTable {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func TestTableID_FromPrecedingCaption(t *testing.T) {
	root, x := extractorFor(t, `<html><body>
<div class="table-caption">Table 4: Scores.</div>
<table><tr><td>1</td></tr></table>
</body></html>`, fixedIDs("zz"))

	n := tables(root)[0]
	if got := x.tableID(n); got != "table4" {
		t.Errorf("expected table4, got %q", got)
	}
	if got := x.tableID(n); got != "table4" {
		t.Errorf("expected repeated call to return table4, got %q", got)
	}
	if got := x.idOf(n); got != "table4" {
		t.Errorf("expected idOf to agree, got %q", got)
	}
	if _, ok := attr(n, "id"); ok {
		t.Error("expected no id attribute written to the tree")
	}
}

func TestTableID_FromFollowingCaption(t *testing.T) {
	root, x := extractorFor(t, `<html><body>
<table><tr><td>1</td></tr></table>
<div class="table-caption">Table 3: Below.</div>
</body></html>`, fixedIDs("zz"))

	if got := x.tableID(tables(root)[0]); got != "table3" {
		t.Errorf("expected table3, got %q", got)
	}
}

func TestTableID_Synthesized(t *testing.T) {
	root, x := extractorFor(t, `<html><body><table><tr><td>1</td></tr></table></body></html>`, fixedIDs("ab12cd34"))

	if got := x.tableID(tables(root)[0]); got != "table_ab12cd34" {
		t.Errorf("expected table_ab12cd34, got %q", got)
	}
}

func TestTableID_TakenNumberIsSynthesized(t *testing.T) {
	root, x := extractorFor(t, `<html><body>
<div class="table-caption">Table 1: First.</div>
<table><tr><td>1</td></tr></table>
<table><tr><td>2</td></tr></table>
</body></html>`, fixedIDs("dup"))

	ts := tables(root)
	if got := x.tableID(ts[0]); got != "table1" {
		t.Errorf("expected table1, got %q", got)
	}
	if got := x.tableID(ts[1]); got != "table_dup" {
		t.Errorf("expected synthesized id for second table, got %q", got)
	}
}

func TestTableID_ExplicitIDReserved(t *testing.T) {
	root, x := extractorFor(t, `<html><body>
<div class="table-caption">Table 2: Caption.</div>
<table><tr><td>1</td></tr></table>
<table id="table2"><tr><td>2</td></tr></table>
</body></html>`, fixedIDs("res"))

	if got := x.tableID(tables(root)[0]); got != "table_res" {
		t.Errorf("expected explicit table2 to stay unique, got %q", got)
	}
}

func TestHashIDs_Deterministic(t *testing.T) {
	gen := HashIDs()
	a, b := gen("table", 42), gen("table", 42)
	if a != b {
		t.Errorf("expected same suffix, got %q and %q", a, b)
	}
	if len(a) != 8 {
		t.Errorf("expected 8 hex chars, got %q", a)
	}
	if gen("table", 43) == a || gen("list", 42) == a {
		t.Error("expected different inputs to give different suffixes")
	}
}

func TestTable_CaptionNumberGuard(t *testing.T) {
	_, x := extractorFor(t, `<html><body>
<table id="table2"><tr><th>H</th></tr><tr><td>v</td></tr></table>
<div class="table-caption">Table 3: Somebody else.</div>
</body></html>`, HashIDs())

	vs := x.extractAll()
	if len(vs) != 1 {
		t.Fatalf("expected 1 element, got %d", len(vs))
	}
	if vs[0].Caption.FullText != "" || len(vs[0].Caption.Sentences) != 0 {
		t.Errorf("expected caption rejected, got %+v", vs[0].Caption)
	}
	if len(vs[0].Headers) != 1 || vs[0].Headers[0] != "H" {
		t.Errorf("unexpected headers %v", vs[0].Headers)
	}
}

func TestTable_SyntheticCaptionHasNoVisual(t *testing.T) {
	_, x := extractorFor(t, `<html><body>
<div class="table-caption">Table 1: Shared.</div>
<table><tr><td>a</td></tr></table>
<table><tr><td>b</td></tr></table>
</body></html>`, fixedIDs("s"))

	vs := x.extractAll()
	if len(vs) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(vs))
	}
	if vs[0].ID != "table1" || vs[0].Caption.FullText != "Table 1: Shared." {
		t.Errorf("unexpected first table %q / %q", vs[0].ID, vs[0].Caption.FullText)
	}
	if vs[0].Caption.Sentences[0].AssociatedVisual == nil || *vs[0].Caption.Sentences[0].AssociatedVisual != "table1" {
		t.Error("expected caption sentence bound to table1")
	}
	// table_s does not carry a number, so the shared caption is not attached.
	if vs[1].ID != "table_s" || vs[1].Caption.FullText != "" {
		t.Errorf("unexpected second table %q / %q", vs[1].ID, vs[1].Caption.FullText)
	}
}

func TestFigure_NoCaption(t *testing.T) {
	_, x := extractorFor(t, `<html><body><figure id="fig7"><img src="a.png"></figure></body></html>`, HashIDs())

	vs := x.extractAll()
	if len(vs) != 1 {
		t.Fatalf("expected 1 element, got %d", len(vs))
	}
	if vs[0].Kind != doctree.KindFigure || vs[0].Image.Src != "a.png" || vs[0].Image.Alt != "" {
		t.Errorf("unexpected figure %+v", vs[0])
	}
	if vs[0].Caption.Sentences == nil || len(vs[0].Caption.Sentences) != 0 {
		t.Errorf("expected empty caption, got %+v", vs[0].Caption)
	}
}

func TestCaptionMatches(t *testing.T) {
	tests := []struct {
		caption, id string
		want        bool
	}{
		{"Table 1: x", "table1", true},
		{"Table 12: x", "table1", false},
		{"Table 2: x", "table1", false},
		{"No number", "table1", false},
		{"Table 1: x", "table_abc", false},
		{"Table\u00a02: x", "table2", true},
		{"Table\u202f3: x", "table3", true},
	}
	for _, tt := range tests {
		if got := captionMatches(tt.caption, tt.id); got != tt.want {
			t.Errorf("captionMatches(%q, %q) = %v, want %v", tt.caption, tt.id, got, tt.want)
		}
	}
}
