package chunk

import (
	"strings"
	"testing"

	"askace/internal/types"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "w"
	}
	return strings.Join(w, " ")
}

func TestSplitWindows(t *testing.T) {
	doc := types.Document{URL: "https://a.example", Title: "A", Text: words(500), SourceType: types.SourceNews}
	chunks := Split(doc, DefaultWindow, DefaultStride)

	// starts at 0, 160, 320, 480
	if len(chunks) != 4 {
		t.Fatalf("chunks = %d, want 4", len(chunks))
	}
	wantBounds := [][2]int{{0, 220}, {160, 380}, {320, 500}, {480, 500}}
	for i, c := range chunks {
		if c.StartWord != wantBounds[i][0] || c.EndWord != wantBounds[i][1] {
			t.Errorf("chunk %d bounds = [%d,%d), want %v", i, c.StartWord, c.EndWord, wantBounds[i])
		}
		if c.ID != ID(doc.URL, i) {
			t.Errorf("chunk %d id = %s", i, c.ID)
		}
		if c.URL != doc.URL || c.Title != "A" || c.SourceType != types.SourceNews {
			t.Errorf("chunk %d lost document fields: %#v", i, c)
		}
	}
	if got := len(strings.Fields(chunks[0].Text)); got != 220 {
		t.Errorf("first window = %d words, want 220", got)
	}
}

func TestSplitEmptyAndShort(t *testing.T) {
	if got := Split(types.Document{Text: "  \n "}, 220, 60); len(got) != 0 {
		t.Fatalf("empty text produced %d chunks", len(got))
	}
	got := Split(types.Document{URL: "u", Text: "just a snippet"}, 220, 60)
	if len(got) != 1 || got[0].Text != "just a snippet" {
		t.Fatalf("short text = %#v", got)
	}
}

func TestSplitStrideLargerThanWindow(t *testing.T) {
	got := Split(types.Document{URL: "u", Text: "a b c"}, 2, 5)
	if len(got) != 3 {
		t.Fatalf("chunks = %d, want 3 (step clamps to 1)", len(got))
	}
}

func TestID(t *testing.T) {
	id := ID("https://a.example", 0)
	if !strings.HasPrefix(id, "chunk-") || len(id) != len("chunk-")+12 {
		t.Fatalf("ID = %q", id)
	}
	if id == ID("https://a.example", 1) || id != ID("https://a.example", 0) {
		t.Fatal("ID must be stable per (url, index) and differ across indexes")
	}
}

func TestCorpusKeepsDocumentOrder(t *testing.T) {
	docs := []types.Document{{URL: "one", Text: "alpha"}, {URL: "two", Text: ""}, {URL: "three", Text: "gamma"}}
	got := Corpus(docs)
	if len(got) != 2 || got[0].URL != "one" || got[1].URL != "three" {
		t.Fatalf("Corpus = %#v", got)
	}
}
