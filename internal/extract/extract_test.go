package extract

import (
	"strings"
	"testing"

	"askace/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!doctype html>
<html><head>
<title>  Release notes for Widget 2.0 </title>
<meta property="article:published_time" content="2025-03-04T10:00:00Z">
<script>var tracking = "do not index";</script>
</head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Widget 2.0</h1>
<p>Widget 2.0 ships a faster tokenizer and <a href="/docs">new docs</a>.</p>
</article>
<footer>Copyright footer text</footer>
</body></html>`

func TestExtractArticle(t *testing.T) {
	doc, err := New().Extract(Page{URL: "https://blog.example.com/widget", Body: articlePage}, types.SourceBlogs, "")
	require.NoError(t, err)

	assert.Equal(t, "Release notes for Widget 2.0", doc.Title)
	assert.Contains(t, doc.Text, "faster tokenizer")
	assert.NotContains(t, doc.Text, "Copyright footer")
	assert.NotContains(t, doc.Text, "do not index")
	assert.NotContains(t, doc.Text, "About")
	assert.Equal(t, types.SourceBlogs, doc.SourceType)
	require.NotNil(t, doc.PublishedAt)
	assert.Equal(t, 2025, doc.PublishedAt.Year())
	assert.Equal(t, 4, doc.PublishedAt.Day())
}

func TestExtractTitleHintWins(t *testing.T) {
	doc, err := New().Extract(Page{URL: "https://x.example", Body: articlePage}, types.SourceNews, "Search title")
	require.NoError(t, err)
	assert.Equal(t, "Search title", doc.Title)
}

func TestExtractPlainTextUsesFirstLineTitle(t *testing.T) {
	body := "# " + strings.Repeat("long ", 40) + "\nsecond line"
	doc, err := New().Extract(Page{URL: "https://r.example", ContentType: "text/plain; charset=utf-8", Body: body}, types.SourceReddit, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(doc.Title), maxTitleLength)
	assert.True(t, strings.HasPrefix(doc.Title, "long long"))
	assert.Nil(t, doc.PublishedAt)
}

func TestExtractWithoutTitleFallsBackToText(t *testing.T) {
	doc, err := New().Extract(Page{URL: "https://e.example", Body: "<html><body><p>Just a paragraph of text.</p></body></html>"}, types.SourceOther, "")
	require.NoError(t, err)
	assert.Equal(t, "Just a paragraph of text.", doc.Title)
	assert.Equal(t, "Just a paragraph of text.", doc.Text)
}

func TestExtractEmpty(t *testing.T) {
	_, err := New().Extract(Page{URL: "https://e.example", Body: "   "}, types.SourceOther, "")
	assert.Error(t, err)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Untitled", firstLine(""))
	assert.Equal(t, "Heading", firstLine("## Heading\nbody"))
	// multi-byte runes are not split
	long := strings.Repeat("é", 100)
	got := firstLine(long)
	assert.LessOrEqual(t, len(got), maxTitleLength)
	assert.True(t, strings.HasSuffix(got, "é"))
}
