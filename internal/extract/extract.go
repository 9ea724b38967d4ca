// Package extract turns fetched pages into plain documents.
package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"askace/internal/logging"
	"askace/internal/types"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const maxTitleLength = 120

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// boilerplate is removed before the main content is located.
const boilerplate = "script, style, noscript, iframe, svg, nav, footer, header, aside, form"

// Page is the raw input to extraction.
type Page struct {
	URL         string
	ContentType string
	Body        string
}

// Extractor converts HTML to markdown text, falling back to a tag-stripped
// plaintext rendering when conversion yields nothing.
type Extractor struct {
	converter *converter.Converter
	strict    *bluemonday.Policy
}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		strict: bluemonday.StrictPolicy(),
	}
}

// Extract builds a document from page. titleHint, when set, wins over the
// page's own title. An empty extraction is an error.
func (e *Extractor) Extract(page Page, source types.SourceType, titleHint string) (*types.Document, error) {
	if strings.TrimSpace(page.Body) == "" {
		return nil, fmt.Errorf("empty page body for %s", page.URL)
	}

	var (
		text      string
		pageTitle string
		published *time.Time
	)
	if isPlainText(page.ContentType) {
		text = page.Body
	} else {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", err)
		}
		pageTitle = strings.TrimSpace(doc.Find("title").First().Text())
		published = publishedAt(doc)
		text = e.mainText(doc, page.URL)
		if text == "" {
			logging.Get(logging.CategoryExtract).Debug("Markdown conversion empty for %s, using plaintext fallback", page.URL)
			text = e.plainText(page.Body)
		}
	}

	text = clean(text)
	if text == "" {
		return nil, fmt.Errorf("no text extracted from %s", page.URL)
	}

	title := titleHint
	if title == "" {
		title = pageTitle
	}
	if title == "" || title == "Untitled" {
		title = firstLine(text)
	}

	return &types.Document{
		URL:         page.URL,
		Title:       title,
		Text:        text,
		SourceType:  source,
		PublishedAt: published,
		Metadata:    map[string]interface{}{},
	}, nil
}

// mainText prefers <article>, then <main>, then <body>.
func (e *Extractor) mainText(doc *goquery.Document, pageURL string) string {
	doc.Find(boilerplate).Remove()

	sel := doc.Find("article").First()
	if sel.Length() == 0 {
		sel = doc.Find("main").First()
	}
	if sel.Length() == 0 {
		sel = doc.Find("body").First()
	}
	fragment, err := goquery.OuterHtml(sel)
	if err != nil || strings.TrimSpace(fragment) == "" {
		return ""
	}

	md, err := e.converter.ConvertString(fragment, converter.WithDomain(pageURL))
	if err != nil {
		logging.Get(logging.CategoryExtract).Debug("Markdown conversion failed for %s: %v", pageURL, err)
		return ""
	}
	return strings.TrimSpace(md)
}

func (e *Extractor) plainText(body string) string {
	stripped := html.UnescapeString(e.strict.Sanitize(body))
	var lines []string
	for _, line := range strings.Split(stripped, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return strings.TrimSpace(body)
	}
	return strings.Join(lines, "\n")
}

func publishedAt(doc *goquery.Document) *time.Time {
	content, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content")
	if !ok {
		return nil
	}
	content = strings.TrimSpace(content)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, content); err == nil {
			return &t
		}
	}
	return nil
}

func isPlainText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/plain") || strings.Contains(ct, "text/markdown")
}

func clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = multiSpacePattern.ReplaceAllString(text, " ")
	text = multiNewlinePattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// firstLine returns the first line of text without heading markers, capped
// at maxTitleLength bytes on a rune boundary.
func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(strings.TrimLeft(line, "# "))
	if len(line) > maxTitleLength {
		cut := maxTitleLength
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		line = line[:cut]
	}
	if line == "" {
		return "Untitled"
	}
	return line
}
