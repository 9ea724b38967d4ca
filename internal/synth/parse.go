package synth

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"askace/internal/types"
)

var (
	ordinalMarker   = regexp.MustCompile(`^\d+[\).\s]`)
	ordinalStrip    = regexp.MustCompile(`^\d+[\).\s]+`)
	citationPattern = regexp.MustCompile(`\[(\d+)\]`)
)

const minSeedLength = 20

// ParseBullets turns generated text into bullets. Parsing stops at the first
// line starting with "sources", in any case. Lines starting with -, * or • or an ordinal such as "1."
// or "2)" open a bullet; before the first bullet a long line not ending in
// ':' opens one too; anything else continues the previous bullet.
func ParseBullets(text string) []types.AnswerBullet {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isSourcesLine(line) {
			break
		}

		if isBulletLine(line) {
			cleaned := strings.TrimSpace(strings.TrimLeft(line, "-*• "))
			cleaned = strings.TrimSpace(ordinalStrip.ReplaceAllString(cleaned, ""))
			lines = append(lines, cleaned)
			continue
		}
		if len(lines) == 0 {
			if utf8.RuneCountInString(line) > minSeedLength && !strings.HasSuffix(line, ":") {
				lines = append(lines, line)
			}
			continue
		}
		lines[len(lines)-1] += " " + line
	}

	bullets := make([]types.AnswerBullet, 0, len(lines))
	for _, l := range lines {
		bullets = append(bullets, types.AnswerBullet{Text: l, Citations: Citations(l)})
	}
	return bullets
}

// isSourcesLine reports whether line opens the sources section, including
// markdown headings and bold labels such as "## Sources" or "**Sources:**".
// A "* " bullet is never a sources line.
func isSourcesLine(line string) bool {
	lower := strings.TrimLeft(strings.ToLower(line), "#_ ")
	if strings.HasPrefix(lower, "*") && !strings.HasPrefix(lower, "* ") {
		lower = strings.TrimLeft(lower, "*_ ")
	}
	return strings.HasPrefix(lower, "sources")
}

func isBulletLine(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") ||
		strings.HasPrefix(line, "•") || ordinalMarker.MatchString(line)
}

// Citations returns every [n] label in text, in order, duplicates included.
func Citations(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	labels := make([]string, 0, len(matches))
	for _, m := range matches {
		labels = append(labels, m[1])
	}
	return labels
}

// BuildCitations assigns dense labels "1", "2", ... to distinct chunk URLs
// in first-seen order.
func BuildCitations(chunks []types.Chunk) ([]types.Citation, map[string]types.Citation) {
	var ordered []types.Citation
	byURL := make(map[string]types.Citation)
	for _, c := range chunks {
		if _, ok := byURL[c.URL]; ok {
			continue
		}
		cit := types.Citation{
			Label:       strconv.Itoa(len(ordered) + 1),
			URL:         c.URL,
			Title:       c.Title,
			SourceType:  c.SourceType,
			PublishedAt: c.PublishedAt,
		}
		byURL[c.URL] = cit
		ordered = append(ordered, cit)
	}
	return ordered, byURL
}

// BuildContext renders one labelled block per chunk.
func BuildContext(chunks []types.Chunk, byURL map[string]types.Citation) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, "["+byURL[c.URL].Label+"] "+c.Title+" ("+string(c.SourceType)+")\n"+
			"URL: "+c.URL+"\n"+
			"Snippet: "+c.Text+"\n")
	}
	return strings.Join(blocks, "\n")
}
