// Package chunk splits documents into overlapping word windows.
package chunk

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"askace/internal/logging"
	"askace/internal/types"
)

const (
	DefaultWindow = 220
	DefaultStride = 60
)

// ID returns the stable identifier of window index of url.
func ID(url string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s-%d", url, index)))
	return "chunk-" + hex.EncodeToString(sum[:])[:12]
}

// Split cuts doc into windows of window words that advance by
// max(1, window-stride) words. Empty text yields no chunks.
func Split(doc types.Document, window, stride int) []types.Chunk {
	words := strings.Fields(doc.Text)
	if len(words) == 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultWindow
	}
	step := window - stride
	if step < 1 {
		step = 1
	}

	var chunks []types.Chunk
	for start, index := 0, 0; start < len(words); start, index = start+step, index+1 {
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, types.Chunk{
			ID:          ID(doc.URL, index),
			URL:         doc.URL,
			Title:       doc.Title,
			Text:        strings.Join(words[start:end], " "),
			SourceType:  doc.SourceType,
			PublishedAt: doc.PublishedAt,
			StartWord:   start,
			EndWord:     end,
		})
	}
	return chunks
}

// Corpus chunks every document with the default window, preserving order.
func Corpus(docs []types.Document) []types.Chunk {
	var all []types.Chunk
	for _, d := range docs {
		all = append(all, Split(d, DefaultWindow, DefaultStride)...)
	}
	logging.PipelineDebug("Chunked %d documents into %d windows", len(docs), len(all))
	return all
}
