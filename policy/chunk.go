package policy

import (
	"strings"
)

// Chunk is one indexed unit of policy text.
type Chunk struct {
	// DocID identifies the source document (file name).
	DocID string
	// Ord is the chunk's position within the document.
	Ord int
	// Text is the chunk content.
	Text string
	// Embedding is the fixed-length vector for Text, populated at build.
	Embedding []float64
}

// Match is a retrieved chunk plus its similarity score. Matches are consumed
// transiently by the draft composer and never persisted.
type Match struct {
	Chunk Chunk
	Score float64
}

// maxChunkSize bounds a chunk's byte length; oversized sections are split on
// paragraph boundaries.
const maxChunkSize = 1200

// splitDocument chunks a document body on markdown-style heading boundaries.
// Sections larger than maxChunkSize are further split on blank lines;
// a paragraph that alone exceeds the bound is kept whole rather than split
// mid-sentence.
func splitDocument(docID, body string) []Chunk {
	var sections []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			flush()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()

	var chunks []Chunk
	ord := 0
	for _, section := range sections {
		for _, piece := range splitOversized(section) {
			chunks = append(chunks, Chunk{DocID: docID, Ord: ord, Text: piece})
			ord++
		}
	}
	return chunks
}

func splitOversized(section string) []string {
	if len(section) <= maxChunkSize {
		return []string{section}
	}

	var pieces []string
	var current strings.Builder
	for _, para := range strings.Split(section, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > maxChunkSize {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(para)
		current.WriteString("\n\n")
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}
