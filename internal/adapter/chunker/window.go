package chunker

import "passage/internal/domain"

// WindowChunker splits text into fixed-size overlapping character windows.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker creates a chunker with the given window size and overlap.
func NewWindowChunker(size, overlap int) *WindowChunker {
	return &WindowChunker{size: size, overlap: overlap}
}

// Split cuts text into overlapping windows. A non-positive size returns the
// whole text as a single chunk. An overlap that is not smaller than the size
// is treated as zero so the window always advances. The output is fully
// deterministic for a given input.
func (c *WindowChunker) Split(text string) []string {
	return Split(text, c.size, c.overlap)
}

// Chunk splits a document and wraps each window in a Passage, numbering
// chunks from zero within the document.
func (c *WindowChunker) Chunk(doc domain.Document) []domain.Passage {
	parts := c.Split(doc.Text)
	passages := make([]domain.Passage, 0, len(parts))
	for i, p := range parts {
		passages = append(passages, domain.Passage{
			Text:    p,
			Source:  doc.Path,
			ChunkID: i,
		})
	}
	return passages
}

// Split is the window algorithm behind WindowChunker.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		return []string{text}
	}
	if overlap >= size {
		overlap = 0
	}

	var chunks []string
	length := len(text)
	start := 0
	for start < length {
		end := start + size
		if end > length {
			end = length
		}
		chunks = append(chunks, text[start:end])
		if end == length {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
