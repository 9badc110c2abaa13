package usecase

import (
	"unicode/utf8"

	"passage/internal/domain"
)

// MemoryBudget bounds how much memory a build may spend. Truncation applies
// only to the embedding-time working copies; the full original passages are
// what gets persisted.
type MemoryBudget struct {
	// MaxPassageChars truncates each passage's embedding copy; 0 disables.
	MaxPassageChars int
	// MaxEmbedBytes caps the total bytes handed to the embedder; when the
	// truncated copies still exceed it, the per-passage cap shrinks so
	// every passage keeps a (shorter) embedding row.
	MaxEmbedBytes int
	// MaxPassages caps how many passages the index keeps; 0 disables.
	MaxPassages int
	// PreviewChars shrinks in-memory working text after a successful
	// persist; 0 disables. Full text stays restorable from storage.
	PreviewChars int
	// SkipEmbedding suppresses the matrix entirely; the index then ranks
	// lexically for its whole lifetime.
	SkipEmbedding bool
}

// capPassages enforces MaxPassages, returning the kept slice and how many
// were dropped.
func (b MemoryBudget) capPassages(passages []domain.Passage) ([]domain.Passage, int) {
	if b.MaxPassages <= 0 || len(passages) <= b.MaxPassages {
		return passages, 0
	}
	return passages[:b.MaxPassages], len(passages) - b.MaxPassages
}

// embedCopies produces the truncated texts handed to the embedder, one per
// passage. The row count always equals the passage count so the matrix
// invariant holds.
func (b MemoryBudget) embedCopies(passages []domain.Passage) []string {
	texts := make([]string, len(passages))
	total := 0
	for i, p := range passages {
		texts[i] = truncate(p.Text, b.MaxPassageChars)
		total += len(texts[i])
	}

	if b.MaxEmbedBytes > 0 && total > b.MaxEmbedBytes {
		perPassage := b.MaxEmbedBytes / len(passages)
		if perPassage < 1 {
			perPassage = 1
		}
		for i := range texts {
			texts[i] = truncate(texts[i], perPassage)
		}
	}
	return texts
}

// truncate cuts s to at most n bytes without splitting a rune. n<=0 leaves
// s untouched.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
