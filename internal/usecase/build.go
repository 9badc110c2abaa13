package usecase

import (
	"context"
	"strings"
	"time"

	"passage/internal/adapter/chunker"
	"passage/internal/adapter/store"
	"passage/internal/domain"
)

// BuildOptions carries every tunable of one build call explicitly; the
// engine reads no ambient configuration.
type BuildOptions struct {
	ChunkSize    int
	ChunkOverlap int
	NamePrefix   string
	Budget       MemoryBudget

	// Progress, when set, is called after each pipeline stage with the
	// number of passages processed so far.
	Progress func(done, total int)
}

// Build chunks the documents, embeds the working copies under the memory
// budget, persists the index, and publishes it as the tenant's active
// index. Empty input yields a zero-count result and touches nothing.
// Embedding and persistence failures degrade the result instead of failing
// the call; the flags on BuildResult say what was lost.
func (e *Engine) Build(ctx context.Context, tenantID string, docs []domain.Document, opts BuildOptions) (domain.BuildResult, error) {
	if opts.NamePrefix == "" {
		opts.NamePrefix = "upload"
	}

	result := domain.BuildResult{Backend: "none"}

	split := chunker.NewWindowChunker(opts.ChunkSize, opts.ChunkOverlap)
	var passages []domain.Passage
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		doc.Path = strings.ReplaceAll(doc.Path, "\\", "/")
		chunked := split.Chunk(doc)
		if len(chunked) == 0 {
			continue
		}
		result.DocCount++
		passages = append(passages, chunked...)
	}

	result.Attempted = len(passages)
	if len(passages) == 0 {
		// Nothing ingestible; the active pointer stays as it was.
		return result, nil
	}

	passages, dropped := opts.Budget.capPassages(passages)
	if dropped > 0 {
		e.log.Warn("passage cap reached, dropping excess", "tenant", tenantID, "dropped", dropped)
	}
	result.Inserted = len(passages)
	result.ChunkCount = len(passages)

	var vectors [][]float32
	embedderName := "none"
	dimension := 0
	if !opts.Budget.SkipEmbedding {
		vectors, embedderName, result.EmbedderFellBack = e.embedAll(ctx, opts.Budget.embedCopies(passages), opts.Progress)
		if vectors != nil {
			dimension = len(vectors[0])
		}
	} else {
		result.EmbeddingSkipped = true
	}
	if vectors == nil && !opts.Budget.SkipEmbedding {
		result.EmbeddingSkipped = true
		embedderName = "none"
	}
	result.Backend = embedderName

	name := e.nextIndexName(opts.NamePrefix)
	meta := domain.IndexMeta{
		Name:          name,
		TenantID:      tenantID,
		Embedder:      embedderName,
		Dimension:     dimension,
		PassageCount:  len(passages),
		HasEmbeddings: vectors != nil,
		CreatedAt:     time.Now().UTC(),
	}

	persisted := true
	if err := e.store.SaveIndex(meta, passages, vectors); err != nil {
		// Weak durability: the index stays queryable in memory for this
		// process lifetime, and the caller learns via the flag.
		e.log.Warn("failed to persist index", "tenant", tenantID, "index", name, "error", err)
		result.PersistFailed = true
		persisted = false
	}

	state := &indexState{
		meta:      meta,
		persisted: persisted,
	}

	// With the matrix computed, the working copies may shrink to previews;
	// the full text stays restorable from storage. An unpersisted index
	// keeps full text in memory since there is nowhere to restore it from.
	if opts.Budget.PreviewChars > 0 && persisted {
		state.passages = previewCopies(passages, opts.Budget.PreviewChars)
		state.previews = true
	} else {
		state.passages = passages
	}

	if vectors != nil {
		if m, err := store.NewMemMatrix(vectors); err == nil {
			state.matrix = m
		}
	}

	e.mu.Lock()
	slot := e.slotLocked(tenantID)
	slot.indices[name] = state
	slot.order = append(slot.order, name)
	slot.active = name
	e.mu.Unlock()

	if err := e.store.SetActive(tenantID, name); err != nil {
		e.log.Warn("failed to persist active pointer", "tenant", tenantID, "error", err)
		result.PersistFailed = true
	}

	result.IndexName = name
	return result, nil
}

// embedAll embeds texts with the configured embedder, degrading to the hash
// fallback when it fails. A nil return means no matrix could be produced at
// all, which cannot happen while the hash fallback exists but keeps the
// contract explicit.
func (e *Engine) embedAll(ctx context.Context, texts []string, progress func(done, total int)) (vectors [][]float32, embedderName string, fellBack bool) {
	if progress != nil {
		progress(0, len(texts))
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) == len(texts) {
		if progress != nil {
			progress(len(texts), len(texts))
		}
		return vectors, e.embedder.ModelName(), false
	}
	if err != nil {
		e.log.Warn("embedder failed, falling back to hash embedder", "embedder", e.embedder.ModelName(), "error", err)
	} else {
		e.log.Warn("embedder returned wrong vector count, falling back to hash embedder", "embedder", e.embedder.ModelName(), "got", len(vectors), "want", len(texts))
	}

	if e.embedder == e.fallback {
		return nil, "none", true
	}

	vectors, err = e.fallback.Embed(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		return nil, "none", true
	}
	if progress != nil {
		progress(len(texts), len(texts))
	}
	return vectors, e.fallback.ModelName(), true
}

// previewCopies replaces passage text with short prefixes, leaving the
// canonical records untouched.
func previewCopies(passages []domain.Passage, chars int) []domain.Passage {
	out := make([]domain.Passage, len(passages))
	for i, p := range passages {
		out[i] = domain.Passage{
			Text:    truncate(p.Text, chars),
			Source:  p.Source,
			ChunkID: p.ChunkID,
		}
	}
	return out
}
