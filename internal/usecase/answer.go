package usecase

import (
	"context"
	"errors"
	"strings"

	"passage/internal/adapter/retriever"
	"passage/internal/domain"
	"passage/internal/port"
)

const (
	// answerChars bounds each snippet in the extractive answer.
	answerChars = 300
	// previewChars bounds the citation previews.
	previewChars = 120
)

// QueryOptions carries every tunable of one answer call explicitly.
type QueryOptions struct {
	K int

	// UseMMR enables diversity re-ranking of the dense candidate window.
	UseMMR bool
	// MMRLambda trades relevance against novelty; 1 is pure relevance.
	MMRLambda float64
	// CandidateFactor scales the dense pruning window to max(K, factor*K).
	CandidateFactor int
	// BlockRows bounds rows resident during the dense scan.
	BlockRows int

	// LowMemory forces the two-stage lexical+hash path, never touching a
	// dense matrix.
	LowMemory bool
	// PruneTo bounds the lexical candidate set in low-memory mode.
	PruneTo int
}

// Answer runs one query against the named index ("" means the tenant's
// active index) and returns ranked passages with an extractive answer. The
// preference order is dense similarity, then lexical fallback; every
// degraded condition turns into a diagnostic, never an error. The snapshot
// taken at entry shields the query from concurrent builds and deletes.
func (e *Engine) Answer(ctx context.Context, tenantID, indexName, query string, opts QueryOptions) (domain.AnswerResult, error) {
	if opts.K <= 0 {
		opts.K = 5
	}

	snap, err := e.acquire(tenantID, indexName)
	if err != nil {
		if errors.Is(err, port.ErrNoActiveIndex) {
			return domain.AnswerResult{Diagnostic: "no active index; build one first"}, nil
		}
		if errors.Is(err, port.ErrIndexNotFound) {
			return domain.AnswerResult{Diagnostic: "index not found: " + indexName}, nil
		}
		return domain.AnswerResult{}, err
	}
	defer snap.Release()

	passages, err := snap.passages()
	if err != nil {
		return domain.AnswerResult{Diagnostic: "index storage unreadable", Degraded: true}, nil
	}
	if len(passages) == 0 {
		return domain.AnswerResult{Diagnostic: "index is empty"}, nil
	}

	if opts.LowMemory {
		return e.answerLowMemory(ctx, snap, passages, query, opts)
	}

	if result, ok, err := e.answerDense(ctx, snap, passages, query, opts); err != nil || ok {
		return result, err
	}

	// Sparse fallback: no usable matrix for this index.
	candidates := retriever.KeywordRank(passages, query, opts.K)
	result := e.assemble(snap, passages, candidates, opts.K)
	result.Mode = domain.ModeKeyword
	result.Degraded = snap.state.meta.HasEmbeddings // had a matrix once, lost it
	return result, nil
}

// answerDense attempts the dense path. ok=false means no usable matrix and
// the caller should fall back.
func (e *Engine) answerDense(ctx context.Context, snap *snapshot, passages []domain.Passage, query string, opts QueryOptions) (domain.AnswerResult, bool, error) {
	matrix := snap.matrix()
	if matrix == nil || matrix.Rows() != len(passages) {
		return domain.AnswerResult{}, false, nil
	}

	queryVec, degraded := e.embedQuery(ctx, query, snap.state.meta.Embedder, matrix.Dim())
	if queryVec == nil {
		// Dimension mismatch between the available embedders and this
		// matrix; lexical ranking still works.
		return domain.AnswerResult{}, false, nil
	}

	factor := opts.CandidateFactor
	if factor <= 0 {
		factor = 8
	}
	window := opts.K * factor
	if window < opts.K {
		window = opts.K
	}

	candidates, err := retriever.TopCandidates(ctx, matrix, queryVec, window, opts.BlockRows)
	if err != nil {
		if ctx.Err() != nil {
			return domain.AnswerResult{}, true, ctx.Err()
		}
		e.log.Warn("dense scan failed, falling back to keyword ranking", "index", snap.state.meta.Name, "error", err)
		return domain.AnswerResult{}, false, nil
	}

	if opts.UseMMR && opts.MMRLambda < 1 {
		vectors := make([][]float32, len(candidates))
		for i, c := range candidates {
			v, err := retriever.ReadRow(matrix, c.Row)
			if err != nil {
				return domain.AnswerResult{}, false, nil
			}
			vectors[i] = v
		}
		candidates = retriever.MMR(candidates, vectors, opts.MMRLambda, opts.K)
	} else if len(candidates) > opts.K {
		candidates = candidates[:opts.K]
	}

	result := e.assemble(snap, passages, candidates, opts.K)
	result.Mode = domain.ModeDense
	result.Degraded = result.Degraded || degraded
	return result, true, nil
}

// answerLowMemory runs the two-stage keyword-prune + hash-rerank path.
func (e *Engine) answerLowMemory(ctx context.Context, snap *snapshot, passages []domain.Passage, query string, opts QueryOptions) (domain.AnswerResult, error) {
	pruneTo := opts.PruneTo
	if pruneTo <= 0 {
		pruneTo = 200
	}

	candidates, err := retriever.KeywordThenHash(ctx, passages, query, opts.K, pruneTo, e.fallback)
	if err != nil {
		if ctx.Err() != nil {
			return domain.AnswerResult{}, ctx.Err()
		}
		candidates = retriever.KeywordRank(passages, query, opts.K)
		result := e.assemble(snap, passages, candidates, opts.K)
		result.Mode = domain.ModeKeyword
		result.Degraded = true
		return result, nil
	}

	result := e.assemble(snap, passages, candidates, opts.K)
	result.Mode = domain.ModeKeywordHash
	return result, nil
}

// embedQuery produces the query vector with the embedder the index was
// built with, degrading to the hash fallback. nil means no available
// embedder matches the matrix dimension.
func (e *Engine) embedQuery(ctx context.Context, query, builtWith string, dim int) (vec []float32, degraded bool) {
	tryEmbed := func(emb port.Embedder) []float32 {
		vectors, err := emb.Embed(ctx, []string{query})
		if err != nil || len(vectors) != 1 || len(vectors[0]) != dim {
			return nil
		}
		return vectors[0]
	}

	if e.embedder.ModelName() == builtWith {
		if v := tryEmbed(e.embedder); v != nil {
			return v, false
		}
		degraded = true
		e.log.Warn("query embedding failed, trying hash fallback", "embedder", e.embedder.ModelName())
	} else {
		degraded = builtWith != e.fallback.ModelName()
	}

	if e.fallback.Dimension() == dim {
		if v := tryEmbed(e.fallback); v != nil {
			return v, degraded
		}
	}
	return nil, true
}

// assemble restores full text for the selected rows and builds the final
// result. Restoration touches only the top-k passages, pulling from durable
// storage when the working copies are previews.
func (e *Engine) assemble(snap *snapshot, passages []domain.Passage, candidates []retriever.Candidate, k int) domain.AnswerResult {
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	result := domain.AnswerResult{}
	var answerParts []string
	for _, c := range candidates {
		p := passages[c.Row]
		if snap.state.previews {
			if full, err := e.store.LoadPassage(snap.tenantID, snap.state.meta.Name, c.Row); err == nil {
				p = full
			} else {
				e.log.Warn("failed to restore passage text", "index", snap.state.meta.Name, "row", c.Row, "error", err)
				result.Degraded = true
			}
		}

		result.Passages = append(result.Passages, domain.RankedPassage{Passage: p, Score: c.Score})
		result.Sources = append(result.Sources, domain.SourceRef{
			Source:  p.Source,
			ChunkID: p.ChunkID,
			Preview: truncate(p.Text, previewChars),
		})
		answerParts = append(answerParts, truncate(p.Text, answerChars))
	}
	result.Answer = strings.Join(answerParts, "\n\n")
	return result
}
