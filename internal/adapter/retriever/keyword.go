package retriever

import (
	"context"
	"sort"
	"strings"

	"passage/internal/domain"
	"passage/internal/port"
)

// KeywordRank scores every passage by how many distinct query terms appear
// in its lower-cased text and returns the top n rows, ties broken by
// original passage order. It is the ranking of last resort when no usable
// embedding matrix exists.
func KeywordRank(passages []domain.Passage, query string, n int) []Candidate {
	terms := queryTerms(query)
	if len(terms) == 0 || len(passages) == 0 || n <= 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(passages))
	for row, p := range passages {
		text := strings.ToLower(p.Text)
		score := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				score++
			}
		}
		candidates = append(candidates, Candidate{Row: row, Score: float64(score)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// KeywordThenHash is the low-memory two-stage ranking: first prune to a
// bounded lexical candidate set, then re-rank only that set with the hash
// embedder for a cheap semantic boost. No full dense matrix is ever
// materialized for the index.
func KeywordThenHash(ctx context.Context, passages []domain.Passage, query string, n, pruneTo int, embedder port.Embedder) ([]Candidate, error) {
	if pruneTo < n {
		pruneTo = n
	}
	pruned := KeywordRank(passages, query, pruneTo)
	if len(pruned) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(pruned)+1)
	texts = append(texts, query)
	for _, c := range pruned {
		texts = append(texts, passages[c.Row].Text)
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	queryVec := vectors[0]

	rescored := make([]Candidate, len(pruned))
	for i, c := range pruned {
		rescored[i] = Candidate{
			Row:   c.Row,
			Score: c.Score + dotProduct(queryVec, vectors[i+1]),
		}
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].Score > rescored[j].Score
	})
	if len(rescored) > n {
		rescored = rescored[:n]
	}
	return rescored, nil
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}
