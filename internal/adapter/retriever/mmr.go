package retriever

// MMR applies maximal marginal relevance over a candidate window. Each step
// greedily picks the candidate maximizing
//
//	lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// where similarity is the dot product of the candidates' unit-norm vectors.
// lambda=1 reduces to pure relevance ranking, lambda=0 maximizes novelty.
// The selection is greedy, not globally optimal. Ties keep the candidate
// that comes first in the window, so output is deterministic.
//
// vectors[i] is the embedding of candidates[i]; candidates are expected in
// score-descending order as produced by TopCandidates.
func MMR(candidates []Candidate, vectors [][]float32, lambda float64, k int) []Candidate {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	selected := make([]Candidate, 0, k)
	selectedVecs := make([][]float32, 0, k)
	used := make([]bool, len(candidates))

	for len(selected) < k {
		bestIdx := -1
		bestScore := 0.0

		for i, c := range candidates {
			if used[i] {
				continue
			}

			maxSim := 0.0
			for _, sv := range selectedVecs {
				sim := dotProduct(vectors[i], sv)
				if sim > maxSim {
					maxSim = sim
				}
			}

			score := lambda*c.Score - (1-lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		if bestIdx == -1 {
			break
		}
		used[bestIdx] = true
		selected = append(selected, candidates[bestIdx])
		selectedVecs = append(selectedVecs, vectors[bestIdx])
	}

	return selected
}

func dotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
