package retriever

import (
	"testing"
)

func TestMMRLambdaOneIsPureRelevance(t *testing.T) {
	candidates := []Candidate{
		{Row: 0, Score: 0.95},
		{Row: 1, Score: 0.94},
		{Row: 2, Score: 0.90},
		{Row: 3, Score: 0.50},
	}
	// All near-identical vectors; with lambda=1 similarity must not matter.
	v := unitVec(1, 0.01, 0)
	vectors := [][]float32{v, v, v, v}

	selected := MMR(candidates, vectors, 1.0, 3)
	if len(selected) != 3 {
		t.Fatalf("expected 3 selections, got %d", len(selected))
	}
	for i, want := range []int{0, 1, 2} {
		if selected[i].Row != want {
			t.Errorf("rank %d: expected row %d, got %d", i, want, selected[i].Row)
		}
	}
}

func TestMMRPrefersDiversity(t *testing.T) {
	// Three near-duplicate high-relevance vectors and one moderately
	// relevant distinct vector; low lambda must pull the distinct one into
	// the top two.
	dup := unitVec(1, 0, 0)
	distinct := unitVec(0, 1, 0)

	candidates := []Candidate{
		{Row: 0, Score: 0.95},
		{Row: 1, Score: 0.94},
		{Row: 2, Score: 0.93},
		{Row: 3, Score: 0.60},
	}
	vectors := [][]float32{dup, dup, dup, distinct}

	selected := MMR(candidates, vectors, 0.3, 2)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(selected))
	}
	if selected[0].Row != 0 {
		t.Errorf("expected the most relevant row first, got %d", selected[0].Row)
	}
	if selected[1].Row != 3 {
		t.Errorf("expected the distinct row 3 second, got %d", selected[1].Row)
	}
}

func TestMMRBoundsK(t *testing.T) {
	v := unitVec(1, 0)
	candidates := []Candidate{{Row: 0, Score: 1}, {Row: 1, Score: 0.5}}
	vectors := [][]float32{v, unitVec(0, 1)}

	if got := MMR(candidates, vectors, 0.5, 10); len(got) != 2 {
		t.Errorf("expected k clamped to candidate count, got %d", len(got))
	}
	if got := MMR(nil, nil, 0.5, 3); got != nil {
		t.Errorf("expected nil for empty candidates, got %v", got)
	}
	if got := MMR(candidates, vectors, 0.5, 0); got != nil {
		t.Errorf("expected nil for k=0, got %v", got)
	}
}
