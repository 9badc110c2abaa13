package retriever

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"passage/internal/port"
)

// DefaultBlockRows bounds how many matrix rows are resident during a scan.
const DefaultBlockRows = 1024

// Candidate is one scored row of an index.
type Candidate struct {
	Row   int
	Score float64
}

// TopCandidates scans the matrix block-wise, scoring every row against the
// query by dot product (cosine similarity for unit-norm rows), and returns
// the n best candidates sorted by score descending. Ties resolve to the
// earlier row so ranking is deterministic. Peak memory is one block plus the
// candidate window regardless of index size, and cancellation is honored
// between blocks.
func TopCandidates(ctx context.Context, m port.Matrix, query []float32, n, blockRows int) ([]Candidate, error) {
	if m.Rows() == 0 || n <= 0 {
		return nil, nil
	}
	if len(query) != m.Dim() {
		return nil, fmt.Errorf("query dimension %d does not match matrix dimension %d", len(query), m.Dim())
	}
	if blockRows <= 0 {
		blockRows = DefaultBlockRows
	}

	window := &candidateHeap{}
	heap.Init(window)

	block := make([]float32, blockRows*m.Dim())
	for start := 0; start < m.Rows(); start += blockRows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		got, err := m.ReadRows(block, start, blockRows)
		if err != nil {
			return nil, err
		}

		for r := 0; r < got; r++ {
			row := block[r*m.Dim() : (r+1)*m.Dim()]
			var score float64
			for i, q := range query {
				score += float64(q) * float64(row[i])
			}

			if window.Len() < n {
				heap.Push(window, Candidate{Row: start + r, Score: score})
			} else if score > (*window)[0].Score {
				// Equal scores keep the earlier row already in the window.
				(*window)[0] = Candidate{Row: start + r, Score: score}
				heap.Fix(window, 0)
			}
		}
	}

	// Full sort of just the candidate window, not the whole matrix.
	out := make([]Candidate, window.Len())
	copy(out, *window)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Row < out[j].Row
	})
	return out, nil
}

// ReadRow materializes a single row vector.
func ReadRow(m port.Matrix, row int) ([]float32, error) {
	v := make([]float32, m.Dim())
	if _, err := m.ReadRows(v, row, 1); err != nil {
		return nil, err
	}
	return v, nil
}

// candidateHeap is a min-heap on score; the worst candidate sits at the root
// so it can be evicted in O(log n).
type candidateHeap []Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	// Among equal scores the later row is evicted first.
	return h[i].Row > h[j].Row
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(Candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
