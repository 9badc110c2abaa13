package domain

import "time"

// Passage is the unit of retrieval: a bounded, possibly overlapping window
// of a source document. ChunkID is the 0-based position of the passage
// within its source document, not a global identifier.
type Passage struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
}

// Document is a decoded input handed to a build: the text of one uploaded
// file plus the path it came from.
type Document struct {
	Path string
	Text string
}

// IndexMeta describes one persisted index without its payload.
type IndexMeta struct {
	Name          string    `json:"name"`
	TenantID      string    `json:"tenant_id"`
	Embedder      string    `json:"embedder"`
	Dimension     int       `json:"dimension"`
	PassageCount  int       `json:"passage_count"`
	HasEmbeddings bool      `json:"has_embeddings"`
	CreatedAt     time.Time `json:"created_at"`
}

// IndexInfo is the per-index entry returned by List.
type IndexInfo struct {
	Name          string `json:"name"`
	ChunkCount    int    `json:"chunk_count"`
	HasEmbeddings bool   `json:"has_embeddings"`
}

// ListResult is the outcome of listing a tenant's indices.
type ListResult struct {
	Active  string      `json:"active"`
	Indices []IndexInfo `json:"indices"`
}

// BuildResult reports what a build produced. A build never fails for empty
// input; it reports zero counts instead. Degraded conditions (embedding
// unavailable, persistence failure) are carried as flags, not errors.
type BuildResult struct {
	DocCount   int    `json:"doc_count"`
	ChunkCount int    `json:"chunk_count"`
	IndexName  string `json:"index_name"`

	// Backend names the embedding backend that produced the matrix:
	// the embedder's model name, or "none" when embedding was skipped.
	Backend   string `json:"backend"`
	Attempted int    `json:"attempted"`
	Inserted  int    `json:"inserted"`

	EmbeddingSkipped bool `json:"embedding_skipped,omitempty"`
	EmbedderFellBack bool `json:"embedder_fell_back,omitempty"`
	PersistFailed    bool `json:"persist_failed,omitempty"`
}

// Degraded reports whether the build succeeded with reduced fidelity.
func (r BuildResult) Degraded() bool {
	return r.EmbeddingSkipped || r.EmbedderFellBack || r.PersistFailed
}

// DeleteResult is the outcome of deleting an index.
type DeleteResult struct {
	RemovedFromMemory  bool   `json:"removed_from_memory"`
	RemovedFromStorage bool   `json:"removed_from_storage"`
	NewActive          string `json:"new_active"`
}

// RankedPassage is one retrieval hit.
type RankedPassage struct {
	Passage
	Score float64 `json:"score"`
}

// SourceRef is a citation for one ranked passage.
type SourceRef struct {
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
	Preview string `json:"preview"`
}

// Retrieval modes reported in AnswerResult.Mode.
const (
	ModeDense       = "dense"
	ModeKeyword     = "keyword"
	ModeKeywordHash = "keyword+hash"
)

// AnswerResult is what the retriever hands to a downstream consumer. Answer
// is a purely extractive concatenation of the top passages; prose synthesis
// is a separate concern.
type AnswerResult struct {
	Answer     string          `json:"answer"`
	Sources    []SourceRef     `json:"sources"`
	Passages   []RankedPassage `json:"passages"`
	Mode       string          `json:"mode,omitempty"`
	Degraded   bool            `json:"degraded,omitempty"`
	Diagnostic string          `json:"diagnostic,omitempty"`
}
