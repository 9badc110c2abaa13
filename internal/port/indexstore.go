package port

import "passage/internal/domain"

// Matrix is a read-only view over an index's embedding matrix. Rows are
// unit-norm float32 vectors. Implementations may keep the data on disk
// (memory-mapped) and materialize rows only as ReadRows is called.
type Matrix interface {
	// Rows returns the number of row vectors.
	Rows() int

	// Dim returns the vector dimension.
	Dim() int

	// ReadRows copies rows [start, start+count) into dst, which must hold
	// at least count*Dim() elements. It returns the number of rows copied,
	// which may be less than count at the end of the matrix.
	ReadRows(dst []float32, start, count int) (int, error)

	// Close releases any underlying file mapping.
	Close() error
}

// IndexStore is the durable persistence backend for tenant indices. The
// filesystem store and the bbolt store are interchangeable implementations;
// both key every record by (tenant, index name).
type IndexStore interface {
	// SaveIndex persists passages, the optional embedding matrix, and
	// metadata for one index. vectors may be nil when the index has no
	// embeddings.
	SaveIndex(meta domain.IndexMeta, passages []domain.Passage, vectors [][]float32) error

	// LoadMeta reads the metadata record of one index.
	LoadMeta(tenantID, name string) (domain.IndexMeta, error)

	// LoadPassages reads the full passage sequence of one index.
	LoadPassages(tenantID, name string) ([]domain.Passage, error)

	// LoadPassage reads a single passage by its row position, used to
	// restore full text after working copies were reduced to previews.
	LoadPassage(tenantID, name string, row int) (domain.Passage, error)

	// OpenMatrix opens the embedding matrix of one index for reading.
	// It returns ErrNoMatrix when the index was built without embeddings
	// or the stored matrix does not match the recorded shape.
	OpenMatrix(tenantID, name string) (Matrix, error)

	// ListIndices returns metadata for every index of one tenant.
	ListIndices(tenantID string) ([]domain.IndexMeta, error)

	// ListTenants returns every tenant that has persisted state.
	ListTenants() ([]string, error)

	// ActiveName returns the persisted active index name, "" when none.
	ActiveName(tenantID string) (string, error)

	// SetActive persists the active index name; "" clears it.
	SetActive(tenantID, name string) error

	// DeleteIndex removes all persisted state of one index. Deleting an
	// index that does not exist returns ErrIndexNotFound.
	DeleteIndex(tenantID, name string) error

	Close() error
}
