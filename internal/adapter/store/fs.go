package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"passage/internal/domain"
	"passage/internal/port"
)

const (
	passagesFile = "passages.jsonl"
	matrixFile   = "matrix.f32"
	metaFile     = "meta.json"
	activeFile   = "active"
)

// FSStore persists tenant indices on the local filesystem. Layout under the
// data directory:
//
//	tenants/<tenant>/active                   current active index name
//	tenants/<tenant>/<index>/passages.jsonl   one passage record per line
//	tenants/<tenant>/<index>/matrix.f32       row-major float32 LE vectors
//	tenants/<tenant>/<index>/meta.json        IndexMeta record
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "tenants"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) tenantDir(tenantID string) string {
	return filepath.Join(s.root, "tenants", sanitize(tenantID))
}

func (s *FSStore) indexDir(tenantID, name string) string {
	return filepath.Join(s.tenantDir(tenantID), sanitize(name))
}

// sanitize keeps caller-supplied identifiers from escaping the data
// directory.
func sanitize(id string) string {
	id = strings.ReplaceAll(id, "/", "_")
	id = strings.ReplaceAll(id, "\\", "_")
	id = strings.ReplaceAll(id, "..", "_")
	if id == "" {
		id = "_"
	}
	return id
}

// SaveIndex writes passages, the optional matrix, and metadata. The full
// original passage text is what lands on disk; any preview reduction
// happens only on in-memory working copies.
func (s *FSStore) SaveIndex(meta domain.IndexMeta, passages []domain.Passage, vectors [][]float32) error {
	dir := s.indexDir(meta.TenantID, meta.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, passagesFile))
	if err != nil {
		return fmt.Errorf("failed to create passages file: %w", err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, p := range passages {
		if err := enc.Encode(p); err != nil {
			f.Close()
			return fmt.Errorf("failed to write passage record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush passages file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close passages file: %w", err)
	}

	if len(vectors) > 0 {
		if err := os.WriteFile(filepath.Join(dir, matrixFile), encodeMatrix(vectors), 0644); err != nil {
			return fmt.Errorf("failed to write matrix file: %w", err)
		}
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}

	return nil
}

// LoadMeta reads the metadata record of one index.
func (s *FSStore) LoadMeta(tenantID, name string) (domain.IndexMeta, error) {
	data, err := os.ReadFile(filepath.Join(s.indexDir(tenantID, name), metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.IndexMeta{}, port.ErrIndexNotFound
		}
		return domain.IndexMeta{}, fmt.Errorf("failed to read index metadata: %w", err)
	}
	var meta domain.IndexMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.IndexMeta{}, fmt.Errorf("failed to parse index metadata: %w", err)
	}
	return meta, nil
}

// LoadPassages reads the full passage sequence of one index.
func (s *FSStore) LoadPassages(tenantID, name string) ([]domain.Passage, error) {
	f, err := os.Open(filepath.Join(s.indexDir(tenantID, name), passagesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, port.ErrIndexNotFound
		}
		return nil, fmt.Errorf("failed to open passages file: %w", err)
	}
	defer f.Close()

	var passages []domain.Passage
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			var p domain.Passage
			if jerr := json.Unmarshal(line, &p); jerr != nil {
				return nil, fmt.Errorf("corrupt passage record %d: %w", len(passages), jerr)
			}
			passages = append(passages, p)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read passages file: %w", err)
		}
	}
	return passages, nil
}

// LoadPassage reads a single passage by row position, for restoring full
// text after in-memory previews.
func (s *FSStore) LoadPassage(tenantID, name string, row int) (domain.Passage, error) {
	f, err := os.Open(filepath.Join(s.indexDir(tenantID, name), passagesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Passage{}, port.ErrIndexNotFound
		}
		return domain.Passage{}, fmt.Errorf("failed to open passages file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for i := 0; ; i++ {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && i == row {
			var p domain.Passage
			if jerr := json.Unmarshal(line, &p); jerr != nil {
				return domain.Passage{}, fmt.Errorf("corrupt passage record %d: %w", row, jerr)
			}
			return p, nil
		}
		if err == io.EOF {
			return domain.Passage{}, fmt.Errorf("passage row %d out of range", row)
		}
		if err != nil {
			return domain.Passage{}, fmt.Errorf("failed to read passages file: %w", err)
		}
	}
}

// OpenMatrix maps the matrix file of one index. A missing file, a metadata
// record without embeddings, or a size mismatch all surface as ErrNoMatrix
// so the caller falls back to lexical ranking.
func (s *FSStore) OpenMatrix(tenantID, name string) (port.Matrix, error) {
	meta, err := s.LoadMeta(tenantID, name)
	if err != nil {
		return nil, err
	}
	if !meta.HasEmbeddings || meta.PassageCount == 0 || meta.Dimension <= 0 {
		return nil, port.ErrNoMatrix
	}

	m, err := OpenFileMatrix(filepath.Join(s.indexDir(tenantID, name), matrixFile), meta.PassageCount, meta.Dimension)
	if err != nil {
		// Corrupt or missing matrix degrades to lexical ranking.
		return nil, port.ErrNoMatrix
	}
	return m, nil
}

// ListIndices returns metadata for every index of one tenant, oldest first.
func (s *FSStore) ListIndices(tenantID string) ([]domain.IndexMeta, error) {
	entries, err := os.ReadDir(s.tenantDir(tenantID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tenant directory: %w", err)
	}

	var metas []domain.IndexMeta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.LoadMeta(tenantID, e.Name())
		if err != nil {
			continue // directory without a readable metadata record
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.Before(metas[j].CreatedAt)
	})
	return metas, nil
}

// ListTenants returns every tenant with persisted state.
func (s *FSStore) ListTenants() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "tenants"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tenants directory: %w", err)
	}
	var tenants []string
	for _, e := range entries {
		if e.IsDir() {
			tenants = append(tenants, e.Name())
		}
	}
	return tenants, nil
}

// ActiveName returns the persisted active index name, "" when none.
func (s *FSStore) ActiveName(tenantID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.tenantDir(tenantID), activeFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read active pointer: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetActive persists the active index name; "" clears it.
func (s *FSStore) SetActive(tenantID, name string) error {
	dir := s.tenantDir(tenantID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create tenant directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, activeFile), []byte(name), 0644); err != nil {
		return fmt.Errorf("failed to write active pointer: %w", err)
	}
	return nil
}

// DeleteIndex removes the whole index directory.
func (s *FSStore) DeleteIndex(tenantID, name string) error {
	dir := s.indexDir(tenantID, name)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return port.ErrIndexNotFound
		}
		return fmt.Errorf("failed to stat index directory: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove index directory: %w", err)
	}
	return nil
}

func (s *FSStore) Close() error {
	return nil
}
