package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"passage/internal/adapter/embedding"
	"passage/internal/domain"
	"passage/internal/port"
)

// Engine owns the per-tenant collections of named indices and runs the
// build and answer pipelines against a pluggable persistence backend.
//
// Concurrency contract: Build and Delete are the only mutators and publish
// their changes atomically under the registry lock; queries work on an
// immutable snapshot taken once at query start. Physical deletion of an
// index's storage is deferred until no query holds a snapshot of it.
type Engine struct {
	store    port.IndexStore
	embedder port.Embedder
	fallback *embedding.HashEmbedder
	log      *slog.Logger

	mu       sync.Mutex
	tenants  map[string]*tenantSlot
	buildSeq uint64
}

// tenantSlot groups one tenant's indices. order tracks creation order so
// active reassignment on delete is deterministic.
type tenantSlot struct {
	active  string
	indices map[string]*indexState
	order   []string
}

// indexState is the in-memory side of one index. passages and matrix load
// lazily; refs counts live query snapshots.
type indexState struct {
	meta      domain.IndexMeta
	passages  []domain.Passage
	previews  bool
	matrix    port.Matrix
	matrixErr bool // matrix already failed to open; do not retry per query
	persisted bool
	refs      int
	deleted   bool
}

// snapshot is the borrowed read view a single query operates on. Release
// must be called when the query is done.
type snapshot struct {
	engine   *Engine
	tenantID string
	state    *indexState
}

// NewEngine creates an engine over the given backend. embedder may be nil,
// in which case the deterministic hash embedder serves all builds. dimension
// sizes the hash fallback; <=0 uses its default.
func NewEngine(store port.IndexStore, embedder port.Embedder, dimension int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	fallback := embedding.NewHashEmbedder(dimension)
	if embedder == nil {
		embedder = fallback
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		fallback: fallback,
		log:      logger,
		tenants:  make(map[string]*tenantSlot),
	}
}

// Restore rebuilds the tenant registry from durable storage. Matrices and
// passages are not loaded; they materialize lazily on first query.
func (e *Engine) Restore() error {
	tenants, err := e.store.ListTenants()
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, tenantID := range tenants {
		metas, err := e.store.ListIndices(tenantID)
		if err != nil {
			e.log.Warn("skipping tenant with unreadable indices", "tenant", tenantID, "error", err)
			continue
		}

		slot := e.slotLocked(tenantID)
		for _, meta := range metas {
			if _, ok := slot.indices[meta.Name]; ok {
				continue
			}
			slot.indices[meta.Name] = &indexState{meta: meta, persisted: true}
			slot.order = append(slot.order, meta.Name)
		}

		active, err := e.store.ActiveName(tenantID)
		if err != nil {
			e.log.Warn("failed to read active pointer", "tenant", tenantID, "error", err)
			continue
		}
		if _, ok := slot.indices[active]; ok {
			slot.active = active
		}
	}
	return nil
}

// List reports a tenant's indices in creation order plus its active index.
func (e *Engine) List(tenantID string) domain.ListResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := domain.ListResult{}
	slot, ok := e.tenants[tenantID]
	if !ok {
		return result
	}

	result.Active = slot.active
	for _, name := range slot.order {
		state := slot.indices[name]
		result.Indices = append(result.Indices, domain.IndexInfo{
			Name:          name,
			ChunkCount:    state.meta.PassageCount,
			HasEmbeddings: state.meta.HasEmbeddings,
		})
	}
	return result
}

// Delete removes an index from the tenant's namespace. When the deleted
// index was active, the most recently created remaining index becomes
// active; with none remaining the pointer clears. Storage is unlinked
// immediately unless a query still holds a snapshot, in which case the
// unlink happens when the last snapshot releases.
func (e *Engine) Delete(tenantID, name string) (domain.DeleteResult, error) {
	e.mu.Lock()

	result := domain.DeleteResult{}
	slot, ok := e.tenants[tenantID]
	var state *indexState
	var exists bool
	if ok {
		state, exists = slot.indices[name]
	}

	if !exists {
		e.mu.Unlock()
		// The index may still exist only on disk (e.g. removed from memory
		// by an earlier partial delete).
		if err := e.store.DeleteIndex(tenantID, name); err == nil {
			result.RemovedFromStorage = true
			return result, nil
		}
		return result, port.ErrIndexNotFound
	}

	delete(slot.indices, name)
	for i, n := range slot.order {
		if n == name {
			slot.order = append(slot.order[:i], slot.order[i+1:]...)
			break
		}
	}
	result.RemovedFromMemory = true

	if slot.active == name {
		slot.active = ""
		if len(slot.order) > 0 {
			slot.active = slot.order[len(slot.order)-1]
		}
	}
	result.NewActive = slot.active

	deferUnlink := state.refs > 0
	state.deleted = true
	e.mu.Unlock()

	if err := e.store.SetActive(tenantID, result.NewActive); err != nil {
		e.log.Warn("failed to persist active pointer", "tenant", tenantID, "error", err)
	}

	if deferUnlink {
		e.log.Debug("deferring storage unlink until snapshots release", "tenant", tenantID, "index", name)
		return result, nil
	}

	result.RemovedFromStorage = e.unlink(tenantID, name, state)
	return result, nil
}

// unlink physically removes an index's storage and closes its matrix.
func (e *Engine) unlink(tenantID, name string, state *indexState) bool {
	if state.matrix != nil {
		state.matrix.Close()
		state.matrix = nil
	}
	if err := e.store.DeleteIndex(tenantID, name); err != nil {
		if err != port.ErrIndexNotFound {
			e.log.Warn("failed to remove index storage", "tenant", tenantID, "index", name, "error", err)
		}
		return false
	}
	return true
}

// acquire takes a read snapshot of one index. name=="" resolves the active
// index. Callers must Release the snapshot.
func (e *Engine) acquire(tenantID, name string) (*snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot, ok := e.tenants[tenantID]
	if !ok {
		if name == "" {
			return nil, port.ErrNoActiveIndex
		}
		return nil, port.ErrIndexNotFound
	}

	if name == "" {
		name = slot.active
		if name == "" {
			return nil, port.ErrNoActiveIndex
		}
	}

	state, ok := slot.indices[name]
	if !ok {
		return nil, port.ErrIndexNotFound
	}
	state.refs++
	return &snapshot{engine: e, tenantID: tenantID, state: state}, nil
}

// Release drops the snapshot reference, completing any deferred delete.
func (s *snapshot) Release() {
	e := s.engine
	e.mu.Lock()
	s.state.refs--
	last := s.state.refs == 0 && s.state.deleted
	e.mu.Unlock()

	if last {
		e.unlink(s.tenantID, s.state.meta.Name, s.state)
	}
}

// passages returns the snapshot's working passage list, loading it from
// storage on first use.
func (s *snapshot) passages() ([]domain.Passage, error) {
	e := s.engine
	e.mu.Lock()
	if s.state.passages != nil || !s.state.persisted {
		ps := s.state.passages
		e.mu.Unlock()
		return ps, nil
	}
	e.mu.Unlock()

	loaded, err := e.store.LoadPassages(s.tenantID, s.state.meta.Name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if s.state.passages == nil {
		s.state.passages = loaded
	}
	ps := s.state.passages
	e.mu.Unlock()
	return ps, nil
}

// matrix returns the snapshot's embedding matrix, opening the backing file
// lazily. A missing or corrupt matrix is remembered as absent.
func (s *snapshot) matrix() port.Matrix {
	e := s.engine
	e.mu.Lock()
	if s.state.matrix != nil || s.state.matrixErr || !s.state.meta.HasEmbeddings {
		m := s.state.matrix
		e.mu.Unlock()
		return m
	}
	if !s.state.persisted {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	m, err := e.store.OpenMatrix(s.tenantID, s.state.meta.Name)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		s.state.matrixErr = true
		if err != port.ErrNoMatrix {
			e.log.Warn("failed to open matrix", "tenant", s.tenantID, "index", s.state.meta.Name, "error", err)
		}
		return nil
	}
	if s.state.matrix == nil {
		s.state.matrix = m
	} else {
		m.Close()
	}
	return s.state.matrix
}

// slotLocked returns the tenant slot, creating it lazily. Caller holds mu.
func (e *Engine) slotLocked(tenantID string) *tenantSlot {
	slot, ok := e.tenants[tenantID]
	if !ok {
		slot = &tenantSlot{indices: make(map[string]*indexState)}
		e.tenants[tenantID] = slot
	}
	return slot
}

// nextIndexName generates "{prefix}-{unixsec}-{seq}". The monotonic suffix
// keeps names unique even when two builds for one tenant land in the same
// second.
func (e *Engine) nextIndexName(prefix string) string {
	e.mu.Lock()
	e.buildSeq++
	seq := e.buildSeq
	e.mu.Unlock()
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().Unix(), seq)
}

// Close releases open matrices and the backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	for _, slot := range e.tenants {
		for _, state := range slot.indices {
			if state.matrix != nil {
				state.matrix.Close()
				state.matrix = nil
			}
		}
	}
	e.mu.Unlock()
	return e.store.Close()
}
