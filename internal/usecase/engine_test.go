package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"passage/internal/adapter/store"
	"passage/internal/domain"
	"passage/internal/port"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestEngine(t *testing.T) (*Engine, *store.FSStore) {
	t.Helper()
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(st, nil, 64, discardLogger())
	t.Cleanup(func() { e.Close() })
	return e, st
}

func repeatText(n int) string {
	return strings.Repeat("abcdefghij", n/10)
}

func TestBuildLifecycle(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	// Each 2000-char document yields exactly 3 windows at size 1000,
	// overlap 200.
	docs := []domain.Document{
		{Path: "a.txt", Text: repeatText(2000)},
		{Path: "b.txt", Text: repeatText(2000)},
	}
	result, err := e.Build(ctx, "acme", docs, BuildOptions{ChunkSize: 1000, ChunkOverlap: 200, NamePrefix: "upload"})
	if err != nil {
		t.Fatal(err)
	}
	if result.DocCount != 2 {
		t.Errorf("expected doc_count=2, got %d", result.DocCount)
	}
	if result.ChunkCount != 6 {
		t.Errorf("expected chunk_count=6, got %d", result.ChunkCount)
	}
	if result.IndexName == "" || !strings.HasPrefix(result.IndexName, "upload-") {
		t.Errorf("unexpected index name %q", result.IndexName)
	}
	if result.Degraded() {
		t.Errorf("expected non-degraded build, got %+v", result)
	}

	list := e.List("acme")
	if list.Active != result.IndexName {
		t.Errorf("expected active %q, got %q", result.IndexName, list.Active)
	}
	if len(list.Indices) != 1 || list.Indices[0].ChunkCount != 6 || !list.Indices[0].HasEmbeddings {
		t.Errorf("unexpected list: %+v", list)
	}

	// Active pointer is durable.
	if active, _ := st.ActiveName("acme"); active != result.IndexName {
		t.Errorf("expected persisted active %q, got %q", result.IndexName, active)
	}

	del, err := e.Delete("acme", result.IndexName)
	if err != nil {
		t.Fatal(err)
	}
	if !del.RemovedFromMemory || !del.RemovedFromStorage {
		t.Errorf("expected full removal, got %+v", del)
	}
	if del.NewActive != "" {
		t.Errorf("expected active cleared, got %q", del.NewActive)
	}
	if _, err := st.LoadMeta("acme", result.IndexName); !errors.Is(err, port.ErrIndexNotFound) {
		t.Errorf("expected storage removed, got %v", err)
	}
	if list := e.List("acme"); list.Active != "" || len(list.Indices) != 0 {
		t.Errorf("expected empty tenant, got %+v", list)
	}
}

func TestBuildEmptyInputIsNotAnError(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, docs := range [][]domain.Document{
		nil,
		{{Path: "a.txt", Text: ""}},
		{{Path: "a.txt", Text: "   \n  "}},
	} {
		result, err := e.Build(context.Background(), "acme", docs, BuildOptions{ChunkSize: 100})
		if err != nil {
			t.Fatalf("expected no error for empty input, got %v", err)
		}
		if result.DocCount != 0 || result.ChunkCount != 0 || result.IndexName != "" {
			t.Errorf("expected zero result, got %+v", result)
		}
	}
	if list := e.List("acme"); list.Active != "" {
		t.Errorf("expected no active index, got %q", list.Active)
	}
}

func TestBuildNamesAreUniqueWithinOneSecond(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	docs := []domain.Document{{Path: "a.txt", Text: "hello world"}}

	first, err := e.Build(ctx, "acme", docs, BuildOptions{ChunkSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Build(ctx, "acme", docs, BuildOptions{ChunkSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	if first.IndexName == second.IndexName {
		t.Errorf("expected distinct index names, both %q", first.IndexName)
	}

	// Deleting the active index reassigns to the most recent remaining.
	del, err := e.Delete("acme", second.IndexName)
	if err != nil {
		t.Fatal(err)
	}
	if del.NewActive != first.IndexName {
		t.Errorf("expected active reassigned to %q, got %q", first.IndexName, del.NewActive)
	}
}

func TestDeleteReassignsToMostRecentRemaining(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	docs := []domain.Document{{Path: "a.txt", Text: "hello world"}}

	var names []string
	for i := 0; i < 3; i++ {
		r, err := e.Build(ctx, "acme", docs, BuildOptions{ChunkSize: 100})
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, r.IndexName)
	}

	// Delete the middle index: active (the third) must not move.
	del, err := e.Delete("acme", names[1])
	if err != nil {
		t.Fatal(err)
	}
	if del.NewActive != names[2] {
		t.Errorf("expected active to stay %q, got %q", names[2], del.NewActive)
	}

	// Delete the active: the most recent remaining (the first) takes over.
	del, err = e.Delete("acme", names[2])
	if err != nil {
		t.Fatal(err)
	}
	if del.NewActive != names[0] {
		t.Errorf("expected active %q, got %q", names[0], del.NewActive)
	}
}

func TestDeleteNonexistentIndex(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.Delete("acme", "upload-0-0000"); !errors.Is(err, port.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Build(ctx, "acme", []domain.Document{{Path: "a.txt", Text: "acme secrets"}}, BuildOptions{ChunkSize: 100}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Build(ctx, "globex", []domain.Document{{Path: "b.txt", Text: "globex notes"}}, BuildOptions{ChunkSize: 100}); err != nil {
		t.Fatal(err)
	}

	acme := e.List("acme")
	globex := e.List("globex")
	if len(acme.Indices) != 1 || len(globex.Indices) != 1 {
		t.Fatalf("expected one index per tenant, got %d and %d", len(acme.Indices), len(globex.Indices))
	}
	if acme.Indices[0].Name == globex.Indices[0].Name {
		t.Error("expected per-tenant index names to be independent records")
	}

	res, err := e.Answer(ctx, "globex", "", "acme secrets", QueryOptions{K: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range res.Passages {
		if strings.Contains(p.Text, "acme") {
			t.Error("query leaked another tenant's passages")
		}
	}
}

func TestRestoreRebuildsRegistryLazily(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	e1 := NewEngine(st, nil, 64, discardLogger())
	ctx := context.Background()

	docs := []domain.Document{{Path: "notes.txt", Text: "the capital of france is paris and it is lovely"}}
	built, err := e1.Build(ctx, "acme", docs, BuildOptions{ChunkSize: 1000})
	if err != nil {
		t.Fatal(err)
	}

	// A fresh process over the same storage.
	st2, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	e2 := NewEngine(st2, nil, 64, discardLogger())
	defer e2.Close()
	if err := e2.Restore(); err != nil {
		t.Fatal(err)
	}

	list := e2.List("acme")
	if list.Active != built.IndexName {
		t.Errorf("expected restored active %q, got %q", built.IndexName, list.Active)
	}
	if len(list.Indices) != 1 || !list.Indices[0].HasEmbeddings {
		t.Errorf("unexpected restored list: %+v", list)
	}

	res, err := e2.Answer(ctx, "acme", "", "capital of france", QueryOptions{K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Passages) == 0 {
		t.Fatal("expected results after restore")
	}
	if res.Mode != domain.ModeDense {
		t.Errorf("expected dense mode after restore, got %q", res.Mode)
	}
}

func TestDeferredDeleteWaitsForSnapshot(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	built, err := e.Build(ctx, "acme", []domain.Document{{Path: "a.txt", Text: "hello world"}}, BuildOptions{ChunkSize: 100})
	if err != nil {
		t.Fatal(err)
	}

	snap, err := e.acquire("acme", "")
	if err != nil {
		t.Fatal(err)
	}

	del, err := e.Delete("acme", built.IndexName)
	if err != nil {
		t.Fatal(err)
	}
	if !del.RemovedFromMemory {
		t.Error("expected removal from the registry")
	}
	if del.RemovedFromStorage {
		t.Error("expected storage unlink deferred while a snapshot is held")
	}

	// The held snapshot still reads consistently.
	if _, err := snap.passages(); err != nil {
		t.Errorf("snapshot read failed during deferred delete: %v", err)
	}

	snap.Release()
	if _, err := st.LoadMeta("acme", built.IndexName); !errors.Is(err, port.ErrIndexNotFound) {
		t.Errorf("expected storage removed after release, got %v", err)
	}
}
