package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"

	"passage/internal/domain"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"disabled", "hello", 0, "hello"},
		{"shorter than cap", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 5, "hello"},
		{"empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	s := "héllo wörld"
	for n := 1; n < len(s); n++ {
		got := truncate(s, n)
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) split a rune: %q", s, n, got)
		}
		if len(got) > n {
			t.Fatalf("truncate(%q, %d) returned %d bytes", s, n, len(got))
		}
	}
}

func TestEmbedCopiesPerPassageCap(t *testing.T) {
	b := MemoryBudget{MaxPassageChars: 4}
	texts := b.embedCopies([]domain.Passage{
		{Text: "alpha beta"},
		{Text: "ok"},
	})
	if texts[0] != "alph" || texts[1] != "ok" {
		t.Errorf("unexpected copies %q", texts)
	}
}

func TestEmbedCopiesTotalByteCap(t *testing.T) {
	passages := []domain.Passage{
		{Text: strings.Repeat("a", 100)},
		{Text: strings.Repeat("b", 100)},
	}
	texts := MemoryBudget{MaxEmbedBytes: 20}.embedCopies(passages)
	if len(texts) != 2 {
		t.Fatalf("row count changed: %d", len(texts))
	}
	for i, s := range texts {
		if len(s) != 10 {
			t.Errorf("copy %d is %d bytes, want 10", i, len(s))
		}
	}
}

func TestEmbedCopiesTinyByteCapKeepsEveryRow(t *testing.T) {
	passages := make([]domain.Passage, 8)
	for i := range passages {
		passages[i] = domain.Passage{Text: "some text"}
	}
	texts := MemoryBudget{MaxEmbedBytes: 3}.embedCopies(passages)
	for i, s := range texts {
		if s == "" {
			t.Errorf("copy %d collapsed to empty; every passage keeps a row", i)
		}
	}
}

func TestCapPassages(t *testing.T) {
	passages := make([]domain.Passage, 5)
	kept, dropped := MemoryBudget{MaxPassages: 3}.capPassages(passages)
	if len(kept) != 3 || dropped != 2 {
		t.Errorf("got %d kept, %d dropped", len(kept), dropped)
	}
	kept, dropped = MemoryBudget{}.capPassages(passages)
	if len(kept) != 5 || dropped != 0 {
		t.Errorf("disabled cap modified input: %d kept, %d dropped", len(kept), dropped)
	}
}
