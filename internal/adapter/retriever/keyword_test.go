package retriever

import (
	"context"
	"testing"

	"passage/internal/adapter/embedding"
	"passage/internal/domain"
)

func passageFixture() []domain.Passage {
	return []domain.Passage{
		{Text: "The mitochondria is the powerhouse of the cell.", Source: "bio.txt", ChunkID: 0},
		{Text: "Photosynthesis converts light into chemical energy.", Source: "bio.txt", ChunkID: 1},
		{Text: "HTTP handlers route authentication requests.", Source: "web.txt", ChunkID: 0},
		{Text: "Databases store rows in pages.", Source: "db.txt", ChunkID: 0},
	}
}

func TestKeywordRankFindsMatchingPassage(t *testing.T) {
	got := KeywordRank(passageFixture(), "authentication requests", 2)
	if len(got) == 0 {
		t.Fatal("expected results")
	}
	if got[0].Row != 2 {
		t.Errorf("expected row 2 first, got %d", got[0].Row)
	}
	if got[0].Score != 2 {
		t.Errorf("expected score 2, got %f", got[0].Score)
	}
}

func TestKeywordRankTiesKeepOriginalOrder(t *testing.T) {
	passages := []domain.Passage{
		{Text: "alpha beta", ChunkID: 0},
		{Text: "alpha gamma", ChunkID: 1},
		{Text: "alpha delta", ChunkID: 2},
	}
	got := KeywordRank(passages, "alpha", 3)
	for i := range got {
		if got[i].Row != i {
			t.Errorf("rank %d: expected row %d, got %d", i, i, got[i].Row)
		}
	}
}

func TestKeywordRankCaseInsensitiveAndDeduped(t *testing.T) {
	passages := []domain.Passage{{Text: "Alpha says hello", ChunkID: 0}}
	got := KeywordRank(passages, "ALPHA alpha Alpha", 1)
	if len(got) != 1 || got[0].Score != 1 {
		t.Errorf("expected single term to count once, got %v", got)
	}
}

func TestKeywordRankEmptyQuery(t *testing.T) {
	if got := KeywordRank(passageFixture(), "   ", 3); got != nil {
		t.Errorf("expected nil for blank query, got %v", got)
	}
}

func TestKeywordThenHashPrunesAndReranks(t *testing.T) {
	passages := []domain.Passage{
		{Text: "database connection pooling and reuse", ChunkID: 0},
		{Text: "database of medieval paintings", ChunkID: 1},
		{Text: "gardening tips for spring", ChunkID: 2},
	}
	emb := embedding.NewHashEmbedder(128)

	got, err := KeywordThenHash(context.Background(), passages, "database connection", 2, 10, emb)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Row != 0 {
		t.Errorf("expected row 0 (both terms) first, got %d", got[0].Row)
	}
	for _, c := range got {
		if c.Row == 2 {
			t.Error("expected the unrelated passage pruned out")
		}
	}
}

func TestKeywordThenHashEmptyQuery(t *testing.T) {
	emb := embedding.NewHashEmbedder(64)
	got, err := KeywordThenHash(context.Background(), passageFixture(), "", 3, 10, emb)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for empty query, got %v", got)
	}
}
