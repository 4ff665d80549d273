package rag

import (
	"testing"
	"time"
)

func TestRerank_TitleMatchOutranksNoMatch(t *testing.T) {
	now := time.Now()
	candidates := []RetrievalCandidate{
		{ChunkID: "decoy", Title: "Lighting Design Principles", Text: "Ambient lighting layers.", BaseScore: 0.5, Score: 0.5},
		{ChunkID: "match", Title: "Voltage Requirements", Text: "The device needs a stable supply.", BaseScore: 0.5, Score: 0.5},
	}

	reranked := Rerank("voltage requirements", candidates, 2, now)

	if reranked[0].ChunkID != "match" {
		t.Errorf("Rerank() top = %v, want match", reranked[0].ChunkID)
	}
	if reranked[0].Score <= reranked[1].Score {
		t.Errorf("Rerank() match score %v should exceed decoy score %v", reranked[0].Score, reranked[1].Score)
	}
}

func TestRerank_TitleBoostLargerThanBodyBoost(t *testing.T) {
	now := time.Now()
	candidates := []RetrievalCandidate{
		{ChunkID: "body", Title: "Misc", Text: "voltage", BaseScore: 0.5, Score: 0.5},
		{ChunkID: "title", Title: "voltage", Text: "misc", BaseScore: 0.5, Score: 0.5},
	}

	reranked := Rerank("voltage", candidates, 2, now)

	if reranked[0].ChunkID != "title" {
		t.Errorf("Rerank() top = %v, want title-matched candidate", reranked[0].ChunkID)
	}
}

func TestRerank_RecencyBoost(t *testing.T) {
	now := time.Now()
	candidates := []RetrievalCandidate{
		{ChunkID: "old", Title: "alpha", Text: "beta", BaseScore: 0.5, Score: 0.5, LastModified: now.Add(-60 * 24 * time.Hour)},
		{ChunkID: "fresh", Title: "alpha", Text: "beta", BaseScore: 0.5, Score: 0.5, LastModified: now.Add(-time.Hour)},
	}

	reranked := Rerank("unrelated query", candidates, 2, now)

	if reranked[0].ChunkID != "fresh" {
		t.Errorf("Rerank() top = %v, want fresh", reranked[0].ChunkID)
	}
	if reranked[1].Score != 0.5 {
		t.Errorf("candidate outside recency window got score %v, want unchanged 0.5", reranked[1].Score)
	}
}

func TestRerank_MissingLastModifiedIsNeutral(t *testing.T) {
	now := time.Now()
	candidates := []RetrievalCandidate{
		{ChunkID: "c1", Title: "alpha", Text: "beta", BaseScore: 0.4, Score: 0.4},
	}

	reranked := Rerank("unrelated query", candidates, 1, now)

	if reranked[0].Score != 0.4 {
		t.Errorf("Rerank() score = %v, want unchanged 0.4 for missing timestamp", reranked[0].Score)
	}
}

func TestRerank_TruncatesToTopK(t *testing.T) {
	now := time.Now()
	candidates := make([]RetrievalCandidate, 10)
	for i := range candidates {
		candidates[i] = RetrievalCandidate{ChunkID: string(rune('a' + i)), Score: float64(i) / 10}
	}

	reranked := Rerank("query", candidates, 3, now)

	if len(reranked) != 3 {
		t.Fatalf("Rerank() returned %d candidates, want 3", len(reranked))
	}
	if reranked[0].Score < reranked[1].Score || reranked[1].Score < reranked[2].Score {
		t.Error("Rerank() output is not sorted descending")
	}
}

func TestRerank_Deterministic(t *testing.T) {
	now := time.Now()
	candidates := []RetrievalCandidate{
		{ChunkID: "a", Title: "Voltage Guide", Text: "supply voltage details", Score: 0.5},
		{ChunkID: "b", Title: "Other", Text: "unrelated", Score: 0.5},
		{ChunkID: "c", Title: "Voltage Guide", Text: "more voltage", Score: 0.4},
	}

	first := Rerank("voltage", candidates, 3, now)
	second := Rerank("voltage", candidates, 3, now)

	for i := range first {
		if first[i].ChunkID != second[i].ChunkID || first[i].Score != second[i].Score {
			t.Fatalf("Rerank() not deterministic at index %d", i)
		}
	}
}

func TestRerank_DoesNotMutateInput(t *testing.T) {
	now := time.Now()
	candidates := []RetrievalCandidate{
		{ChunkID: "a", Title: "voltage", Text: "voltage", Score: 0.5},
	}

	_ = Rerank("voltage", candidates, 1, now)

	if candidates[0].Score != 0.5 {
		t.Errorf("Rerank() mutated input: score = %v", candidates[0].Score)
	}
}

func TestRerank_Empty(t *testing.T) {
	if got := Rerank("query", nil, 5, time.Now()); got != nil {
		t.Errorf("Rerank() with no candidates = %v, want nil", got)
	}
}

func TestRecencyBoost(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name         string
		lastModified time.Time
		wantZero     bool
	}{
		{name: "zero time", lastModified: time.Time{}, wantZero: true},
		{name: "future timestamp", lastModified: now.Add(time.Hour), wantZero: true},
		{name: "at window edge", lastModified: now.Add(-recencyWindow), wantZero: true},
		{name: "inside window", lastModified: now.Add(-time.Hour), wantZero: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boost := recencyBoost(tt.lastModified, now)
			if tt.wantZero && boost != 0 {
				t.Errorf("recencyBoost() = %v, want 0", boost)
			}
			if !tt.wantZero && (boost <= 0 || boost > maxRecencyBoost) {
				t.Errorf("recencyBoost() = %v, want in (0, %v]", boost, maxRecencyBoost)
			}
		})
	}
}

func TestRecencyBoost_DecaysWithAge(t *testing.T) {
	now := time.Now()

	fresh := recencyBoost(now.Add(-time.Hour), now)
	older := recencyBoost(now.Add(-20*24*time.Hour), now)

	if fresh <= older {
		t.Errorf("recencyBoost() fresh %v should exceed older %v", fresh, older)
	}
}
