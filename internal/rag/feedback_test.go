package rag

import (
	"context"
	"math"
	"testing"

	"go.uber.org/mock/gomock"

	"companion-ai/internal/storage"
	storage_mocks "companion-ai/internal/storage/mocks"
)

func TestAdjuster_Neutrality_NoFeedback(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := storage_mocks.NewMockFeedbackStore(ctrl)
	repo.EXPECT().
		ListByDocument(gomock.Any(), "org-1", "doc-1", gomock.Any()).
		Return(nil, nil)
	repo.EXPECT().
		ListByUser(gomock.Any(), "org-1", "user-1", "doc-1", gomock.Any()).
		Return(nil, nil)
	repo.EXPECT().
		GetInteraction(gomock.Any(), "org-1", "user-1", "doc-1").
		Return(nil, storage.ErrNotFound)

	adjuster := NewAdjuster(repo)

	candidates := []RetrievalCandidate{
		{ChunkID: "c1", DocumentID: "doc-1", BaseScore: 0.73, Score: 0.73},
	}

	adjusted := adjuster.AdjustScores(context.Background(), "org-1", "user-1", candidates)

	if adjusted[0].Score != 0.73 {
		t.Errorf("AdjustScores() with no history = %v, want base score 0.73", adjusted[0].Score)
	}
}

func TestAdjuster_OrgFeedbackBands(t *testing.T) {
	tests := []struct {
		name       string
		feedback   []storage.FeedbackRecord
		wantFactor float64
	}{
		{
			name:       "all good",
			feedback:   []storage.FeedbackRecord{{Type: "good"}, {Type: "good"}},
			wantFactor: 0.8,
		},
		{
			name:       "all bad",
			feedback:   []storage.FeedbackRecord{{Type: "bad"}},
			wantFactor: 0.4,
		},
		{
			name:       "unknown type counts as middling",
			feedback:   []storage.FeedbackRecord{{Type: "shrug"}},
			wantFactor: 0.4 + 0.5*0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := storage_mocks.NewMockFeedbackStore(ctrl)
			repo.EXPECT().
				ListByDocument(gomock.Any(), "org-1", "doc-1", gomock.Any()).
				Return(tt.feedback, nil)

			adjuster := NewAdjuster(repo)

			// No user ID: only the org factor applies.
			candidates := []RetrievalCandidate{
				{ChunkID: "c1", DocumentID: "doc-1", BaseScore: 1.0, Score: 1.0},
			}
			adjusted := adjuster.AdjustScores(context.Background(), "org-1", "", candidates)

			if math.Abs(adjusted[0].Score-tt.wantFactor) > 1e-9 {
				t.Errorf("AdjustScores() = %v, want %v", adjusted[0].Score, tt.wantFactor)
			}
		})
	}
}

func TestAdjuster_UserFeedbackWeighedMoreThanOrg(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := storage_mocks.NewMockFeedbackStore(ctrl)

	// Org thinks the document is bad, but this user found it good. The user
	// band [0.6, 1.0] sits above the org band [0.4, 0.8], so the user's
	// opinion moderates the org penalty.
	repo.EXPECT().
		ListByDocument(gomock.Any(), "org-1", "doc-1", gomock.Any()).
		Return([]storage.FeedbackRecord{{Type: "bad"}}, nil)
	repo.EXPECT().
		ListByUser(gomock.Any(), "org-1", "user-1", "doc-1", gomock.Any()).
		Return([]storage.FeedbackRecord{{Type: "good"}}, nil)
	repo.EXPECT().
		GetInteraction(gomock.Any(), "org-1", "user-1", "doc-1").
		Return(nil, storage.ErrNotFound)

	adjuster := NewAdjuster(repo)

	candidates := []RetrievalCandidate{
		{ChunkID: "c1", DocumentID: "doc-1", BaseScore: 1.0, Score: 1.0},
	}
	adjusted := adjuster.AdjustScores(context.Background(), "org-1", "user-1", candidates)

	// org 0.4 x user 1.0
	if math.Abs(adjusted[0].Score-0.4) > 1e-9 {
		t.Errorf("AdjustScores() = %v, want 0.4", adjusted[0].Score)
	}
}

func TestAdjuster_PersonalBonusCapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := storage_mocks.NewMockFeedbackStore(ctrl)
	repo.EXPECT().
		ListByDocument(gomock.Any(), "org-1", "doc-1", gomock.Any()).
		Return(nil, nil)
	repo.EXPECT().
		ListByUser(gomock.Any(), "org-1", "user-1", "doc-1", gomock.Any()).
		Return(nil, nil)
	repo.EXPECT().
		GetInteraction(gomock.Any(), "org-1", "user-1", "doc-1").
		Return(&storage.InteractionRecord{AccessCount: 100, RelevanceScore: 0}, nil)

	adjuster := NewAdjuster(repo)

	candidates := []RetrievalCandidate{
		{ChunkID: "c1", DocumentID: "doc-1", BaseScore: 1.0, Score: 1.0},
	}
	adjusted := adjuster.AdjustScores(context.Background(), "org-1", "user-1", candidates)

	// Access bonus caps at +30% no matter how many opens.
	if math.Abs(adjusted[0].Score-1.3) > 1e-9 {
		t.Errorf("AdjustScores() = %v, want 1.3", adjusted[0].Score)
	}
}

func TestAdjuster_NegativeRelevanceLowersScore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := storage_mocks.NewMockFeedbackStore(ctrl)
	repo.EXPECT().
		ListByDocument(gomock.Any(), "org-1", "doc-1", gomock.Any()).
		Return(nil, nil)
	repo.EXPECT().
		ListByUser(gomock.Any(), "org-1", "user-1", "doc-1", gomock.Any()).
		Return(nil, nil)
	repo.EXPECT().
		GetInteraction(gomock.Any(), "org-1", "user-1", "doc-1").
		Return(&storage.InteractionRecord{AccessCount: 0, RelevanceScore: -1}, nil)

	adjuster := NewAdjuster(repo)

	candidates := []RetrievalCandidate{
		{ChunkID: "c1", DocumentID: "doc-1", BaseScore: 1.0, Score: 1.0},
	}
	adjusted := adjuster.AdjustScores(context.Background(), "org-1", "user-1", candidates)

	if adjusted[0].Score >= 1.0 {
		t.Errorf("AdjustScores() = %v, want below base score", adjusted[0].Score)
	}
}

func TestAdjuster_ResortsByAdjustedScore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := storage_mocks.NewMockFeedbackStore(ctrl)
	// doc-bad carries bad feedback, doc-clean has none.
	repo.EXPECT().
		ListByDocument(gomock.Any(), "org-1", "doc-bad", gomock.Any()).
		Return([]storage.FeedbackRecord{{Type: "bad"}}, nil)
	repo.EXPECT().
		ListByDocument(gomock.Any(), "org-1", "doc-clean", gomock.Any()).
		Return(nil, nil)

	adjuster := NewAdjuster(repo)

	candidates := []RetrievalCandidate{
		{ChunkID: "c1", DocumentID: "doc-bad", BaseScore: 0.9, Score: 0.9},
		{ChunkID: "c2", DocumentID: "doc-clean", BaseScore: 0.6, Score: 0.6},
	}
	adjusted := adjuster.AdjustScores(context.Background(), "org-1", "", candidates)

	// 0.9 x 0.4 = 0.36 < 0.6, so the clean document wins.
	if adjusted[0].ChunkID != "c2" {
		t.Errorf("AdjustScores() top = %v, want c2", adjusted[0].ChunkID)
	}
}

func TestAdjuster_StoreErrorIsNeutral(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := storage_mocks.NewMockFeedbackStore(ctrl)
	repo.EXPECT().
		ListByDocument(gomock.Any(), "org-1", "doc-1", gomock.Any()).
		Return(nil, context.DeadlineExceeded)

	adjuster := NewAdjuster(repo)

	candidates := []RetrievalCandidate{
		{ChunkID: "c1", DocumentID: "doc-1", BaseScore: 0.5, Score: 0.5},
	}
	adjusted := adjuster.AdjustScores(context.Background(), "org-1", "", candidates)

	if adjusted[0].Score != 0.5 {
		t.Errorf("AdjustScores() with store error = %v, want neutral 0.5", adjusted[0].Score)
	}
}

func TestAdjuster_SharedDocumentFactorCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := storage_mocks.NewMockFeedbackStore(ctrl)
	// Two chunks of the same document must trigger exactly one lookup.
	repo.EXPECT().
		ListByDocument(gomock.Any(), "org-1", "doc-1", gomock.Any()).
		Return([]storage.FeedbackRecord{{Type: "good"}}, nil).
		Times(1)

	adjuster := NewAdjuster(repo)

	candidates := []RetrievalCandidate{
		{ChunkID: "c1", DocumentID: "doc-1", BaseScore: 0.9, Score: 0.9},
		{ChunkID: "c2", DocumentID: "doc-1", BaseScore: 0.8, Score: 0.8},
	}
	adjusted := adjuster.AdjustScores(context.Background(), "org-1", "", candidates)

	if len(adjusted) != 2 {
		t.Fatalf("AdjustScores() returned %d candidates, want 2", len(adjusted))
	}
}
