package rag

import (
	"context"
	"errors"
	"sort"
	"time"

	"companion-ai/internal/contextutil"
	"companion-ai/internal/storage"
)

const (
	feedbackWindow = 90 * 24 * time.Hour

	// Org-wide feedback maps into a weaker multiplier band than the
	// requesting user's own feedback. Personalization outranks the
	// aggregate opinion.
	orgFactorMin  = 0.4
	orgFactorMax  = 0.8
	userFactorMin = 0.6
	userFactorMax = 1.0

	// Per-access bonus and its cap.
	accessBonusStep = 0.05
	maxAccessBonus  = 0.3

	// Weight of the signed personal relevance score in the personal factor.
	relevanceWeight = 0.2

	personalFactorMin = 0.5
	personalFactorMax = 1.5
)

// feedbackTypeScores maps a feedback type to a quality score in [0, 1].
var feedbackTypeScores = map[string]float64{
	"good":       1.0,
	"helpful":    0.7,
	"irrelevant": 0.3,
	"bad":        0.0,
}

const unknownFeedbackScore = 0.5

func feedbackScore(feedbackType string) float64 {
	if score, ok := feedbackTypeScores[feedbackType]; ok {
		return score
	}
	return unknownFeedbackScore
}

// Adjuster folds historical feedback into candidate scores. A document
// nobody has rated keeps its base score exactly: sparse data is always
// score-neutral, never a penalty or an error.
type Adjuster struct {
	feedbackRepo storage.FeedbackStore
}

// NewAdjuster creates a new feedback adjuster.
func NewAdjuster(feedbackRepo storage.FeedbackStore) *Adjuster {
	return &Adjuster{feedbackRepo: feedbackRepo}
}

// AdjustScores multiplies each candidate's score by org-level, user-level
// and personal-interaction factors, then re-sorts descending. Store errors
// degrade to neutral factors so a feedback outage never breaks retrieval.
func (a *Adjuster) AdjustScores(ctx context.Context, orgID, userID string, candidates []RetrievalCandidate) []RetrievalCandidate {
	if len(candidates) == 0 {
		return nil
	}

	adjusted := make([]RetrievalCandidate, len(candidates))
	copy(adjusted, candidates)

	since := time.Now().Add(-feedbackWindow)

	// Factors are per document; candidates from the same document share them.
	factorCache := make(map[string]float64)

	for i := range adjusted {
		c := &adjusted[i]

		factor, ok := factorCache[c.DocumentID]
		if !ok {
			factor = a.documentFactor(ctx, orgID, userID, c.DocumentID, since)
			factorCache[c.DocumentID] = factor
		}

		c.Score *= factor
	}

	sort.SliceStable(adjusted, func(i, j int) bool {
		return adjusted[i].Score > adjusted[j].Score
	})

	return adjusted
}

// documentFactor computes the combined multiplier for one document.
func (a *Adjuster) documentFactor(ctx context.Context, orgID, userID, documentID string, since time.Time) float64 {
	logger := contextutil.LoggerFromContext(ctx)

	orgFactor := 1.0
	orgFeedback, err := a.feedbackRepo.ListByDocument(ctx, orgID, documentID, since)
	if err != nil {
		logger.WarnContext(ctx, "failed to load org feedback, treating as neutral", "document_id", documentID, "error", err)
	} else if len(orgFeedback) > 0 {
		orgFactor = scaleFactor(averageFeedbackScore(orgFeedback), orgFactorMin, orgFactorMax)
	}

	userFactor := 1.0
	personalFactor := 1.0

	if userID != "" {
		userFeedback, err := a.feedbackRepo.ListByUser(ctx, orgID, userID, documentID, since)
		if err != nil {
			logger.WarnContext(ctx, "failed to load user feedback, treating as neutral", "document_id", documentID, "error", err)
		} else if len(userFeedback) > 0 {
			userFactor = scaleFactor(averageFeedbackScore(userFeedback), userFactorMin, userFactorMax)
		}

		personalFactor = a.personalFactor(ctx, orgID, userID, documentID)
	}

	return orgFactor * userFactor * personalFactor
}

// personalFactor derives a bonus from how often the user opens this document
// plus their signed relevance score for it. No interaction history is neutral.
func (a *Adjuster) personalFactor(ctx context.Context, orgID, userID, documentID string) float64 {
	interaction, err := a.feedbackRepo.GetInteraction(ctx, orgID, userID, documentID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger := contextutil.LoggerFromContext(ctx)
			logger.WarnContext(ctx, "failed to load interaction, treating as neutral", "document_id", documentID, "error", err)
		}
		return 1.0
	}

	accessBonus := float64(interaction.AccessCount) * accessBonusStep
	if accessBonus > maxAccessBonus {
		accessBonus = maxAccessBonus
	}

	factor := 1.0 + accessBonus + interaction.RelevanceScore*relevanceWeight
	return clamp(factor, personalFactorMin, personalFactorMax)
}

// RecordRetrieval notes that the given documents were surfaced to the user.
// Best effort: failures are logged, never propagated.
func (a *Adjuster) RecordRetrieval(ctx context.Context, orgID, userID string, documentIDs []string) {
	if userID == "" {
		return
	}

	logger := contextutil.LoggerFromContext(ctx)
	for _, docID := range documentIDs {
		if err := a.feedbackRepo.RecordAccess(ctx, orgID, userID, docID, 0); err != nil {
			logger.WarnContext(ctx, "failed to record document access", "document_id", docID, "error", err)
		}
	}
}

func averageFeedbackScore(records []storage.FeedbackRecord) float64 {
	var sum float64
	for _, fb := range records {
		sum += feedbackScore(fb.Type)
	}
	return sum / float64(len(records))
}

// scaleFactor maps a quality score in [0, 1] linearly into [lo, hi].
func scaleFactor(score, lo, hi float64) float64 {
	return lo + clamp(score, 0, 1)*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
