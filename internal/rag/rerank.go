package rag

import (
	"sort"
	"strings"
	"time"
)

const (
	titleMatchBoost = 0.1
	bodyMatchBoost  = 0.05
	maxRecencyBoost = 0.1
	recencyWindow   = 30 * 24 * time.Hour
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "what": {}, "with": {},
}

// Rerank re-scores candidates with cheap lexical and recency heuristics on
// top of their vector scores, then returns the top topK by adjusted score.
// Deterministic and side-effect-free: now is passed in rather than read.
func Rerank(query string, candidates []RetrievalCandidate, topK int, now time.Time) []RetrievalCandidate {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}

	queryTokens := filterStopwords(tokenize(query))

	reranked := make([]RetrievalCandidate, len(candidates))
	copy(reranked, candidates)

	for i := range reranked {
		c := &reranked[i]

		if len(queryTokens) > 0 {
			c.Score += float64(countTokenMatches(queryTokens, tokenize(c.Title))) * titleMatchBoost
			c.Score += float64(countTokenMatches(queryTokens, tokenize(c.Text))) * bodyMatchBoost
		}

		c.Score += recencyBoost(c.LastModified, now)
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked
}

// countTokenMatches counts query tokens that match a target token by
// substring containment in either direction. Each query token counts at
// most once.
func countTokenMatches(queryTokens, targetTokens []string) int {
	if len(targetTokens) == 0 {
		return 0
	}

	var matches int
	for _, q := range queryTokens {
		for _, t := range targetTokens {
			if strings.Contains(t, q) || strings.Contains(q, t) {
				matches++
				break
			}
		}
	}
	return matches
}

// recencyBoost decays linearly from maxRecencyBoost at "just modified" to
// zero at the window edge. A zero timestamp means the source carries no
// modification time and the boost is a no-op.
func recencyBoost(lastModified, now time.Time) float64 {
	if lastModified.IsZero() {
		return 0
	}

	age := now.Sub(lastModified)
	if age < 0 || age >= recencyWindow {
		return 0
	}

	return maxRecencyBoost * (1 - float64(age)/float64(recencyWindow))
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func filterStopwords(tokens []string) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	return result
}
